package favorites

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-loongo/internal/app/models"
	"github.com/FACorreiaa/go-loongo/internal/app/observability/metrics"
)

var _ Service = (*ServiceImpl)(nil)

// CityReader is the part of the city repository the ledger needs.
type CityReader interface {
	CityExists(ctx context.Context, cityID int64) (bool, error)
	GetCitiesByIDs(ctx context.Context, cityIDs []int64) ([]models.City, error)
}

// POIReader is the part of the POI repository the ledger needs.
type POIReader interface {
	POIExists(ctx context.Context, poiID int64) (bool, error)
	GetPOIsByIDs(ctx context.Context, poiIDs []int64) ([]models.POI, error)
}

type Service interface {
	EnsureItem(ctx context.Context, itemID int64, itemType models.ItemType) error
	Toggle(ctx context.Context, identity models.Identity, itemID int64, itemType models.ItemType) (bool, error)
	IsFavorite(ctx context.Context, identity models.Identity, itemID int64, itemType models.ItemType) (bool, error)
	ListByIdentity(ctx context.Context, identity models.Identity, itemType models.ItemType) ([]int64, error)
	MergeVisitor(ctx context.Context, visitorID string, userID int64) (models.MergeResult, error)
	Favorites(ctx context.Context, identity models.Identity) ([]models.FavoriteCity, error)
}

type ServiceImpl struct {
	logger *zap.Logger
	repo   Repository
	cities CityReader
	pois   POIReader
}

func NewService(repo Repository, cities CityReader, pois POIReader, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		cities: cities,
		pois:   pois,
	}
}

// retryOnRace runs op a second time when the first attempt lost a race on
// the ledger's unique indexes. A second lost race is reported as a conflict.
func retryOnRace[T any](l *zap.Logger, op func() (T, error)) (T, error) {
	v, err := op()
	if !errors.Is(err, models.ErrFavoriteRace) {
		return v, err
	}
	l.Debug("Favorite race detected, retrying once")
	v, err = op()
	if errors.Is(err, models.ErrFavoriteRace) {
		return v, fmt.Errorf("favorite changed concurrently twice: %w", models.ErrConflict)
	}
	return v, err
}

func (s *ServiceImpl) itemExists(ctx context.Context, itemID int64, itemType models.ItemType) (bool, error) {
	switch itemType {
	case models.ItemTypeCity:
		return s.cities.CityExists(ctx, itemID)
	case models.ItemTypePOI:
		return s.pois.POIExists(ctx, itemID)
	default:
		return false, fmt.Errorf("unknown item type %q: %w", itemType, models.ErrValidation)
	}
}

// EnsureItem returns ErrNotFound when the city or POI does not exist.
func (s *ServiceImpl) EnsureItem(ctx context.Context, itemID int64, itemType models.ItemType) error {
	exists, err := s.itemExists(ctx, itemID, itemType)
	if err != nil {
		return fmt.Errorf("failed to look up %s %d: %w", itemType, itemID, err)
	}
	if !exists {
		return fmt.Errorf("%s %d: %w", itemType, itemID, models.ErrNotFound)
	}
	return nil
}

func (s *ServiceImpl) Toggle(ctx context.Context, identity models.Identity, itemID int64, itemType models.ItemType) (bool, error) {
	ctx, span := otel.Tracer("FavoritesService").Start(ctx, "Toggle", trace.WithAttributes(
		attribute.String("identity.kind", identity.Kind.String()),
		attribute.Int64("item.id", itemID),
		attribute.String("item.type", string(itemType)),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "Toggle"),
		zap.Int64("item_id", itemID),
		zap.String("item_type", string(itemType)))

	owner, ok := identity.Owner()
	if !ok {
		err := fmt.Errorf("toggling a favorite requires a user or visitor: %w", models.ErrValidation)
		span.RecordError(err)
		span.SetStatus(codes.Error, "no owner")
		return false, err
	}

	exists, err := s.itemExists(ctx, itemID, itemType)
	if err != nil {
		l.Error("Failed to check item existence", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "existence check failed")
		return false, fmt.Errorf("failed to look up %s %d: %w", itemType, itemID, err)
	}
	if !exists {
		span.SetStatus(codes.Error, "item not found")
		return false, fmt.Errorf("%s %d: %w", itemType, itemID, models.ErrNotFound)
	}

	isFavorite, err := retryOnRace(l, func() (bool, error) {
		return s.repo.Toggle(ctx, owner, itemID, itemType)
	})
	if err != nil {
		metrics.Get().FavoriteTogglesTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("item_type", string(itemType)),
			attribute.String("result", "error"),
		))
		l.Error("Failed to toggle favorite", zap.Stringer("owner", owner), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "toggle failed")
		return false, err
	}

	result := "removed"
	if isFavorite {
		result = "added"
	}
	metrics.Get().FavoriteTogglesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("item_type", string(itemType)),
		attribute.String("result", result),
	))
	l.Info("Favorite toggled", zap.Stringer("owner", owner), zap.Bool("is_favorite", isFavorite))
	span.SetStatus(codes.Ok, result)
	return isFavorite, nil
}

func (s *ServiceImpl) IsFavorite(ctx context.Context, identity models.Identity, itemID int64, itemType models.ItemType) (bool, error) {
	owner, ok := identity.Owner()
	if !ok {
		return false, nil
	}
	ctx, span := otel.Tracer("FavoritesService").Start(ctx, "IsFavorite")
	defer span.End()

	isFavorite, err := s.repo.IsFavorite(ctx, owner, itemID, itemType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return false, err
	}
	return isFavorite, nil
}

func (s *ServiceImpl) ListByIdentity(ctx context.Context, identity models.Identity, itemType models.ItemType) ([]int64, error) {
	owner, ok := identity.Owner()
	if !ok {
		return []int64{}, nil
	}
	ctx, span := otel.Tracer("FavoritesService").Start(ctx, "ListByIdentity")
	defer span.End()

	ids, err := s.repo.ListByIdentity(ctx, owner, itemType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, err
	}
	return ids, nil
}

// MergeVisitor re-owns the visitor's favorites to the user. Favorites the
// user already has are dropped from the visitor side.
func (s *ServiceImpl) MergeVisitor(ctx context.Context, visitorID string, userID int64) (models.MergeResult, error) {
	ctx, span := otel.Tracer("FavoritesService").Start(ctx, "MergeVisitor", trace.WithAttributes(
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "MergeVisitor"), zap.Int64("user_id", userID))

	if visitorID == "" {
		return models.MergeResult{}, fmt.Errorf("visitor id is empty: %w", models.ErrValidation)
	}

	from := models.VisitorOwner{Token: visitorID}
	into := models.UserOwner{ID: userID}
	res, err := retryOnRace(l, func() (models.MergeResult, error) {
		return s.repo.Merge(ctx, from, into)
	})
	if err != nil {
		metrics.Get().VisitorMergesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
		l.Error("Failed to merge visitor favorites", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "merge failed")
		return models.MergeResult{}, err
	}

	metrics.Get().VisitorMergesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	metrics.Get().MergedFavoritesTotal.Add(ctx, res.Moved, metric.WithAttributes(attribute.String("outcome", "moved")))
	metrics.Get().MergedFavoritesTotal.Add(ctx, res.Dropped, metric.WithAttributes(attribute.String("outcome", "dropped")))

	if res.Dropped > 0 {
		l.Info("Visitor favorites already owned by user were dropped", zap.Int64("dropped", res.Dropped))
	}
	l.Info("Visitor favorites merged", zap.Int64("moved", res.Moved))
	span.SetAttributes(attribute.Int64("merge.moved", res.Moved), attribute.Int64("merge.dropped", res.Dropped))
	span.SetStatus(codes.Ok, "merged")
	return res, nil
}

// Favorites builds the favorites page: favorited cities, newest first, each
// with the favorited POIs located in that city.
func (s *ServiceImpl) Favorites(ctx context.Context, identity models.Identity) ([]models.FavoriteCity, error) {
	owner, ok := identity.Owner()
	if !ok {
		return []models.FavoriteCity{}, nil
	}

	ctx, span := otel.Tracer("FavoritesService").Start(ctx, "Favorites", trace.WithAttributes(
		attribute.String("favorite.owner", owner.String()),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "Favorites"), zap.Stringer("owner", owner))

	cityIDs, err := s.repo.ListByIdentity(ctx, owner, models.ItemTypeCity)
	if err != nil {
		l.Error("Failed to list favorite cities", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "list cities failed")
		return nil, err
	}
	if len(cityIDs) == 0 {
		return []models.FavoriteCity{}, nil
	}

	poiIDs, err := s.repo.ListByIdentity(ctx, owner, models.ItemTypePOI)
	if err != nil {
		l.Error("Failed to list favorite POIs", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "list pois failed")
		return nil, err
	}

	cities, err := s.cities.GetCitiesByIDs(ctx, cityIDs)
	if err != nil {
		l.Error("Failed to load favorite cities", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "load cities failed")
		return nil, err
	}

	poisByCity := make(map[int64][]models.POI)
	if len(poiIDs) > 0 {
		pois, err := s.pois.GetPOIsByIDs(ctx, poiIDs)
		if err != nil {
			l.Error("Failed to load favorite POIs", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "load pois failed")
			return nil, err
		}
		poiRank := rankOf(poiIDs)
		sortByRank(pois, func(p models.POI) int64 { return p.ID }, poiRank)
		for _, p := range pois {
			p.IsFavorite = true
			poisByCity[p.CityID] = append(poisByCity[p.CityID], p)
		}
	}

	sortByRank(cities, func(c models.City) int64 { return c.ID }, rankOf(cityIDs))
	view := make([]models.FavoriteCity, 0, len(cities))
	for _, c := range cities {
		c.IsFavorite = true
		cityPOIs := poisByCity[c.ID]
		if cityPOIs == nil {
			cityPOIs = []models.POI{}
		}
		view = append(view, models.FavoriteCity{
			City:     c,
			POIs:     cityPOIs,
			POICount: len(cityPOIs),
		})
	}

	span.SetAttributes(attribute.Int("favorite.cities", len(view)))
	return view, nil
}

func rankOf(ids []int64) map[int64]int {
	rank := make(map[int64]int, len(ids))
	for i, id := range ids {
		rank[id] = i
	}
	return rank
}

// sortByRank orders items by the position of their id in the ledger listing.
func sortByRank[T any](items []T, id func(T) int64, rank map[int64]int) {
	slices.SortStableFunc(items, func(a, b T) int {
		return rank[id(a)] - rank[id(b)]
	})
}
