package city

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-loongo/internal/app/domain/favorites"
	"github.com/FACorreiaa/go-loongo/internal/app/models"
	"github.com/FACorreiaa/go-loongo/internal/app/observability/metrics"
	"github.com/FACorreiaa/go-loongo/internal/app/utils"
)

var _ Service = (*ServiceImpl)(nil)

// POILister is the part of the POI repository used for city pages.
type POILister interface {
	ListCityPOIs(ctx context.Context, cityID int64, poiType models.POIType) ([]models.POI, error)
	SearchCityPOIs(ctx context.Context, cityID int64, pattern string) ([]models.POI, error)
}

type Service interface {
	ListCities(ctx context.Context, identity models.Identity, filter models.CityFilter) ([]models.City, error)
	GetCity(ctx context.Context, identity models.Identity, cityID int64) (*models.CityDetail, error)
	SearchCities(ctx context.Context, identity models.Identity, query string) ([]models.City, error)
	CitiesMap(ctx context.Context, identity models.Identity) ([]models.CityMarker, error)
	RecommendedCities(ctx context.Context, identity models.Identity, cityID int64, limit int) ([]models.City, error)
	CityPOIsMap(ctx context.Context, identity models.Identity, cityID int64, poiType models.POIType) ([]models.POI, error)
	SearchCityPOIs(ctx context.Context, identity models.Identity, cityID int64, query string) ([]models.POI, error)
}

type Options struct {
	RecommendedLimit int
	MaxPageSize      int
}

type ServiceImpl struct {
	logger    *zap.Logger
	repo      Repository
	pois      POILister
	favorites favorites.Lookup
	opts      Options
}

func NewCityService(repo Repository, pois POILister, favs favorites.Lookup, opts Options, logger *zap.Logger) *ServiceImpl {
	if opts.RecommendedLimit <= 0 {
		opts.RecommendedLimit = 5
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	return &ServiceImpl{
		logger:    logger,
		repo:      repo,
		pois:      pois,
		favorites: favs,
		opts:      opts,
	}
}

func (s *ServiceImpl) ListCities(ctx context.Context, identity models.Identity, filter models.CityFilter) ([]models.City, error) {
	ctx, span := otel.Tracer("CityService").Start(ctx, "ListCities", trace.WithAttributes(
		attribute.String("city.region", filter.Region),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "ListCities"))

	if filter.Skip < 0 {
		return nil, fmt.Errorf("skip must not be negative: %w", models.ErrValidation)
	}
	if filter.Limit <= 0 || filter.Limit > s.opts.MaxPageSize {
		filter.Limit = s.opts.MaxPageSize
	}

	cities, err := s.repo.ListCities(ctx, filter)
	if err != nil {
		l.Error("Failed to retrieve cities from repository", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Repository operation failed")
		return nil, fmt.Errorf("failed to retrieve cities: %w", err)
	}
	if err := favorites.MarkFavorites(ctx, s.favorites, identity, models.ItemTypeCity, cities, favorites.CityID, favorites.MarkCity); err != nil {
		l.Error("Failed to load favorite flags", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Favorite flags failed")
		return nil, fmt.Errorf("failed to load favorite flags: %w", err)
	}

	l.Debug("Retrieved cities", zap.Int("count", len(cities)))
	span.SetAttributes(attribute.Int("cities.count", len(cities)))
	span.SetStatus(codes.Ok, "Cities retrieved successfully")
	return cities, nil
}

// GetCity loads the city and then its media, POIs, recommendations and
// favorite flag concurrently.
func (s *ServiceImpl) GetCity(ctx context.Context, identity models.Identity, cityID int64) (*models.CityDetail, error) {
	ctx, span := otel.Tracer("CityService").Start(ctx, "GetCity", trace.WithAttributes(
		attribute.Int64("city.id", cityID),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "GetCity"), zap.Int64("city_id", cityID))

	city, err := s.repo.GetCity(ctx, cityID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "City lookup failed")
		return nil, err
	}

	detail := &models.CityDetail{City: *city}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		images, videos, err := s.repo.GetCityMedia(gctx, cityID)
		if err != nil {
			return err
		}
		detail.Images, detail.Videos = images, videos
		return nil
	})

	g.Go(func() error {
		pois, err := s.pois.ListCityPOIs(gctx, cityID, "")
		if err != nil {
			return err
		}
		if err := favorites.MarkFavorites(gctx, s.favorites, identity, models.ItemTypePOI, pois, favorites.POIID, favorites.MarkPOI); err != nil {
			return err
		}
		detail.POIs = pois
		return nil
	})

	g.Go(func() error {
		recommended, err := s.RecommendedCities(gctx, identity, cityID, s.opts.RecommendedLimit)
		if err != nil {
			return err
		}
		detail.RecommendedCities = recommended
		return nil
	})

	g.Go(func() error {
		self := []models.City{*city}
		if err := favorites.MarkFavorites(gctx, s.favorites, identity, models.ItemTypeCity, self, favorites.CityID, favorites.MarkCity); err != nil {
			return err
		}
		detail.IsFavorite = self[0].IsFavorite
		return nil
	})

	if err := g.Wait(); err != nil {
		l.Error("Failed to assemble city detail", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "City detail failed")
		return nil, fmt.Errorf("failed to load city %d: %w", cityID, err)
	}

	span.SetStatus(codes.Ok, "City detail retrieved")
	return detail, nil
}

func (s *ServiceImpl) SearchCities(ctx context.Context, identity models.Identity, query string) ([]models.City, error) {
	ctx, span := otel.Tracer("CityService").Start(ctx, "SearchCities")
	defer span.End()

	l := s.logger.With(zap.String("method", "SearchCities"))

	normalized, err := utils.NormalizeSearchQuery(query)
	if err != nil {
		span.SetStatus(codes.Error, "Invalid query")
		return nil, err
	}
	metrics.Get().SearchRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", "cities")))

	cities, err := s.repo.SearchCities(ctx, utils.ContainsPattern(normalized))
	if err != nil {
		l.Error("City search failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Search failed")
		return nil, fmt.Errorf("failed to search cities: %w", err)
	}
	if err := favorites.MarkFavorites(ctx, s.favorites, identity, models.ItemTypeCity, cities, favorites.CityID, favorites.MarkCity); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load favorite flags: %w", err)
	}

	l.Debug("City search finished", zap.String("query", normalized), zap.Int("count", len(cities)))
	span.SetAttributes(attribute.Int("cities.count", len(cities)))
	return cities, nil
}

func (s *ServiceImpl) CitiesMap(ctx context.Context, identity models.Identity) ([]models.CityMarker, error) {
	ctx, span := otel.Tracer("CityService").Start(ctx, "CitiesMap")
	defer span.End()

	markers, err := s.repo.CitiesMap(ctx)
	if err != nil {
		s.logger.Error("Failed to load city markers", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Map failed")
		return nil, fmt.Errorf("failed to load city map: %w", err)
	}
	if err := favorites.MarkFavorites(ctx, s.favorites, identity, models.ItemTypeCity, markers, favorites.MarkerID, favorites.MarkMarker); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load favorite flags: %w", err)
	}
	return markers, nil
}

// RecommendedCities lists other cities of the same region. An unknown city
// has no recommendations.
func (s *ServiceImpl) RecommendedCities(ctx context.Context, identity models.Identity, cityID int64, limit int) ([]models.City, error) {
	ctx, span := otel.Tracer("CityService").Start(ctx, "RecommendedCities")
	defer span.End()

	if limit <= 0 {
		limit = s.opts.RecommendedLimit
	}
	cities, err := s.repo.RecommendedCities(ctx, cityID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Recommendations failed")
		return nil, fmt.Errorf("failed to load recommended cities: %w", err)
	}

	// the query already excludes cityID; keep the guarantee local too
	out := cities[:0]
	for _, c := range cities {
		if c.ID != cityID {
			out = append(out, c)
		}
	}
	if err := favorites.MarkFavorites(ctx, s.favorites, identity, models.ItemTypeCity, out, favorites.CityID, favorites.MarkCity); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load favorite flags: %w", err)
	}
	return out, nil
}

func (s *ServiceImpl) ensureCity(ctx context.Context, cityID int64) error {
	exists, err := s.repo.CityExists(ctx, cityID)
	if err != nil {
		return fmt.Errorf("failed to check city %d: %w", cityID, err)
	}
	if !exists {
		return fmt.Errorf("city %d: %w", cityID, models.ErrNotFound)
	}
	return nil
}

func (s *ServiceImpl) CityPOIsMap(ctx context.Context, identity models.Identity, cityID int64, poiType models.POIType) ([]models.POI, error) {
	ctx, span := otel.Tracer("CityService").Start(ctx, "CityPOIsMap", trace.WithAttributes(
		attribute.Int64("city.id", cityID),
		attribute.String("poi.type", string(poiType)),
	))
	defer span.End()

	if err := s.ensureCity(ctx, cityID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "City lookup failed")
		return nil, err
	}

	pois, err := s.pois.ListCityPOIs(ctx, cityID, poiType)
	if err != nil {
		s.logger.Error("Failed to list city POIs", zap.Int64("city_id", cityID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "POI listing failed")
		return nil, fmt.Errorf("failed to list city pois: %w", err)
	}
	if err := favorites.MarkFavorites(ctx, s.favorites, identity, models.ItemTypePOI, pois, favorites.POIID, favorites.MarkPOI); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load favorite flags: %w", err)
	}
	return pois, nil
}

func (s *ServiceImpl) SearchCityPOIs(ctx context.Context, identity models.Identity, cityID int64, query string) ([]models.POI, error) {
	ctx, span := otel.Tracer("CityService").Start(ctx, "SearchCityPOIs", trace.WithAttributes(
		attribute.Int64("city.id", cityID),
	))
	defer span.End()

	normalized, err := utils.NormalizeSearchQuery(query)
	if err != nil {
		span.SetStatus(codes.Error, "Invalid query")
		return nil, err
	}
	if err := s.ensureCity(ctx, cityID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "City lookup failed")
		return nil, err
	}
	metrics.Get().SearchRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", "pois")))

	pois, err := s.pois.SearchCityPOIs(ctx, cityID, utils.ContainsPattern(normalized))
	if err != nil {
		s.logger.Error("POI search failed", zap.Int64("city_id", cityID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Search failed")
		return nil, fmt.Errorf("failed to search city pois: %w", err)
	}
	if err := favorites.MarkFavorites(ctx, s.favorites, identity, models.ItemTypePOI, pois, favorites.POIID, favorites.MarkPOI); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load favorite flags: %w", err)
	}
	return pois, nil
}
