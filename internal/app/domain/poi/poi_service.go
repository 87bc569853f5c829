package poi

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-loongo/internal/app/domain/favorites"
	"github.com/FACorreiaa/go-loongo/internal/app/models"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	GetPOI(ctx context.Context, identity models.Identity, poiID int64) (*models.POIDetail, error)
}

type ServiceImpl struct {
	logger    *zap.Logger
	repo      Repository
	favorites favorites.Lookup
}

func NewServiceImpl(repo Repository, favs favorites.Lookup, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		repo:      repo,
		favorites: favs,
	}
}

// GetPOI returns the POI with its images, tags and favorite flag.
func (s *ServiceImpl) GetPOI(ctx context.Context, identity models.Identity, poiID int64) (*models.POIDetail, error) {
	ctx, span := otel.Tracer("POIService").Start(ctx, "GetPOI", trace.WithAttributes(
		attribute.Int64("poi.id", poiID),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "GetPOI"), zap.Int64("poi_id", poiID))

	p, err := s.repo.GetPOI(ctx, poiID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "POI lookup failed")
		return nil, err
	}

	detail := &models.POIDetail{POI: *p}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		images, tags, err := s.repo.GetPOIMedia(gctx, poiID)
		if err != nil {
			return err
		}
		detail.Images, detail.Tags = images, tags
		return nil
	})
	g.Go(func() error {
		self := []models.POI{*p}
		if err := favorites.MarkFavorites(gctx, s.favorites, identity, models.ItemTypePOI, self, favorites.POIID, favorites.MarkPOI); err != nil {
			return err
		}
		detail.IsFavorite = self[0].IsFavorite
		return nil
	})
	if err := g.Wait(); err != nil {
		l.Error("Failed to assemble POI detail", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "POI detail failed")
		return nil, fmt.Errorf("failed to load poi %d: %w", poiID, err)
	}

	span.SetStatus(codes.Ok, "POI retrieved")
	return detail, nil
}
