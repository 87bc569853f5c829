package poi

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-loongo/internal/app/models"
	"github.com/FACorreiaa/go-loongo/internal/app/observability/metrics"
	database "github.com/FACorreiaa/go-loongo/internal/db"
)

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	GetPOI(ctx context.Context, poiID int64) (*models.POI, error)
	GetPOIMedia(ctx context.Context, poiID int64) (images []string, tags []string, err error)
	POIExists(ctx context.Context, poiID int64) (bool, error)
	GetPOIsByIDs(ctx context.Context, poiIDs []int64) ([]models.POI, error)
	// ListCityPOIs returns the POIs of a city, optionally of one type.
	ListCityPOIs(ctx context.Context, cityID int64, poiType models.POIType) ([]models.POI, error)
	// SearchCityPOIs matches pattern (an ILIKE pattern) against POI names.
	SearchCityPOIs(ctx context.Context, cityID int64, pattern string) ([]models.POI, error)
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var poiColumns = []string{
	"id", "city_id", "name", "poi_type", "description", "address", "latitude", "longitude",
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool database.DBTX
}

func NewRepository(pgpool database.DBTX, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func scanPOI(row pgx.Row) (models.POI, error) {
	var p models.POI
	err := row.Scan(&p.ID, &p.CityID, &p.Name, &p.POIType, &p.Description, &p.Address, &p.Latitude, &p.Longitude)
	return p, err
}

func (r *RepositoryImpl) queryPOIs(ctx context.Context, span trace.Span, builder sq.SelectBuilder) ([]models.POI, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query build failed")
		return nil, fmt.Errorf("failed to build poi query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		metrics.RecordDBError(ctx, "poi", "query")
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to query pois: %w", err)
	}
	pois, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.POI, error) {
		return scanPOI(row)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, fmt.Errorf("failed to scan pois: %w", err)
	}

	span.SetAttributes(attribute.Int("pois.count", len(pois)))
	return pois, nil
}

func (r *RepositoryImpl) GetPOI(ctx context.Context, poiID int64) (*models.POI, error) {
	ctx, span := otel.Tracer("POIRepository").Start(ctx, "GetPOI", trace.WithAttributes(
		semconv.DBSystemNamePostgreSQL,
		attribute.Int64("poi.id", poiID),
	))
	defer span.End()

	query, args, err := psql.Select(poiColumns...).From("pois").Where(sq.Eq{"id": poiID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build poi query: %w", err)
	}

	p, err := scanPOI(r.pgpool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "poi not found")
			return nil, fmt.Errorf("poi %d: %w", poiID, models.ErrNotFound)
		}
		r.logger.Error("Failed to fetch POI", zap.Int64("poi_id", poiID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to fetch poi: %w", err)
	}
	return &p, nil
}

func (r *RepositoryImpl) GetPOIMedia(ctx context.Context, poiID int64) ([]string, []string, error) {
	ctx, span := otel.Tracer("POIRepository").Start(ctx, "GetPOIMedia", trace.WithAttributes(
		attribute.Int64("poi.id", poiID),
	))
	defer span.End()

	rows, err := r.pgpool.Query(ctx, `
		SELECT 'image' AS kind, image_url FROM poi_images WHERE poi_id = $1
		UNION ALL
		SELECT 'tag' AS kind, tag_name FROM poi_tags WHERE poi_id = $1
		ORDER BY 1, 2`, poiID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, nil, fmt.Errorf("failed to query poi media: %w", err)
	}
	defer rows.Close()

	images, tags := []string{}, []string{}
	for rows.Next() {
		var kind, value string
		if err := rows.Scan(&kind, &value); err != nil {
			span.RecordError(err)
			return nil, nil, fmt.Errorf("failed to scan poi media: %w", err)
		}
		if kind == "tag" {
			tags = append(tags, value)
		} else {
			images = append(images, value)
		}
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, nil, fmt.Errorf("error iterating poi media: %w", err)
	}
	return images, tags, nil
}

func (r *RepositoryImpl) POIExists(ctx context.Context, poiID int64) (bool, error) {
	var exists bool
	err := r.pgpool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pois WHERE id = $1)`, poiID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check poi existence: %w", err)
	}
	return exists, nil
}

func (r *RepositoryImpl) GetPOIsByIDs(ctx context.Context, poiIDs []int64) ([]models.POI, error) {
	if len(poiIDs) == 0 {
		return []models.POI{}, nil
	}
	ctx, span := otel.Tracer("POIRepository").Start(ctx, "GetPOIsByIDs", trace.WithAttributes(
		attribute.Int("pois.requested", len(poiIDs)),
	))
	defer span.End()

	return r.queryPOIs(ctx, span, psql.Select(poiColumns...).From("pois").
		Where(sq.Eq{"id": poiIDs}).
		OrderBy("id"))
}

func (r *RepositoryImpl) ListCityPOIs(ctx context.Context, cityID int64, poiType models.POIType) ([]models.POI, error) {
	ctx, span := otel.Tracer("POIRepository").Start(ctx, "ListCityPOIs", trace.WithAttributes(
		attribute.Int64("city.id", cityID),
		attribute.String("poi.type", string(poiType)),
	))
	defer span.End()

	where := sq.Eq{"city_id": cityID}
	if poiType != "" {
		where["poi_type"] = string(poiType)
	}
	return r.queryPOIs(ctx, span, psql.Select(poiColumns...).From("pois").
		Where(where).
		OrderBy("id"))
}

func (r *RepositoryImpl) SearchCityPOIs(ctx context.Context, cityID int64, pattern string) ([]models.POI, error) {
	ctx, span := otel.Tracer("POIRepository").Start(ctx, "SearchCityPOIs", trace.WithAttributes(
		attribute.Int64("city.id", cityID),
	))
	defer span.End()

	return r.queryPOIs(ctx, span, psql.Select(poiColumns...).From("pois").
		Where(sq.Eq{"city_id": cityID}).
		Where(sq.ILike{"name": pattern}).
		OrderBy("id"))
}
