package city

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-loongo/internal/app/models"
	"github.com/FACorreiaa/go-loongo/internal/app/observability/metrics"
	database "github.com/FACorreiaa/go-loongo/internal/db"
)

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	ListCities(ctx context.Context, filter models.CityFilter) ([]models.City, error)
	GetCity(ctx context.Context, cityID int64) (*models.City, error)
	CityExists(ctx context.Context, cityID int64) (bool, error)
	GetCitiesByIDs(ctx context.Context, cityIDs []int64) ([]models.City, error)
	// SearchCities matches pattern (an ILIKE pattern) against name and province.
	SearchCities(ctx context.Context, pattern string) ([]models.City, error)
	CitiesMap(ctx context.Context) ([]models.CityMarker, error)
	// RecommendedCities returns other cities of the same region, by id.
	RecommendedCities(ctx context.Context, cityID int64, limit int) ([]models.City, error)
	GetCityMedia(ctx context.Context, cityID int64) (images []string, videos []string, err error)

	// SaveCity inserts a catalogue city unless one with the same name exists.
	SaveCity(ctx context.Context, city models.NewCity) (cityID int64, created bool, err error)
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var cityColumns = []string{
	"id", "name", "province", "region", "description",
	"current_temperature", "best_season", "latitude", "longitude", "created_at",
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool database.DBTX
}

func NewCityRepository(pgpool database.DBTX, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func scanCity(row pgx.Row) (models.City, error) {
	var c models.City
	err := row.Scan(&c.ID, &c.Name, &c.Province, &c.Region, &c.Description,
		&c.CurrentTemperature, &c.BestSeason, &c.Latitude, &c.Longitude, &c.CreatedAt)
	return c, err
}

func (r *RepositoryImpl) queryCities(ctx context.Context, span trace.Span, builder sq.SelectBuilder) ([]models.City, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query build failed")
		return nil, fmt.Errorf("failed to build city query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		metrics.RecordDBError(ctx, "city", "query")
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to query cities: %w", err)
	}
	defer rows.Close()

	cities := []models.City{}
	for rows.Next() {
		c, err := scanCity(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scan failed")
			return nil, fmt.Errorf("failed to scan city row: %w", err)
		}
		cities = append(cities, c)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rows failed")
		return nil, fmt.Errorf("error iterating city rows: %w", err)
	}

	span.SetAttributes(attribute.Int("cities.count", len(cities)))
	return cities, nil
}

func (r *RepositoryImpl) ListCities(ctx context.Context, filter models.CityFilter) ([]models.City, error) {
	ctx, span := otel.Tracer("CityRepository").Start(ctx, "ListCities", trace.WithAttributes(
		attribute.String("city.region", filter.Region),
		attribute.Int("page.skip", filter.Skip),
		attribute.Int("page.limit", filter.Limit),
	))
	defer span.End()

	builder := psql.Select(cityColumns...).From("cities").OrderBy("id")
	if filter.Region != "" {
		builder = builder.Where(sq.Eq{"region": filter.Region})
	}
	if filter.Skip > 0 {
		builder = builder.Offset(uint64(filter.Skip))
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	return r.queryCities(ctx, span, builder)
}

func (r *RepositoryImpl) GetCity(ctx context.Context, cityID int64) (*models.City, error) {
	ctx, span := otel.Tracer("CityRepository").Start(ctx, "GetCity", trace.WithAttributes(
		attribute.Int64("city.id", cityID),
	))
	defer span.End()

	query, args, err := psql.Select(cityColumns...).From("cities").Where(sq.Eq{"id": cityID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build city query: %w", err)
	}

	c, err := scanCity(r.pgpool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "city not found")
			return nil, fmt.Errorf("city %d: %w", cityID, models.ErrNotFound)
		}
		r.logger.Error("Failed to fetch city", zap.Int64("city_id", cityID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to fetch city: %w", err)
	}
	return &c, nil
}

func (r *RepositoryImpl) CityExists(ctx context.Context, cityID int64) (bool, error) {
	var exists bool
	err := r.pgpool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM cities WHERE id = $1)`, cityID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check city existence: %w", err)
	}
	return exists, nil
}

func (r *RepositoryImpl) GetCitiesByIDs(ctx context.Context, cityIDs []int64) ([]models.City, error) {
	if len(cityIDs) == 0 {
		return []models.City{}, nil
	}
	ctx, span := otel.Tracer("CityRepository").Start(ctx, "GetCitiesByIDs", trace.WithAttributes(
		attribute.Int("cities.requested", len(cityIDs)),
	))
	defer span.End()

	return r.queryCities(ctx, span, psql.Select(cityColumns...).From("cities").
		Where(sq.Eq{"id": cityIDs}).
		OrderBy("id"))
}

func (r *RepositoryImpl) SearchCities(ctx context.Context, pattern string) ([]models.City, error) {
	ctx, span := otel.Tracer("CityRepository").Start(ctx, "SearchCities")
	defer span.End()

	return r.queryCities(ctx, span, psql.Select(cityColumns...).From("cities").
		Where(sq.Or{
			sq.ILike{"name": pattern},
			sq.ILike{"province": pattern},
		}).
		OrderBy("id"))
}

func (r *RepositoryImpl) CitiesMap(ctx context.Context) ([]models.CityMarker, error) {
	ctx, span := otel.Tracer("CityRepository").Start(ctx, "CitiesMap")
	defer span.End()

	rows, err := r.pgpool.Query(ctx, `
		SELECT id, name, province, latitude, longitude
		FROM cities
		ORDER BY id`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to query city markers: %w", err)
	}

	markers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CityMarker, error) {
		var m models.CityMarker
		err := row.Scan(&m.ID, &m.Name, &m.Province, &m.Latitude, &m.Longitude)
		return m, err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, fmt.Errorf("failed to scan city markers: %w", err)
	}
	return markers, nil
}

func (r *RepositoryImpl) RecommendedCities(ctx context.Context, cityID int64, limit int) ([]models.City, error) {
	ctx, span := otel.Tracer("CityRepository").Start(ctx, "RecommendedCities", trace.WithAttributes(
		attribute.Int64("city.id", cityID),
		attribute.Int("limit", limit),
	))
	defer span.End()

	builder := psql.Select(cityColumns...).From("cities").
		Where("region = (SELECT region FROM cities WHERE id = ?)", cityID).
		Where(sq.NotEq{"id": cityID}).
		OrderBy("id")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return r.queryCities(ctx, span, builder)
}

func (r *RepositoryImpl) GetCityMedia(ctx context.Context, cityID int64) ([]string, []string, error) {
	ctx, span := otel.Tracer("CityRepository").Start(ctx, "GetCityMedia", trace.WithAttributes(
		attribute.Int64("city.id", cityID),
	))
	defer span.End()

	rows, err := r.pgpool.Query(ctx, `
		SELECT 'image' AS kind, image_url FROM city_images WHERE city_id = $1
		UNION ALL
		SELECT 'video' AS kind, video_url FROM city_videos WHERE city_id = $1
		ORDER BY 1, 2`, cityID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, nil, fmt.Errorf("failed to query city media: %w", err)
	}
	defer rows.Close()

	images, videos := []string{}, []string{}
	for rows.Next() {
		var kind, url string
		if err := rows.Scan(&kind, &url); err != nil {
			span.RecordError(err)
			return nil, nil, fmt.Errorf("failed to scan city media: %w", err)
		}
		if kind == "video" {
			videos = append(videos, url)
		} else {
			images = append(images, url)
		}
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, nil, fmt.Errorf("error iterating city media: %w", err)
	}
	return images, videos, nil
}

// CityIDByName finds a city by its exact name.
func (r *RepositoryImpl) CityIDByName(ctx context.Context, name string) (int64, bool, error) {
	var cityID int64
	err := r.pgpool.QueryRow(ctx, `SELECT id FROM cities WHERE name = $1`, name).Scan(&cityID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up city %s: %w", name, err)
	}
	return cityID, true, nil
}

func (r *RepositoryImpl) SaveCity(ctx context.Context, city models.NewCity) (int64, bool, error) {
	ctx, span := otel.Tracer("CityRepository").Start(ctx, "SaveCity", trace.WithAttributes(
		attribute.String("city.name", city.Name),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "SaveCity"), zap.String("city", city.Name))

	existingID, found, err := r.CityIDByName(ctx, city.Name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return 0, false, err
	}
	if found {
		l.Debug("City already present, skipping", zap.Int64("city_id", existingID))
		return existingID, false, nil
	}

	tx, err := r.pgpool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, false, fmt.Errorf("failed to start transaction: %w", err)
	}

	var cityID int64
	if err = tx.QueryRow(ctx, `
		INSERT INTO cities (name, province, region, description, current_temperature, best_season, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		city.Name, city.Province, city.Region, city.Description,
		city.CurrentTemperature, city.BestSeason, city.Latitude, city.Longitude,
	).Scan(&cityID); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			l.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return 0, false, fmt.Errorf("failed to insert city %s: %w", city.Name, err)
	}

	for _, imageURL := range city.Images {
		if _, err = tx.Exec(ctx, `INSERT INTO city_images (city_id, image_url) VALUES ($1, $2)`, cityID, imageURL); err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				l.Error("Failed to rollback transaction", zap.Error(rollbackErr))
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "image insert failed")
			return 0, false, fmt.Errorf("failed to insert image for city %s: %w", city.Name, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("failed to commit city %s: %w", city.Name, err)
	}

	l.Info("City saved", zap.Int64("city_id", cityID), zap.Int("images", len(city.Images)))
	span.SetStatus(codes.Ok, "city saved")
	return cityID, true, nil
}
