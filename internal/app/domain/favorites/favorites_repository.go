package favorites

import (
	"context"
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

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository is the favorite ledger. For any owner it behaves as a set of
// (item_id, item_type) pairs.
type Repository interface {
	IsFavorite(ctx context.Context, owner models.Owner, itemID int64, itemType models.ItemType) (bool, error)
	// Toggle flips membership and returns the new state.
	Toggle(ctx context.Context, owner models.Owner, itemID int64, itemType models.ItemType) (bool, error)
	// Merge moves every visitor favorite the user does not already have and
	// deletes the rest.
	Merge(ctx context.Context, from models.VisitorOwner, into models.UserOwner) (models.MergeResult, error)
	// ListByIdentity returns item ids, most recently favorited first.
	ListByIdentity(ctx context.Context, owner models.Owner, itemType models.ItemType) ([]int64, error)
	FavoriteSet(ctx context.Context, owner models.Owner, itemType models.ItemType, itemIDs []int64) (map[int64]bool, error)
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

func ownerAttributes(owner models.Owner, itemType models.ItemType) trace.SpanStartOption {
	return trace.WithAttributes(
		semconv.DBSystemNamePostgreSQL,
		attribute.String("favorite.owner", owner.String()),
		attribute.String("favorite.item_type", string(itemType)),
	)
}

func (r *RepositoryImpl) IsFavorite(ctx context.Context, owner models.Owner, itemID int64, itemType models.ItemType) (bool, error) {
	ctx, span := otel.Tracer("FavoritesRepository").Start(ctx, "IsFavorite", ownerAttributes(owner, itemType))
	defer span.End()

	query := fmt.Sprintf(`
		SELECT EXISTS(
			SELECT 1 FROM favorites
			WHERE %s = $1 AND item_id = $2 AND item_type = $3
		)`, owner.Column())

	var exists bool
	if err := r.pgpool.QueryRow(ctx, query, owner.Key(), itemID, itemType).Scan(&exists); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "favorite lookup failed")
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return exists, nil
}

func (r *RepositoryImpl) Toggle(ctx context.Context, owner models.Owner, itemID int64, itemType models.ItemType) (bool, error) {
	ctx, span := otel.Tracer("FavoritesRepository").Start(ctx, "Toggle", ownerAttributes(owner, itemType))
	defer span.End()

	l := r.logger.With(zap.String("method", "Toggle"),
		zap.Stringer("owner", owner),
		zap.Int64("item_id", itemID),
		zap.String("item_type", string(itemType)))

	tx, err := r.pgpool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin failed")
		return false, fmt.Errorf("failed to start transaction: %w", err)
	}

	deleteQuery := fmt.Sprintf(`
		DELETE FROM favorites
		WHERE %s = $1 AND item_id = $2 AND item_type = $3`, owner.Column())
	tag, err := tx.Exec(ctx, deleteQuery, owner.Key(), itemID, itemType)
	if err != nil {
		r.rollback(ctx, tx, l)
		span.RecordError(err)
		metrics.RecordDBError(ctx, "favorites", "toggle")
		span.SetStatus(codes.Error, "delete failed")
		return false, fmt.Errorf("failed to remove favorite: %w", err)
	}

	isFavorite := false
	if tag.RowsAffected() == 0 {
		insertQuery := fmt.Sprintf(`
			INSERT INTO favorites (%s, item_id, item_type)
			VALUES ($1, $2, $3)
			RETURNING id, created_at`, owner.Column())
		record := models.FavoriteRecord{Owner: owner, ItemID: itemID, ItemType: itemType}
		if err = tx.QueryRow(ctx, insertQuery, owner.Key(), itemID, itemType).Scan(&record.ID, &record.CreatedAt); err != nil {
			r.rollback(ctx, tx, l)
			span.RecordError(err)
			if database.IsUniqueViolation(err) {
				span.SetStatus(codes.Error, "concurrent toggle")
				l.Debug("Lost insert race", zap.String("constraint", database.ConstraintName(err)))
				return false, models.ErrFavoriteRace
			}
			metrics.RecordDBError(ctx, "favorites", "toggle")
			span.SetStatus(codes.Error, "insert failed")
			return false, fmt.Errorf("failed to add favorite: %w", err)
		}
		l.Debug("Favorite added", zap.Stringer("favorite_id", record.ID), zap.Time("created_at", record.CreatedAt))
		isFavorite = true
	}

	if err = tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return false, fmt.Errorf("failed to commit favorite toggle: %w", err)
	}

	span.SetAttributes(attribute.Bool("favorite.is_favorite", isFavorite))
	span.SetStatus(codes.Ok, "toggled")
	return isFavorite, nil
}

func (r *RepositoryImpl) Merge(ctx context.Context, from models.VisitorOwner, into models.UserOwner) (models.MergeResult, error) {
	ctx, span := otel.Tracer("FavoritesRepository").Start(ctx, "Merge", trace.WithAttributes(
		semconv.DBSystemNamePostgreSQL,
		attribute.String("favorite.from", from.String()),
		attribute.String("favorite.into", into.String()),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "Merge"), zap.Int64("user_id", into.ID))

	var result models.MergeResult
	tx, err := r.pgpool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin failed")
		return result, fmt.Errorf("failed to start transaction: %w", err)
	}

	moveQuery := `
		UPDATE favorites AS v
		SET user_id = $1, visitor_id = NULL
		WHERE v.visitor_id = $2
		  AND NOT EXISTS (
			SELECT 1 FROM favorites AS u
			WHERE u.user_id = $1 AND u.item_id = v.item_id AND u.item_type = v.item_type
		  )`
	tag, err := tx.Exec(ctx, moveQuery, into.ID, from.Token)
	if err != nil {
		r.rollback(ctx, tx, l)
		span.RecordError(err)
		if database.IsUniqueViolation(err) {
			span.SetStatus(codes.Error, "concurrent merge")
			return result, models.ErrFavoriteRace
		}
		metrics.RecordDBError(ctx, "favorites", "merge")
		span.SetStatus(codes.Error, "move failed")
		return result, fmt.Errorf("failed to move visitor favorites: %w", err)
	}
	result.Moved = tag.RowsAffected()

	// whatever is still owned by the visitor duplicates a user favorite
	tag, err = tx.Exec(ctx, `DELETE FROM favorites WHERE visitor_id = $1`, from.Token)
	if err != nil {
		r.rollback(ctx, tx, l)
		span.RecordError(err)
		metrics.RecordDBError(ctx, "favorites", "merge")
		span.SetStatus(codes.Error, "cleanup failed")
		return result, fmt.Errorf("failed to drop duplicate visitor favorites: %w", err)
	}
	result.Dropped = tag.RowsAffected()

	if err = tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return models.MergeResult{}, fmt.Errorf("failed to commit visitor merge: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("favorite.moved", result.Moved),
		attribute.Int64("favorite.dropped", result.Dropped),
	)
	span.SetStatus(codes.Ok, "merged")
	return result, nil
}

func (r *RepositoryImpl) ListByIdentity(ctx context.Context, owner models.Owner, itemType models.ItemType) ([]int64, error) {
	ctx, span := otel.Tracer("FavoritesRepository").Start(ctx, "ListByIdentity", ownerAttributes(owner, itemType))
	defer span.End()

	query := fmt.Sprintf(`
		SELECT item_id FROM favorites
		WHERE %s = $1 AND item_type = $2
		ORDER BY created_at DESC, item_id DESC`, owner.Column())

	rows, err := r.pgpool.Query(ctx, query, owner.Key(), itemType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, fmt.Errorf("failed to scan favorites: %w", err)
	}

	span.SetAttributes(attribute.Int("favorite.count", len(ids)))
	return ids, nil
}

func (r *RepositoryImpl) FavoriteSet(ctx context.Context, owner models.Owner, itemType models.ItemType, itemIDs []int64) (map[int64]bool, error) {
	set := make(map[int64]bool, len(itemIDs))
	if len(itemIDs) == 0 {
		return set, nil
	}

	ctx, span := otel.Tracer("FavoritesRepository").Start(ctx, "FavoriteSet", ownerAttributes(owner, itemType))
	defer span.End()

	query, args, err := psql.Select("item_id").
		From("favorites").
		Where(sq.Eq{
			owner.Column(): owner.Key(),
			"item_type":    itemType,
			"item_id":      itemIDs,
		}).
		ToSql()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query build failed")
		return nil, fmt.Errorf("failed to build favorite flags query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to load favorite flags: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, fmt.Errorf("failed to scan favorite flags: %w", err)
	}
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func (r *RepositoryImpl) rollback(ctx context.Context, tx pgx.Tx, l *zap.Logger) {
	if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
		l.Error("Failed to rollback transaction", zap.Error(rollbackErr))
	}
}
