package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-loongo/internal/app/models"
	database "github.com/FACorreiaa/go-loongo/internal/db"
)

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	// GetUserByID returns active users only.
	GetUserByID(ctx context.Context, userID int64) (*models.UserAuth, error)
	GetUserByUsername(ctx context.Context, username string) (*models.UserAuth, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	// CreateUser stores a user with an already hashed password.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error)
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

const userColumns = `id, username, email, is_active, created_at, password_hash`

func scanUser(row pgx.Row) (*models.UserAuth, error) {
	var u models.UserAuth
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.IsActive, &u.CreatedAt, &u.PasswordHash); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *RepositoryImpl) GetUserByID(ctx context.Context, userID int64) (*models.UserAuth, error) {
	ctx, span := otel.Tracer("AuthRepository").Start(ctx, "GetUserByID", trace.WithAttributes(
		semconv.DBSystemNamePostgreSQL,
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_active = TRUE`
	user, err := scanUser(r.pgpool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "user not found")
			return nil, fmt.Errorf("user %d: %w", userID, models.ErrNotFound)
		}
		r.logger.Error("Error fetching user by ID", zap.Int64("user_id", userID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("database error fetching user by ID: %w", err)
	}
	return user, nil
}

func (r *RepositoryImpl) GetUserByUsername(ctx context.Context, username string) (*models.UserAuth, error) {
	ctx, span := otel.Tracer("AuthRepository").Start(ctx, "GetUserByUsername", trace.WithAttributes(
		semconv.DBSystemNamePostgreSQL,
	))
	defer span.End()

	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	user, err := scanUser(r.pgpool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "user not found")
			return nil, fmt.Errorf("user %s: %w", username, models.ErrNotFound)
		}
		r.logger.Error("Error fetching user by username", zap.String("username", username), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}
	return user, nil
}

func (r *RepositoryImpl) exists(ctx context.Context, query, value string) (bool, error) {
	var exists bool
	if err := r.pgpool.QueryRow(ctx, query, value).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *RepositoryImpl) EmailExists(ctx context.Context, email string) (bool, error) {
	exists, err := r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

func (r *RepositoryImpl) UsernameExists(ctx context.Context, username string) (bool, error) {
	exists, err := r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

func (r *RepositoryImpl) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	ctx, span := otel.Tracer("AuthRepository").Start(ctx, "CreateUser", trace.WithAttributes(
		semconv.DBSystemNamePostgreSQL,
		attribute.String("db.statement", "INSERT INTO users ..."),
	))
	defer span.End()

	user := models.User{Username: username, Email: email}
	err := r.pgpool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3)
		 RETURNING id, is_active, created_at`,
		username, email, passwordHash,
	).Scan(&user.ID, &user.IsActive, &user.CreatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		if database.IsUniqueViolation(err) {
			switch database.ConstraintName(err) {
			case "users_email_key":
				return nil, fmt.Errorf("email already registered: %w", models.ErrConflict)
			case "users_username_key":
				return nil, fmt.Errorf("username already taken: %w", models.ErrConflict)
			}
			return nil, fmt.Errorf("email or username already exists: %w", models.ErrConflict)
		}
		r.logger.Error("Error inserting user", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("database error registering user: %w", err)
	}

	span.SetStatus(codes.Ok, "user created")
	return &user, nil
}
