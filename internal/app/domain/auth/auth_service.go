package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

// VisitorMerger moves a visitor's favorites to a user. The favorites service
// satisfies it.
type VisitorMerger interface {
	MergeVisitor(ctx context.Context, visitorID string, userID int64) (models.MergeResult, error)
}

type Service interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	// Login checks the credentials and issues an access token. A non-empty
	// visitorID has its favorites merged into the account first.
	Login(ctx context.Context, username, password, visitorID string) (*models.TokenResponse, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
}

type ServiceImpl struct {
	logger *zap.Logger
	repo   Repository
	jwt    *JWTService
	merger VisitorMerger
}

func NewAuthService(repo Repository, jwtService *JWTService, merger VisitorMerger, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		jwt:    jwtService,
		merger: merger,
	}
}

func recordAuth(ctx context.Context, op, result string) {
	metrics.Get().AuthRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("result", result),
	))
}

func (s *ServiceImpl) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register", trace.WithAttributes(
		attribute.String("username", req.Username),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "Register"), zap.String("username", req.Username))
	l.Debug("Attempting registration")

	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		recordAuth(ctx, "register", "invalid")
		return nil, fmt.Errorf("username, email and password are required: %w", models.ErrValidation)
	}

	emailTaken, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "email check failed")
		return nil, err
	}
	if emailTaken {
		recordAuth(ctx, "register", "conflict")
		span.SetStatus(codes.Error, "email taken")
		return nil, fmt.Errorf("email already registered: %w", models.ErrConflict)
	}
	usernameTaken, err := s.repo.UsernameExists(ctx, req.Username)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "username check failed")
		return nil, err
	}
	if usernameTaken {
		recordAuth(ctx, "register", "conflict")
		span.SetStatus(codes.Error, "username taken")
		return nil, fmt.Errorf("username already taken: %w", models.ErrConflict)
	}

	hash, err := s.jwt.HashPassword(req.Password)
	if err != nil {
		l.Error("Failed to hash password", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Password hashing failed")
		return nil, fmt.Errorf("could not process password: %w", err)
	}

	// the unique constraints still catch a concurrent registration
	user, err := s.repo.CreateUser(ctx, req.Username, req.Email, hash)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			recordAuth(ctx, "register", "conflict")
		} else {
			l.Error("Repository registration failed", zap.Error(err))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Repository registration failed")
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	recordAuth(ctx, "register", "success")
	l.Info("Registration successful", zap.Int64("user_id", user.ID))
	span.SetStatus(codes.Ok, "User registered")
	return user, nil
}

func (s *ServiceImpl) Login(ctx context.Context, username, password, visitorID string) (*models.TokenResponse, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login", trace.WithAttributes(
		attribute.Bool("visitor.present", visitorID != ""),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "Login"), zap.String("username", username))
	l.Debug("Attempting login")

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "user lookup failed")
			return nil, err
		}
		l.Warn("Unknown username")
		recordAuth(ctx, "login", "invalid_credentials")
		return nil, fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)
	}
	if !user.IsActive || !s.jwt.CheckPassword(user.PasswordHash, password) {
		l.Warn("Password comparison failed", zap.Int64("user_id", user.ID))
		recordAuth(ctx, "login", "invalid_credentials")
		return nil, fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)
	}

	if visitorID != "" {
		res, err := s.merger.MergeVisitor(ctx, visitorID, user.ID)
		if err != nil {
			l.Error("Failed to merge visitor favorites", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "visitor merge failed")
			return nil, fmt.Errorf("failed to merge visitor favorites: %w", err)
		}
		span.SetAttributes(attribute.Int64("merge.moved", res.Moved), attribute.Int64("merge.dropped", res.Dropped))
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Username)
	if err != nil {
		l.Error("Failed to generate token", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "token generation failed")
		return nil, err
	}

	recordAuth(ctx, "login", "success")
	l.Info("Login successful", zap.Int64("user_id", user.ID))
	span.SetStatus(codes.Ok, "Logged in")
	return &models.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.jwt.TTL().Seconds()),
	}, nil
}

func (s *ServiceImpl) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "GetUser")
	defer span.End()

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &user.User, nil
}
