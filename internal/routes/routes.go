package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-loongo/internal/app/domain/auth"
	cityPkg "github.com/FACorreiaa/go-loongo/internal/app/domain/city"
	"github.com/FACorreiaa/go-loongo/internal/app/domain/favorites"
	"github.com/FACorreiaa/go-loongo/internal/app/domain/poi"
	"github.com/FACorreiaa/go-loongo/internal/app/middleware"
	"github.com/FACorreiaa/go-loongo/internal/app/models"
	database "github.com/FACorreiaa/go-loongo/internal/db"
	"github.com/FACorreiaa/go-loongo/internal/pkg/config"
)

const apiVersion = "1.0.0"

type AppHandlers struct {
	Auth      *auth.Handler
	City      *cityPkg.Handler
	POI       *poi.Handler
	Favorites *favorites.Handler

	resolver *auth.IdentityResolver
	cookie   middleware.VisitorCookie
}

// NewAppHandlers wires repositories, services and handlers on one pool.
func NewAppHandlers(dbPool database.DBTX, cfg *config.Config, log *zap.Logger) *AppHandlers {
	cookie := middleware.VisitorCookie{
		Name:   cfg.Visitor.CookieName,
		MaxAge: int(cfg.Visitor.MaxAge.Seconds()),
		Secure: cfg.Visitor.Secure,
	}

	cityRepo := cityPkg.NewCityRepository(dbPool, log)
	poiRepo := poi.NewRepository(dbPool, log)
	favoritesRepo := favorites.NewRepository(dbPool, log)
	authRepo := auth.NewRepository(dbPool, log)

	favoritesService := favorites.NewService(favoritesRepo, cityRepo, poiRepo, log)
	cityService := cityPkg.NewCityService(cityRepo, poiRepo, favoritesRepo, cityPkg.Options{
		RecommendedLimit: cfg.Content.RecommendedLimit,
		MaxPageSize:      cfg.Content.MaxPageSize,
	}, log)
	poiService := poi.NewServiceImpl(poiRepo, favoritesRepo, log)

	jwtService := auth.NewJWTService(cfg.JWT)
	authService := auth.NewAuthService(authRepo, jwtService, favoritesService, log)

	return &AppHandlers{
		Auth:      auth.NewHandler(authService, cookie, log),
		City:      cityPkg.NewHandler(cityService, log),
		POI:       poi.NewHandler(poiService, log),
		Favorites: favorites.NewHandler(favoritesService, cookie, log),
		resolver:  auth.NewIdentityResolver(jwtService, authRepo, log),
		cookie:    cookie,
	}
}

func Setup(r *gin.Engine, dbPool database.DBTX, cfg *config.Config, log *zap.Logger) {
	Register(r, NewAppHandlers(dbPool, cfg, log), cfg.AppName)
}

// Register mounts every route on r.
func Register(r *gin.Engine, h *AppHandlers, appName string) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": appName})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": apiVersion})
	})

	api := r.Group("/")
	api.Use(middleware.IdentityMiddleware(h.resolver, h.cookie))

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/token", h.Auth.Token)
		authGroup.GET("/me", middleware.RequireUser(), h.Auth.Me)
	}

	cities := api.Group("/cities")
	{
		cities.GET("", h.City.ListCities)
		cities.GET("/map", h.City.CitiesMap)
		cities.GET("/search", h.City.SearchCities)
		cities.GET("/:id", h.City.GetCity)
		cities.GET("/:id/map", h.City.CityPOIsMap)
		cities.GET("/:id/search", h.City.SearchCityPOIs)
		cities.GET("/:id/recommended", h.City.RecommendedCities)
	}

	api.GET("/pois/:id", h.POI.GetPOI)

	favs := api.Group("/favorites")
	{
		favs.POST("/city/:id", h.Favorites.Toggle(models.ItemTypeCity))
		favs.POST("/poi/:id", h.Favorites.Toggle(models.ItemTypePOI))
		favs.GET("/", h.Favorites.List)
	}

	api.GET("/itinerary/favorites", middleware.RequireUser(), h.Favorites.List)
}
