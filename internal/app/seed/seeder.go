package seed

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-loongo/internal/app/enrichment"
	"github.com/FACorreiaa/go-loongo/internal/app/models"
	"github.com/FACorreiaa/go-loongo/internal/app/utils"
)

// CityStore is the part of the city repository the seeder writes through.
type CityStore interface {
	CityIDByName(ctx context.Context, name string) (int64, bool, error)
	SaveCity(ctx context.Context, city models.NewCity) (int64, bool, error)
}

// DetailsSource generates descriptions for cities the catalogue leaves blank.
type DetailsSource interface {
	CityDetails(ctx context.Context, cityName string) enrichment.CityDetails
}

// ImageSource finds pictures of a city.
type ImageSource interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

type Options struct {
	Parallelism   int
	ImagesPerCity int
}

// Report counts what a run did with each catalogue entry.
type Report struct {
	Created  int
	Existing int
	Invalid  int
}

type Seeder struct {
	logger      *zap.Logger
	store       CityStore
	details     DetailsSource
	images      ImageSource
	opts        Options
	temperature func() float64
}

// NewSeeder builds a seeder. details and images may be nil, in which case the
// catalogue text is used as is and cities are saved without pictures.
func NewSeeder(store CityStore, details DetailsSource, images ImageSource, opts Options, logger *zap.Logger) *Seeder {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	return &Seeder{
		logger:      logger,
		store:       store,
		details:     details,
		images:      images,
		opts:        opts,
		temperature: randomTemperature,
	}
}

// randomTemperature stands in for a weather feed.
func randomTemperature() float64 {
	return math.Round((15+rand.Float64()*17)*10) / 10
}

// Run saves every catalogue entry that is not stored yet. Entries with
// unusable coordinates are skipped; a storage failure stops the run.
func (s *Seeder) Run(ctx context.Context, entries []Entry) (Report, error) {
	ctx, span := otel.Tracer("Seeder").Start(ctx, "Run", trace.WithAttributes(
		attribute.Int("catalogue.size", len(entries)),
	))
	defer span.End()

	var (
		mu     sync.Mutex
		report Report
	)
	count := func(f func(r *Report)) {
		mu.Lock()
		f(&report)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallelism)
	for _, e := range entries {
		g.Go(func() error {
			res, err := s.seedOne(gctx, e)
			if err != nil {
				return err
			}
			count(func(r *Report) {
				switch res {
				case outcomeInvalid:
					r.Invalid++
				case outcomeCreated:
					r.Created++
				default:
					r.Existing++
				}
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "seeding failed")
		return report, err
	}

	s.logger.Info("City catalogue seeded",
		zap.Int("created", report.Created),
		zap.Int("existing", report.Existing),
		zap.Int("invalid", report.Invalid))
	span.SetStatus(codes.Ok, "seeded")
	return report, nil
}

type outcome int

const (
	outcomeInvalid outcome = iota
	outcomeExisting
	outcomeCreated
)

func (s *Seeder) seedOne(ctx context.Context, e Entry) (outcome, error) {
	l := s.logger.With(zap.String("city", e.Name), zap.String("region", e.Region))

	city := models.NewCity{
		Name:      e.Name,
		Province:  e.Province,
		Region:    e.Region,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
	}
	if err := utils.CheckCity(city); err != nil {
		l.Warn("Skipping catalogue entry", zap.Error(err))
		return outcomeInvalid, nil
	}

	_, found, err := s.store.CityIDByName(ctx, e.Name)
	if err != nil {
		return outcomeInvalid, fmt.Errorf("seeding %s: %w", e.Name, err)
	}
	if found {
		l.Debug("City already stored")
		return outcomeExisting, nil
	}

	city.Description = e.Description
	if city.Description == "" && s.details != nil {
		d := s.details.CityDetails(ctx, e.Name)
		if d != enrichment.DefaultCityDetails {
			city.Description = d.Description()
		}
	}
	if city.Description == "" {
		city.Description = e.FallbackDescription()
	}
	city.BestSeason = BestSeason(e.Name, e.Region)
	city.CurrentTemperature = s.temperature()

	if s.images != nil && s.opts.ImagesPerCity > 0 {
		urls, err := s.images.Search(ctx, e.Name+" travel scenery", s.opts.ImagesPerCity)
		if err != nil {
			l.Warn("Image search failed, saving without images", zap.Error(err))
		}
		city.Images = urls
	}

	_, created, err := s.store.SaveCity(ctx, city)
	if err != nil {
		l.Error("Failed to save city", zap.Error(err))
		return outcomeInvalid, fmt.Errorf("seeding %s: %w", e.Name, err)
	}
	l.Info("City seeded", zap.Bool("created", created), zap.Int("images", len(city.Images)))
	if !created {
		return outcomeExisting, nil
	}
	return outcomeCreated, nil
}
