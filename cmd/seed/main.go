// Command seed loads the embedded city catalogue into the database.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-loongo/internal/app/domain/city"
	"github.com/FACorreiaa/go-loongo/internal/app/enrichment"
	"github.com/FACorreiaa/go-loongo/internal/app/seed"
	"github.com/FACorreiaa/go-loongo/internal/pkg/config"
	"github.com/FACorreiaa/go-loongo/internal/pkg/logger"
	"github.com/FACorreiaa/go-loongo/internal/server"
)

func main() {
	noImages := flag.Bool("no-images", false, "skip the image search")
	noDetails := flag.Bool("no-details", false, "skip generated descriptions")
	flag.Parse()

	if err := run(*noImages, *noDetails); err != nil {
		log.Fatal(err)
	}
}

func run(noImages, noDetails bool) error {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	lg, err := logger.New(cfg.LogLevel, cfg.IsProduction(), zap.String("service", cfg.Observability.ServiceName+"-seed"))
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer srv.Close()

	var details seed.DetailsSource
	if !noDetails && cfg.Enrichment.GeminiAPIKey != "" {
		gen, err := enrichment.NewDetailsGenerator(ctx, cfg.Enrichment.GeminiAPIKey, cfg.Enrichment.Model, lg)
		if err != nil {
			return err
		}
		details = gen
	} else {
		lg.Info("Generated descriptions disabled")
	}

	var images seed.ImageSource
	if !noImages && cfg.Enrichment.ImageSearchURL != "" {
		images = enrichment.NewImageSearch(cfg.Enrichment.ImageSearchURL, lg)
	}

	entries, err := seed.Catalogue()
	if err != nil {
		return err
	}

	seeder := seed.NewSeeder(
		city.NewCityRepository(srv.GetDBPool(), lg),
		details,
		images,
		seed.Options{
			Parallelism:   cfg.Enrichment.MaxParallelLookup,
			ImagesPerCity: cfg.Enrichment.ImagesPerCity,
		},
		lg,
	)
	_, err = seeder.Run(ctx, entries)
	return err
}
