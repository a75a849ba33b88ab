// twin-ses is a local test double for the SES v2 outbound-email API and
// the SNS control-plane API. It accepts requests in the shapes the real
// services use and asynchronously replays scripted delivery-lifecycle
// notifications to a configured callback URL.
//
// Integration method: override the SES/SNS endpoint URLs in the client SDK.
package main

import (
	"log"
	"os"

	"github.com/wondertwin-ai/twin-ses/internal/admin"
	"github.com/wondertwin-ai/twin-ses/internal/api"
	"github.com/wondertwin-ai/twin-ses/internal/simulate"
	"github.com/wondertwin-ai/twin-ses/internal/sns"
	"github.com/wondertwin-ai/twin-ses/internal/store"
	"github.com/wondertwin-ai/twin-ses/internal/twincore"
)

func main() {
	cfg := twincore.ParseFlags("twin-ses")

	twin := twincore.New(cfg)
	memStore := store.NewMemoryStore()

	patterns := simulate.NewPatternTable()
	if cfg.PatternsFile != "" {
		if err := patterns.LoadFile(cfg.PatternsFile); err != nil {
			log.Fatalf("failed to load patterns file: %v", err)
		}
		twin.Logger.Info("loaded recipient patterns", "file", cfg.PatternsFile)
	}

	dispatcher := simulate.NewDispatcher(simulate.DispatcherConfig{
		URL:    cfg.WebhookURL,
		Logger: twin.Logger,
		Clock:  memStore.Clock,
	})

	// API handlers
	apiHandler := api.NewHandler(memStore, patterns, dispatcher, twin.Middleware(), twin.Logger)
	apiHandler.Routes(twin.Router)

	snsHandler := sns.NewHandler(twin.Logger)
	snsHandler.Routes(twin.Router)

	// Admin control plane
	adminHandler := admin.NewHandler(memStore, dispatcher, twin.Middleware(), memStore.Clock)
	adminHandler.Routes(twin.Router)

	// Load seed data if provided
	if cfg.SeedFile != "" {
		data, err := os.ReadFile(cfg.SeedFile)
		if err != nil {
			log.Fatalf("failed to read seed file: %v", err)
		}
		if err := memStore.LoadState(data); err != nil {
			log.Fatalf("failed to load seed data: %v", err)
		}
		twin.Logger.Info("loaded seed data", "file", cfg.SeedFile)
	}

	if cfg.WebhookURL == "" {
		twin.Logger.Info("no webhook URL configured, notification delivery disabled")
	}

	twin.Logger.Info("twin-ses ready",
		"port", cfg.Port,
		"webhook_url", cfg.WebhookURL,
	)

	if err := twin.Serve(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
