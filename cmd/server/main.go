package main

import (
	"fmt"
	"log"
	"os"

	"github.com/pakbuy/backend/config"
	httpDelivery "github.com/pakbuy/backend/internal/delivery/http"
	"github.com/pakbuy/backend/internal/domain"
	"github.com/pakbuy/backend/internal/infrastructure/assistant"
	"github.com/pakbuy/backend/internal/infrastructure/cache"
	"github.com/pakbuy/backend/internal/infrastructure/marketplace"
	"github.com/pakbuy/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting PakBuy Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Sources: %v", cfg.Sources.Enabled)

	// Initialize infrastructure dependencies
	memoryCache := cache.NewMemoryCache()

	adapters := buildAdapters(cfg)
	if len(adapters) == 0 {
		log.Fatalf("No known marketplace adapters among enabled sources: %v", cfg.Sources.Enabled)
	}

	var matchAssistant domain.MatchAssistant
	if cfg.Assistant.Enabled {
		matchAssistant = assistant.NewClient(cfg.Assistant.BaseURL, cfg.Assistant.Timeout)
		log.Printf("Match assistant: %s (timeout: %s)", cfg.Assistant.BaseURL, cfg.Assistant.Timeout)
	} else {
		log.Printf("Match assistant disabled, local scoring only")
	}

	// Initialize usecase layer
	orchestrator := usecase.NewOrchestrator(adapters, usecase.OrchestratorConfig{
		AdapterTimeout: cfg.Sources.Timeout,
		RetryAttempts:  cfg.Sources.RetryAttempts,
		RetryBackoff:   cfg.Sources.RetryBackoff,
	})

	normalizer := usecase.NewNormalizer(usecase.NormalizerConfig{
		CanonicalCurrency: cfg.Pipeline.CanonicalCurrency,
		CurrencyRates:     cfg.Pipeline.CurrencyRates,
	})

	matcher := usecase.NewMatcher(usecase.MatcherConfig{
		Threshold:       cfg.Matcher.Threshold,
		BrandModelBonus: cfg.Matcher.BrandModelBonus,
		SpecGateCap:     cfg.Matcher.SpecGateCap,
		AmbiguousBand:   cfg.Matcher.AmbiguousBand,
		SourcePriority:  cfg.Sources.Enabled,
	}, matchAssistant)

	ranker := usecase.NewRanker(usecase.RankerConfig{
		OutlierMultiplier: cfg.Ranker.OutlierMultiplier,
		MaxCheaperOptions: cfg.Ranker.MaxCheaperOptions,
	})

	comparisonService := usecase.NewComparisonService(
		memoryCache,
		orchestrator,
		normalizer,
		matcher,
		ranker,
		matchAssistant,
		usecase.ComparisonServiceConfig{
			Deadline: cfg.Pipeline.Deadline,
			CacheTTL: cfg.Cache.TTL,
		},
	)

	log.Printf("Matcher: threshold=%.2f, bonus=%.2f, spec gate cap=%.2f",
		cfg.Matcher.Threshold, cfg.Matcher.BrandModelBonus, cfg.Matcher.SpecGateCap)
	log.Printf("Query deadline: %s, cache TTL: %s", cfg.Pipeline.Deadline, cfg.Cache.TTL)

	// Create HTTP handler with dependencies
	assistantURL := ""
	if cfg.Assistant.Enabled {
		assistantURL = cfg.Assistant.BaseURL
	}
	handler := httpDelivery.NewHandler(comparisonService, cfg.Sources.Enabled, assistantURL)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// buildAdapters constructs the adapter for each enabled, known source.
// Unknown names are skipped with a warning so one typo doesn't take the
// service down.
func buildAdapters(cfg *config.Config) []domain.SiteAdapter {
	var adapters []domain.SiteAdapter
	for _, source := range cfg.Sources.Enabled {
		mc := marketplace.Config{
			BaseURL:        cfg.Sources.BaseURLs[source],
			MaxResults:     cfg.Sources.MaxResults,
			RequestsPerSec: cfg.Sources.RequestsPerSec,
		}
		switch source {
		case "priceoye":
			adapters = append(adapters, marketplace.NewPriceOye(mc))
		case "mega":
			adapters = append(adapters, marketplace.NewMega(mc))
		case "daraz":
			adapters = append(adapters, marketplace.NewDaraz(mc))
		default:
			log.Printf("WARNING: unknown source %q in sources.enabled, skipping", source)
		}
	}
	return adapters
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
