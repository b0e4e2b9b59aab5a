package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-ifta/internal/config"
	"github.com/ukydev/fleet-ifta/internal/db"
	"github.com/ukydev/fleet-ifta/internal/events"
	"github.com/ukydev/fleet-ifta/internal/filing"
	"github.com/ukydev/fleet-ifta/internal/fueltax"
	"github.com/ukydev/fleet-ifta/internal/handlers"
	"github.com/ukydev/fleet-ifta/internal/jurisdiction"
	"github.com/ukydev/fleet-ifta/internal/middleware"
	"github.com/ukydev/fleet-ifta/internal/rates"
)

// adapterFactories lists the jurisdictions this server can file with.
var adapterFactories = map[string]func(jurisdiction.Config) jurisdiction.Adapter{
	"FL": jurisdiction.NewFlorida,
	"TX": jurisdiction.NewTexas,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	log.SetLevel(cfg.LogLevel)
	log.SetFormatter(&log.JSONFormatter{})
	logger := log.StandardLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := db.ConnectMongo(ctx, cfg.Mongo.URI)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())
	log.WithField("database", cfg.Mongo.Database).Info("Connected to MongoDB")

	database := client.Database(cfg.Mongo.Database)
	returns := &db.MongoReturnCollection{Collection: database.Collection(db.ReturnsCollection)}
	submissions := &db.MongoSubmissionCollection{Collection: database.Collection(db.SubmissionsCollection)}

	opts := []filing.Option{
		filing.WithRecorder(submissions),
		filing.WithHistory(submissions),
		filing.WithLogger(logger),
		filing.WithConcurrency(cfg.Filing.Concurrency),
	}
	if cfg.MQTT.Broker != "" {
		publisher, err := events.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID,
			events.WithLogger(logger), events.WithQoS(byte(cfg.MQTT.QoS)))
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to MQTT broker")
		}
		defer publisher.Close()
		opts = append(opts, filing.WithPublisher(publisher))
		log.WithField("broker", cfg.MQTT.Broker).Info("Publishing submission events")
	}

	service, err := buildService(cfg, logger, opts...)
	if err != nil {
		log.WithError(err).Fatal("Failed to build filing service")
	}

	handler := handlers.NewIFTAHandler(service, returns, submissions, logger)
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newRouter(handler, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Graceful shutdown failed")
		}
	}()

	log.WithField("port", cfg.Server.Port).Info("HTTP server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("HTTP server failed")
	}
	log.Info("HTTP server stopped")
}

// buildService wires the rate table, calculator and jurisdiction adapters
// into a filing service.
func buildService(cfg *config.Config, logger log.FieldLogger, opts ...filing.Option) (*filing.Service, error) {
	table, err := loadRates(cfg.Filing.RatesFile)
	if err != nil {
		return nil, err
	}
	calc, err := fueltax.NewCalculator(table, fueltax.WithMPG(cfg.Filing.MPG))
	if err != nil {
		return nil, err
	}
	registry := buildRegistry(cfg, logger)
	for _, code := range registry.Jurisdictions() {
		if !table.Has(code) {
			logger.WithField("jurisdiction", code).Warn("No tax rate configured; submissions will be rejected")
		}
	}
	logger.WithFields(log.Fields{
		"mpg":           calc.MPG().String(),
		"jurisdictions": registry.Jurisdictions(),
	}).Info("Filing service ready")
	return filing.NewService(calc, registry, opts...), nil
}

func loadRates(path string) (*rates.Table, error) {
	if path == "" {
		return rates.Default(), nil
	}
	table, err := rates.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load rate table %s: %w", path, err)
	}
	return table, nil
}

func buildRegistry(cfg *config.Config, logger log.FieldLogger) *jurisdiction.Registry {
	codes := make([]string, 0, len(adapterFactories))
	for code := range adapterFactories {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	registry := jurisdiction.NewRegistry()
	for _, code := range codes {
		endpoint := cfg.Jurisdictions[code]
		if endpoint.Endpoint == "" {
			logger.WithField("jurisdiction", code).Warn("No filing endpoint configured; submissions will be rejected")
		}
		registry.Register(adapterFactories[code](jurisdiction.Config{
			Endpoint:    endpoint.Endpoint,
			APIKey:      endpoint.APIKey,
			CarrierID:   cfg.Filing.CarrierID,
			Timeout:     cfg.Filing.SubmitTimeout,
			MaxAttempts: cfg.Filing.SubmitAttempts,
			BaseDelay:   cfg.Filing.SubmitBackoff,
			Logger:      logger,
		}))
	}
	return registry
}

func newRouter(h *handlers.IFTAHandler, cfg *config.Config, logger log.FieldLogger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.Health)
	h.Register(mux)

	limiter := middleware.NewRateLimitMiddleware(nil)
	return middleware.Chain(mux,
		middleware.RequestLogger(logger),
		limiter.RateLimit(cfg.Server.RateLimitRequests, cfg.Server.RateLimitWindow),
	)
}
