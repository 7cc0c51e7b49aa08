package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/openfleet/delivery-tracker/internal/config"
	"github.com/openfleet/delivery-tracker/internal/events"
	"github.com/openfleet/delivery-tracker/internal/handlers"
	"github.com/openfleet/delivery-tracker/internal/queue"
	"github.com/openfleet/delivery-tracker/internal/repository"
	"github.com/openfleet/delivery-tracker/internal/routing"
	"github.com/openfleet/delivery-tracker/internal/services"
	xhttp "github.com/openfleet/delivery-tracker/pkg/http"
	"github.com/openfleet/delivery-tracker/pkg/logger"
	"github.com/openfleet/delivery-tracker/pkg/pg"
	"github.com/openfleet/delivery-tracker/pkg/prom"
	"github.com/openfleet/delivery-tracker/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	completions, err := queue.New(redisAdap, queue.Config{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating completion queue", "error", err)
		return
	}

	publisher := events.NewPublisher(redisAdap, config.Get().EventStreamMaxLen)

	deliveryRepo := repository.NewDeliveryRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	driverRepo := repository.NewDriverRepository(db)
	destinationRepo := repository.NewDestinationRepository(db)

	// The routing client is optional; without providers the ETA stays
	// straight-line only.
	var router services.RouteEstimator
	if config.Get().RoutingPrimaryUrl != "" {
		client, err := routing.NewClient(&routing.Config{
			Providers: []routing.ProviderConfig{
				{Name: "primary", URL: config.Get().RoutingPrimaryUrl, Weight: 100},
				{Name: "secondary", URL: config.Get().RoutingSecondaryUrl, Weight: 80},
				{Name: "backup", URL: config.Get().RoutingBackupUrl, Weight: 60},
			},
			Timeout:                 time.Second * 5,
			MaxRetries:              3,
			RetryDelay:              time.Millisecond * 100,
			MaxConns:                1000,
			HealthCheckInterval:     30 * time.Second,
			CircuitBreakerThreshold: 5,
			CircuitBreakerTimeout:   30 * time.Second,
		})
		if err != nil {
			logger.Error("failed to create routing client", "error", err)
			return
		}
		defer client.Close()
		router = client
	}

	// services
	trackingService := services.NewTrackingService(deliveryRepo, locationRepo, driverRepo, publisher, completions)
	etaService := services.NewEtaService(deliveryRepo, destinationRepo, router, publisher)
	driverService := services.NewDriverService(driverRepo)
	healthService := services.NewHealthService(db.Write(context.Background()), redisAdap)

	// v1 handlers
	deliveryHandler := handlers.NewDeliveryHandler(trackingService)
	trackingHandler := handlers.NewTrackingHandler(trackingService, etaService)
	driverHandler := handlers.NewDriverHandler(driverService)
	destinationHandler := handlers.NewDestinationHandler(etaService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterDeliveryRoutes(g, deliveryHandler)
	handlers.RegisterTrackingRoutes(g, trackingHandler)
	handlers.RegisterDriverRoutes(g, driverHandler)
	handlers.RegisterDestinationRoutes(g, destinationHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	logger.Info("delivery tracker api started", "version", version, "commit", commit, "built", date)

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
