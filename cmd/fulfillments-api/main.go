// README: Entry point; loads config, wires services, starts the HTTP server and the no-collection sweeper.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"fulfillments/internal/config"
	httptransport "fulfillments/internal/http"
	"fulfillments/internal/infra"
	"fulfillments/internal/maps"
	"fulfillments/internal/modules/channel"
	"fulfillments/internal/modules/order"
	"fulfillments/internal/modules/routing"
	"fulfillments/internal/modules/tasks"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("fulfillments-api exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	firebaseApp, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		return err
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, firebaseApp)
	if err != nil {
		return err
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	routeCache := routing.NewRedisCache(redisClient, cfg.Redis.RouteTTL)

	publishers := []order.Publisher{routeCache}
	if cfg.AMQP.URL != "" {
		broker, err := infra.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		defer broker.Close()
		publishers = append(publishers, order.NewBrokerPublisher(broker, 0))
	} else {
		log.Warn("amqp url not set; transition events are not broadcast")
	}
	if cfg.Firebase.PushTransitions {
		fcm, err := infra.NewFCM(ctx, firebaseApp)
		if err != nil {
			return err
		}
		publishers = append(publishers, order.NewPushPublisher(fcm))
	}

	loc := cfg.Location()

	orderStore := order.NewStore(dbPool)
	graph := order.DefaultGraph(order.Policy{
		AllowReversal:      cfg.Orders.AllowReversal,
		PreparationHandoff: cfg.Orders.PreparationHandoff,
	})
	orderSvc := order.NewService(orderStore, graph, log.With("module", "order"), publishers...)

	taskSvc := tasks.NewService(orderStore, log.With("module", "tasks"), tasks.Options{
		Location: loc,
		Links:    tasks.HTMLLinks{Base: cfg.HTTP.AdminBase},
		Metrics:  tasks.NewMetrics(prometheus.DefaultRegisterer),
	})

	geocoder, err := maps.NewGeocoder(cfg.Maps.APIKey, cfg.Maps.Language, cfg.Maps.Region)
	if err != nil {
		return err
	}
	routeOpts := routing.Options{Location: loc, Cache: routeCache}
	if cfg.Maps.EstimateDrive {
		routeOpts.Estimator = geocoder
	}
	routeSvc := routing.NewService(channel.NewStore(dbPool), orderStore, geocoder, log.With("module", "routing"), routeOpts)

	go orderSvc.RunNoCollectionSweeper(ctx, order.SweepConfig{
		Interval: cfg.Sweep.Interval,
		After:    cfg.Sweep.After,
	})

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Tasks:    taskSvc,
		Orders:   orderSvc,
		Routes:   routeSvc,
		Verifier: verifier,
		Gatherer: prometheus.DefaultGatherer,
		Log:      log.With("module", "http"),
	})
	return httptransport.NewServer(cfg.HTTP.Addr, router, log).Run(ctx)
}
