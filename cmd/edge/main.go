package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "greenhouse_control/docs"
	"greenhouse_control/internal/clock"
	"greenhouse_control/internal/config"
	"greenhouse_control/internal/controller"
	"greenhouse_control/internal/handlers"
	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/metrics"
	"greenhouse_control/internal/models"
	"greenhouse_control/internal/notify"
	"greenhouse_control/internal/repository"
	"greenhouse_control/internal/repository/db"
	"greenhouse_control/internal/server"
	"greenhouse_control/internal/service"
	"greenhouse_control/internal/transport/mqtt"
)

// @title                       Greenhouse edge coordinator API
// @version                     1.0
// @description                 Status, thresholds, overrides and history of the greenhouse edge node.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load("configs")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).With("node_id", cfg.NodeID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// open DB
	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer closeDB(sqlDB, log)

	repos := repository.NewRepository(sqlDB)
	if cfg.DB.Driver == "timescale" {
		ts, err := openTimescale(ctx, cfg.DB)
		if err != nil {
			log.Fatalw("failed to init timescale", "err", err)
		}
		defer func() { _ = ts.Close(context.Background()) }()
		repos.Readings = ts
	}

	// coordinator core
	m := metrics.New()
	rtc := clock.NewRTC(nil)
	thresholds, err := controller.NewThresholdStore(cfg.Thresholds)
	if err != nil {
		log.Fatalw("invalid initial thresholds", "err", err)
	}
	store := controller.NewStateStore(rtc.Now)
	tracker := controller.NewAlertTracker()
	links := controller.NewLinkMonitor(cfg.Links.SensorTimeout, rtc.Now)

	broker := mqtt.NewClient(cfg.MQTT, "", log.Named("mqtt"))
	events := service.NewEventLogService(repos.Events, rtc.Now)

	kafka, err := newKafkaNotifier(cfg.Notify.Kafka)
	if err != nil {
		log.Fatalw("failed to init kafka notifier", "err", err)
	}
	if kafka != nil {
		defer func() { _ = kafka.Close() }()
	}

	actuatorLink := mqtt.NewActuatorLink(broker, cfg.MQTT.Topics.Commands, cfg.Actuator.StateTopic, cfg.MQTT.PublishTimeout, log.Named("actuator_link"))
	if err := actuatorLink.Start(); err != nil {
		log.Fatalw("failed to subscribe actuator reports", "err", err)
	}

	dispatcher := controller.New(controller.Deps{
		Thresholds:  thresholds,
		Store:       store,
		Tracker:     tracker,
		Links:       links,
		Transmitter: actuatorLink,
		Notifier:    newNotifier(cfg, events, broker, kafka, log),
		Metrics:     m,
		Log:         log.Named("dispatcher"),
	}, controller.Options{
		HealthInterval: cfg.Dispatcher.HealthInterval,
		QueueSize:      cfg.Dispatcher.QueueSize,
		Now:            rtc.Now,
	})
	if err := dispatcher.Attach(mqtt.NewSensorSource(broker, cfg.MQTT.Topics.Readings, log.Named("sensor_source"))); err != nil {
		log.Fatalw("failed to attach sensor source", "err", err)
	}

	// wire dependencies
	services := service.NewService(repos, service.Core{
		Thresholds: thresholds,
		Store:      store,
		Tracker:    tracker,
		Links:      links,
		Overrider:  dispatcher,
		Now:        rtc.Now,
		Metrics:    m,
		Log:        log.Named("service"),
	}, service.AuthOptions{SigningKey: cfg.Auth.SigningKey, TokenTTL: cfg.Auth.TokenTTL})

	remote := mqtt.NewRemoteChannel(broker, cfg.MQTT.Topics.RemoteIn, cfg.MQTT.Topics.RemoteOut, services.Control, log.Named("remote"))
	if err := remote.Start(); err != nil {
		log.Fatalw("failed to subscribe remote channel", "err", err)
	}

	apiHandler := handlers.NewHandler(services, log, handlers.Options{
		DisplayInterval:    cfg.Display.DefaultInterval,
		MaxDisplayInterval: cfg.Display.MaxInterval,
		Metrics:            m.Handler(),
	})
	guard := clock.NewGuard(rtc, clock.GuardConfig{MinYear: cfg.Clock.MinYear, MaxYear: cfg.Clock.MaxYear}, events, log.Named("clock"))

	// background tasks
	var wg sync.WaitGroup
	run := func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}
	run(func() { dispatcher.Run(ctx) })
	run(func() { services.Recorder.Run(ctx, cfg.Persistence.Interval) })
	run(func() { guard.Run(ctx, cfg.Clock.CheckInterval, cfg.Clock.ResyncInterval) })
	run(func() { remote.Run(ctx) })
	run(func() { connectAndGreet(ctx, broker, remote, events, cfg.NodeID, log) })

	// start HTTP server
	srv := server.New(cfg.HTTP)
	runHTTPServer(srv, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
	wg.Wait()
	broker.Disconnect()
}

func openTimescale(ctx context.Context, cfg config.DBConfig) (*repository.ReadingTimescale, error) {
	ts, err := repository.NewReadingTimescale(ctx, cfg.DSN, cfg.Table)
	if err != nil {
		return nil, err
	}
	if err := ts.InitializeTable(ctx); err != nil {
		_ = ts.Close(ctx)
		return nil, err
	}
	return ts, nil
}

// newKafkaNotifier returns nil when no brokers are configured.
func newKafkaNotifier(cfg config.KafkaConfig) (*notify.Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	return notify.NewKafka(cfg.Brokers, cfg.Topic)
}

// newNotifier fans every alert out to the event log, the alerts topic, Kafka
// (when enabled) and the process log, paced to the configured rate.
func newNotifier(cfg *config.Config, events notify.EventAppender, pub notify.Publisher, kafka *notify.Kafka, log *logger.Logger) notify.Notifier {
	sinks := notify.Multi{
		notify.EventLog{Repo: events},
		notify.Topic{Pub: pub, Topic: cfg.MQTT.Topics.Alerts},
	}
	if kafka != nil {
		sinks = append(sinks, kafka)
	}
	sinks = append(sinks, notify.Log{Log: log.Named("alerts")})
	return notify.NewPaced(sinks, cfg.Notify.PerMinute, cfg.Notify.Burst)
}

// connectAndGreet waits for the broker session, then announces the node on the
// remote channel and records the startup.
func connectAndGreet(ctx context.Context, broker *mqtt.Client, remote *mqtt.RemoteChannel, events service.EventLog, nodeID string, log *logger.Logger) {
	if err := broker.Connect(ctx); err != nil {
		log.Warnw("mqtt_connect_failed", "err", err)
		return
	}
	if err := remote.Say(ctx, service.StartupGreeting(nodeID)); err != nil {
		log.Warnw("startup_greeting_failed", "err", err)
	}
	if err := events.Record(ctx, models.EventStartup, "Edge coordinator started", map[string]any{"node_id": nodeID}); err != nil {
		log.Warnw("startup_event_failed", "err", err)
	}
}

func closeDB(sqlDB *sql.DB, log *logger.Logger) {
	if err := sqlDB.Close(); err != nil {
		log.Errorw("failed to close sqlite", "err", err)
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
