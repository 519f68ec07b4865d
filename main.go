package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"go-lifeline/cache"
	"go-lifeline/clients"
	"go-lifeline/config"
	"go-lifeline/cronjobs"
	"go-lifeline/datasync"
	"go-lifeline/db"
	"go-lifeline/geocode"
	"go-lifeline/handlers"
	"go-lifeline/logger"
	"go-lifeline/metrics"
	"go-lifeline/notify"
	"go-lifeline/queue"
	"go-lifeline/routes"
	"go-lifeline/session"
	"go-lifeline/transport"
	"go-lifeline/types"
	"go-lifeline/worker"
)

const (
	clientBuffer   = 32
	pushRateLimit  = rate.Limit(20)
	alertCheckTick = 30 * time.Second
	geocodeRegion  = "zm"
)

func main() {
	if err := run(); err != nil {
		logger.L().Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	m := metrics.New()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	origin, err := url.Parse(cfg.UpstreamOrigin)
	if err != nil {
		return fmt.Errorf("parse upstream origin: %w", err)
	}

	var storage cache.Storage = cache.NewMemoryStorage()
	if cfg.CacheBackend == "redis" {
		rdb := cache.OpenRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rdb.Close()
		storage = cache.NewRedisStorage(rdb, cfg.CachePrefix)
	}

	parts := worker.NewPartitions(cfg.CachePrefix, cfg.CacheVersion)
	hub := clients.NewHub(origin.Scheme+"://"+origin.Host, clientBuffer, log)
	engine := worker.NewEngine(worker.Options{
		Origin:          origin,
		Storage:         storage,
		Partitions:      parts,
		Fetcher:         &http.Client{},
		APIHostPatterns: cfg.APIHostPatterns,
		APIPathPrefixes: cfg.APIPathPrefixes,
		Timeout:         cfg.FetchTimeout,
		Clock:           clock,
		Logger:          log,
		Metrics:         m,
	})

	var backend *db.Backend
	if cfg.FirestoreEnabled() {
		backend, err = db.Init(ctx, cfg.FirebaseCredentials, cfg.FirebaseProjectID)
		if err != nil {
			return err
		}
		defer backend.Close()
	}

	tray := notify.NewTray(clock)
	var sender notify.Sender
	if backend != nil {
		mc, err := backend.Messaging(ctx)
		if err != nil {
			log.Warn("messaging unavailable, fan-out disabled", "error", err)
		} else {
			sender = notify.NewFCMSender(mc)
		}
	}
	dispatcher := notify.NewDispatcher(tray, hub, sender, cfg.NotificationMaxAge, log, m)

	w := worker.NewWorker(engine, worker.ShellManifest, hub, tray, cfg.NotificationMaxAge, log, m)
	if err := w.Install(ctx); err != nil {
		log.Warn("shell install incomplete", "error", err)
	}

	sessions := session.NewStore(clock, cfg.SessionTTL)
	q := queue.New(storage, parts.Queue, hub, clock, log, m)
	sm := queue.NewSyncManager(func(ctx context.Context) error {
		resp, err := engine.Fetch(ctx, origin)
		if err != nil {
			return err
		}
		if resp.Status >= http.StatusInternalServerError {
			return fmt.Errorf("origin returned %d", resp.Status)
		}
		return nil
	}, log)
	sm.HandleReplay(q)

	ctrlOpts := datasync.Options{
		State:   datasync.NewState(),
		Role:    sessions.Role,
		Clock:   clock,
		Logger:  log,
		Metrics: m,
	}
	var (
		incidents handlers.IncidentStore
		users     handlers.UserStore
	)
	if backend != nil {
		var g geocode.Geocoder
		if cfg.MapsAPIKey != "" {
			google, err := geocode.NewGoogleGeocoder(cfg.MapsAPIKey, geocodeRegion)
			if err != nil {
				return err
			}
			if g, err = geocode.NewCachedGeocoder(google, cfg.GeocodeCacheSize); err != nil {
				return err
			}
		}
		incidents = db.NewIncidentRepository(backend.Firestore, g, log)
		users = db.NewUserRepository(backend.Firestore)
		centers := db.NewRescueCenterRepository(backend.Firestore, log)
		ctrlOpts.Source = datasync.NewFirestoreSource(backend.Firestore)
		ctrlOpts.Seed = func(ctx context.Context) error {
			_, err := centers.SeedIfEmpty(ctx, db.DefaultCenters)
			return err
		}
	}
	controller := datasync.NewController(ctrlOpts)
	controller.Subscribe(datasync.ListenerFuncs{
		Incidents: func(list []types.Incident) {
			hub.Broadcast(clients.Message{Type: clients.TypeIncidents, Data: list})
		},
		Centers: func(list []types.RescueCenter) {
			hub.Broadcast(clients.Message{Type: clients.TypeCenters, Data: list})
		},
		Alert: func(a datasync.Alert) {
			hub.Broadcast(clients.Message{Type: clients.TypeAlert, Data: a})
		},
	})
	if backend != nil {
		if err := controller.Start(ctx); err != nil {
			return fmt.Errorf("start snapshot sync: %w", err)
		}
		defer controller.Stop()
	}

	sched, err := cronjobs.Start(cronjobs.Schedule{
		Sweep:      cfg.NotificationSweepSchedule,
		SyncRetry:  cfg.SyncRetryInterval,
		AlertCheck: alertCheckTick,
	}, cronjobs.Jobs{
		SweepNotifications: func() int { return tray.Sweep(cfg.NotificationMaxAge) },
		FireSync:           sm.Fire,
		ExpireAlerts:       controller.Alerts().Expire,
	}, log)
	if err != nil {
		return err
	}

	h := &handlers.Handlers{
		Worker:     w,
		Hub:        hub,
		Dispatcher: dispatcher,
		Queue:      q,
		Sync:       sm,
		Controller: controller,
		Incidents:  incidents,
		Users:      users,
		Sessions:   sessions,
		Logger:     log,
	}
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: routes.SetupRouter(h, engine, pushRateLimit, log),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", cfg.HTTPAddr, "origin", origin.String(), "cache", parts.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.KafkaEnabled() {
		consumer := transport.NewPushConsumer(cfg.KafkaBrokers, cfg.KafkaPushTopic, cfg.KafkaGroupID, log)
		g.Go(func() error {
			defer consumer.Close()
			return consumer.Run(gctx, pushHandler(dispatcher, sender != nil, log))
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		sched.Stop(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// pushHandler shows each broker push locally and forwards it to the
// message's target when one is set and fan-out is available.
func pushHandler(d *notify.Dispatcher, fanout bool, log *slog.Logger) transport.Handler {
	return func(ctx context.Context, msg transport.PushMessage) error {
		n := d.Push(msg.Value)
		target := msg.Target()
		if target == "" {
			return nil
		}
		if !fanout {
			log.Warn("push target ignored, fan-out disabled", "target", target)
			return nil
		}
		id, err := d.Fanout(ctx, target, n)
		if err != nil {
			return fmt.Errorf("fan out %s: %w", n.ID, err)
		}
		log.Debug("push forwarded", "target", target, "message", id)
		return nil
	}
}
