// FilePath: server/watchdog/internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/itsatony/w4b_v3/server/watchdog/api"
	"github.com/itsatony/w4b_v3/server/watchdog/api/middleware"
	"github.com/itsatony/w4b_v3/server/watchdog/api/resources"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/charts"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/cleanup"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/config"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/database"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/hubservice"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/monitoring"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/mqtt"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/notify"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/repository"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/repository/postgres"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/repository/timescale"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/scheduler"
	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"
)

// Server represents our HTTP server
type Server struct {
	router     *mux.Router
	config     *config.Config
	srv        *http.Server
	hubservice *hubservice.HubService
	charts     *charts.Service
	monitoring *monitoring.Service
	scheduler  *scheduler.Scheduler
	cleanup    *cleanup.CleanupService
	engine     *engine

	appDB         database.DB
	tsdb          database.DB
	redis         *redis.Client
	mqtt          *mqtt.PahoClient
	subscriptions *mqtt.SubscriptionManager
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	router := mux.NewRouter()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      withHTTPMiddleware(router, cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		router:     router,
		config:     cfg,
		srv:        srv,
		monitoring: monitoring.NewService(monitoring.Config{}),
	}
}

// Start wires every component, serves until SIGINT/SIGTERM and shuts down.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.initialize(ctx); err != nil {
		s.close()
		return err
	}

	schedulerDone := make(chan error, 1)
	go func() {
		schedulerDone <- s.scheduler.Run(ctx)
	}()

	go func() {
		nuts.L.Infof("[Server] Starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	return s.shutdown(schedulerDone)
}

func (s *Server) initialize(ctx context.Context) error {
	var err error
	if s.appDB, err = initDB(ctx, s.config.Database.AppDB, database.NewPostgresDB); err != nil {
		return err
	}
	if s.tsdb, err = initDB(ctx, s.config.Database.TimescaleDB, database.NewTimescaleDB); err != nil {
		return err
	}
	if err := postgres.InitializeSchema(ctx, s.appDB); err != nil {
		return err
	}

	locations := postgres.NewLocationRepository(s.appDB)
	devices := postgres.NewDeviceRepository(s.appDB)
	leakDevices := postgres.NewLeakDeviceRepository(s.appDB)
	readings, err := timescale.NewReadingRepository(s.tsdb)
	if err != nil {
		return err
	}

	s.hubservice = hubservice.New(devices, locations, leakDevices)
	if err := s.hubservice.Validate(); err != nil {
		return err
	}
	s.charts = charts.New(locations, readings)
	if err := s.charts.Validate(); err != nil {
		return err
	}

	if addr := s.config.Redis.Addr(); addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: s.config.Redis.Password,
			DB:       s.config.Redis.DB,
		})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis unreachable at %s: %w", addr, err)
		}
	}

	var publisher notify.Publisher
	if s.redis != nil {
		publisher = s.redis
	}
	sink, err := buildSink(s.config.Notify, publisher)
	if err != nil {
		return err
	}

	s.engine, err = buildEngine(s.config.Alerting, sources{
		locations:   locations,
		readings:    readings,
		devices:     repository.NewDeviceSnapshot(devices, readings),
		leakDevices: leakDevices,
	}, sink, s.monitoring)
	if err != nil {
		return err
	}

	s.scheduler = scheduler.New(scheduler.WithRecorder(s.monitoring))
	for _, job := range s.engine.jobs {
		if err := s.scheduler.Add(job); err != nil {
			return err
		}
	}

	if s.config.Retention.Enabled {
		s.cleanup = cleanup.New(readings, s.config.Retention.MaxAge)
		s.cleanup.OnCleanup(func(deleted int64) {
			s.monitoring.RecordEvent("retention_sweep", map[string]string{
				"deleted": fmt.Sprintf("%d", deleted),
			})
		})
		if err := s.scheduler.Add(s.cleanup.Job(s.config.Retention.Interval)); err != nil {
			return err
		}
	}

	if s.config.MQTT.Enabled {
		if err := s.initMQTT(ctx, leakDevices); err != nil {
			return err
		}
	}

	s.setupRoutes()
	return nil
}

func (s *Server) initMQTT(ctx context.Context, leakDevices repository.LeakDeviceSource) error {
	client, err := mqtt.Connect(mqtt.ClientConfig{
		Broker:         s.config.MQTT.Broker,
		ClientID:       s.config.MQTT.ClientID,
		Username:       s.config.MQTT.Username,
		Password:       s.config.MQTT.Password,
		QoS:            byte(s.config.MQTT.QoS),
		ConnectTimeout: s.config.MQTT.ConnectTimeout,
		ActionTimeout:  s.config.MQTT.ActionTimeout,
	})
	if err != nil {
		return err
	}
	s.mqtt = client

	if s.engine.leak == nil {
		nuts.L.Warnf("[Server] MQTT enabled without the leak family; no topics will be subscribed")
		return nil
	}

	topics := mqtt.NewLeakTopics(s.config.MQTT.TopicPrefix, leakDevices, s.engine.leak, s.monitoring)
	s.subscriptions = mqtt.NewSubscriptionManager(client, topics, topics.Handler(ctx))

	client.OnConnect(func() {
		if err := s.subscriptions.Resubscribe(ctx); err != nil {
			nuts.L.Errorf("[Server] Resubscribe after reconnect failed: %v", err)
		}
	})
	if err := s.subscriptions.Refresh(ctx); err != nil {
		nuts.L.Warnf("[Server] Initial subscription refresh incomplete: %v", err)
	}

	s.hubservice.OnDeviceChanged("subscription_refresh", func(id string) {
		nuts.L.Debugf("[Server] Device %s changed, refreshing subscriptions", id)
		if err := s.subscriptions.Refresh(ctx); err != nil {
			nuts.L.Warnf("[Server] Subscription refresh after device change failed: %v", err)
		}
	})

	return s.scheduler.Add(scheduler.Job{
		Name:     "mqtt_subscriptions",
		Interval: s.config.MQTT.RefreshInterval,
		Run: func(ctx context.Context, _ time.Time) error {
			return s.subscriptions.Refresh(ctx)
		},
	})
}

// setupRoutes configures all routes for the server
func (s *Server) setupRoutes() {
	res := resources.NewResources(s.hubservice, s.hubservice, s.charts, s.engine.alerts...)
	res.SetHealthCheck(s.handleHealth())
	if s.config.Monitoring.MetricsEnabled {
		metrics := s.monitoring.Handler()
		res.SetMetrics(metrics.ServeHTTP)
		s.router.Handle(s.config.Monitoring.MetricsPath, metrics).Methods(http.MethodGet)
	}

	router := api.NewRouter(res, middleware.KeycloakConfig{
		URL:          s.config.Keycloak.URL,
		Realm:        s.config.Keycloak.Realm,
		ClientID:     s.config.Keycloak.ClientID,
		ClientSecret: s.config.Keycloak.ClientSecret,
	})
	s.router.PathPrefix("/api/").Handler(router)
}

// handleHealth reports database reachability and the MQTT connection.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok", "version": nuts.GetVersion()}
		code := http.StatusOK
		if err := s.appDB.Ping(ctx); err != nil {
			status["app_db"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if err := s.tsdb.Ping(ctx); err != nil {
			status["timescaledb"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if s.mqtt != nil && !s.mqtt.IsConnected() {
			status["mqtt"] = "disconnected"
			code = http.StatusServiceUnavailable
		}
		if code != http.StatusOK {
			status["status"] = "degraded"
		}
		writeJSON(w, code, status)
	}
}

// shutdown stops the HTTP server, waits for in-flight ticks and releases
// connections.
func (s *Server) shutdown(schedulerDone <-chan error) error {
	nuts.L.Infof("[Server] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	err := s.srv.Shutdown(ctx)

	select {
	case <-schedulerDone:
	case <-ctx.Done():
		nuts.L.Warnf("[Server] Scheduler did not stop within %s", s.config.Server.ShutdownTimeout)
	}

	s.close()
	if err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

func (s *Server) close() {
	if s.mqtt != nil {
		s.mqtt.Close(250 * time.Millisecond)
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			nuts.L.Warnf("[Server] Closing redis: %v", err)
		}
	}
	for _, db := range []database.DB{s.appDB, s.tsdb} {
		if db != nil {
			if err := db.Close(); err != nil {
				nuts.L.Warnf("[Server] Closing database: %v", err)
			}
		}
	}
}

func initDB(ctx context.Context, cfg config.PostgresConfig, open func(config.PostgresConfig) (database.DB, error)) (database.DB, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Host, err)
	}
	return db, nil
}
