package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
	"github.com/R3E-Network/rental_settlement/internal/app/httpapi"
	"github.com/R3E-Network/rental_settlement/internal/app/metrics"
	"github.com/R3E-Network/rental_settlement/internal/app/services/audit"
	"github.com/R3E-Network/rental_settlement/internal/app/services/notification"
	settlementsvc "github.com/R3E-Network/rental_settlement/internal/app/services/settlement"
	"github.com/R3E-Network/rental_settlement/internal/app/storage"
	"github.com/R3E-Network/rental_settlement/internal/app/storage/memory"
	"github.com/R3E-Network/rental_settlement/internal/app/storage/postgres"
	"github.com/R3E-Network/rental_settlement/internal/app/system"
	"github.com/R3E-Network/rental_settlement/internal/chain"
	"github.com/R3E-Network/rental_settlement/internal/config"
	"github.com/R3E-Network/rental_settlement/internal/directory"
	"github.com/R3E-Network/rental_settlement/internal/events"
	"github.com/R3E-Network/rental_settlement/internal/httputil"
	"github.com/R3E-Network/rental_settlement/internal/ledger"
	"github.com/R3E-Network/rental_settlement/internal/middleware"
	"github.com/R3E-Network/rental_settlement/internal/platform/migrations"
	"github.com/R3E-Network/rental_settlement/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Agreements    storage.AgreementStore
	Payments      storage.PaymentStore
	Notifications storage.NotificationStore
}

// Options overrides collaborators normally built from configuration.
type Options struct {
	Stores    Stores
	Ledger    settlementsvc.Ledger
	Directory directory.Directory
	Transport events.Transport
}

// Application ties the settlement services together and manages their lifecycle.
type Application struct {
	cfg     *config.Config
	manager *system.Manager
	log     *logger.Logger
	db      *sql.DB
	redis   *redis.Client

	Stores        Stores
	Settlement    *settlementsvc.Service
	Notifications *notification.Service
	Auditor       *audit.PendingAuditor
	Handler       http.Handler
}

// New builds the application from configuration. Collaborators set in opts
// take precedence over the configured ones.
func New(cfg *config.Config, log *logger.Logger, opts Options) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if log == nil {
		log = logger.NewDefault("app")
	}
	a := &Application{cfg: cfg, log: log, manager: system.NewManager(log.Named("system"))}

	if err := a.buildStores(opts.Stores); err != nil {
		a.close()
		return nil, err
	}

	gateway := opts.Ledger
	if gateway == nil {
		exec, err := newLedgerExecutor(cfg.Ledger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("configure ledger: %w", err)
		}
		gateway = ledger.NewGateway(exec, cfg.Ledger.Timeout, log.Named("ledger"),
			ledger.WithObserver(func(fn ledger.Function, result ledger.Result, elapsed time.Duration) {
				metrics.RecordLedgerCall(string(fn), ledger.Outcome(result), elapsed)
			}))
	}

	dir := opts.Directory
	if dir == nil {
		dir = a.newDirectory()
	}

	transport := opts.Transport
	if transport == nil {
		transport = newTransport(cfg.Events, log.Named("events"))
	}
	publisher := events.NewAsyncPublisher(transport, cfg.Events.QueueSize, log.Named("events"),
		events.WithOutcomeObserver(func(t settlement.EventType, outcome string) {
			metrics.RecordNotificationEvent(string(t), outcome)
		}))

	svc, err := settlementsvc.New(settlementsvc.Dependencies{
		Agreements: a.Stores.Agreements,
		Payments:   a.Stores.Payments,
		Ledger:     gateway,
		Directory:  dir,
		Publisher:  publisher,
	}, settlementsvc.Config{PaymentFunction: ledger.Function(cfg.Ledger.PaymentFunction)}, log.Named("settlement"))
	if err != nil {
		a.close()
		return nil, err
	}
	a.Settlement = svc

	a.manager.Register(transport)
	if cfg.Events.Consume {
		a.Notifications = notification.New(a.Stores.Notifications, transport, log.Named("notification"))
		a.manager.Register(a.Notifications)
	}
	a.manager.Register(publisher)
	a.Auditor = audit.NewPendingAuditor(a.Stores.Agreements, cfg.Audit.Schedule, cfg.Audit.PendingAge, log.Named("pending-audit"))
	a.manager.Register(a.Auditor)

	a.Handler = httpapi.NewHandler(httpapi.Dependencies{
		Settlement:    svc,
		Agreements:    a.Stores.Agreements,
		Payments:      a.Stores.Payments,
		Notifications: a.Stores.Notifications,
		HealthChecks:  a.healthChecks(),
		Middleware:    a.httpMiddleware(),
	}, log.Named("http"))

	return a, nil
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services, then releases database and cache connections.
func (a *Application) Stop(ctx context.Context) error {
	err := a.manager.Stop(ctx)
	a.close()
	return err
}

// Services lists the lifecycle-managed services in start order.
func (a *Application) Services() []system.Service {
	return a.manager.Services()
}

func (a *Application) buildStores(stores Stores) error {
	if stores.Agreements == nil || stores.Payments == nil || stores.Notifications == nil {
		var fallback interface {
			storage.AgreementStore
			storage.PaymentStore
			storage.NotificationStore
		}
		if strings.TrimSpace(a.cfg.Database.DSN) == "" {
			a.log.Warn("DATABASE_URL not set; using in-memory store")
			fallback = memory.New()
		} else {
			db, err := openDatabase(a.cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			a.db = db
			if a.cfg.Database.Migrate {
				if err := migrations.Up(db); err != nil {
					return fmt.Errorf("migrate database: %w", err)
				}
			}
			fallback = postgres.New(db)
		}
		if stores.Agreements == nil {
			stores.Agreements = fallback
		}
		if stores.Payments == nil {
			stores.Payments = fallback
		}
		if stores.Notifications == nil {
			stores.Notifications = fallback
		}
	}
	a.Stores = stores
	return nil
}

func newLedgerExecutor(cfg config.LedgerConfig) (ledger.Executor, error) {
	switch strings.ToLower(cfg.Transport) {
	case "rpc":
		client, err := chain.NewClient(chain.Config{RPCURL: cfg.RPCURL, Timeout: cfg.Timeout})
		if err != nil {
			return nil, err
		}
		return ledger.NewRPCExecutor(client, cfg.ContractHash, cfg.WaitForExecution), nil
	default:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("LEDGER_BASE_URL is required for the http transport")
		}
		client := httputil.NewServiceClient(httputil.ServiceClientConfig{
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
		return ledger.NewHTTPExecutor(client), nil
	}
}

func (a *Application) newDirectory() directory.Directory {
	cfg := a.cfg.Directory
	if cfg.BaseURL == "" {
		a.log.Warn("DIRECTORY_BASE_URL not set; every party resolves to a placeholder profile")
		return directory.Absent
	}
	client := httputil.NewServiceClient(httputil.ServiceClientConfig{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})
	var dir directory.Directory = directory.NewHTTPDirectory(client, cfg.Timeout, a.log.Named("directory"))

	if a.cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		dir = directory.NewCachedDirectory(dir, directory.NewRedisCache(a.redis, cfg.CacheTTL), cfg.Timeout, a.log.Named("directory"))
	}
	return dir
}

func newTransport(cfg config.EventsConfig, log *logger.Logger) events.Transport {
	if strings.EqualFold(cfg.Transport, "rocketmq") {
		return events.NewRocketMQ(cfg, log)
	}
	return events.NewBus()
}

func (a *Application) httpMiddleware() []mux.MiddlewareFunc {
	var mws []mux.MiddlewareFunc
	if a.cfg.Auth.JWTSecret != "" {
		mws = append(mws, middleware.NewAuthMiddleware(a.cfg.Auth.JWTSecret, a.log.Named("auth"), a.cfg.Auth.SkipPaths).Handler)
	} else {
		a.log.Warn("JWT_SECRET not set; API is unauthenticated")
	}
	if a.cfg.RateLimit.RequestsPerSecond > 0 {
		mws = append(mws, middleware.NewRateLimiter(a.cfg.RateLimit.RequestsPerSecond, a.cfg.RateLimit.Burst, a.log.Named("ratelimit")).Handler)
	}
	return mws
}

func (a *Application) healthChecks() map[string]httpapi.HealthCheck {
	checks := map[string]httpapi.HealthCheck{}
	if a.db != nil {
		checks["database"] = a.db.PingContext
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	return checks
}

func (a *Application) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis client")
		}
		a.redis = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
		a.db = nil
	}
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
