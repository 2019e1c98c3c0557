// Package server wires the maintenance application together: storage,
// sessions, image store, event feed, services and the HTTP server. It also
// runs the background session purge and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/dbx"
	"github.com/dmitrijs2005/zeladoria/internal/logging"
	"github.com/dmitrijs2005/zeladoria/internal/server/config"
	"github.com/dmitrijs2005/zeladoria/internal/server/events"
	"github.com/dmitrijs2005/zeladoria/internal/server/httpapi"
	"github.com/dmitrijs2005/zeladoria/internal/server/images"
	"github.com/dmitrijs2005/zeladoria/internal/server/policy"
	"github.com/dmitrijs2005/zeladoria/internal/server/repositories/memory"
	"github.com/dmitrijs2005/zeladoria/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/zeladoria/internal/server/services"
	"github.com/dmitrijs2005/zeladoria/internal/server/sessions"
	"github.com/go-redis/redis/v8"
)

// sessionPurgeInterval is how often expired sessions are removed from the
// database. Redis expires them on its own.
const sessionPurgeInterval = 15 * time.Minute

type App struct {
	config *config.Config
	logger logging.Logger

	db       *sql.DB
	redis    *redis.Client
	sessions sessions.Store
	events   events.Publisher

	users  *services.UserService
	server *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app := &App{config: c, logger: logger}
	if err := app.init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	tx, repos, err := app.openStorage(ctx)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}

	switch c.SessionStore {
	case config.SessionStoreRedis:
		app.redis = sessions.NewRedisClient(c.RedisAddr, c.RedisPassword, c.RedisDB)
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis init error: %w", err)
		}
		app.sessions = sessions.NewRedisStore(app.redis)
	default:
		app.sessions = sessions.NewRepositoryStore(repos, tx.Conn())
	}

	store, err := app.openImageStore(ctx)
	if err != nil {
		return fmt.Errorf("image store init error: %w", err)
	}
	processor := images.NewProcessor(store, c.ImageMaxDimension, c.ImageWorkers, app.logger,
		images.WithMaxPixels(c.ImageMaxPixels))

	if len(c.KafkaBrokers) > 0 {
		app.events = events.NewKafkaPublisher(c.KafkaBrokers, c.KafkaTopic, app.logger)
	} else {
		app.events = events.NopPublisher{}
	}

	rules := policy.Rules{AdminSeesAllNotes: c.AdminSeesAllNotes}
	d := services.Deps{Tx: tx, Repos: repos, Events: app.events, Log: app.logger}

	app.users = services.NewUserService(d, app.sessions, c.SecretKey, c.SessionValidityDuration)
	app.server = httpapi.NewServer(c.EndpointAddrHTTP, app.logger, httpapi.Services{
		Users:   app.users,
		Notes:   services.NewNoteService(d, rules, processor),
		Orders:  services.NewOrderService(d, rules),
		History: services.NewHistoryService(d),
	}, store, c.UploadsURLPrefix)

	return nil
}

// openStorage connects to PostgreSQL and migrates it, or builds the
// in-memory store when the DSN says so.
func (app *App) openStorage(ctx context.Context) (dbx.Transactor, repomanager.RepositoryManager, error) {
	if app.config.DatabaseDSN == config.MemoryDSN {
		app.logger.Warn(ctx, "using in-memory storage; data is lost on exit")
		mem := memory.NewStore()
		return mem, mem, nil
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	app.db = db

	if err := db.PingContext(ctx); err != nil {
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}
	return dbx.NewSQLTransactor(db), repos, nil
}

func (app *App) openImageStore(ctx context.Context) (images.Store, error) {
	c := app.config
	if c.ImageStore == config.ImageStoreS3 {
		return images.NewS3Store(ctx, images.S3Config{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
		})
	}
	return images.NewLocalStore(c.UploadsDir)
}

// Users exposes the identity service for the admin command.
func (app *App) Users() *services.UserService { return app.users }

// Handler returns the HTTP routing tree.
func (app *App) Handler() http.Handler { return app.server.Handler() }

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// purgeSessions removes expired sessions until ctx ends. Stores without an
// explicit purge are skipped.
func (app *App) purgeSessions(ctx context.Context, interval time.Duration) {
	p, ok := app.sessions.(sessions.Purger)
	if !ok {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Purge(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					app.logger.Error(ctx, "session purge failed", "error", err)
				}
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "expired sessions purged", "count", n)
			}
		}
	}
}

// Run serves until ctx is canceled or a termination signal arrives, then
// releases every resource.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.purgeSessions(ctx, sessionPurgeInterval)
	}()

	wg.Wait()

	app.Close()
	app.logger.Info(context.Background(), "App stopped")
}

// Close releases the event writer and the database and Redis connections.
func (app *App) Close() {
	ctx := context.Background()
	if app.events != nil {
		if err := app.events.Close(); err != nil {
			app.logger.Error(ctx, "event publisher close failed", "error", err)
		}
		app.events = nil
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "redis close failed", "error", err)
		}
		app.redis = nil
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close failed", "error", err)
		}
		app.db = nil
	}
}
