// Package server initializes and runs the reference capsule server.
// It opens the SQLite store, selects the media backend, handles graceful
// shutdown and starts the REST server.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/capsulekeeper/internal/logging"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/config"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/mail"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/media"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/rest"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/services"
)

const purgeInterval = time.Hour

type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	userService    *services.UserService
	capsuleService *services.CapsuleService
	blobs          http.Handler
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(os.Stdout, c.LogLevel, true)

	rm := repomanager.NewSQLiteRepositoryManager()
	db, err := repomanager.OpenSQLite(ctx, rm, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	storage, blobs, err := newStorage(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("media init error: %w", err)
	}

	// there is no outbound mail transport; messages go to the log
	mailer := mail.NewLogMailer(logger.With("module", "mail"))

	us := services.NewUserService(db, rm, mailer, logger, c)
	cs := services.NewCapsuleService(db, rm, storage, mailer, logger, c)

	return &App{
		config:         c,
		logger:         logger,
		db:             db,
		userService:    us,
		capsuleService: cs,
		blobs:          blobs,
	}, nil
}

// newStorage returns the configured media backend and, for local storage,
// the handler that serves its signed links.
func newStorage(ctx context.Context, c *config.Config) (media.Storage, http.Handler, error) {
	switch c.MediaBackend {
	case config.MediaBackendS3:
		s, err := media.NewS3Storage(ctx, media.S3Options{
			User:     c.S3RootUser,
			Password: c.S3RootPassword,
			Region:   c.S3Region,
			Endpoint: c.S3BaseEndpoint,
			Bucket:   c.S3Bucket,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case config.MediaBackendLocal, "":
		s, err := media.NewLocalStorage(c.MediaDir, c.PublicURL, []byte(c.SecretKey))
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown media backend %q", c.MediaBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startRESTServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := rest.NewRESTServer(app.config.Address, app.logger, app.userService, app.capsuleService, app.blobs, app.config.NotifySecret)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// purgeRevokedTokens drops expired revocations until ctx is done.
func (app *App) purgeRevokedTokens(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.userService.PurgeRevoked(ctx)
			if err != nil {
				app.logger.Warn(ctx, "purge revoked tokens", "error", err)
				continue
			}
			app.logger.Debug(ctx, "purged revoked tokens", "count", n)
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "media_backend", app.config.MediaBackend)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startRESTServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.purgeRevokedTokens(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "close db", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
