package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/dmitrijs2005/capsulekeeper/internal/client/client"
	"github.com/dmitrijs2005/capsulekeeper/internal/client/config"
	"github.com/dmitrijs2005/capsulekeeper/internal/client/credentials"
	"github.com/dmitrijs2005/capsulekeeper/internal/client/services"
	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/dmitrijs2005/capsulekeeper/internal/filex"
	"github.com/dmitrijs2005/capsulekeeper/internal/logging"
)

// App is the interactive client. It owns the services for one user session
// and the terminal it talks through.
type App struct {
	config   *config.Config
	session  *services.SessionManager
	auth     *services.AuthModeController
	verify   *services.EmailVerificationFlow
	capsules *services.CapsuleService
	download *http.Client
	log      logging.Logger
	reader   *bufio.Reader
	out      io.Writer
	db       *sql.DB
}

// NewApp opens the local store, builds the API client and the services on
// top of it.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	if err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return nil, fmt.Errorf("prepare data dir: %w", err)
	}
	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	store := credentials.NewSQLiteStore(db, c.LockPath())
	api := client.NewHTTPClient(c.ServerURL, store,
		client.WithTimeout(c.RequestTimeout),
		client.WithLogger(log),
	)

	a := newApp(c, api, store, log, bufio.NewReader(os.Stdin), os.Stdout)
	a.db = db
	return a, nil
}

func newApp(c *config.Config, api client.Client, store credentials.Store, log logging.Logger, reader *bufio.Reader, out io.Writer) *App {
	session := services.NewSessionManager(api, store, log)
	return &App{
		config:   c,
		session:  session,
		auth:     services.NewAuthModeController(session, api, log),
		verify:   services.NewEmailVerificationFlow(session, api, log),
		capsules: services.NewCapsuleService(api, session, log),
		download: &http.Client{Timeout: c.RequestTimeout},
		log:      log,
		reader:   reader,
		out:      out,
	}
}

// Run restores a stored session if there is one and starts the REPL. It
// returns when the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	defer a.close()

	if id, err := a.session.CheckAuth(ctx); err != nil {
		a.log.Warn(ctx, "stored session not restored", "error", err)
		a.println("Stored session could not be checked:", common.UserMessage(err))
	} else if id != nil {
		a.println(fmt.Sprintf("Welcome back, %s.", id.Username))
	}

	a.println("Type 'help' for the list of commands.")
	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *App) isLoggedIn() bool {
	return a.session.IsAuthenticated()
}

func (a *App) status() string {
	if id := a.session.Identity(); id != nil {
		return id.Email
	}
	return "guest"
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
