// Package rest exposes the reference server over HTTP/JSON.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/capsulekeeper/internal/logging"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/media"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type RESTServer struct {
	address      string
	users        *services.UserService
	capsules     *services.CapsuleService
	blobs        http.Handler
	notifySecret string
	logger       logging.Logger
}

// NewRESTServer wires the handlers. blobs serves locally stored media and
// may be nil when media lives in S3.
func NewRESTServer(a string, l logging.Logger, us *services.UserService, cs *services.CapsuleService, blobs http.Handler, notifySecret string) *RESTServer {
	return &RESTServer{
		address:      a,
		logger:       l.With("module", "rest_server"),
		users:        us,
		capsules:     cs,
		blobs:        blobs,
		notifySecret: notifySecret,
	}
}

// Router builds the chi router with every route and middleware.
func (s *RESTServer) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", s.signup)
		r.Post("/login", s.login)
		r.Post("/otp/request", s.requestOTP)
		r.Post("/otp/verify", s.verifyOTP)
		r.Post("/verify-email", s.verifyEmail)
		r.Post("/verify-email/resend", s.resendVerification)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/logout", s.logout)
			r.Get("/me", s.me)
		})
	})

	r.Route("/api/capsules", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/", s.createCapsule)
		r.Get("/", s.listCapsules)
		r.Get("/{id}", s.getCapsule)
		r.Put("/{id}", s.updateCapsule)
		r.Delete("/{id}", s.deleteCapsule)
	})

	r.Route("/api/media", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/upload/{capsuleID}", s.uploadMedia)
		r.Get("/{id}/url", s.mediaURL)
		r.Delete("/{id}", s.deleteMedia)
	})

	r.Post("/api/notify/reminders", s.sendReminders)

	if s.blobs != nil {
		r.Handle(media.BlobPath+"*", s.blobs)
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *RESTServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting REST server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
