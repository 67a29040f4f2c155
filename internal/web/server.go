// Package web serves the reservation JSON API.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/tablebook/internal/auth"
	"github.com/example/tablebook/internal/booking"
	"github.com/example/tablebook/internal/logger"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

var ErrPanic = errors.New("recovered from panic")

type Server struct {
	Auth    *auth.Store
	Booking *booking.Service

	// AllowedOrigins feeds the CORS policy; empty allows any origin.
	AllowedOrigins []string

	l *logger.Logger
}

func NewServer(a *auth.Store, b *booking.Service, l *logger.Logger) *Server {
	if l == nil {
		l = logger.Discard()
	}
	return &Server{Auth: a, Booking: b, l: l}
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.Auth.WithOwner)
	api.HandleFunc("/restaurants/{id}/availability", s.handleAvailability).Methods(http.MethodGet)
	api.HandleFunc("/restaurants/{id}/reservations", s.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/reservations/{code}", s.handleLookup).Methods(http.MethodGet)
	api.HandleFunc("/reservations/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/reservations/{id}", s.handleModify).Methods(http.MethodPut)

	owner := api.PathPrefix("/owner").Subrouter()
	owner.Use(s.Auth.RequireOwner)
	owner.HandleFunc("/restaurants/{id}/reservations", s.handleDay).Methods(http.MethodGet)
	owner.HandleFunc("/reservations/{id}/status", s.handleStatus).Methods(http.MethodPost)

	origins := s.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", guestEmailHeader},
		AllowCredentials: true,
	})

	return s.applyMiddlewares(c.Handler(r), s.recoverMiddleware(), s.loggerMiddleware())
}

func Start(ctx context.Context, addr string, h http.Handler, l *logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          l.Std(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	l.LogInfo("type: server, listening: %s", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
