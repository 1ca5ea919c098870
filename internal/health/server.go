// Package health exposes HTTP health and metrics endpoints for probes and
// scrapers.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"prop_support_bot/internal/logging"
)

const (
	mongoPingTimeout   = 2 * time.Second
	statsCountTimeout  = 2 * time.Second
	readHeaderTimeout  = 2 * time.Second
	healthListenPrefix = ":"
)

// MongoChecker defines the subset of MongoDB client behavior required for health.
type MongoChecker interface {
	Ping(ctx context.Context) error
}

// StatsSource supplies collection counts for the health response. Optional;
// counts are omitted when unset or failing.
type StatsSource interface {
	CountUsers(ctx context.Context) (int64, error)
	CountMessages(ctx context.Context) (int64, error)
}

// Server hosts the health and metrics endpoints and owns the underlying HTTP server.
type Server struct {
	server       *http.Server
	logger       *logrus.Entry
	mongoChecker MongoChecker
	stats        StatsSource
}

type response struct {
	Status   string `json:"status"`
	Mongo    string `json:"mongo,omitempty"`
	Users    *int64 `json:"users,omitempty"`
	Messages *int64 `json:"messages,omitempty"`
}

// NewServer constructs a server exposing GET /healthz and GET /metrics on the
// provided port.
func NewServer(port int, mongoChecker MongoChecker, stats StatsSource, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		logger:       logger,
		mongoChecker: mongoChecker,
		stats:        stats,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	srv.server = &http.Server{
		Addr:              fmt.Sprintf("%s%d", healthListenPrefix, port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe starts the server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "health_listen",
		"addr":  s.server.Addr,
	}).Info("starting health server")

	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			s.logger.WithField("event", "health_stopped").Info("health server stopped")
			return nil
		}

		return fmt.Errorf("health server listen: %w", err)
	}

	s.logger.WithField("event", "health_stopped").Info("health server stopped")
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := response{Status: "ok"}
	mongoStatus := "ok"

	ctx := r.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if s.mongoChecker == nil {
		mongoStatus = "error"
		s.logger.WithField("event", "health_mongo_missing").Warn("mongo checker is not configured for health endpoint")
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, mongoPingTimeout)
		err := s.mongoChecker.Ping(pingCtx)
		cancel()

		if err != nil {
			mongoStatus = "error"
			s.logger.WithFields(logging.Fields{
				"event": "health_mongo_error",
			}).WithError(err).Warn("mongo ping failed during health check")
		}
	}

	if mongoStatus != "ok" {
		resp.Status = "degraded"
		resp.Mongo = "error"
	}

	s.attachCounts(ctx, &resp)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.WithField("event", "health_write_error").WithError(err).Error("failed to encode health response")
	}
}

// attachCounts adds the user and message-log counts to the response. Counts
// are diagnostics only; a failing count is logged and omitted without
// degrading the reported status.
func (s *Server) attachCounts(ctx context.Context, resp *response) {
	if s.stats == nil {
		return
	}

	countCtx, cancel := context.WithTimeout(ctx, statsCountTimeout)
	defer cancel()

	users, err := s.stats.CountUsers(countCtx)
	if err != nil {
		s.logger.WithField("event", "health_stats_error").WithError(err).Warn("user count failed during health check")
		return
	}

	messages, err := s.stats.CountMessages(countCtx)
	if err != nil {
		s.logger.WithField("event", "health_stats_error").WithError(err).Warn("message count failed during health check")
		return
	}

	resp.Users = &users
	resp.Messages = &messages
}
