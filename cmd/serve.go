package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/orgmetrics/internal/model"
	"github.com/sells-group/orgmetrics/internal/resilience"
	"github.com/sells-group/orgmetrics/internal/resolver"
)

var servePort int

// metricsResolver is the slice of the orchestrator the HTTP surface needs.
type metricsResolver interface {
	Resolve(ctx context.Context, reference string, opts ...resolver.CallOption) (*model.ResolutionResult, error)
	BreakerStates() map[string]resilience.CircuitState
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the metrics HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := cfg.Server.Port
		if servePort != 0 {
			port = servePort
			cfg.Server.Port = servePort
		}

		env, err := initResolver(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env.Orchestrator, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Error("server shutdown error", zap.Error(err))
			}
		}()

		zap.L().Info("starting metrics server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	},
}

// newRouter builds the HTTP handler tree.
func newRouter(res metricsResolver, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
			handleResolve(w, req, res, req.URL.Query().Get("reference"))
		})
		r.Get("/companies/{reference}/metrics", func(w http.ResponseWriter, req *http.Request) {
			reference, err := url.PathUnescape(chi.URLParam(req, "reference"))
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			handleResolve(w, req, res, reference)
		})
		r.Get("/breakers", func(w http.ResponseWriter, _ *http.Request) {
			states := make(map[string]string)
			for name, s := range res.BreakerStates() {
				states[name] = s.String()
			}
			writeJSON(w, http.StatusOK, states)
		})
	})

	return r
}

func handleResolve(w http.ResponseWriter, req *http.Request, res metricsResolver, reference string) {
	if reference == "" {
		writeError(w, http.StatusBadRequest, errors.New("reference is required"))
		return
	}
	opts, err := callOptions(req.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := res.Resolve(req.Context(), reference, opts...)
	if err != nil {
		var invalid *model.InvalidReferenceError
		var unresolved *model.OrganizationNotResolvedError
		switch {
		case errors.As(err, &invalid):
			writeError(w, http.StatusBadRequest, err)
		case errors.As(err, &unresolved):
			writeError(w, http.StatusNotFound, err)
		default:
			zap.L().Error("resolve failed", zap.String("reference", reference), zap.Error(err))
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
