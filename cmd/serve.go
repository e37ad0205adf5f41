package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omicsflow/pathway-enrich/internal/pathway"
	"github.com/omicsflow/pathway-enrich/internal/store"
)

var servePort int

var pathwayIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// apiServer serves enrichment over HTTP. Pathway documents live in dir as
// <id>.json; runs against the same pathway are serialized.
type apiServer struct {
	env *enrichEnv
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAPIServer(env *enrichEnv, dir string) *apiServer {
	return &apiServer{env: env, dir: dir, locks: make(map[string]*sync.Mutex)}
}

func (s *apiServer) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Handler returns the routed HTTP handler.
func (s *apiServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/pathways/{id}", func(r chi.Router) {
		r.Post("/enrich", s.handleEnrich)
		r.Get("/layout", s.handleLayout)
		r.Get("/records", s.handleListRecords)
	})
	r.Get("/records/{id}", s.handleGetRecord)
	return r
}

// pathwayPath returns the document path for the id in the URL, or writes an
// error response and returns "".
func (s *apiServer) pathwayPath(w http.ResponseWriter, r *http.Request) string {
	id := chi.URLParam(r, "id")
	if !pathwayIDPattern.MatchString(id) {
		writeError(w, http.StatusBadRequest, "invalid pathway id")
		return ""
	}
	path := filepath.Join(s.dir, id+".json")
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "pathway not found")
		return ""
	}
	return path
}

func (s *apiServer) handleEnrich(w http.ResponseWriter, r *http.Request) {
	path := s.pathwayPath(w, r)
	if path == "" {
		return
	}

	var f requestFlags
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	defer s.lock(path)()

	p, err := pathway.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	req, err := buildRequest(p.ID(), f)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ID = middleware.GetReqID(r.Context())

	out, err := enrichPathway(r.Context(), s.env, p, req)
	if err != nil {
		zap.L().Error("api: enrichment failed", zap.String("pathway", p.ID()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if out.Record != nil {
		if err := p.WriteFile(path); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *apiServer) handleLayout(w http.ResponseWriter, r *http.Request) {
	path := s.pathwayPath(w, r)
	if path == "" {
		return
	}
	write, _ := strconv.ParseBool(r.URL.Query().Get("write"))
	if write {
		defer s.lock(path)()
	}

	res, wrote, err := runLayout(r.Context(), s.env, path, path, nil, write)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tier":    res.Tier.String(),
		"reason":  res.Reason,
		"layout":  res.Block,
		"written": wrote,
	})
}

func (s *apiServer) handleListRecords(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !pathwayIDPattern.MatchString(id) {
		writeError(w, http.StatusBadRequest, "invalid pathway id")
		return
	}
	records, err := s.env.Store.ListRecords(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *apiServer) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.env.Store.GetRecord(r.Context(), chi.URLParam(r, "id"))
	switch {
	case eris.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "record not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve enrichment, layout and record lookups over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newAPIServer(env, cfg.Server.PathwayDir).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("pathways", cfg.Server.PathwayDir))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
