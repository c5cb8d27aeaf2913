// Package api provides the HTTP server for the webjuridico backend.
//
// It exposes the official-rate catalog and calculator, the visit counter,
// the contact form and the embedded static site.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/estudiomv/webjuridico/internal/config"
	"github.com/estudiomv/webjuridico/internal/contact"
	"github.com/estudiomv/webjuridico/internal/official"
	"github.com/estudiomv/webjuridico/internal/visits"
	"github.com/estudiomv/webjuridico/web"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// CatalogProvider resolves the rate catalog. Never fails.
type CatalogProvider interface {
	GetCatalog(ctx context.Context) *official.CatalogSnapshot
}

// Calculator runs one official calculation.
type Calculator interface {
	Calculate(ctx context.Context, req official.CalculationRequest) (*official.CalculationResult, error)
}

// VisitRecorder registers a deduplicated visit.
type VisitRecorder interface {
	Record(fingerprint string) (*visits.Stats, error)
}

// Server is the HTTP server.
type Server struct {
	router    chi.Router
	cfg       *config.Config
	catalog   CatalogProvider
	calc      Calculator
	visits    VisitRecorder
	sender    contact.Sender
	limiter   *contact.RateLimiter
	log       *zap.Logger
	serveSite bool
}

// NewServer creates a configured server with all routes and middleware.
func NewServer(cfg *config.Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	client := official.NewClient(cfg.Official.Host, cfg.Official.CalcPath)
	store := official.NewSnapshotStore(path.Join(cfg.Data.Dir, "chaco-rates-cache.json"))

	srv := &Server{
		cfg:     cfg,
		catalog: official.NewCatalogService(client, store, cfg.Official.CatalogTTLDuration(), log),
		calc:    official.NewCalculator(client, log),
		visits: visits.NewCounter(
			path.Join(cfg.Data.Dir, "visits.json"),
			cfg.Visits.DedupeWindowDuration(), log),
		sender:    contact.NewMailSender(cfg.Contact, log),
		limiter:   contact.NewRateLimiter(cfg.Contact.RateLimitMax, cfg.Contact.RateLimitWindowDuration()),
		log:       log.Named("api"),
		serveSite: cfg.Server.ServeSite,
	}

	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
	}

	s.log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(securityHeaders)

	origins := []string{"*"}
	if len(s.cfg.Server.CORSOrigins) > 0 {
		origins = s.cfg.Server.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/visitas", s.handleVisits)
	r.Post("/api/contacto", s.handleContact)
	r.Post("/api/contact", s.handleContact)
	r.Get("/api/tasas/chaco", s.handleCatalog)
	r.Post("/api/tasas/chaco/calcular", s.handleCalculate)

	if s.serveSite {
		s.mountSite(r, web.SiteFS())
	}

	return r
}

// securityHeaders applies the headers the original deployment sent on
// every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		next.ServeHTTP(w, r)
	})
}

// mountSite serves the embedded static site. HTML and JSON revalidate on
// every request; other assets cache for a day.
func (s *Server) mountSite(r chi.Router, siteFS fs.FS) {
	fileServer := http.FileServer(http.FS(siteFS))

	r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
		rPath := strings.TrimPrefix(req.URL.Path, "/")
		if rPath == "" {
			rPath = "index.html"
		}

		f, err := siteFS.Open(rPath)
		if err != nil {
			http.NotFound(w, req)
			return
		}
		f.Close()

		switch path.Ext(rPath) {
		case ".html", ".json":
			w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		default:
			w.Header().Set("Cache-Control", "public, max-age=86400")
		}

		fileServer.ServeHTTP(w, req)
	})
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":  true,
		"now": time.Now().UTC().Format(time.RFC3339),
	})
}

// catalogResponse is the catalog wire shape.
type catalogResponse struct {
	OK        bool                  `json:"ok"`
	Source    string                `json:"source"`
	UpdatedAt time.Time             `json:"updatedAt"`
	Items     []official.RateOption `json:"items"`
	Note      string                `json:"note,omitempty"`
}

// handleCatalog resolves the rate catalog. The sourcing chain absorbs all
// upstream failures, so this endpoint always answers 200.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.GetCatalog(r.Context())
	writeJSON(w, http.StatusOK, catalogResponse{
		OK:        true,
		Source:    snap.Source,
		UpdatedAt: snap.UpdatedAt,
		Items:     snap.Items,
		Note:      snap.Note,
	})
}

// calculationResponse is the calculate wire shape.
type calculationResponse struct {
	OK        bool                  `json:"ok"`
	Source    string                `json:"source"`
	UpdatedAt time.Time             `json:"updatedAt"`
	Text      string                `json:"text"`
	Parsed    official.ParsedResult `json:"parsed"`
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req official.CalculationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}

	result, err := s.calc.Calculate(r.Context(), req)
	if err != nil {
		status := http.StatusBadGateway
		if official.IsValidationError(err) {
			status = http.StatusBadRequest
		}
		writeError(w, status, official.ErrorKind(err))
		return
	}

	writeJSON(w, http.StatusOK, calculationResponse{
		OK:        true,
		Source:    result.Source,
		UpdatedAt: result.ComputedAt,
		Text:      result.Text,
		Parsed:    result.Parsed,
	})
}

func (s *Server) handleVisits(w http.ResponseWriter, r *http.Request) {
	fp := visits.Fingerprint(clientIP(r), r.UserAgent())
	stats, err := s.visits.Record(fp)
	if err != nil {
		s.log.Error("visit update failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "VISITS_COUNTER_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"totalVisits":  stats.TotalVisits,
		"updatedAt":    stats.UpdatedAt,
		"countedVisit": stats.CountedVisit,
	})
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var sub contact.Submission
	if err := decodeBody(w, r, &sub); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}

	if !s.limiter.Allow(clientIP(r)) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"ok":      false,
			"error":   "RATE_LIMIT",
			"message": "Demasiados intentos. Espere unos minutos.",
		})
		return
	}

	validation := contact.Validate(sub)
	if validation.IsSpam {
		// Bots get the success path so the honeypot stays invisible.
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"message": "Consulta enviada correctamente",
		})
		return
	}

	if len(validation.Errors) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"ok":      false,
			"error":   "VALIDATION_ERROR",
			"message": validation.Errors[0],
			"issues":  validation.Errors,
		})
		return
	}

	err := s.sender.Send(validation.Cleaned, contact.Meta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if strings.Contains(err.Error(), contact.ErrNotConfigured) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":      false,
				"error":   contact.ErrNotConfigured,
				"message": "Servicio de correo no configurado en el servidor",
			})
			return
		}
		s.log.Error("contact send failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"ok":      false,
			"error":   contact.ErrSendFailed,
			"message": "No se pudo enviar la consulta. Intente nuevamente.",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": "Consulta enviada. Le responderemos pronto.",
	})
}

// ============================================================
// Helpers
// ============================================================

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer io.Copy(io.Discard, body) //nolint:errcheck

	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// clientIP returns the request's client address. middleware.RealIP has
// already folded X-Forwarded-For / X-Real-IP into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, kind string) {
	writeJSON(w, status, map[string]any{
		"ok":    false,
		"error": kind,
	})
}
