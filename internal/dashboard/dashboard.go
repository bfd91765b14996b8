// Package dashboard serves a read-only JSON view of memberships, pending
// requests, settings and confirmed old members for human inspection.
package dashboard

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

type Config struct {
	Token string
	// RateLimit is requests per minute per client IP; zero disables it.
	RateLimit int
}

// Sources are the stores the dashboard reads from.
type Sources struct {
	Memberships types.MembershipStore
	Pending     types.PendingStore
	Settings    types.SettingsStore
	OldMembers  types.OldMemberStore
}

type Server struct {
	src Sources
	cfg Config
}

func NewServer(src Sources, cfg Config) *Server {
	return &Server{src: src, cfg: cfg}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(httprate.Limit(
				s.cfg.RateLimit,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					log.Printf("Dashboard: rate limit exceeded for %s %s", r.RemoteAddr, r.URL.Path)
					writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				}),
			))
		}
		r.Use(s.requireToken)
		r.Get("/memberships", s.listMemberships)
		r.Get("/memberships/{userID}", s.getMembership)
		r.Get("/pending", s.listPending)
		r.Get("/settings", s.listSettings)
		r.Get("/old-members", s.listOldMembers)
	})
	return r
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || s.cfg.Token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Token)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Dashboard: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
