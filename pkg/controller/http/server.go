package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
	"github.com/secmon-lab/hackernyous/pkg/usecase"
	"github.com/secmon-lab/hackernyous/pkg/utils/logging"
)

// LinkResolver decodes click tokens issued in digests
type LinkResolver interface {
	Resolve(token string) (userID, articleID string, err error)
}

// ClickUseCase looks up clicked articles and applies preference feedback
type ClickUseCase interface {
	Article(ctx context.Context, articleID string) (*model.Article, error)
	ApplyClickFeedback(ctx context.Context, userID, articleID string) error
}

// ProfileUseCase reads and saves subscriber profiles
type ProfileUseCase interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
	Save(ctx context.Context, in usecase.SaveProfileInput) (*model.Profile, error)
}

type Server struct {
	router    *chi.Mux
	homeURL   string
	links     LinkResolver
	clicks    ClickUseCase
	profileUC ProfileUseCase
	apiToken  string
	dedupTTL  time.Duration
	now       func() time.Time
}

type Options func(*Server)

// WithClickTracking enables GET /r/{token}
func WithClickTracking(links LinkResolver, clicks ClickUseCase) Options {
	return func(s *Server) {
		s.links = links
		s.clicks = clicks
	}
}

// WithProfileAPI enables the profile endpoints. An empty token disables
// authentication, which is only meant for local development.
func WithProfileAPI(profileUC ProfileUseCase, apiToken string) Options {
	return func(s *Server) {
		s.profileUC = profileUC
		s.apiToken = apiToken
	}
}

// WithClickDedupTTL sets how long a repeated click on the same link is ignored
func WithClickDedupTTL(ttl time.Duration) Options {
	return func(s *Server) {
		s.dedupTTL = ttl
	}
}

// WithClock overrides the clock used for click deduplication
func WithClock(now func() time.Time) Options {
	return func(s *Server) {
		s.now = now
	}
}

// WithHomeURL sets the fallback destination of invalid click links
func WithHomeURL(url string) Options {
	return func(s *Server) {
		s.homeURL = url
	}
}

func New(opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:   r,
		homeURL:  "https://news.ycombinator.com/",
		dedupTTL: DefaultClickDedupTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	if s.links != nil && s.clicks != nil {
		dedup := newClickDeduper(s.dedupTTL, s.now)
		r.Get("/r/{token}", redirectHandler(s.links, s.clicks, dedup, s.homeURL))
	}

	if s.profileUC != nil {
		r.Route("/api/users/{userID}/profile", func(r chi.Router) {
			r.Use(apiTokenMiddleware(s.apiToken))
			r.Get("/", getProfileHandler(s.profileUC))
			r.Put("/", putProfileHandler(s.profileUC))
		})
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", accessPath(r),
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// accessPath keeps click tokens out of the access log
func accessPath(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() == "/r/{token}" {
		return "/r/{token}"
	}
	return r.URL.Path
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok")) //nolint:errcheck // header already committed
}
