// Package fakeapi is an in-memory implementation of the document extraction
// backend. It serves the same REST contract under /api, issues real HS256
// tokens and hashes passwords with bcrypt, and lets tests inject failures or
// hold requests in flight.
package fakeapi

import (
	"context"
	"crypto/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Route names accepted by FailNext, Hold and Hits.
const (
	RouteRegister      = "register"
	RouteLogin         = "login"
	RouteLogout        = "logout"
	RouteProfile       = "profile"
	RouteListDocuments = "list-documents"
	RouteGetDocument   = "get-document"
	RouteUpload        = "upload"
	RouteExtracted     = "extracted-data"
	RouteUpdateData    = "update-extracted-data"
	RouteDelete        = "delete-document"
	RouteExport        = "export"
	RouteSend          = "send-message"
	RouteHistory       = "chat-history"
	RouteClearHistory  = "clear-history"
)

// MaxUploadSize bounds an upload body.
const MaxUploadSize = 10 << 20

type user struct {
	ID        int64
	Name      string
	Email     string
	hash      []byte
	CreatedAt time.Time
}

type document struct {
	ID        int64
	UserID    int64
	Filename  string
	FileType  string
	FilePath  string
	FileSize  int64
	Status    string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

type message struct {
	ID        int64
	Sender    string // "user" or "ai"
	Text      string
	CreatedAt time.Time
}

type failure struct {
	status int
	detail string
}

// Server holds all backend state. It is safe for concurrent use.
type Server struct {
	secret       []byte
	tokenTTL     time.Duration
	bcryptCost   int
	processDelay time.Duration
	now          func() time.Time
	log          zerolog.Logger
	validate     *validator.Validate
	extract      func(id int64, filename string, created time.Time) map[string]any

	mu          sync.Mutex
	nextID      int64
	users       map[string]*user // by email
	docs        map[int64]*document
	extractions map[int64]map[string]any
	chats       map[int64][]message
	idempotent  map[string]int64 // user:key -> document id
	failures    map[string][]failure
	holds       map[string][]chan struct{}
	hits        map[string]int
	timers      []*time.Timer
}

// Option configures a Server.
type Option func(*Server)

// WithSecret sets the token signing key. A random key is used otherwise.
func WithSecret(secret []byte) Option { return func(s *Server) { s.secret = secret } }

// WithTokenTTL sets token lifetime (default 24h).
func WithTokenTTL(d time.Duration) Option { return func(s *Server) { s.tokenTTL = d } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option { return func(s *Server) { s.bcryptCost = cost } }

// WithProcessing makes uploads finish extraction on their own after d.
// With the default of zero, documents stay pending until Process is called.
func WithProcessing(d time.Duration) Option { return func(s *Server) { s.processDelay = d } }

// WithLogger sets the request logger.
func WithLogger(log zerolog.Logger) Option { return func(s *Server) { s.log = log } }

// WithExtractor replaces the canned extraction result.
func WithExtractor(fn func(id int64, filename string, created time.Time) map[string]any) Option {
	return func(s *Server) { s.extract = fn }
}

// New returns an empty backend.
func New(opts ...Option) *Server {
	s := &Server{
		tokenTTL:    24 * time.Hour,
		bcryptCost:  bcrypt.DefaultCost,
		now:         time.Now,
		log:         zerolog.Nop(),
		validate:    newValidator(),
		extract:     sampleExtraction,
		users:       make(map[string]*user),
		docs:        make(map[int64]*document),
		extractions: make(map[int64]map[string]any),
		chats:       make(map[int64][]message),
		idempotent:  make(map[string]int64),
		failures:    make(map[string][]failure),
		holds:       make(map[string][]chan struct{}),
		hits:        make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.secret) == 0 {
		s.secret = make([]byte, 32)
		_, _ = rand.Read(s.secret)
	}
	return s
}

// Handler returns the HTTP surface, rooted at /api.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.recovery, s.intercept)
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/register", s.register).Methods(http.MethodPost).Name(RouteRegister)
	api.HandleFunc("/auth/login", s.login).Methods(http.MethodPost).Name(RouteLogin)
	api.HandleFunc("/auth/logout", s.authed(s.logout)).Methods(http.MethodPost).Name(RouteLogout)
	api.HandleFunc("/auth/profile", s.authed(s.profile)).Methods(http.MethodGet).Name(RouteProfile)

	api.HandleFunc("/documents", s.authed(s.listDocuments)).Methods(http.MethodGet).Name(RouteListDocuments)
	api.HandleFunc("/documents/upload", s.authed(s.upload)).Methods(http.MethodPost).Name(RouteUpload)
	api.HandleFunc("/documents/{id:[0-9]+}", s.authed(s.getDocument)).Methods(http.MethodGet).Name(RouteGetDocument)
	api.HandleFunc("/documents/{id:[0-9]+}", s.authed(s.deleteDocument)).Methods(http.MethodDelete).Name(RouteDelete)
	api.HandleFunc("/documents/{id:[0-9]+}/extracted-data", s.authed(s.getExtracted)).Methods(http.MethodGet).Name(RouteExtracted)
	api.HandleFunc("/documents/{id:[0-9]+}/extracted-data", s.authed(s.updateExtracted)).Methods(http.MethodPut).Name(RouteUpdateData)
	api.HandleFunc("/documents/{id:[0-9]+}/export/{format}", s.authed(s.export)).Methods(http.MethodGet).Name(RouteExport)

	api.HandleFunc("/chat/message", s.authed(s.sendMessage)).Methods(http.MethodPost).Name(RouteSend)
	api.HandleFunc("/chat/history/{id:[0-9]+}", s.authed(s.history)).Methods(http.MethodGet).Name(RouteHistory)
	api.HandleFunc("/chat/history/{id:[0-9]+}", s.authed(s.clearHistory)).Methods(http.MethodDelete).Name(RouteClearHistory)

	return router
}

// Close stops pending background processing.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

// FailNext makes the next request to route answer status with detail
// instead of running. Calls queue up.
func (s *Server) FailNext(route string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], failure{status: status, detail: detail})
}

// Hold parks the next request to route until release is called or the
// request is cancelled. release is idempotent.
func (s *Server) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[route] = append(s.holds[route], ch)
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Hits returns how many requests reached route.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// intercept applies Hold and FailNext to the matched route.
func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := ""
		if cur := mux.CurrentRoute(r); cur != nil {
			route = cur.GetName()
		}

		s.mu.Lock()
		s.hits[route]++
		var hold chan struct{}
		if q := s.holds[route]; len(q) > 0 {
			hold, s.holds[route] = q[0], q[1:]
		}
		var fail *failure
		if q := s.failures[route]; len(q) > 0 {
			f := q[0]
			fail, s.failures[route] = &f, q[1:]
		}
		s.mu.Unlock()

		if hold != nil {
			if !wait(r.Context(), hold) {
				return
			}
		}
		if fail != nil {
			writeDetail(w, fail.status, fail.detail)
			return
		}
		s.log.Debug().Str("route", route).Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r)
	})
}

func wait(ctx context.Context, ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Server) allocID() int64 {
	s.nextID++
	return s.nextID
}
