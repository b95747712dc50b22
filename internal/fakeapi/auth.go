package fakeapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type ctxKey struct{}

type userView struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

func (u *user) view() userView {
	return userView{ID: u.ID, Name: u.Name, Email: u.Email, IsActive: true, CreatedAt: u.CreatedAt}
}

type registerBody struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SeedUser creates an account directly and returns its id.
func (s *Server) SeedUser(name, email, password string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	if _, ok := s.users[key]; ok {
		return 0, errors.New("email already registered")
	}
	u := &user{ID: s.allocID(), Name: name, Email: email, hash: hash, CreatedAt: s.now().UTC()}
	s.users[key] = u
	return u.ID, nil
}

// IssueToken signs a token for email that expires after ttl. A negative ttl
// yields an already expired token.
func (s *Server) IssueToken(email string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if !s.decodeBody(w, r, &body) {
		return
	}
	if _, err := s.SeedUser(body.Name, body.Email, body.Password); err != nil {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	s.respondWithToken(w, body.Email)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if !s.decodeBody(w, r, &body) {
		return
	}
	s.mu.Lock()
	u := s.users[strings.ToLower(body.Email)]
	s.mu.Unlock()
	if u == nil || bcrypt.CompareHashAndPassword(u.hash, []byte(body.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	s.respondWithToken(w, u.Email)
}

func (s *Server) respondWithToken(w http.ResponseWriter, email string) {
	tok, err := s.IssueToken(email, s.tokenTTL)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	s.mu.Lock()
	u := s.users[strings.ToLower(email)].view()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"token": tok, "user": u})
}

// logout is a no-op server side; the client discards the token.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, "Successfully logged out")
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	s.mu.Lock()
	v := u.view()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, v)
}

// authed rejects requests without a valid bearer token for a known user.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := s.authenticate(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	}
}

func (s *Server) authenticate(r *http.Request) (*user, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return nil, errors.New("missing bearer token")
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[strings.ToLower(claims.Subject)]
	if u == nil {
		return nil, errors.New("unknown subject")
	}
	return u, nil
}

func currentUser(r *http.Request) *user {
	u, _ := r.Context().Value(ctxKey{}).(*user)
	return u
}
