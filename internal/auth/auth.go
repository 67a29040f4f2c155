// Package auth handles restaurant owner accounts and cookie sessions.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/example/tablebook/internal/db"
	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOwnerExists        = errors.New("owner already exists")
)

// Owners stores owner credentials.
type Owners interface {
	Create(ctx context.Context, email, passwordHash string) (int64, error)
	Credentials(ctx context.Context, email string) (id int64, passwordHash string, err error)
}

type Store struct {
	sc     *securecookie.SecureCookie
	owners Owners
}

type ctxKey string

const ownerIDKey ctxKey = "ownerID"

const sessionTTL = 14 * 24 * time.Hour

func NewStore(owners Owners, hashKey, blockKey []byte) *Store {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(sessionTTL.Seconds()))
	return &Store{sc: sc, owners: owners}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) CreateOwner(ctx context.Context, email, password string) (int64, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return 0, errors.New("email and password are required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return 0, err
	}
	return s.owners.Create(ctx, email, hash)
}

func (s *Store) Authenticate(ctx context.Context, email, password string) (int64, error) {
	id, hash, err := s.owners.Credentials(ctx, normalizeEmail(email))
	if db.IsNotFound(err) {
		return 0, ErrInvalidCredentials
	}
	if err != nil {
		return 0, err
	}
	if !CheckPassword(hash, password) {
		return 0, ErrInvalidCredentials
	}
	return id, nil
}

type Session struct {
	OwnerID int64
}

const cookieName = "tablebook_session"

func (s *Store) SetSession(w http.ResponseWriter, r *http.Request, ownerID int64) error {
	encoded, err := s.sc.Encode(cookieName, map[string]any{"oid": ownerID, "v": 1})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	return nil
}

func (s *Store) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Store) GetSession(r *http.Request) (Session, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return Session{}, false
	}
	val := map[string]any{}
	if err := s.sc.Decode(cookieName, c.Value, &val); err != nil {
		return Session{}, false
	}
	// securecookie gob-decodes ints as int64 but JSON encoders yield float64.
	switch oid := val["oid"].(type) {
	case int64:
		if oid > 0 {
			return Session{OwnerID: oid}, true
		}
	case float64:
		if oid > 0 {
			return Session{OwnerID: int64(oid)}, true
		}
	}
	return Session{}, false
}

// WithOwner attaches the session owner, if any, to the request context.
func (s *Store) WithOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess, ok := s.GetSession(r); ok {
			r = r.WithContext(context.WithValue(r.Context(), ownerIDKey, sess.OwnerID))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOwner rejects requests without a valid session.
func (s *Store) RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.GetSession(r)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "message": "login required"})
			return
		}
		ctx := context.WithValue(r.Context(), ownerIDKey, sess.OwnerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func OwnerIDFromContext(ctx context.Context) (int64, bool) {
	oid, ok := ctx.Value(ownerIDKey).(int64)
	return oid, ok
}

// PGOwners keeps owners in the owners table.
type PGOwners struct {
	db *db.DB
}

func NewPGOwners(d *db.DB) *PGOwners { return &PGOwners{db: d} }

func (p *PGOwners) Create(ctx context.Context, email, hash string) (int64, error) {
	var id int64
	err := p.db.QueryRow(ctx, `INSERT INTO owners(email, password_bcrypt) VALUES ($1,$2) RETURNING id`, email, hash).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, ErrOwnerExists
	}
	return id, err
}

func (p *PGOwners) Credentials(ctx context.Context, email string) (int64, string, error) {
	var id int64
	var hash string
	err := p.db.QueryRow(ctx, `SELECT id, password_bcrypt FROM owners WHERE email=$1`, email).Scan(&id, &hash)
	if err != nil {
		return 0, "", db.WrapNotFound(err)
	}
	return id, hash, nil
}

// MemoryOwners is an in-process owner table.
type MemoryOwners struct {
	mu     sync.Mutex
	nextID int64
	byMail map[string]memoryOwner
}

type memoryOwner struct {
	id   int64
	hash string
}

func NewMemoryOwners() *MemoryOwners {
	return &MemoryOwners{nextID: 1, byMail: map[string]memoryOwner{}}
}

func (m *MemoryOwners) Create(_ context.Context, email, hash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byMail[email]; ok {
		return 0, ErrOwnerExists
	}
	id := m.nextID
	m.nextID++
	m.byMail[email] = memoryOwner{id: id, hash: hash}
	return id, nil
}

// Put stores an owner under a fixed id, as seed files do.
func (m *MemoryOwners) Put(id int64, email, hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byMail[normalizeEmail(email)] = memoryOwner{id: id, hash: hash}
	if id >= m.nextID {
		m.nextID = id + 1
	}
}

func (m *MemoryOwners) Credentials(_ context.Context, email string) (int64, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byMail[email]
	if !ok {
		return 0, "", db.ErrNotFound
	}
	return o.id, o.hash, nil
}
