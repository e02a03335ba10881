package core

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"openbis/internal/bo"
	"openbis/pkg/api"
	"openbis/pkg/domain"
)

// ErrInvalidSession reports an unknown, expired or logged out session token.
var ErrInvalidSession = errors.New("invalid or expired session")

// Authenticator checks user credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, userID, password string) (bool, error)
}

// AcceptAllAuthenticator lets every user in. It suits installations that
// authenticate in front of the server and must be enabled explicitly.
type AcceptAllAuthenticator struct{}

// Authenticate implements Authenticator.
func (AcceptAllAuthenticator) Authenticate(context.Context, string, string) (bool, error) {
	return true, nil
}

// StaticAuthenticator checks passwords against a fixed map of user ids.
type StaticAuthenticator map[string]string

// Authenticate implements Authenticator.
func (a StaticAuthenticator) Authenticate(_ context.Context, userID, password string) (bool, error) {
	want, ok := a[userID]
	return ok && subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1, nil
}

// PasswordHashAuthenticator checks passwords against bcrypt hashes keyed by
// user id.
type PasswordHashAuthenticator map[string]string

// Authenticate implements Authenticator.
func (a PasswordHashAuthenticator) Authenticate(_ context.Context, userID, password string) (bool, error) {
	hash, ok := a[userID]
	if !ok {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("check password of %s: %w", userID, err)
	}
}

type session struct {
	token    string
	userID   string
	lastSeen time.Time
}

type sessionRegistry struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*session
}

func newSessionRegistry(ttl time.Duration) *sessionRegistry {
	return &sessionRegistry{ttl: ttl, sessions: make(map[string]*session)}
}

func (r *sessionRegistry) open(userID string, now time.Time) session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &session{token: uuid.NewString(), userID: userID, lastSeen: now}
	r.sessions[s.token] = s
	return *s
}

// get returns the live session for token and refreshes its idle timer.
func (r *sessionRegistry) get(token string, now time.Time) (session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[strings.TrimSpace(token)]
	if !ok {
		return session{}, ErrInvalidSession
	}
	if now.Sub(s.lastSeen) > r.ttl {
		delete(r.sessions, s.token)
		return session{}, ErrInvalidSession
	}
	s.lastSeen = now
	return *s, nil
}

func (r *sessionRegistry) close(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[token]; !ok {
		return false
	}
	delete(r.sessions, token)
	return true
}

// Login authenticates a user and opens a session. A user logging in for the
// first time is registered as a person; the very first person of an
// installation becomes instance admin.
func (s *Service) Login(ctx context.Context, userID, password string) (*api.Session, error) {
	userID = strings.TrimSpace(userID)
	var out *api.Session
	err := s.run(ctx, "login", userID, func(ctx context.Context) (string, error) {
		if userID == "" {
			return "", domain.UserFailuref("User id not specified.")
		}
		ok, err := s.auth.Authenticate(ctx, userID, password)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrInvalidSession
		}
		var person domain.Person
		_, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			person, err = ensurePerson(tx, userID)
			return err
		})
		if err != nil {
			return "", err
		}
		sess := s.sessions.open(userID, s.clock.Now())
		return person.ID, s.store.View(ctx, func(view domain.TransactionView) error {
			req, err := s.newRequest(view, sess)
			if err != nil {
				return err
			}
			out = req.tr.Session(req.session)
			return nil
		})
	})
	return out, err
}

func ensurePerson(tx domain.Transaction, userID string) (domain.Person, error) {
	if p, ok := tx.FindPersonByUserID(userID); ok {
		return p, nil
	}
	home, ok := tx.HomeDatabaseInstance()
	if !ok {
		return domain.Person{}, domain.UserFailuref("No home database instance defined.")
	}
	first := len(tx.ListPersons()) == 0
	pbo := bo.NewPersonBO(tx, bo.Session{Instance: home})
	if err := pbo.Register(bo.NewPerson{UserID: userID}); err != nil {
		return domain.Person{}, err
	}
	person, err := pbo.Person()
	if err != nil {
		return domain.Person{}, err
	}
	if first {
		roles := bo.NewRoleAssignmentTable(tx, bo.Session{Person: person, Instance: home})
		if _, err := roles.Add(domain.RoleInstanceAdmin, "", userID); err != nil {
			return domain.Person{}, err
		}
	}
	return person, nil
}

// Logout closes a session. Closing an unknown session is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.run(ctx, "logout", "", func(context.Context) (string, error) {
		s.sessions.close(token)
		return "", nil
	})
}

// GetSession returns the session owner and home instance.
func (s *Service) GetSession(ctx context.Context, token string) (*api.Session, error) {
	var out *api.Session
	err := s.read(ctx, "get_session", token, nil, func(_ context.Context, _ domain.TransactionView, req request) error {
		out = req.tr.Session(req.session)
		return nil
	})
	return out, err
}
