package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultSessionTTL = 24 * time.Hour

// Claims is the signed session payload. The subject is the normalized email
// of the verified user.
type Claims struct {
	jwt.RegisteredClaims
}

// Session is a validated, still-active session.
type Session struct {
	ID        string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RevocationStore tracks revoked session ids until their natural expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

type ManagerConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

// Manager issues and validates signed session tokens. Logout revokes the
// token id so a replayed token fails validation before its expiry.
type Manager struct {
	secret      []byte
	issuer      string
	ttl         time.Duration
	now         func() time.Time
	revocations RevocationStore
}

func NewManager(cfg ManagerConfig, revocations RevocationStore) (*Manager, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, fmt.Errorf("session: signing secret is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if revocations == nil {
		revocations = NewMemoryRevocationStore()
	}
	return &Manager{
		secret:      []byte(secret),
		issuer:      strings.TrimSpace(cfg.Issuer),
		ttl:         ttl,
		now:         now,
		revocations: revocations,
	}, nil
}

// Issue creates a signed session token for a verified email.
func (m *Manager) Issue(_ context.Context, email string) (string, Session, error) {
	if m == nil {
		return "", Session{}, fmt.Errorf("session: manager is nil")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", Session{}, fmt.Errorf("session: email is required")
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)
	sessionID := uuid.NewString()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   email,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("session: sign token: %w", err)
	}
	return signed, Session{
		ID:        sessionID,
		Email:     email,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate parses and verifies a token and checks the revocation list.
func (m *Manager) Validate(ctx context.Context, tokenString string) (Session, error) {
	if m == nil {
		return Session{}, fmt.Errorf("session: manager is nil")
	}
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Session{}, fmt.Errorf("session: token is required")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("session: unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return m.now().UTC() }))
	if err != nil {
		return Session{}, fmt.Errorf("session: parse token: %w", err)
	}
	if !token.Valid {
		return Session{}, fmt.Errorf("session: token is invalid")
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return Session{}, fmt.Errorf("session: token issuer mismatch")
	}

	revoked, err := m.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, fmt.Errorf("session: check revocation: %w", err)
	}
	if revoked {
		return Session{}, fmt.Errorf("session: token has been revoked")
	}

	session := Session{
		ID:    claims.ID,
		Email: claims.Subject,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return session, nil
}

// Revoke invalidates a session until its natural expiry.
func (m *Manager) Revoke(ctx context.Context, session Session) error {
	if m == nil {
		return fmt.Errorf("session: manager is nil")
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session: session id is required")
	}
	until := session.ExpiresAt
	if until.IsZero() {
		until = m.now().UTC().Add(m.ttl)
	}
	return m.revocations.Revoke(ctx, session.ID, until)
}

// TTL reports the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	if m == nil {
		return 0
	}
	return m.ttl
}
