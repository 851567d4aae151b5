package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/cosmetica/clinic-booking/pkg/logging"
)

var (
	// ErrInvalidCredentials is deliberately generic: it does not say whether the email exists.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	ErrNoSession          = errors.New("auth: no active session")
	ErrUserNotFound       = errors.New("auth: admin user not found")
)

const revokedKeyPrefix = "admin:session:revoked:"

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// unknownUserHash is compared against on the unknown-email path so that both
// failures cost one bcrypt comparison.
func unknownUserHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("unknown-admin-user"), bcrypt.DefaultCost)
	})
	return dummyHash
}

// Users looks up admin logins.
type Users interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// Session is an authenticated admin session.
type Session struct {
	ID        string    `json:"-"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service issues and validates admin sessions. Tokens are HS256 JWTs; sign-out
// records the token id in Redis until the token would have expired.
type Service struct {
	users   Users
	redis   *redis.Client
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
	compare func(hash, password []byte) error
	logger  *logging.Logger
}

func NewService(users Users, redisClient *redis.Client, secret string, ttl time.Duration, logger *logging.Logger) *Service {
	if users == nil {
		panic("auth: users store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{
		users:   users,
		redis:   redisClient,
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		compare: bcrypt.CompareHashAndPassword,
		logger:  logger,
	}
}

// SignIn verifies the password and issues a session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		_ = s.compare(unknownUserHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := s.compare([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	session := &Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: now.Add(s.ttl),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("auth: sign token: %w", err)
	}
	session.Token = signed
	s.logger.Info("admin signed in", "user_id", user.ID)
	return session, nil
}

// CurrentSession returns ErrNoSession when the token is missing, invalid, expired or revoked.
func (s *Service) CurrentSession(ctx context.Context, token string) (*Session, error) {
	session, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	if s.redis != nil {
		n, err := s.redis.Exists(ctx, revokedKeyPrefix+session.ID).Result()
		if err != nil {
			return nil, fmt.Errorf("auth: check revocation: %w", err)
		}
		if n > 0 {
			return nil, ErrNoSession
		}
	}
	return session, nil
}

// SignOut revokes the token. Signing out an invalid token is a no-op.
func (s *Service) SignOut(ctx context.Context, token string) error {
	session, err := s.parse(token)
	if err != nil {
		return nil
	}
	if s.redis == nil {
		return nil
	}
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, revokedKeyPrefix+session.ID, session.UserID, ttl).Err(); err != nil {
		return fmt.Errorf("auth: revoke session: %w", err)
	}
	s.logger.Info("admin signed out", "user_id", session.UserID)
	return nil
}

func (s *Service) parse(token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(s.secret) == 0 {
		return nil, ErrNoSession
	}
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || c.ID == "" || c.ExpiresAt == nil {
		return nil, ErrNoSession
	}
	return &Session{
		ID:        c.ID,
		UserID:    c.Subject,
		Email:     c.Email,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// HashPassword returns a bcrypt hash suitable for admin_users.password_hash.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("auth: password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}
