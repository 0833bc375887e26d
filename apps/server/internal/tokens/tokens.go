// Package tokens issues and checks short-lived reconnection tokens scoped to
// one (game, player) pair.
package tokens

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	jwt "github.com/form3tech-oss/jwt-go"
	"go.uber.org/zap"

	"holdem-live/holdem"
)

const (
	DefaultTTL  = 15 * time.Minute
	secretBytes = 32
	jtiBytes    = 16
)

// TokenError marks an authorization failure.
type TokenError string

func (e TokenError) Error() string { return string(e) }

var (
	ErrTokenInvalid = TokenError("token invalid")
	ErrTokenExpired = TokenError("token expired")
)

func IsTokenError(err error) bool {
	var te TokenError
	return errors.As(err, &te)
}

type Token struct {
	Token     string    `json:"token"`
	GameID    string    `json:"gameId"`
	PlayerID  string    `json:"playerId"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StateSource finds a game that is live or can be restored.
type StateSource interface {
	State(ctx context.Context, gameID string) (holdem.GameState, error)
}

type Options struct {
	TTL    time.Duration
	Secret []byte
	Now    func() time.Time
	Logger *zap.Logger
}

type issued struct {
	gameID    string
	playerID  string
	expiresAt time.Time
}

type Service struct {
	games  StateSource
	ttl    time.Duration
	secret []byte
	now    func() time.Time
	log    *zap.Logger

	mu       sync.Mutex
	registry map[string]issued // jti -> issuance, for Outstanding and Prune
}

type claims struct {
	GameID   string `json:"gid"`
	PlayerID string `json:"pid"`
	jwt.StandardClaims
}

// Valid is a no-op: expiry is checked against the service clock after the
// tuple, so a mismatched token is reported invalid even when expired.
func (c *claims) Valid() error { return nil }

func NewService(games StateSource, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if len(opts.Secret) == 0 {
		opts.Secret = randomBytes(secretBytes)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		games:    games,
		ttl:      opts.TTL,
		secret:   opts.Secret,
		now:      opts.Now,
		log:      opts.Logger,
		registry: make(map[string]issued),
	}
}

// Issue mints a token for playerID in gameID. Earlier tokens for the same
// pair stay valid until they expire.
func (s *Service) Issue(ctx context.Context, gameID, playerID string) (Token, error) {
	state, err := s.games.State(ctx, gameID)
	if err != nil {
		return Token{}, err
	}
	if _, ok := state.Player(playerID); !ok {
		return Token{}, fmt.Errorf("%w: %s", holdem.ErrPlayerNotFound, playerID)
	}

	now := s.now()
	// JWT timestamps are whole seconds.
	issuedAt := time.Unix(now.Unix(), 0).UTC()
	expiresAt := issuedAt.Add(s.ttl)
	jti := base64.RawURLEncoding.EncodeToString(randomBytes(jtiBytes))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		GameID:   gameID,
		PlayerID: playerID,
		StandardClaims: jwt.StandardClaims{
			Id:        jti,
			IssuedAt:  issuedAt.Unix(),
			ExpiresAt: expiresAt.Unix(),
		},
	}).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	s.mu.Lock()
	s.registry[jti] = issued{gameID: gameID, playerID: playerID, expiresAt: expiresAt}
	s.mu.Unlock()

	s.log.Debug("[Tokens] issued", zap.String("game", gameID), zap.String("player", playerID), zap.Time("expires_at", expiresAt))
	return Token{
		Token:     signed,
		GameID:    gameID,
		PlayerID:  playerID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate checks raw against the exact (gameID, playerID) tuple. Signature
// and tuple are checked before expiry. Validity does not depend on the
// issuance registry, so tokens signed with the same secret survive a restart.
func (s *Service) Validate(gameID, playerID, raw string) error {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return ErrTokenInvalid
	}
	if c.GameID != gameID || c.PlayerID != playerID || c.Id == "" {
		return ErrTokenInvalid
	}
	if !s.now().Before(time.Unix(c.ExpiresAt, 0)) {
		return ErrTokenExpired
	}
	return nil
}

// Prune forgets expired issuances and returns how many were dropped.
func (s *Service) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for jti, rec := range s.registry {
		if !now.Before(rec.expiresAt) {
			delete(s.registry, jti)
			n++
		}
	}
	return n
}

// Outstanding reports how many issued tokens are still tracked.
func (s *Service) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.registry)
}

func randomBytes(n int) []byte {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return buf
}
