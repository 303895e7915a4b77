package portal

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/medspa-portal/internal/model"
)

const sessionIssuer = "medspa-portal"

// Session is an issued provider session token.
type Session struct {
	Token     string    `json:"token"`
	Provider  string    `json:"provider"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims are the JWT claims of a provider session.
type Claims struct {
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// Login exchanges a provider access code for a signed session token.
func (s *Service) Login(ctx context.Context, code string) (*Session, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, invalid("portal: access code is required")
	}
	if len(s.cfg.JWTSecret) == 0 {
		return nil, eris.Wrap(ErrUnavailable, "portal: session signing key")
	}

	provider := s.matchCode(code)
	if provider == "" {
		zap.L().Warn("portal: rejected provider login")
		return nil, eris.Wrap(ErrUnauthorized, "portal: invalid access code")
	}

	now := s.now().UTC()
	expires := now.Add(s.cfg.SessionTTL)
	claims := Claims{
		Provider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   provider,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.JWTSecret)
	if err != nil {
		return nil, eris.Wrap(err, "portal: sign session")
	}

	s.Audit(ctx, provider, model.AuditLogin, "", "")
	return &Session{Token: token, Provider: provider, ExpiresAt: expires.Truncate(time.Second)}, nil
}

// matchCode compares code against every configured code in constant time
// and returns the provider name, or "". Codes are case-insensitive: viper
// lowercases map keys when loading auth.provider_codes.
func (s *Service) matchCode(code string) string {
	code = strings.ToLower(code)
	var provider string
	for c, name := range s.cfg.ProviderCodes {
		if subtle.ConstantTimeCompare([]byte(strings.ToLower(c)), []byte(code)) == 1 {
			provider = name
		}
	}
	return provider
}

// VerifySession validates a session token and returns its claims.
func (s *Service) VerifySession(token string) (*Claims, error) {
	if token == "" {
		return nil, eris.Wrap(ErrUnauthorized, "portal: missing session")
	}
	if len(s.cfg.JWTSecret) == 0 {
		return nil, eris.Wrap(ErrUnavailable, "portal: session signing key")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.cfg.JWTSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, eris.Wrapf(ErrUnauthorized, "portal: invalid session: %v", err)
	}
	if claims.Provider == "" {
		return nil, eris.Wrap(ErrUnauthorized, "portal: session has no provider")
	}
	return claims, nil
}

type providerKey struct{}

// WithProvider returns a context carrying the authenticated provider name.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey{}, provider)
}

// ProviderFrom returns the provider stored by WithProvider, or "".
func ProviderFrom(ctx context.Context) string {
	p, _ := ctx.Value(providerKey{}).(string)
	return p
}
