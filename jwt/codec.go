package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm names an HMAC signing algorithm.
type Algorithm string

const (
	HS256 Algorithm = "HS256"
	HS384 Algorithm = "HS384"
	HS512 Algorithm = "HS512"
)

const (
	typeAccess  = "at+jwt"
	typeRefresh = "rt+jwt"

	// MinSecretBytes is the shortest accepted signing secret.
	MinSecretBytes = 32
)

var (
	// ErrMalformed is returned for input that is not a well-formed token.
	ErrMalformed = errors.New("token malformed")
	// ErrSignature is returned when the signature or algorithm does not verify.
	ErrSignature = errors.New("token signature invalid")
	// ErrWrongType is returned when an access token is presented as a
	// refresh token or the reverse.
	ErrWrongType = errors.New("token type mismatch")
	// ErrMissingClaims is returned when a verified token lacks required claims.
	ErrMissingClaims = errors.New("token claims incomplete")
	// ErrExpired is returned when now is at or after expires_at.
	ErrExpired = errors.New("token expired")
)

// Config configures a Codec.
type Config struct {
	Secret     []byte
	Algorithm  Algorithm
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Codec signs and verifies access and refresh tokens. It performs no I/O and
// is safe for concurrent use.
type Codec struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if len(cfg.Secret) < MinSecretBytes {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretBytes)
	}
	if cfg.AccessTTL < time.Second || cfg.RefreshTTL < time.Second {
		return nil, errors.New("jwt TTLs must be at least one second")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("jwt refresh TTL must exceed access TTL")
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = HS256
	}

	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case HS256:
		method = jwt.SigningMethodHS256
	case HS384:
		method = jwt.SigningMethodHS384
	case HS512:
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported jwt algorithm %q", cfg.Algorithm)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Codec{
		secret:     secret,
		method:     method,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{method.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// EncodeAccess stamps issued_at/expires_at on claims and signs them.
func (c *Codec) EncodeAccess(claims *AccessClaims) (string, error) {
	c.stamp(claims, c.accessTTL)
	return c.sign(typeAccess, claims)
}

// EncodeRefresh stamps issued_at/expires_at on claims and signs them.
// claims.SessionID must already be set.
func (c *Codec) EncodeRefresh(claims *RefreshClaims) (string, error) {
	if claims.SessionID == "" {
		return "", ErrMissingClaims
	}
	c.stamp(&claims.AccessClaims, c.refreshTTL)
	return c.sign(typeRefresh, claims)
}

// DecodeAccess verifies an access token and returns its claims.
func (c *Codec) DecodeAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.verify(token, typeAccess, claims); err != nil {
		return nil, err
	}
	if err := c.checkTimes(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// DecodeRefresh verifies a refresh token and returns its claims.
func (c *Codec) DecodeRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.verify(token, typeRefresh, claims); err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, ErrMissingClaims
	}
	if err := c.checkTimes(&claims.AccessClaims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *Codec) stamp(claims *AccessClaims, ttl time.Duration) {
	now := c.now().UTC().Truncate(time.Second)
	claims.IssuedAt = now.Unix()
	claims.ExpiresAt = now.Add(ttl).Unix()
}

func (c *Codec) sign(typ string, claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(c.method, claims)
	token.Header["typ"] = typ
	return token.SignedString(c.secret)
}

func (c *Codec) verify(raw, typ string, claims jwt.Claims) error {
	if raw == "" {
		return ErrMalformed
	}
	token, err := c.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return fmt.Errorf("%w: %v", ErrSignature, err)
		default:
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if !token.Valid {
		return ErrSignature
	}
	if got, _ := token.Header["typ"].(string); got != typ {
		return ErrWrongType
	}
	return nil
}

// checkTimes performs the expiry check against the codec clock. A token is
// valid while now < expires_at, both in whole UTC seconds.
func (c *Codec) checkTimes(claims *AccessClaims) error {
	if claims.UserID == "" || claims.ExpiresAt == 0 || claims.ExpiresAt <= claims.IssuedAt {
		return ErrMissingClaims
	}
	now := c.now().UTC().Unix()
	if now >= claims.ExpiresAt {
		return ErrExpired
	}
	return nil
}
