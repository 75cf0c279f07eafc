package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	ErrMalformedToken       = errors.New("malformed token")
	ErrExpiredToken         = errors.New("token expired")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrInvalidTTL           = errors.New("token ttl must be positive")
)

type Claims struct {
	Kind      Kind   `json:"typ"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type Issued struct {
	Token     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Codec struct {
	method *jwt.SigningMethodHMAC
	keys   KeySource
	now    func() time.Time
	newID  func() string
}

type Option func(*Codec)

func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(c *Codec) { c.newID = newID }
}

func NewCodec(alg string, keys KeySource, opts ...Option) (*Codec, error) {
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
	if keys == nil {
		return nil, errors.New("key source is nil")
	}

	c := &Codec{
		method: method,
		keys:   keys,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) Algorithm() string { return c.method.Alg() }

// Issue signs a new token of the given kind with a fresh jti.
func (c *Codec) Issue(kind Kind, subject, sessionID string, ttl time.Duration) (Issued, error) {
	if ttl <= 0 {
		return Issued{}, ErrInvalidTTL
	}
	if subject == "" {
		return Issued{}, errors.New("token subject is empty")
	}

	now := c.now().UTC().Truncate(jwt.TimePrecision)
	exp := now.Add(ttl)
	jti := c.newID()

	claims := Claims{
		Kind:      kind,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	kid, key := c.keys.Active()
	token := jwt.NewWithClaims(c.method, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	if err != nil {
		return Issued{}, fmt.Errorf("sign %s token: %w", kind, err)
	}

	return Issued{Token: signed, JTI: jti, IssuedAt: now, ExpiresAt: exp}, nil
}

// Decode checks signature, structure and expiry. It says nothing about
// whether the token was revoked or is still present in the store.
func (c *Codec) Decode(tokenStr string, kind Kind) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, c.keyFunc,
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	switch {
	case claims.Subject == "":
		return nil, fmt.Errorf("%w: missing sub", ErrMalformedToken)
	case claims.ID == "":
		return nil, fmt.Errorf("%w: missing jti", ErrMalformedToken)
	case claims.IssuedAt == nil:
		return nil, fmt.Errorf("%w: missing iat", ErrMalformedToken)
	case claims.Kind != kind:
		return nil, fmt.Errorf("%w: want %s token, got %q", ErrMalformedToken, kind, claims.Kind)
	}

	return &claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	kid, ok := t.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, errors.New("token has no kid header")
	}
	key, ok := c.keys.Lookup(kid)
	if !ok {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	return key, nil
}
