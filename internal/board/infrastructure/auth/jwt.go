// Package auth verifies and issues the bearer tokens realtime connections
// present.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrMissingSecret   = errors.New("jwt secret not configured")
)

// Identity is the user a connection acts as.
type Identity struct {
	UserID uuid.UUID
	Name   string
	Email  string
}

// Verifier turns an opaque credential into an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Claims are the token claims.
type Claims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// JWTConfig configures signing and verification.
type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// JWTVerifier validates HS256 tokens and, when a directory is set, checks
// that the subject is still a registered user.
type JWTVerifier struct {
	secret    []byte
	issuer    string
	directory user.Directory
	now       func() time.Time
}

// NewJWTVerifier creates a verifier. directory may be nil.
func NewJWTVerifier(cfg JWTConfig, directory user.Directory) (*JWTVerifier, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	return &JWTVerifier{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		directory: directory,
		now:       time.Now,
	}, nil
}

func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrUnauthenticated
	}

	claims := &Claims{}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrUnauthenticated)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrUnauthenticated)
	}
	id := &Identity{UserID: userID, Name: claims.Name, Email: claims.Email}

	if v.directory != nil {
		u, err := v.directory.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				return nil, fmt.Errorf("%w: unknown user", ErrUnauthenticated)
			}
			return nil, err
		}
		id.Name = u.Name
		id.Email = u.Email
	}
	return id, nil
}

// Issuer mints tokens for registered users.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer.
func NewIssuer(cfg JWTConfig) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Issuer{secret: []byte(cfg.Secret), issuer: cfg.Issuer, ttl: cfg.TTL, now: time.Now}, nil
}

// Issue signs a token for u.
func (i *Issuer) Issue(u *user.User) (string, error) {
	now := i.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
		Name:  u.Name,
		Email: u.Email,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}
