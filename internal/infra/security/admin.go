package security

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const adminScope = "admin"

var (
	// ErrAdminCredentialMissing means no bearer credential was presented.
	ErrAdminCredentialMissing = errors.New("admin credential missing")
	// ErrAdminCredentialRejected means the credential was presented but is not valid.
	ErrAdminCredentialRejected = errors.New("admin credential rejected")
)

// AdminClaims is the JWT payload accepted by the admin gate.
type AdminClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// AdminPolicy accepts either a static token or an HS256 JWT with scope admin.
type AdminPolicy struct {
	token  []byte
	secret []byte
	issuer string
	now    func() time.Time
}

// NewAdminPolicy builds the gate. At least one of token or secret must be set.
func NewAdminPolicy(token, jwtSecret, issuer string) (*AdminPolicy, error) {
	token = strings.TrimSpace(token)
	jwtSecret = strings.TrimSpace(jwtSecret)
	if token == "" && jwtSecret == "" {
		return nil, errors.New("admin policy requires a token or a jwt secret")
	}

	p := &AdminPolicy{
		issuer: strings.TrimSpace(issuer),
		now:    time.Now,
	}
	if token != "" {
		p.token = []byte(token)
	}
	if jwtSecret != "" {
		p.secret = []byte(jwtSecret)
	}

	return p, nil
}

// Authorize checks a bearer credential.
func (p *AdminPolicy) Authorize(credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return ErrAdminCredentialMissing
	}

	if len(p.token) > 0 && subtle.ConstantTimeCompare([]byte(credential), p.token) == 1 {
		return nil
	}

	if len(p.secret) > 0 && strings.Count(credential, ".") == 2 {
		if err := p.verifyJWT(credential); err != nil {
			return fmt.Errorf("%w: %v", ErrAdminCredentialRejected, err)
		}
		return nil
	}

	return ErrAdminCredentialRejected
}

func (p *AdminPolicy) verifyJWT(raw string) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	var claims AdminClaims
	if _, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, opts...); err != nil {
		return err
	}

	for _, scope := range strings.Fields(claims.Scope) {
		if scope == adminScope {
			return nil
		}
	}

	return errors.New("token lacks admin scope")
}

// IssueAdminToken signs an HS256 admin JWT valid for ttl.
func IssueAdminToken(secret, issuer, subject string, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	claims := AdminClaims{
		Scope: adminScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}
