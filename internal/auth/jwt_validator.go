package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var errMissingSubject = errors.New("auth: token missing subject")

// TokenValidator checks the claims of a shopper access token. The subject
// claim carries the cart owner id and must be present.
type TokenValidator struct {
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
	Algorithms []jwa.SignatureAlgorithm
}

// Validate ensures the token was signed with an accepted algorithm, is within
// its validity window and names the expected issuer, audience and subject.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	if algorithm == "" {
		return errors.New("auth: token missing algorithm")
	}
	if len(v.Algorithms) > 0 && !slices.Contains(v.Algorithms, algorithm) {
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}

	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	if err := jwt.Validate(tok, options...); err != nil {
		return err
	}
	if strings.TrimSpace(tok.Subject()) == "" {
		return errMissingSubject
	}
	return nil
}
