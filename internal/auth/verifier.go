package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-cart/internal/common"
)

const defaultJWKSRefresh = 15 * time.Minute

// Config configures token verification. Exactly one of Secret or JWKSURL is
// expected; when both are set the key set wins.
type Config struct {
	Secret      string
	JWKSURL     string
	JWKSRefresh time.Duration
	Issuer      string
	Audience    string
	ClockSkew   time.Duration
	HTTPClient  *http.Client
}

// Verifier turns bearer tokens issued by the identity provider into owner ids.
type Verifier struct {
	secret    []byte
	keys      jwk.Set
	validator TokenValidator
	now       func() time.Time
}

// NewVerifier builds a verifier. A JWKS URL registers a background-refreshed
// key cache bound to ctx.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	v := &Verifier{
		now: time.Now,
		validator: TokenValidator{
			Issuer:    cfg.Issuer,
			Audience:  cfg.Audience,
			ClockSkew: cfg.ClockSkew,
		},
	}
	switch {
	case strings.TrimSpace(cfg.JWKSURL) != "":
		client := cfg.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: 5 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)}
		}
		refresh := cfg.JWKSRefresh
		if refresh <= 0 {
			refresh = defaultJWKSRefresh
		}
		cache := jwk.NewCache(ctx)
		if err := cache.Register(cfg.JWKSURL, jwk.WithHTTPClient(client), jwk.WithMinRefreshInterval(refresh)); err != nil {
			return nil, fmt.Errorf("auth: register jwks: %w", err)
		}
		v.keys = jwk.NewCachedSet(cache, cfg.JWKSURL)
		v.validator.Algorithms = []jwa.SignatureAlgorithm{jwa.RS256, jwa.ES256, jwa.EdDSA}
	case cfg.Secret != "":
		v.secret = []byte(cfg.Secret)
		v.validator.Algorithms = []jwa.SignatureAlgorithm{jwa.HS256}
	default:
		return nil, errors.New("auth: secret or jwks url is required")
	}
	return v, nil
}

// ParseAccessToken validates token and returns its subject.
func (v *Verifier) ParseAccessToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", common.Unauthorized("missing token", nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", invalidToken(err)
	}
	var opt jwt.ParseOption
	if v.keys != nil {
		opt = jwt.WithKeySet(v.keys, jws.WithInferAlgorithmFromKey(true))
	} else {
		if algorithm != jwa.HS256 {
			return "", invalidToken(fmt.Errorf("unexpected token algorithm %s", algorithm))
		}
		opt = jwt.WithKey(algorithm, v.secret)
	}
	parsed, err := jwt.ParseString(trimmed, opt, jwt.WithValidate(false))
	if err != nil {
		return "", invalidToken(err)
	}
	if err := v.validator.Validate(parsed, algorithm, v.now()); err != nil {
		return "", invalidToken(err)
	}
	return strings.TrimSpace(parsed.Subject()), nil
}

func invalidToken(err error) error {
	return common.Unauthorized("invalid token", err)
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("auth: token must carry exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	switch alg {
	case "":
		return "", errors.New("auth: token missing algorithm")
	case jwa.NoSignature:
		return "", errors.New("auth: token uses none algorithm")
	}
	return alg, nil
}
