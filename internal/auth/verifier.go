package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	// IssuerPrefix is prepended to the project id to form the expected issuer.
	IssuerPrefix = "https://securetoken.google.com/"

	maxSubjectLength = 128
)

var (
	// ErrNotConfigured means no verification method is configured.
	ErrNotConfigured = errors.New("auth: no token verification credential configured")

	// ErrInvalidToken wraps every rejection of the token itself.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Verifier turns a raw bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// VerifierOptions configures a JWTVerifier.
type VerifierOptions struct {
	// ProjectID enables RS256 verification against the provider's
	// certificates. It is the expected audience.
	ProjectID string
	CertsURL  string
	// Secret enables HS256 verification.
	Secret     string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Now        func() time.Time
}

// JWTVerifier verifies provider ID tokens (RS256) and locally signed
// tokens (HS256).
type JWTVerifier struct {
	projectID string
	secret    []byte
	certs     *certSource
	now       func() time.Time
}

// NewJWTVerifier creates a verifier. RS256 is enabled when both ProjectID
// and CertsURL are set.
func NewJWTVerifier(opts VerifierOptions) *JWTVerifier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	v := &JWTVerifier{
		projectID: opts.ProjectID,
		now:       opts.Now,
	}
	if opts.Secret != "" {
		v.secret = []byte(opts.Secret)
	}
	if opts.ProjectID != "" && opts.CertsURL != "" {
		v.certs = newCertSource(opts.CertsURL, opts.HTTPClient, opts.Logger, opts.Now)
	}
	return v
}

// Configured reports whether any verification method is available.
func (v *JWTVerifier) Configured() bool {
	return v.certs != nil || len(v.secret) > 0
}

// Verify checks the signature and the registered claims.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if !v.Configured() {
		return nil, ErrNotConfigured
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
		jwt.WithLeeway(5*time.Second),
	)

	claims := jwt.MapClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.key(ctx, t)
	})
	if err != nil {
		if IsConfigError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if parsed.Method.Alg() == jwt.SigningMethodRS256.Alg() {
		if err := v.checkProvider(claims); err != nil {
			return nil, err
		}
	}

	sub, _ := claims.GetSubject()
	if sub == "" || len(sub) > maxSubjectLength {
		return nil, fmt.Errorf("%w: subject must be a non-empty string of at most %d characters", ErrInvalidToken, maxSubjectLength)
	}
	return identityFromClaims(sub, claims), nil
}

func (v *JWTVerifier) key(ctx context.Context, t *jwt.Token) (any, error) {
	switch t.Method.Alg() {
	case jwt.SigningMethodRS256.Alg():
		if v.certs == nil {
			return nil, errors.New("RS256 tokens are not accepted")
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}
		return v.certs.Key(ctx, kid)
	case jwt.SigningMethodHS256.Alg():
		if len(v.secret) == 0 {
			return nil, errors.New("HS256 tokens are not accepted")
		}
		return v.secret, nil
	default:
		return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
	}
}

func (v *JWTVerifier) checkProvider(claims jwt.MapClaims) error {
	aud, _ := claims.GetAudience()
	if !slices.Contains([]string(aud), v.projectID) {
		return fmt.Errorf("%w: audience does not match project", ErrInvalidToken)
	}
	iss, _ := claims.GetIssuer()
	if iss != IssuerPrefix+v.projectID {
		return fmt.Errorf("%w: issuer does not match project", ErrInvalidToken)
	}
	return nil
}

func identityFromClaims(sub string, claims jwt.MapClaims) *Identity {
	str := func(k string) string {
		s, _ := claims[k].(string)
		return s
	}
	copied := make(map[string]any, len(claims)+1)
	for k, val := range claims {
		copied[k] = val
	}
	copied["uid"] = sub
	return &Identity{
		UID:     sub,
		Email:   str("email"),
		Name:    str("name"),
		Picture: str("picture"),
		Claims:  copied,
	}
}

// IsConfigError reports whether err is a server-side verification setup
// problem rather than a bad token.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrCertificates) {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{"credential", "PEM", "private key", "initializeApp"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Diagnostics returns the token's unverified aud, iss, sub, iat and exp as
// slog attributes. The token itself is never included.
func Diagnostics(token string) []any {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return []any{slog.Bool("payload", false)}
	}
	out := make([]any, 0, 5)
	for _, k := range []string{"aud", "iss", "sub", "iat", "exp"} {
		if val, ok := claims[k]; ok {
			out = append(out, slog.Any(k, val))
		}
	}
	return out
}
