package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const defaultJWKSCacheTTL = 10 * time.Minute

// GoogleIssuers are the issuer values Google stamps on ID tokens.
var GoogleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

var (
	ErrInvalidVerifierConfig = errors.New("auth: invalid google verifier config")

	errMissingAudienceConfig = errors.New("audience configuration required")
	errMissingJWKSURL        = errors.New("jwks url configuration required")
	errNoAllowedIssuers      = errors.New("no allowed issuers configured")

	errMissingToken         = errors.New("id token must not be empty")
	errMissingKeyIdentifier = errors.New("token missing key identifier")
	errKeyNotFound          = errors.New("signing key not found in JWKS")
	errNoUsableKeys         = errors.New("jwks document contained no usable keys")
	errUntrustedIssuer      = errors.New("token issuer not allowed")
	errMissingSubject       = errors.New("token missing subject claim")
	errMissingEmail         = errors.New("token missing email claim")
	errUnverifiedEmail      = errors.New("token email not verified")
)

// GoogleVerifierConfig configures a GoogleVerifier.
// AllowedIssuers defaults to GoogleIssuers.
type GoogleVerifierConfig struct {
	Audience       string
	JWKSURL        string
	AllowedIssuers []string
	HTTPClient     *http.Client
	CacheTTL       time.Duration
	Logger         *zap.Logger
	Clock          func() time.Time
}

// GoogleClaims is the verified identity carried by a Google ID token.
type GoogleClaims struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// GoogleVerifier checks RS256 Google ID tokens against the published JWKS.
// Keys are cached for CacheTTL and refetched early when a token names an unknown key.
type GoogleVerifier struct {
	audience   string
	jwksURL    string
	issuers    map[string]bool
	httpClient *http.Client
	ttl        time.Duration
	logger     *zap.Logger
	clock      func() time.Time

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	refreshedAt time.Time
}

// NewGoogleVerifier validates cfg and returns a verifier. No keys are fetched until the first Verify.
func NewGoogleVerifier(cfg GoogleVerifierConfig) (*GoogleVerifier, error) {
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerifierConfig, errMissingAudienceConfig)
	}
	jwksURL := strings.TrimSpace(cfg.JWKSURL)
	if jwksURL == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerifierConfig, errMissingJWKSURL)
	}

	allowed := cfg.AllowedIssuers
	if allowed == nil {
		allowed = GoogleIssuers
	}
	issuers := make(map[string]bool, len(allowed))
	for _, issuer := range allowed {
		if trimmed := strings.TrimSpace(issuer); trimmed != "" {
			issuers[trimmed] = true
		}
	}
	if len(issuers) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerifierConfig, errNoAllowedIssuers)
	}

	verifier := &GoogleVerifier{
		audience:   audience,
		jwksURL:    jwksURL,
		issuers:    issuers,
		httpClient: cfg.HTTPClient,
		ttl:        cfg.CacheTTL,
		logger:     cfg.Logger,
		clock:      cfg.Clock,
	}
	if verifier.httpClient == nil {
		verifier.httpClient = http.DefaultClient
	}
	if verifier.ttl <= 0 {
		verifier.ttl = defaultJWKSCacheTTL
	}
	if verifier.logger == nil {
		verifier.logger = zap.NewNop()
	}
	if verifier.clock == nil {
		verifier.clock = time.Now
	}
	return verifier, nil
}

// Verify checks the token signature, audience, expiry, issuer and email claims.
func (v *GoogleVerifier) Verify(ctx context.Context, rawToken string) (GoogleClaims, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return GoogleClaims{}, errMissingToken
	}

	claims := &idTokenClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims,
		func(token *jwt.Token) (interface{}, error) {
			keyID, _ := token.Header["kid"].(string)
			if keyID == "" {
				return nil, errMissingKeyIdentifier
			}
			return v.signingKey(ctx, keyID)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.clock),
	)
	if err != nil {
		return GoogleClaims{}, err
	}

	switch {
	case !v.issuers[claims.Issuer]:
		return GoogleClaims{}, errUntrustedIssuer
	case claims.Subject == "":
		return GoogleClaims{}, errMissingSubject
	case strings.TrimSpace(claims.Email) == "":
		return GoogleClaims{}, errMissingEmail
	case claims.EmailVerified != nil && !*claims.EmailVerified:
		return GoogleClaims{}, errUnverifiedEmail
	}

	return GoogleClaims{
		Subject: claims.Subject,
		Email:   strings.TrimSpace(claims.Email),
		Name:    strings.TrimSpace(claims.Name),
		Picture: strings.TrimSpace(claims.Picture),
	}, nil
}

func (v *GoogleVerifier) signingKey(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	now := v.clock()
	v.mu.RLock()
	key, fresh := v.keys[keyID], now.Sub(v.refreshedAt) < v.ttl
	v.mu.RUnlock()
	if key != nil && fresh {
		return key, nil
	}

	keys, err := v.fetchKeys(ctx)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.keys = keys
	v.refreshedAt = now
	v.mu.Unlock()

	if key := keys[keyID]; key != nil {
		return key, nil
	}
	return nil, errKeyNotFound
}

func (v *GoogleVerifier) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, err
	}
	response, err := v.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch jwks: unexpected status %d", response.StatusCode)
	}

	var document struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(response.Body).Decode(&document); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(document.Keys))
	for _, candidate := range document.Keys {
		if candidate.KeyType != "RSA" || (candidate.Use != "" && candidate.Use != "sig") {
			continue
		}
		key, err := candidate.publicKey()
		if err != nil {
			v.logger.Debug("skipping jwk", zap.String("kid", candidate.KeyID), zap.Error(err))
			continue
		}
		keys[candidate.KeyID] = key
	}
	if len(keys) == 0 {
		return nil, errNoUsableKeys
	}
	v.logger.Debug("jwks refreshed", zap.Int("keys", len(keys)))
	return keys, nil
}

type jsonWebKey struct {
	KeyType  string `json:"kty"`
	KeyID    string `json:"kid"`
	Use      string `json:"use"`
	Modulus  string `json:"n"`
	Exponent string `json:"e"`
}

func (k jsonWebKey) publicKey() (*rsa.PublicKey, error) {
	modulus, err := base64.RawURLEncoding.DecodeString(k.Modulus)
	if err != nil || len(modulus) == 0 {
		return nil, fmt.Errorf("invalid modulus: %v", err)
	}
	exponent, err := base64.RawURLEncoding.DecodeString(k.Exponent)
	if err != nil || len(exponent) == 0 {
		return nil, fmt.Errorf("invalid exponent: %v", err)
	}
	e := new(big.Int).SetBytes(exponent)
	if !e.IsInt64() || e.Int64() < 3 || e.Int64() > 1<<31-1 {
		return nil, errors.New("exponent out of range")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(modulus), E: int(e.Int64())}, nil
}
