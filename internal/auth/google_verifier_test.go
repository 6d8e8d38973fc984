package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testGoogleClientID = "test-client"
	testGoogleKeyID    = "test-key"
	testGoogleIssuer   = "https://accounts.google.com"
)

type jwksFixture struct {
	privateKey *rsa.PrivateKey
	server     *httptest.Server
	fetches    atomic.Int32
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	jwksResponse := map[string]any{
		"keys": []any{
			map[string]string{
				"kty": "RSA",
				"alg": "RS256",
				"kid": testGoogleKeyID,
				"use": "sig",
				"n":   encodeBigInt(privateKey.PublicKey.N),
				"e":   encodeBigInt(privateKey.PublicKey.E),
			},
		},
	}

	fixture := &jwksFixture{privateKey: privateKey}
	fixture.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/v3/certs" {
			http.NotFound(w, r)
			return
		}
		fixture.fetches.Add(1)
		_ = json.NewEncoder(w).Encode(jwksResponse)
	}))
	t.Cleanup(fixture.server.Close)

	return fixture
}

func (f *jwksFixture) verifier(t *testing.T) *GoogleVerifier {
	t.Helper()
	return f.verifierWithClock(t, nil)
}

func (f *jwksFixture) verifierWithClock(t *testing.T, clock func() time.Time) *GoogleVerifier {
	t.Helper()
	verifier, err := NewGoogleVerifier(GoogleVerifierConfig{
		Audience:   testGoogleClientID,
		JWKSURL:    f.server.URL + "/oauth2/v3/certs",
		HTTPClient: f.server.Client(),
		CacheTTL:   time.Minute,
		Clock:      clock,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return verifier
}

func (f *jwksFixture) sign(t *testing.T, overrides jwt.MapClaims) string {
	t.Helper()
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"aud":            testGoogleClientID,
		"iss":            testGoogleIssuer,
		"sub":            "google-123",
		"exp":            now.Add(5 * time.Minute).Unix(),
		"iat":            now.Unix(),
		"email":          "Viewer@Example.com",
		"email_verified": true,
		"name":           "Example Viewer",
		"picture":        "https://example.com/avatar.png",
	}
	for key, value := range overrides {
		if value == nil {
			delete(claims, key)
			continue
		}
		claims[key] = value
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testGoogleKeyID
	signedToken, err := token.SignedString(f.privateKey)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signedToken
}

func TestGoogleVerifierValidatesTokenUsingJWKS(t *testing.T) {
	fixture := newJWKSFixture(t)
	verifier := fixture.verifier(t)

	verified, err := verifier.Verify(context.Background(), fixture.sign(t, nil))
	if err != nil {
		t.Fatalf("expected verification to succeed: %v", err)
	}

	if verified.Subject != "google-123" {
		t.Fatalf("unexpected subject %s", verified.Subject)
	}
	if verified.Email != "Viewer@Example.com" {
		t.Fatalf("unexpected email %s", verified.Email)
	}
	if verified.Name != "Example Viewer" || verified.Picture != "https://example.com/avatar.png" {
		t.Fatalf("unexpected profile claims %#v", verified)
	}
}

func TestGoogleVerifierRejectsInvalidClaims(t *testing.T) {
	fixture := newJWKSFixture(t)
	verifier := fixture.verifier(t)

	testCases := []struct {
		name      string
		overrides jwt.MapClaims
		wantErr   error
	}{
		{name: "audience", overrides: jwt.MapClaims{"aud": "unexpected-client"}},
		{name: "issuer", overrides: jwt.MapClaims{"iss": "https://evil.example.com"}, wantErr: errUntrustedIssuer},
		{name: "missing-expiry", overrides: jwt.MapClaims{"exp": nil}, wantErr: jwt.ErrTokenRequiredClaimMissing},
		{name: "expired", overrides: jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()}, wantErr: jwt.ErrTokenExpired},
		{name: "missing-email", overrides: jwt.MapClaims{"email": nil}, wantErr: errMissingEmail},
		{name: "unverified-email", overrides: jwt.MapClaims{"email_verified": false}, wantErr: errUnverifiedEmail},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := verifier.Verify(context.Background(), fixture.sign(t, testCase.overrides))
			if err == nil {
				t.Fatalf("expected verification to fail")
			}
			if testCase.wantErr != nil && !errors.Is(err, testCase.wantErr) {
				t.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
		})
	}
}

func TestGoogleVerifierCachesKeysUntilTTL(t *testing.T) {
	fixture := newJWKSFixture(t)
	now := time.Now()
	verifier := fixture.verifierWithClock(t, func() time.Time { return now })

	for attempt := 0; attempt < 3; attempt++ {
		if _, err := verifier.Verify(context.Background(), fixture.sign(t, nil)); err != nil {
			t.Fatalf("verification %d failed: %v", attempt, err)
		}
	}
	if got := fixture.fetches.Load(); got != 1 {
		t.Fatalf("expected a single jwks fetch, got %d", got)
	}

	now = now.Add(2 * time.Minute)
	if _, err := verifier.Verify(context.Background(), fixture.sign(t, nil)); err != nil {
		t.Fatalf("verification after ttl failed: %v", err)
	}
	if got := fixture.fetches.Load(); got != 2 {
		t.Fatalf("expected a refetch after the ttl, got %d fetches", got)
	}
}

func TestGoogleVerifierRejectsUnknownKey(t *testing.T) {
	fixture := newJWKSFixture(t)
	verifier := fixture.verifier(t)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"aud":   testGoogleClientID,
		"iss":   testGoogleIssuer,
		"sub":   "google-123",
		"email": "viewer@example.com",
		"exp":   time.Now().Add(time.Minute).Unix(),
	})
	token.Header["kid"] = "rotated-key"
	signedToken, err := token.SignedString(otherKey)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	_, err = verifier.Verify(context.Background(), signedToken)
	if !errors.Is(err, errKeyNotFound) {
		t.Fatalf("expected key not found error, got %v", err)
	}
}

func TestNewGoogleVerifierRequiresAudienceAndJWKS(t *testing.T) {
	_, err := NewGoogleVerifier(GoogleVerifierConfig{
		Audience:       "",
		JWKSURL:        "https://example.com/jwks",
		AllowedIssuers: []string{testGoogleIssuer},
	})
	if !errors.Is(err, ErrInvalidVerifierConfig) {
		t.Fatalf("expected invalid verifier config error, got %v", err)
	}
	if !strings.Contains(err.Error(), errMissingAudienceConfig.Error()) {
		t.Fatalf("expected audience validation error to be reported, got %v", err)
	}

	_, err = NewGoogleVerifier(GoogleVerifierConfig{
		Audience:       testGoogleClientID,
		JWKSURL:        " ",
		AllowedIssuers: []string{testGoogleIssuer},
	})
	if !errors.Is(err, ErrInvalidVerifierConfig) {
		t.Fatalf("expected invalid verifier config error, got %v", err)
	}
	if !strings.Contains(err.Error(), errMissingJWKSURL.Error()) {
		t.Fatalf("expected jwks validation error to be reported, got %v", err)
	}
}

func TestNewGoogleVerifierRejectsEmptyIssuerList(t *testing.T) {
	_, err := NewGoogleVerifier(GoogleVerifierConfig{
		Audience:       testGoogleClientID,
		JWKSURL:        "https://example.com/jwks",
		AllowedIssuers: []string{"", "   "},
	})
	if !errors.Is(err, ErrInvalidVerifierConfig) {
		t.Fatalf("expected invalid verifier config error, got %v", err)
	}
	if !strings.Contains(err.Error(), errNoAllowedIssuers.Error()) {
		t.Fatalf("expected allowed issuers validation error to be reported, got %v", err)
	}
}

func encodeBigInt(value interface{}) string {
	switch v := value.(type) {
	case *big.Int:
		return base64.RawURLEncoding.EncodeToString(v.Bytes())
	case int:
		return encodeBigInt(int64(v))
	case int64:
		return base64.RawURLEncoding.EncodeToString(big.NewInt(v).Bytes())
	default:
		return ""
	}
}
