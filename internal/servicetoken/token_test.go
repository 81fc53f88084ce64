package servicetoken

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// signingKey holds an in-memory RSA key standing in for the CRM's signer,
// plus the public-key PEM file the verifier loads.
type signingKey struct {
	key        *rsa.PrivateKey
	publicPath string
}

func newSigningKey(t *testing.T) signingKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "crm-public.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	if err := os.WriteFile(path, pemBytes, 0o644); err != nil {
		t.Fatalf("write public key: %v", err)
	}
	return signingKey{key: key, publicPath: path}
}

func (s signingKey) sign(t *testing.T, kid string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(s.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func crmClaims(audience string) jwt.RegisteredClaims {
	now := time.Now().UTC()
	return jwt.RegisteredClaims{
		Issuer:    "crm-service",
		Subject:   "crm-service",
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		ID:        "jti-1",
	}
}

func newGenerationVerifier(t *testing.T, s signingKey) *Verifier {
	t.Helper()
	verifier, err := NewVerifierWithOptions(VerifierOptions{
		PublicKeyPath:  s.publicPath,
		DefaultKeyID:   DefaultKeyID,
		Audience:       "generation",
		AllowedIssuers: []string{"crm-service"},
		Leeway:         time.Second,
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return verifier
}

func TestVerifyAcceptsCRMToken(t *testing.T) {
	s := newSigningKey(t)
	verifier := newGenerationVerifier(t, s)

	signed := s.sign(t, DefaultKeyID, crmClaims("generation"))
	claims, err := verifier.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Issuer != "crm-service" || claims.Subject != "crm-service" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	s := newSigningKey(t)
	verifier := newGenerationVerifier(t, s)

	signed := s.sign(t, DefaultKeyID, crmClaims("billing"))
	if _, err := verifier.Verify(signed); err == nil {
		t.Fatal("wrong audience must fail")
	}
}

func TestVerifyRejectsUnlistedIssuer(t *testing.T) {
	s := newSigningKey(t)
	verifier := newGenerationVerifier(t, s)

	claims := crmClaims("generation")
	claims.Issuer = "portal-service"
	signed := s.sign(t, DefaultKeyID, claims)
	if _, err := verifier.Verify(signed); err == nil {
		t.Fatal("unlisted issuer must fail")
	}
}

func TestVerifyRejectsUnknownOrMissingKid(t *testing.T) {
	s := newSigningKey(t)
	verifier := newGenerationVerifier(t, s)

	if _, err := verifier.Verify(s.sign(t, "retired-key", crmClaims("generation"))); err == nil {
		t.Fatal("unknown kid must fail")
	}
	if _, err := verifier.Verify(s.sign(t, "", crmClaims("generation"))); err == nil {
		t.Fatal("missing kid must fail")
	}
}

func TestVerifyRejectsFutureIssuedAt(t *testing.T) {
	s := newSigningKey(t)
	verifier := newGenerationVerifier(t, s)

	claims := crmClaims("generation")
	claims.IssuedAt = jwt.NewNumericDate(time.Now().Add(2 * time.Minute))
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(5 * time.Minute))
	signed := s.sign(t, DefaultKeyID, claims)
	if _, err := verifier.Verify(signed); err == nil {
		t.Fatal("future iat must fail")
	}
}

func TestVerifyRequiresJTIAndSubject(t *testing.T) {
	s := newSigningKey(t)
	verifier := newGenerationVerifier(t, s)

	claims := crmClaims("generation")
	claims.ID = ""
	if _, err := verifier.Verify(s.sign(t, DefaultKeyID, claims)); err == nil {
		t.Fatal("missing jti must fail")
	}

	claims = crmClaims("generation")
	claims.Subject = ""
	if _, err := verifier.Verify(s.sign(t, DefaultKeyID, claims)); err == nil {
		t.Fatal("missing subject must fail")
	}
}

func TestNewVerifierRequiresKeysAndIssuers(t *testing.T) {
	s := newSigningKey(t)
	if _, err := NewVerifierWithOptions(VerifierOptions{
		Audience:       "generation",
		AllowedIssuers: []string{"crm-service"},
	}); err == nil {
		t.Fatal("verifier without any public key must fail")
	}
	if _, err := NewVerifierWithOptions(VerifierOptions{
		PublicKeyPath: s.publicPath,
		Audience:      "generation",
	}); err == nil {
		t.Fatal("verifier without allowed issuers must fail")
	}
}

func TestVerifierKidMap(t *testing.T) {
	s := newSigningKey(t)
	verifier, err := NewVerifierWithOptions(VerifierOptions{
		VerifyPublicKeyMap: map[string]string{"crm-2026": s.publicPath},
		Audience:           "generation",
		AllowedIssuers:     []string{"crm-service"},
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := verifier.Verify(s.sign(t, "crm-2026", crmClaims("generation"))); err != nil {
		t.Fatalf("mapped kid should verify: %v", err)
	}
}

func TestParseVerifyPublicKeys(t *testing.T) {
	parsed, err := ParseVerifyPublicKeys("crm-2026=/keys/a.pem, crm-2025=/keys/b.pem")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(parsed) != 2 || parsed["crm-2026"] != "/keys/a.pem" {
		t.Fatalf("parsed = %v", parsed)
	}
	if _, err := ParseVerifyPublicKeys("no-equals-sign"); err == nil {
		t.Fatal("malformed entry must fail")
	}
	if parsed, err := ParseVerifyPublicKeys("  "); err != nil || parsed != nil {
		t.Fatalf("blank input: parsed=%v err=%v", parsed, err)
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/internal/generate/business-plan", nil)
	if _, ok := BearerToken(req); ok {
		t.Fatal("no header must not yield a token")
	}
	req.Header.Set("Authorization", "Basic abc")
	if _, ok := BearerToken(req); ok {
		t.Fatal("non-bearer scheme must not yield a token")
	}
	req.Header.Set("Authorization", "Bearer tok-123")
	token, ok := BearerToken(req)
	if !ok || token != "tok-123" {
		t.Fatalf("token = %q ok = %v", token, ok)
	}
}
