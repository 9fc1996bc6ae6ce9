package server

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://issuer.example.com"
	testAudience = "test-audience"
)

// setupOIDCTest returns a verifier that trusts tokens signed by the returned
// key.
func setupOIDCTest(t *testing.T) (tokenVerifier, *rsa.PrivateKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&priv.PublicKey}}
	return emailVerifier(oidc.NewVerifier(testIssuer, keySet, &oidc.Config{ClientID: testAudience})), priv
}

func generateTestToken(t *testing.T, priv *rsa.PrivateKey, email, subject string) string {
	t.Helper()
	enc := base64.RawURLEncoding
	header, err := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT"})
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{
		"iss":   testIssuer,
		"aud":   testAudience,
		"sub":   subject,
		"email": email,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	signingInput := enc.EncodeToString(header) + "." + enc.EncodeToString(payload)
	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	require.NoError(t, err)
	return signingInput + "." + enc.EncodeToString(sig)
}
