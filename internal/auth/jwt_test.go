package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxform/voxform/internal/config"
)

func testKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

func TestSignAssertion(t *testing.T) {
	key, pemKey := testKey(t)
	creds := &Credentials{
		ClientEmail:  "svc@project.iam.gserviceaccount.com",
		PrivateKeyID: "key-123",
		PrivateKey:   pemKey,
		TokenURI:     "https://oauth2.googleapis.com/token",
	}
	now := time.Now().Truncate(time.Second)

	signed, err := SignAssertion(creds, now)
	require.NoError(t, err)

	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithAudience(creds.TokenURI))
	require.NoError(t, err)
	assert.Equal(t, "key-123", token.Header["kid"])

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, creds.ClientEmail, claims["iss"])
	assert.Equal(t, CloudPlatformScope, claims["scope"])
	assert.Equal(t, float64(now.Unix()), claims["iat"])
	assert.Equal(t, float64(now.Add(time.Hour).Unix()), claims["exp"])
}

func TestSignAssertionRejectsBadKey(t *testing.T) {
	_, err := SignAssertion(&Credentials{PrivateKey: "not a key"}, time.Now())
	assert.Error(t, err)
}

func TestLoadCredentials(t *testing.T) {
	t.Run("from environment values", func(t *testing.T) {
		creds, err := LoadCredentials(config.SpeechConfig{
			ClientEmail:  "a@b.c",
			PrivateKeyID: "kid",
			PrivateKey:   "pem",
			TokenURL:     "https://token",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://token", creds.TokenURI)
	})

	t.Run("from key file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sa.json")
		data, err := json.Marshal(map[string]string{
			"type":           "service_account",
			"client_email":   "file@b.c",
			"private_key_id": "file-kid",
			"private_key":    "file-pem",
		})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0o600))

		creds, err := LoadCredentials(config.SpeechConfig{CredentialsFile: path, ClientEmail: "env@b.c"})
		require.NoError(t, err)
		assert.Equal(t, "env@b.c", creds.ClientEmail)
		assert.Equal(t, "file-kid", creds.PrivateKeyID)
		assert.Equal(t, "file-pem", creds.PrivateKey)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadCredentials(config.SpeechConfig{ClientEmail: "a@b.c"})
		assert.ErrorIs(t, err, ErrMissingCredentials)
	})
}

func TestExchangeAssertion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("grant_type") != JWTBearerGrantType || r.PostForm.Get("assertion") != "signed" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"ya29.token","token_type":"Bearer","expires_in":3599}`))
	}))
	defer srv.Close()

	token, err := ExchangeAssertion(context.Background(), srv.Client(), srv.URL, "signed")
	require.NoError(t, err)
	assert.Equal(t, "ya29.token", token)

	_, err = ExchangeAssertion(context.Background(), srv.Client(), srv.URL, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "invalid_grant")
}
