package core

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxform/voxform/internal/auth"
	"github.com/voxform/voxform/internal/config"
	speech "google.golang.org/api/speech/v1"
)

type fakeGoogle struct {
	tokenStatus     int
	recognizeStatus int
	results         string

	tokenCalls     atomic.Int32
	recognizeCalls atomic.Int32
	lastRequest    speech.RecognizeRequest
	lastAuth       string
}

func (g *fakeGoogle) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		g.tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, auth.JWTBearerGrantType, r.PostForm.Get("grant_type"))
		assert.NotEmpty(t, r.PostForm.Get("assertion"))
		if g.tokenStatus != 0 {
			http.Error(w, `{"error":"invalid_grant"}`, g.tokenStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"ya29.test","token_type":"Bearer","expires_in":3599}`))
	})
	mux.HandleFunc("/v1/speech:recognize", func(w http.ResponseWriter, r *http.Request) {
		g.recognizeCalls.Add(1)
		g.lastAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&g.lastRequest))
		if g.recognizeStatus != 0 {
			http.Error(w, `{"error":{"code":500,"message":"backend"}}`, g.recognizeStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(g.results))
	})
	return mux
}

func testPrivateKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
}

func newTestSpeechService(t *testing.T, g *fakeGoogle, withCreds bool) *SpeechService {
	t.Helper()
	srv := httptest.NewServer(g.handler(t))
	t.Cleanup(srv.Close)

	cfg := config.SpeechConfig{
		TokenURL:        srv.URL + "/token",
		Endpoint:        srv.URL + "/",
		LanguageCode:    "es-ES",
		Encoding:        "WEBM_OPUS",
		SampleRateHertz: 48000,
		Model:           "latest_long",
		Timeout:         10 * time.Second,
	}
	if withCreds {
		cfg.ClientEmail = "svc@test.iam.gserviceaccount.com"
		cfg.PrivateKeyID = "kid-1"
		cfg.PrivateKey = testPrivateKey(t)
	}
	return NewSpeechService(cfg)
}

func TestTranscribeJoinsTopAlternatives(t *testing.T) {
	g := &fakeGoogle{results: `{"results":[
		{"alternatives":[{"transcript":"hola","confidence":0.9},{"transcript":"ola"}]},
		{"alternatives":[]},
		{"alternatives":[{"transcript":"mundo"}]}
	]}`}
	s := newTestSpeechService(t, g, true)
	require.True(t, s.Configured())

	text, err := s.Transcribe(context.Background(), []byte("opus-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "hola mundo", text)

	assert.Equal(t, "Bearer ya29.test", g.lastAuth)
	cfg := g.lastRequest.Config
	require.NotNil(t, cfg)
	assert.Equal(t, "WEBM_OPUS", cfg.Encoding)
	assert.Equal(t, int64(48000), cfg.SampleRateHertz)
	assert.Equal(t, "es-ES", cfg.LanguageCode)
	assert.Equal(t, "latest_long", cfg.Model)
	assert.True(t, cfg.EnableAutomaticPunctuation)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("opus-bytes")), g.lastRequest.Audio.Content)
}

func TestTranscribeEmptyResults(t *testing.T) {
	g := &fakeGoogle{results: `{}`}
	text, err := newTestSpeechService(t, g, true).Transcribe(context.Background(), []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestTranscribeSignsFreshAssertionPerCall(t *testing.T) {
	g := &fakeGoogle{results: `{}`}
	s := newTestSpeechService(t, g, true)
	for i := 0; i < 2; i++ {
		_, err := s.Transcribe(context.Background(), []byte("a"))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), g.tokenCalls.Load())
}

func TestTranscribeMissingCredentials(t *testing.T) {
	g := &fakeGoogle{}
	s := newTestSpeechService(t, g, false)
	assert.False(t, s.Configured())

	_, err := s.Transcribe(context.Background(), []byte("a"))
	assert.ErrorIs(t, err, auth.ErrMissingCredentials)
	assert.Zero(t, g.tokenCalls.Load())
	assert.Zero(t, g.recognizeCalls.Load())
}

func TestTranscribeTokenFailure(t *testing.T) {
	g := &fakeGoogle{tokenStatus: http.StatusUnauthorized}
	_, err := newTestSpeechService(t, g, true).Transcribe(context.Background(), []byte("a"))
	require.Error(t, err)
	assert.Zero(t, g.recognizeCalls.Load())
}

func TestTranscribeRecognitionFailure(t *testing.T) {
	g := &fakeGoogle{recognizeStatus: http.StatusInternalServerError}
	text, err := newTestSpeechService(t, g, true).Transcribe(context.Background(), []byte("a"))
	require.Error(t, err)
	assert.Empty(t, text)
}

func TestJoinTranscriptsNil(t *testing.T) {
	assert.Equal(t, "", JoinTranscripts(nil))
}
