package core

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/voxform/voxform/internal/auth"
	"github.com/voxform/voxform/internal/config"
	"github.com/voxform/voxform/internal/logger"
	"github.com/voxform/voxform/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	speech "google.golang.org/api/speech/v1"
)

// SpeechService is the transcription gateway. Each call signs a fresh
// assertion, exchanges it for an access token and runs one synchronous
// recognition. Nothing is cached or retried.
type SpeechService struct {
	cfg        config.SpeechConfig
	httpClient *http.Client
	now        func() time.Time
}

func NewSpeechService(cfg config.SpeechConfig) *SpeechService {
	return &SpeechService{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

// Configured reports whether credentials can currently be resolved.
func (s *SpeechService) Configured() bool {
	_, err := auth.LoadCredentials(s.cfg)
	return err == nil
}

func (s *SpeechService) Transcribe(ctx context.Context, audio []byte) (text string, err error) {
	ctx, span := metrics.StartSpan(ctx, "speech.transcribe")
	start := time.Now()
	defer func() {
		metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())
		metrics.TranscriptionsTotal.WithLabelValues(metrics.Outcome(err)).Inc()
		metrics.EndSpan(span, err)
	}()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	token, err := s.accessToken(ctx)
	if err != nil {
		return "", err
	}

	client := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   s.httpClient.Transport,
		},
	}
	svc, err := speech.NewService(ctx, option.WithHTTPClient(client), option.WithEndpoint(s.cfg.Endpoint))
	if err != nil {
		return "", fmt.Errorf("failed to create speech client: %w", err)
	}

	req := &speech.RecognizeRequest{
		Config: &speech.RecognitionConfig{
			Encoding:                   s.cfg.Encoding,
			SampleRateHertz:            s.cfg.SampleRateHertz,
			LanguageCode:               s.cfg.LanguageCode,
			EnableAutomaticPunctuation: true,
			Model:                      s.cfg.Model,
		},
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audio),
		},
	}

	resp, err := svc.Speech.Recognize(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("speech recognition failed: %w", err)
	}

	text = JoinTranscripts(resp)
	logger.Debug("transcription complete",
		zap.Int("audio_bytes", len(audio)),
		zap.Int("results", len(resp.Results)),
		zap.Duration("elapsed", time.Since(start)))
	return text, nil
}

func (s *SpeechService) accessToken(ctx context.Context) (string, error) {
	ctx, span := metrics.StartSpan(ctx, "speech.token_exchange")
	token, err := s.exchange(ctx)
	metrics.EndSpan(span, err)
	return token, err
}

func (s *SpeechService) exchange(ctx context.Context) (string, error) {
	creds, err := auth.LoadCredentials(s.cfg)
	if err != nil {
		return "", err
	}
	assertion, err := auth.SignAssertion(creds, s.now())
	if err != nil {
		return "", err
	}
	return auth.ExchangeAssertion(ctx, s.httpClient, creds.TokenURI, assertion)
}

// JoinTranscripts space-joins the top alternative of every result.
func JoinTranscripts(resp *speech.RecognizeResponse) string {
	if resp == nil {
		return ""
	}
	parts := make([]string, 0, len(resp.Results))
	for _, result := range resp.Results {
		if result == nil || len(result.Alternatives) == 0 || result.Alternatives[0] == nil {
			continue
		}
		parts = append(parts, result.Alternatives[0].Transcript)
	}
	return strings.Join(parts, " ")
}
