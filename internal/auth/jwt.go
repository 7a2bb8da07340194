package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/voxform/voxform/internal/config"
)

const (
	CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"
	assertionLifetime  = time.Hour
)

var ErrMissingCredentials = errors.New("speech service-account credentials are not configured")

// Credentials is the subset of a Google service-account key used to sign
// assertions.
type Credentials struct {
	ClientEmail  string `json:"client_email"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	TokenURI     string `json:"-"`
}

func (c *Credentials) complete() bool {
	return c.ClientEmail != "" && c.PrivateKeyID != "" && c.PrivateKey != ""
}

// LoadCredentials resolves credentials from explicit environment values,
// falling back to the key file named by GOOGLE_APPLICATION_CREDENTIALS for
// any value left empty. It is called per request so a misconfigured server
// still starts and serves everything except transcription.
func LoadCredentials(cfg config.SpeechConfig) (*Credentials, error) {
	creds := &Credentials{
		ClientEmail:  cfg.ClientEmail,
		PrivateKeyID: cfg.PrivateKeyID,
		PrivateKey:   cfg.PrivateKey,
		TokenURI:     cfg.TokenURL,
	}

	if !creds.complete() && cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		var file Credentials
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse credentials file: %w", err)
		}
		if creds.ClientEmail == "" {
			creds.ClientEmail = file.ClientEmail
		}
		if creds.PrivateKeyID == "" {
			creds.PrivateKeyID = file.PrivateKeyID
		}
		if creds.PrivateKey == "" {
			creds.PrivateKey = file.PrivateKey
		}
	}

	if !creds.complete() {
		return nil, ErrMissingCredentials
	}
	return creds, nil
}

// SignAssertion builds the RS256 service-account assertion exchanged for an
// access token. Every call produces a fresh assertion valid for one hour.
func SignAssertion(creds *Credentials, now time.Time) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(creds.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	claims := jwt.MapClaims{
		"iss":   creds.ClientEmail,
		"scope": CloudPlatformScope,
		"aud":   creds.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = creds.PrivateKeyID

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}
	return signed, nil
}
