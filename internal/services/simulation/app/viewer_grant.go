package server

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/urnalabs/apura/internal/platform/errors"
)

// viewerGrantEnv holds raw env values before post-parse validation.
type viewerGrantEnv struct {
	Issuer    string `env:"APURA_VIEWER_GRANT_ISSUER"`
	Audience  string `env:"APURA_VIEWER_GRANT_AUDIENCE"`
	PublicKey string `env:"APURA_VIEWER_GRANT_PUBLIC_KEY"`
}

// ViewerGrantConfig defines how viewer grants on the watch endpoint are
// verified. A zero config disables the check.
type ViewerGrantConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// Enabled reports whether grant verification is configured.
func (c ViewerGrantConfig) Enabled() bool {
	return len(c.Key) == ed25519.PublicKeySize
}

// ViewerGrantClaims captures validated viewer grant claims.
type ViewerGrantClaims struct {
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	NotBefore time.Time
	IssuedAt  time.Time
	JWTID     string
	Viewer    string
}

// LoadViewerGrantConfigFromEnv reads viewer grant verification configuration.
// When none of the variables are set verification is disabled; a partial
// configuration is an error.
func LoadViewerGrantConfigFromEnv(now func() time.Time) (ViewerGrantConfig, error) {
	var raw viewerGrantEnv
	if err := env.Parse(&raw); err != nil {
		return ViewerGrantConfig{}, fmt.Errorf("parse viewer grant env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" && audience == "" && publicKey == "" {
		return ViewerGrantConfig{}, nil
	}
	if issuer == "" {
		return ViewerGrantConfig{}, fmt.Errorf("APURA_VIEWER_GRANT_ISSUER is required")
	}
	if audience == "" {
		return ViewerGrantConfig{}, fmt.Errorf("APURA_VIEWER_GRANT_AUDIENCE is required")
	}
	if publicKey == "" {
		return ViewerGrantConfig{}, fmt.Errorf("APURA_VIEWER_GRANT_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return ViewerGrantConfig{}, fmt.Errorf("decode viewer grant public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return ViewerGrantConfig{}, fmt.Errorf("viewer grant public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return ViewerGrantConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// ValidateViewerGrant verifies a viewer grant token against the configured
// issuer, audience, and key.
func ValidateViewerGrant(grant string, cfg ViewerGrantConfig) (ViewerGrantClaims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return ViewerGrantClaims{}, apperrors.New(apperrors.CodeViewerGrantInvalid, "viewer grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || !cfg.Enabled() {
		return ViewerGrantClaims{}, errors.New("viewer grant verifier is not configured")
	}

	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return ViewerGrantClaims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return ViewerGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeViewerGrantMismatch,
			"viewer grant issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return ViewerGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeViewerGrantMismatch,
			"viewer grant audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}

	if parsed.ID == "" {
		return ViewerGrantClaims{}, apperrors.New(apperrors.CodeViewerGrantInvalid, "viewer grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return ViewerGrantClaims{}, apperrors.New(apperrors.CodeViewerGrantInvalid, "viewer grant exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return ViewerGrantClaims{}, apperrors.New(apperrors.CodeViewerGrantExpired, "viewer grant is expired")
	}
	if parsed.NotBefore != nil {
		nbf := parsed.NotBefore.Time.UTC()
		if now.Before(nbf) {
			return ViewerGrantClaims{}, apperrors.New(apperrors.CodeViewerGrantInvalid, "viewer grant not active yet")
		}
	}

	claims := ViewerGrantClaims{
		Issuer:    parsed.Issuer,
		Audience:  []string(parsed.Audience),
		ExpiresAt: exp,
		JWTID:     parsed.ID,
		Viewer:    strings.TrimSpace(parsed.Subject),
	}
	if parsed.NotBefore != nil {
		claims.NotBefore = parsed.NotBefore.Time.UTC()
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeViewerGrantInvalid, "viewer grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeViewerGrantInvalid, "viewer grant alg is invalid")
	}
	return apperrors.New(apperrors.CodeViewerGrantInvalid, "viewer grant is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}

// viewerGrantFromRequest extracts the grant token from the token query
// parameter or the Authorization header.
func viewerGrantFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
