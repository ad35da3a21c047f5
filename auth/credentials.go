package auth

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const basicScheme = "Basic "

// CredentialKind tags how the authorization header is sourced.
type CredentialKind string

const (
	// CredentialKindPrebuilt means the operator supplied a ready header value.
	CredentialKindPrebuilt CredentialKind = "prebuilt_header"
	// CredentialKindRaw means the header is derived from a client id/secret pair.
	CredentialKindRaw CredentialKind = "raw_credential"
)

// Credentials is a normalized client credential. Exactly one form is active:
// a pre-built Basic header value, or a raw id/secret pair the header is
// derived from.
type Credentials struct {
	Kind         CredentialKind
	ClientID     string
	ClientSecret string

	prebuilt string
}

// ParseCredentials normalizes the configured credential material once. A
// pre-built header wins when present; a duplicated "Basic " prefix in the
// configured value is stripped so exactly one prefix goes on the wire.
func ParseCredentials(basicAuth string, clientID string, clientSecret string) (Credentials, error) {
	basicAuth = strings.TrimSpace(basicAuth)
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)

	if basicAuth != "" {
		value := basicAuth
		for strings.HasPrefix(value, basicScheme) {
			value = strings.TrimSpace(strings.TrimPrefix(value, basicScheme))
		}
		if value == "" {
			return Credentials{}, fmt.Errorf("auth: basic auth value is empty after normalization")
		}
		return Credentials{
			Kind:         CredentialKindPrebuilt,
			ClientID:     clientID,
			ClientSecret: clientSecret,
			prebuilt:     value,
		}, nil
	}

	if clientID != "" && clientSecret != "" {
		return Credentials{
			Kind:         CredentialKindRaw,
			ClientID:     clientID,
			ClientSecret: clientSecret,
		}, nil
	}

	return Credentials{}, fmt.Errorf("auth: credentials are not configured")
}

// AuthorizationHeader returns the full header value, always carrying a single
// Basic prefix.
func (c Credentials) AuthorizationHeader() string {
	switch c.Kind {
	case CredentialKindPrebuilt:
		return basicScheme + c.prebuilt
	case CredentialKindRaw:
		encoded := base64.StdEncoding.EncodeToString([]byte(c.ClientID + ":" + c.ClientSecret))
		return basicScheme + encoded
	default:
		return ""
	}
}

func (c Credentials) IsZero() bool {
	return c.Kind == ""
}
