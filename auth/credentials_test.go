package auth

import (
	"encoding/base64"
	"testing"
)

func TestParseCredentialsRawPair(t *testing.T) {
	creds, err := ParseCredentials("", "client-id", "client-secret")
	if err != nil {
		t.Fatalf("expected credentials, got error: %v", err)
	}
	if creds.Kind != CredentialKindRaw {
		t.Fatalf("expected raw credential kind, got %q", creds.Kind)
	}

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("client-id:client-secret"))
	if got := creds.AuthorizationHeader(); got != want {
		t.Fatalf("expected header %q, got %q", want, got)
	}
}

func TestParseCredentialsPrebuiltWins(t *testing.T) {
	creds, err := ParseCredentials("cHJlYnVpbHQ=", "ignored-id", "ignored-secret")
	if err != nil {
		t.Fatalf("expected credentials, got error: %v", err)
	}
	if creds.Kind != CredentialKindPrebuilt {
		t.Fatalf("expected prebuilt credential kind, got %q", creds.Kind)
	}
	if got := creds.AuthorizationHeader(); got != "Basic cHJlYnVpbHQ=" {
		t.Fatalf("unexpected header: %q", got)
	}
}

func TestParseCredentialsStripsDuplicatedPrefix(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"single prefix", "Basic cHJlYnVpbHQ="},
		{"double prefix", "Basic Basic cHJlYnVpbHQ="},
		{"bare value", "cHJlYnVpbHQ="},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			creds, err := ParseCredentials(tc.input, "", "")
			if err != nil {
				t.Fatalf("expected credentials, got error: %v", err)
			}
			if got := creds.AuthorizationHeader(); got != "Basic cHJlYnVpbHQ=" {
				t.Fatalf("expected exactly one Basic prefix, got %q", got)
			}
		})
	}
}

func TestParseCredentialsRequiresMaterial(t *testing.T) {
	if _, err := ParseCredentials("", "", ""); err == nil {
		t.Fatal("expected error when nothing is configured")
	}
	if _, err := ParseCredentials("", "client-id", ""); err == nil {
		t.Fatal("expected error when only the client id is configured")
	}
	if _, err := ParseCredentials("Basic  ", "", ""); err == nil {
		t.Fatal("expected error for a prefix with no payload")
	}
}
