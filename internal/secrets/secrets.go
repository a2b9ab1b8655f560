// Package secrets resolves the credentials a run needs.
//
// Secrets are JSON documents: the portal login {"username","password"} and
// the system-of-record key {"apiKey"}. Errors and log lines name secrets but
// never carry their values.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrSecretNotFound is returned when a requested secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrSecretEmpty is returned when a secret exists but contains no value.
	ErrSecretEmpty = errors.New("secret value is empty")

	// ErrAccessDenied is returned when the caller is not allowed to read a secret.
	ErrAccessDenied = errors.New("access denied to secret")

	// ErrMalformed is returned when a secret is not the expected JSON shape.
	ErrMalformed = errors.New("secret is malformed")
)

// Provider returns raw secret strings by name.
type Provider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// PortalLogin is the source-portal account.
type PortalLogin struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LogValue implements slog.LogValuer so a login can be logged safely.
func (p PortalLogin) LogValue() slog.Value {
	return slog.GroupValue(slog.String("username", p.Username), slog.String("password", "[REDACTED]"))
}

// APIKey is the system-of-record API credential.
type APIKey struct {
	APIKey string `json:"apiKey"`
}

// LogValue implements slog.LogValuer.
func (APIKey) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// Names are the secret names a run resolves.
type Names struct {
	Portal string
	APIKey string
}

// DefaultNames are the secret names used when none are configured.
var DefaultNames = Names{Portal: "liveiq", APIKey: "airtable_key"}

// Bundle holds every credential of a run.
type Bundle struct {
	Portal PortalLogin
	APIKey APIKey
}

// LoadPortalLogin reads and validates the portal login.
func LoadPortalLogin(ctx context.Context, p Provider, name string) (PortalLogin, error) {
	var login PortalLogin
	if err := loadJSON(ctx, p, name, &login); err != nil {
		return PortalLogin{}, err
	}
	if login.Username == "" || login.Password == "" {
		return PortalLogin{}, fmt.Errorf("secret %q: %w: username and password are required", name, ErrMalformed)
	}
	return login, nil
}

// LoadAPIKey reads and validates the API key.
func LoadAPIKey(ctx context.Context, p Provider, name string) (APIKey, error) {
	var key APIKey
	if err := loadJSON(ctx, p, name, &key); err != nil {
		return APIKey{}, err
	}
	if key.APIKey == "" {
		return APIKey{}, fmt.Errorf("secret %q: %w: apiKey is required", name, ErrMalformed)
	}
	return key, nil
}

// Resolve loads the portal login and the API key.
func Resolve(ctx context.Context, p Provider, names Names) (Bundle, error) {
	login, err := LoadPortalLogin(ctx, p, names.Portal)
	if err != nil {
		return Bundle{}, err
	}
	key, err := LoadAPIKey(ctx, p, names.APIKey)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{Portal: login, APIKey: key}, nil
}

func loadJSON(ctx context.Context, p Provider, name string, v any) error {
	raw, err := p.GetSecret(ctx, name)
	if err != nil {
		return fmt.Errorf("secret %q: %w", name, err)
	}
	if raw == "" {
		return fmt.Errorf("secret %q: %w", name, ErrSecretEmpty)
	}
	// The decoder error may quote the value, so it is not wrapped.
	if json.Unmarshal([]byte(raw), v) != nil {
		return fmt.Errorf("secret %q: %w: not a JSON object", name, ErrMalformed)
	}
	return nil
}
