package secrets

import (
	"context"
	"os"
	"strings"
)

// DefaultEnvPrefix prefixes secret variables read by EnvProvider.
const DefaultEnvPrefix = "ROSTERSYNC_SECRET_VALUE_"

// EnvProvider reads secrets from environment variables for local runs. The
// secret "airtable_key" is read from <Prefix>AIRTABLE_KEY.
type EnvProvider struct {
	Prefix string
	Getenv func(string) (string, bool)
}

// VarName returns the variable holding the named secret.
func (p EnvProvider) VarName(name string) string {
	prefix := p.Prefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	upper := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
	return prefix + upper
}

// GetSecret returns the variable's value, or ErrSecretNotFound when unset.
func (p EnvProvider) GetSecret(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	getenv := p.Getenv
	if getenv == nil {
		getenv = os.LookupEnv
	}
	v, ok := getenv(p.VarName(name))
	if !ok {
		return "", ErrSecretNotFound
	}
	return v, nil
}
