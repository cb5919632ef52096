// Package vault resolves scan credentials from the OS keychain, with an
// environment-variable fallback, so discovery.toml never carries a
// plaintext secret.
package vault

import (
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const serviceName = "discovery"

// Vault provides secure credential storage using the OS keychain,
// with fallback to environment variables. Credentials are keyed by
// name (e.g. "winpass-default", "snmp-v2c-default"), not by provider,
// since a single scan may carry many Windows/SSH/SNMP credentials.
type Vault struct{}

// New creates a new Vault instance.
func New() *Vault {
	return &Vault{}
}

// Set stores a secret under the given credential name in the OS keychain.
func (v *Vault) Set(name, secret string) error {
	return keyring.Set(serviceName, name, secret)
}

// Get retrieves the secret for the given credential name. It first checks
// the OS keychain, then falls back to the environment variable
// DISCOVERY_CRED_{UPPER(name)} with every "-" in name replaced by "_".
func (v *Vault) Get(name string) (string, error) {
	secret, err := keyring.Get(serviceName, name)
	if err == nil && secret != "" {
		return secret, nil
	}

	envKey := envVarName(name)
	if val := os.Getenv(envKey); val != "" {
		return val, nil
	}

	return "", fmt.Errorf("no secret found for credential %q: not in keychain and %s not set", name, envKey)
}

// Delete removes the secret for the given credential name from the OS keychain.
func (v *Vault) Delete(name string) error {
	return keyring.Delete(serviceName, name)
}

// List reports which of the given candidate credential names currently
// resolve to a secret, checking both the keychain and the environment.
// Callers pass the credential names referenced by their loaded config,
// since the vault has no independent notion of which names are in use.
func (v *Vault) List(candidates []string) ([]string, error) {
	var present []string

	for _, name := range candidates {
		if secret, err := keyring.Get(serviceName, name); err == nil && secret != "" {
			present = append(present, name)
			continue
		}
		if val := os.Getenv(envVarName(name)); val != "" {
			present = append(present, name)
		}
	}

	return present, nil
}

// ResolveRef parses a credential reference and retrieves the corresponding
// secret. Supported formats:
//   - "keyring://discovery/<name>" (preferred)
//   - "keychain:discovery/<name>" (legacy)
//   - "env:VARIABLE_NAME" (environment variable)
//   - "file:///path/to/secret" (plain-text file)
func (v *Vault) ResolveRef(ref string) (string, error) {
	if strings.HasPrefix(ref, "keyring://") {
		path := strings.TrimPrefix(ref, "keyring://")
		parts := strings.SplitN(path, "/", 2)
		if len(parts) != 2 || parts[0] != serviceName || parts[1] == "" {
			return "", fmt.Errorf("invalid credential reference format: %q (expected \"keyring://discovery/<name>\")", ref)
		}
		return v.Get(parts[1])
	}

	if strings.HasPrefix(ref, "keychain:") {
		path := strings.TrimPrefix(ref, "keychain:")
		parts := strings.SplitN(path, "/", 2)
		if len(parts) != 2 || parts[0] != serviceName || parts[1] == "" {
			return "", fmt.Errorf("invalid credential reference path: %q (expected \"discovery/<name>\")", path)
		}
		return v.Get(parts[1])
	}

	if strings.HasPrefix(ref, "env:") {
		envVar := strings.TrimPrefix(ref, "env:")
		if val := os.Getenv(envVar); val != "" {
			return val, nil
		}
		return "", fmt.Errorf("environment variable %q is not set", envVar)
	}

	if strings.HasPrefix(ref, "file://") {
		filePath := strings.TrimPrefix(ref, "file://")
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("reading credential file %q: %w", filePath, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("credential file %q is empty", filePath)
		}
		return secret, nil
	}

	return "", fmt.Errorf("invalid credential reference format: %q (expected \"keyring://discovery/<name>\", \"keychain:discovery/<name>\", \"env:VARIABLE_NAME\", or \"file:///path/to/secret\")", ref)
}

// ResolveName looks up a plain credential name (as carried by
// config.CredentialRef.Name) directly in the vault, bypassing the
// ref-scheme parsing ResolveRef does for fully-qualified references.
func (v *Vault) ResolveName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("credential name must not be empty")
	}
	return v.Get(name)
}

func envVarName(name string) string {
	return "DISCOVERY_CRED_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
