package vault

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveRef_EnvFormat(t *testing.T) {
	v := New()

	const envVar = "TEST_DISCOVERY_VAULT_SECRET"
	const expected = "s3cret-1234"

	t.Setenv(envVar, expected)

	got, err := v.ResolveRef("env:" + envVar)
	if err != nil {
		t.Fatalf("ResolveRef(env:): %v", err)
	}
	if got != expected {
		t.Errorf("got %q, want %q", got, expected)
	}
}

func TestResolveRef_EnvFormat_Unset(t *testing.T) {
	v := New()

	os.Unsetenv("NONEXISTENT_SECRET_VAR")

	_, err := v.ResolveRef("env:NONEXISTENT_SECRET_VAR")
	if err == nil {
		t.Fatal("expected error for unset env var")
	}
}

func TestResolveRef_InvalidFormat(t *testing.T) {
	v := New()

	_, err := v.ResolveRef("plaintext:secret")
	if err == nil {
		t.Fatal("expected error for invalid credential ref format")
	}
}

func TestResolveRef_KeyringBadFormat(t *testing.T) {
	v := New()

	_, err := v.ResolveRef("keyring://badformat")
	if err == nil {
		t.Fatal("expected error for malformed keyring ref")
	}
}

func TestResolveRef_KeyringWrongService(t *testing.T) {
	v := New()

	_, err := v.ResolveRef("keyring://other-service/winpass")
	if err == nil {
		t.Fatal("expected error for wrong service name")
	}
}

func TestResolveRef_KeychainBadFormat(t *testing.T) {
	v := New()

	_, err := v.ResolveRef("keychain:badformat")
	if err == nil {
		t.Fatal("expected error for malformed keychain ref")
	}
}

func TestResolveRef_KeychainWrongService(t *testing.T) {
	v := New()

	_, err := v.ResolveRef("keychain:other/winpass")
	if err == nil {
		t.Fatal("expected error for wrong service name in keychain ref")
	}
}

func TestResolveRef_EmptyName(t *testing.T) {
	v := New()

	_, err := v.ResolveRef("keyring://discovery/")
	if err == nil {
		t.Fatal("expected error for empty credential name in keyring ref")
	}
}

func TestGet_EnvFallback(t *testing.T) {
	v := New()

	const envVar = "DISCOVERY_CRED_TESTCRED"
	const expected = "env-secret-value"

	t.Setenv(envVar, expected)

	got, err := v.Get("testcred")
	if err != nil {
		t.Fatalf("Get with env fallback: %v", err)
	}
	if got != expected {
		t.Errorf("got %q, want %q", got, expected)
	}
}

func TestGet_EnvFallback_NameWithDash(t *testing.T) {
	v := New()

	const envVar = "DISCOVERY_CRED_WINPASS_DEFAULT"
	const expected = "hunter2"

	t.Setenv(envVar, expected)

	got, err := v.Get("winpass-default")
	if err != nil {
		t.Fatalf("Get with dashed name: %v", err)
	}
	if got != expected {
		t.Errorf("got %q, want %q", got, expected)
	}
}

func TestResolveRef_FileFormat(t *testing.T) {
	v := New()

	dir := t.TempDir()
	secretFile := filepath.Join(dir, "secret.txt")
	if err := os.WriteFile(secretFile, []byte("file-secret-value\n"), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}

	got, err := v.ResolveRef("file://" + secretFile)
	if err != nil {
		t.Fatalf("ResolveRef(file://): %v", err)
	}
	if got != "file-secret-value" {
		t.Errorf("got %q, want %q", got, "file-secret-value")
	}
}

func TestResolveRef_FileFormat_NotFound(t *testing.T) {
	v := New()

	_, err := v.ResolveRef("file:///nonexistent/path/secret.txt")
	if err == nil {
		t.Fatal("expected error for missing secret file")
	}
}

func TestResolveRef_FileFormat_Empty(t *testing.T) {
	v := New()

	dir := t.TempDir()
	secretFile := filepath.Join(dir, "empty-secret.txt")
	if err := os.WriteFile(secretFile, []byte("  \n"), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}

	_, err := v.ResolveRef("file://" + secretFile)
	if err == nil {
		t.Fatal("expected error for empty secret file")
	}
}

func TestGet_NoSecretFound(t *testing.T) {
	v := New()

	os.Unsetenv("DISCOVERY_CRED_NOCRED")

	_, err := v.Get("nocred")
	if err == nil {
		t.Fatal("expected error when no secret found")
	}
}

func TestResolveName_Empty(t *testing.T) {
	v := New()

	_, err := v.ResolveName("")
	if err == nil {
		t.Fatal("expected error for empty credential name")
	}
}

func TestList_FiltersToPresent(t *testing.T) {
	v := New()

	t.Setenv("DISCOVERY_CRED_HASSECRET", "present")
	os.Unsetenv("DISCOVERY_CRED_MISSING")

	present, err := v.List([]string{"hassecret", "missing"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(present) != 1 || present[0] != "hassecret" {
		t.Errorf("List: got %v, want [hassecret]", present)
	}
}
