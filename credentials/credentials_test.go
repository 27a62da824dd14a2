package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeCreds(t *testing.T, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.toml")
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStandardPaths(t *testing.T) {
	paths := StandardPaths()
	if len(paths) < 2 {
		t.Errorf("expected at least 2 standard paths, got %d", len(paths))
	}
	if paths[0] != "credentials.toml" {
		t.Errorf("first path should be credentials.toml, got %s", paths[0])
	}
}

func TestLoadFile(t *testing.T) {
	path := writeCreds(t, `
[openai]
api_key = "sk-openai-test"

[google]
api_key = "google-test"

[ollama]
base_url = "http://gpu-box:11434"
`, 0400)

	creds, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := creds.GetAPIKey("openai"); got != "sk-openai-test" {
		t.Errorf("openai key = %q", got)
	}
	if got := creds.GetAPIKey("google"); got != "google-test" {
		t.Errorf("google key = %q", got)
	}
	if got := creds.GetBaseURL("ollama"); got != "http://gpu-box:11434" {
		t.Errorf("ollama base url = %q", got)
	}
	if got := creds.GetBaseURL("openai"); got != "" {
		t.Errorf("openai base url = %q, want empty", got)
	}
}

func TestLoadFile_EmbeddingSectionIsFallback(t *testing.T) {
	path := writeCreds(t, `
[embedding]
api_key = "generic-key"

[openai]
api_key = "openai-specific-key"
`, 0400)

	creds, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := map[string]string{
		"openai":      "openai-specific-key",
		"google":      "generic-key",
		"my-provider": "generic-key",
	}
	for provider, want := range tests {
		if got := creds.GetAPIKey(provider); got != want {
			t.Errorf("GetAPIKey(%q) = %q, want %q", provider, got, want)
		}
	}
}

func TestLoadFile_NormalizesSectionNames(t *testing.T) {
	path := writeCreds(t, `
[openai-compat]
api_key = "compat-key"
`, 0400)

	creds, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := creds.GetAPIKey("OpenAI-Compat"); got != "compat-key" {
		t.Errorf("key = %q", got)
	}
}

func TestLoadFile_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission check not applicable on Windows")
	}

	path := writeCreds(t, `
[embedding]
api_key = "secret-key"
`, 0644)

	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected error for insecure permissions")
	}
	if !errors.Is(err, ErrInsecurePermissions) {
		t.Errorf("expected ErrInsecurePermissions, got %v", err)
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	path := writeCreds(t, "[openai\napi_key = ", 0400)
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestGetAPIKey_Environment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "env-gemini")
	t.Setenv("VOYAGE_API_KEY", "env-voyage")

	var creds *Credentials
	tests := map[string]string{
		"openai": "env-openai",
		"google": "env-gemini",
		"voyage": "env-voyage",
	}
	for provider, want := range tests {
		if got := creds.GetAPIKey(provider); got != want {
			t.Errorf("GetAPIKey(%q) = %q, want %q", provider, got, want)
		}
	}
}

func TestGetAPIKey_FileBeatsEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-openai")
	path := writeCreds(t, `
[openai]
api_key = "file-openai"
`, 0400)

	creds, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := creds.GetAPIKey("openai"); got != "file-openai" {
		t.Errorf("key = %q, want file-openai", got)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	os.Chdir(t.TempDir())

	creds, path, err := Load()
	if err != nil || creds != nil || path != "" {
		t.Errorf("Load() = %v, %q, %v; want nil, \"\", nil", creds, path, err)
	}
}
