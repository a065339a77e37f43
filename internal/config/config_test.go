package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testYAML = `
bot:
  token: "from-file"
ai:
  enabled: false
storage:
  data_dir: "%s"
  memory:
    type: json
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadConfig_DefaultsAndPaths(t *testing.T) {
	dataDir := t.TempDir()
	p := writeConfig(t, strings.Replace(testYAML, "%s", dataDir, 1))

	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Bot.Token != "from-file" {
		t.Fatalf("token = %q", cfg.Bot.Token)
	}
	if cfg.Storage.DBFile != filepath.Join(dataDir, "menta.db") {
		t.Fatalf("db file = %q", cfg.Storage.DBFile)
	}
	if cfg.Storage.Logs.MaxEntries != 1000 {
		t.Fatalf("max entries = %d", cfg.Storage.Logs.MaxEntries)
	}
	if cfg.I18n.DefaultLanguage != "es" {
		t.Fatalf("default language = %q", cfg.I18n.DefaultLanguage)
	}
}

func TestLoadConfig_LegacyEnvNames(t *testing.T) {
	t.Setenv("TOKEN_BOT_TELEGRAM", "legacy-token")
	t.Setenv("CLAVE_API_GROQ", "legacy-key")
	body := "ai:\n  enabled: true\n"
	cfg, err := LoadConfig(writeConfig(t, body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Bot.Token != "legacy-token" {
		t.Fatalf("token = %q", cfg.Bot.Token)
	}
	if cfg.AI.APIKey != "legacy-key" {
		t.Fatalf("api key = %q", cfg.AI.APIKey)
	}
}

func TestLoadConfig_MissingAPIKeyIsFatal(t *testing.T) {
	body := "bot:\n  token: x\nai:\n  enabled: true\n"
	if _, err := LoadConfig(writeConfig(t, body)); err == nil {
		t.Fatalf("expected validation error for missing api key")
	}
}

func TestLoadConfig_MissingToken(t *testing.T) {
	body := "ai:\n  enabled: false\n"
	if _, err := LoadConfig(writeConfig(t, body)); err == nil {
		t.Fatalf("expected validation error for missing token")
	}
}
