package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return dir
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("HN_SET", "value")
	cases := map[string]string{
		"${HN_SET}":             "value",
		"${HN_SET:other}":       "value",
		"${HN_UNSET_XYZ:dflt}":  "dflt",
		"${HN_UNSET_XYZ:}":      "",
		"${HN_UNSET_XYZ}":       "${HN_UNSET_XYZ}",
		"a-${HN_SET}-b":         "a-value-b",
		"plain text, no macros": "plain text, no macros",
	}
	for in, want := range cases {
		if got := expandEnv(in); got != want {
			t.Errorf("expandEnv(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadFromAppliesDefaultsAndFile(t *testing.T) {
	dir := writeConfig(t, `
app:
  name: ${HN_TEST_APP_NAME:horror-test}
database:
  driver: sqlite
  sqlite:
    path: /tmp/hn.db
mail:
  treat_failure_as_success: true
`)
	t.Setenv("APP_ENV", "unit")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.App.Name != "horror-test" {
		t.Errorf("app.name = %q", cfg.App.Name)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.SQLite.Path != "/tmp/hn.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if !cfg.Mail.TreatFailureAsSuccess {
		t.Error("mail.treat_failure_as_success 应为 true")
	}
	if cfg.TTS.ChunkLimit != 2300 || cfg.TTS.Voice != "onyx" {
		t.Errorf("tts defaults = %+v", cfg.TTS)
	}
	if cfg.Story.TotalTurns != 4 {
		t.Errorf("story.total_turns = %d", cfg.Story.TotalTurns)
	}
	if cfg.Server.HTTP.ReadTimeout != 30*time.Second {
		t.Errorf("read_timeout = %s", cfg.Server.HTTP.ReadTimeout)
	}
	if cfg.Mail.SMTP.Host != "smtp.gmail.com" || cfg.Mail.SMTP.Port != 587 {
		t.Errorf("smtp = %+v", cfg.Mail.SMTP)
	}
}

func TestLoadFromRejectsUnknownDriver(t *testing.T) {
	dir := writeConfig(t, "database:\n  driver: oracle\n")
	if _, err := LoadFrom(dir); err == nil {
		t.Fatal("未知驱动应报错")
	}
}
