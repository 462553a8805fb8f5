package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults_Validates(t *testing.T) {
	cfg := Defaults()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("Defaults() must validate cleanly, got: %v", err)
	}
}

func TestLoad_MergesOverridesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := `
schema_version: "1"
camera:
  fps: 30
analysis:
  fall_threshold: 1.1
  delay_sec: 2
recording:
  buffer_seconds: 20
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Camera.FPS != 30 {
		t.Errorf("expected fps override 30, got %d", cfg.Camera.FPS)
	}
	if cfg.Analysis.ReNotifyInterval != Defaults().Analysis.ReNotifyInterval {
		t.Errorf("expected un-overridden field to retain default")
	}
}

func TestLoad_InvalidConfigIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := `
schema_version: "1"
camera:
  fps: -1
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for negative fps")
	}
}

func TestSubstituteEnv_ResolvesAndFailsFast(t *testing.T) {
	t.Setenv("FALLDETECT_TEST_TOKEN", "secret-value")

	out, err := substituteEnv("token: ${FALLDETECT_TEST_TOKEN}")
	if err != nil {
		t.Fatalf("substituteEnv: %v", err)
	}
	if out != "token: secret-value" {
		t.Errorf("got %q", out)
	}

	if _, err := substituteEnv("token: ${FALLDETECT_DOES_NOT_EXIST}"); err == nil {
		t.Fatal("expected error for unresolved variable")
	}
}
