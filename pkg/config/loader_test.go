package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDecodeMergesEnvOverlayAndSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  host: localhost
  port: 5432
  password: ${DB_PASS}
jwt:
  secret: base-secret
  ttl: 24h
server:
  port: ":8080"
`)
	writeFile(t, dir, "test.yaml", `
db:
  host: db.internal
server:
  port: ":9090"
`)
	writeFile(t, dir, "secrets.env", "# comment\nDB_PASS=\"s3cret\"\n")

	var out struct {
		DB     DBConfig     `yaml:"db"`
		JWT    JWTConfig    `yaml:"jwt"`
		Server ServerConfig `yaml:"server"`
	}
	if err := Decode("test", dir, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if out.DB.Host != "db.internal" {
		t.Errorf("host = %q, want overlay value", out.DB.Host)
	}
	if out.DB.Port != 5432 {
		t.Errorf("port = %d, want base value kept", out.DB.Port)
	}
	if out.DB.Password != "s3cret" {
		t.Errorf("password = %q, want secret substituted", out.DB.Password)
	}
	if out.JWT.TTL != 24*time.Hour {
		t.Errorf("ttl = %v, want 24h", out.JWT.TTL)
	}
	if out.Server.Port != ":9090" {
		t.Errorf("server port = %q", out.Server.Port)
	}
}

func TestDecodeFallsBackToProcessEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "jwt:\n  secret: ${TASKNOTES_TEST_SECRET}\n")
	t.Setenv("TASKNOTES_TEST_SECRET", "from-env")

	var out struct {
		JWT JWTConfig `yaml:"jwt"`
	}
	if err := Decode("missing-env", dir, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.JWT.Secret != "from-env" {
		t.Fatalf("secret = %q, want from-env", out.JWT.Secret)
	}
}

func TestLoadConfigRequiresBase(t *testing.T) {
	if _, err := LoadConfig("local", t.TempDir()); err == nil {
		t.Fatal("expected error without base.yaml")
	}
}
