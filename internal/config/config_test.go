package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const validConnection = `{
  "transport": "tcp",
  "ip": "127.0.0.1",
  "shell_port": 50001,
  "control_port": 50002,
  "stdin_port": 50003,
  "iopub_port": 50004,
  "hb_port": 50005,
  "key": "a0436f6c-1916-498b-8eb9-e81ab9368e84",
  "signature_scheme": "hmac-sha256"
}`

func TestLoadConnection(t *testing.T) {
	path := writeFile(t, t.TempDir(), "connection.json", validConnection)

	conn, err := LoadConnection(path)
	if err != nil {
		t.Fatalf("LoadConnection: %v", err)
	}
	if conn.ShellPort != 50001 || conn.HeartbeatPort != 50005 {
		t.Errorf("ports = %+v", conn)
	}
	if conn.SignatureScheme != "hmac-sha256" {
		t.Errorf("signature_scheme = %q", conn.SignatureScheme)
	}
	if got := conn.Endpoint(conn.ShellPort); got != "tcp://127.0.0.1:50001" {
		t.Errorf("Endpoint = %q", got)
	}
}

func TestLoadConnectionDefaultsScheme(t *testing.T) {
	content := `{"ip":"127.0.0.1","shell_port":1,"control_port":2,"stdin_port":3,"iopub_port":4,"hb_port":5,"key":""}`
	path := writeFile(t, t.TempDir(), "connection.json", content)

	conn, err := LoadConnection(path)
	if err != nil {
		t.Fatalf("LoadConnection: %v", err)
	}
	if conn.SignatureScheme != "hmac-sha256" {
		t.Errorf("signature_scheme = %q, want default", conn.SignatureScheme)
	}
	if conn.Transport != "tcp" {
		t.Errorf("transport = %q, want tcp default", conn.Transport)
	}
}

func TestLoadConnectionRejectsBadPorts(t *testing.T) {
	content := `{"ip":"127.0.0.1","shell_port":0,"control_port":2,"stdin_port":3,"iopub_port":4,"hb_port":5}`
	path := writeFile(t, t.TempDir(), "connection.json", content)

	if _, err := LoadConnection(path); err == nil {
		t.Error("LoadConnection accepted a zero port")
	}
}

func TestConnectionChecksumVerification(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "connection.json", validConnection)

	if err := GenerateChecksums(dir, []string{"connection.json"}); err != nil {
		t.Fatalf("GenerateChecksums: %v", err)
	}
	if _, err := LoadConnection(path); err != nil {
		t.Fatalf("LoadConnection with valid checksum: %v", err)
	}

	// Tamper after locking.
	writeFile(t, dir, "connection.json", strings.Replace(validConnection, "50001", "50099", 1))
	_, err := LoadConnection(path)
	if err == nil || !strings.Contains(err.Error(), "tampering") {
		t.Errorf("LoadConnection after tamper: %v, want tampering error", err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "kernel:\n  id: my-kernel\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Kernel.ID != "my-kernel" {
		t.Errorf("kernel.id = %q", cfg.Kernel.ID)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log defaults = %+v", cfg.Log)
	}
	if cfg.History.Path == "" {
		t.Error("history.path default is empty")
	}
	if cfg.Control.Dedicated {
		t.Error("control.dedicated default should be false")
	}
}

func TestLoadConfigEnvInterpolation(t *testing.T) {
	t.Setenv("XEUS_TEST_HISTORY", "/tmp/test-history.db")
	path := writeFile(t, t.TempDir(), "config.yaml",
		"history:\n  path: ${XEUS_TEST_HISTORY}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.History.Path != "/tmp/test-history.db" {
		t.Errorf("history.path = %q", cfg.History.Path)
	}
}

func TestLoadConfigUnresolvedEnvVar(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml",
		"history:\n  path: ${XEUS_DEFINITELY_NOT_SET_VAR}\n")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "XEUS_DEFINITELY_NOT_SET_VAR") {
		t.Errorf("Load = %v, want unresolved env var error", err)
	}
}

func TestLoadConfigRejectsBadLogLevel(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "log:\n  level: verbose\n")

	if _, err := Load(path); err == nil {
		t.Error("Load accepted invalid log level")
	}
}
