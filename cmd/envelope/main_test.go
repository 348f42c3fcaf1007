package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-envelope/pkg/config"
)

// cli runs the command with captured output
func cli(t *testing.T, stdin []byte, args ...string) (int, string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, bytes.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvKeyFile, "")
	t.Setenv(config.EnvLogLevel, "")
	t.Setenv(config.EnvMetricsTextfile, "")
}

func TestRun_Usage(t *testing.T) {
	if code, _, stderr := cli(t, nil); code != 1 || !strings.Contains(stderr, "Usage:") {
		t.Errorf("run() with no args = %d, stderr %q", code, stderr)
	}

	if code, _, stderr := cli(t, nil, "frobnicate"); code != 1 || !strings.Contains(stderr, "Unknown command: frobnicate") {
		t.Errorf("run(frobnicate) = %d, stderr %q", code, stderr)
	}

	if code, stdout, _ := cli(t, nil, "version"); code != 0 || !strings.Contains(stdout, version) {
		t.Errorf("run(version) = %d, stdout %q", code, stdout)
	}
}

func TestRun_KeygenEncryptDecrypt(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	keyFile := filepath.Join(dir, "master.json")
	plainFile := filepath.Join(dir, "notes.txt")
	sealedFile := filepath.Join(dir, "notes.env")
	openedFile := filepath.Join(dir, "notes.out")

	code, stdout, stderr := cli(t, nil, "keygen", "--key-file="+keyFile)
	if code != 0 {
		t.Fatalf("keygen failed: %s", stderr)
	}
	if _, err := uuid.Parse(strings.TrimSpace(stdout)); err != nil {
		t.Errorf("keygen printed %q, want a UUID", stdout)
	}

	message := []byte("meet at the usual place")
	if err := os.WriteFile(plainFile, message, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if code, _, stderr := cli(t, nil, "encrypt", "--key-file="+keyFile, "--in="+plainFile, "--out="+sealedFile); code != 0 {
		t.Fatalf("encrypt failed: %s", stderr)
	}

	sealed, err := os.ReadFile(sealedFile)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if bytes.Contains(sealed, message) {
		t.Error("Sealed file contains the plaintext")
	}

	if code, _, stderr := cli(t, nil, "decrypt", "--key-file="+keyFile, "--in="+sealedFile, "--out="+openedFile); code != 0 {
		t.Fatalf("decrypt failed: %s", stderr)
	}

	opened, err := os.ReadFile(openedFile)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(opened, message) {
		t.Errorf("Decrypted %q, want %q", opened, message)
	}
}

func TestRun_Stdio(t *testing.T) {
	isolateEnv(t)
	keyFile := filepath.Join(t.TempDir(), "master.json")

	if code, _, stderr := cli(t, nil, "keygen", "--key-file="+keyFile, "--key-id=backup-2026"); code != 0 {
		t.Fatalf("keygen failed: %s", stderr)
	}

	// Key file taken from the environment
	t.Setenv(config.EnvKeyFile, keyFile)

	code, sealed, stderr := cli(t, []byte("piped"), "encrypt")
	if code != 0 {
		t.Fatalf("encrypt failed: %s", stderr)
	}
	if !strings.Contains(sealed, "backup-2026") {
		t.Error("Sealed record should carry the key id as associated data")
	}

	code, opened, stderr := cli(t, []byte(sealed), "decrypt")
	if code != 0 {
		t.Fatalf("decrypt failed: %s", stderr)
	}
	if opened != "piped" {
		t.Errorf("Decrypted %q, want piped", opened)
	}
}

func TestRun_DecryptTampered(t *testing.T) {
	isolateEnv(t)
	keyFile := filepath.Join(t.TempDir(), "master.json")

	if code, _, stderr := cli(t, nil, "keygen", "--key-file="+keyFile); code != 0 {
		t.Fatalf("keygen failed: %s", stderr)
	}

	code, sealed, stderr := cli(t, []byte("secret"), "encrypt", "--key-file="+keyFile)
	if code != 0 {
		t.Fatalf("encrypt failed: %s", stderr)
	}

	tampered := []byte(sealed)
	tampered[len(tampered)-1] ^= 0x01

	code, stdout, stderr := cli(t, tampered, "decrypt", "--key-file="+keyFile)
	if code != 1 {
		t.Fatalf("decrypt of tampered record exited %d", code)
	}
	if stdout != "" {
		t.Errorf("Tampered decrypt wrote output %q", stdout)
	}
	if !strings.Contains(stderr, "envelope: decryption failed") {
		t.Errorf("stderr = %q, want opaque decryption error", stderr)
	}
}

func TestRun_KeygenRefusesOverwrite(t *testing.T) {
	isolateEnv(t)
	keyFile := filepath.Join(t.TempDir(), "master.json")

	if code, _, stderr := cli(t, nil, "keygen", "--key-file="+keyFile); code != 0 {
		t.Fatalf("keygen failed: %s", stderr)
	}
	if code, _, _ := cli(t, nil, "keygen", "--key-file="+keyFile); code != 1 {
		t.Error("Second keygen should fail rather than overwrite the key")
	}
}

func TestRun_MetricsTextfile(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	keyFile := filepath.Join(dir, "master.json")
	promFile := filepath.Join(dir, "envelope.prom")
	configFile := filepath.Join(dir, "envelope.yaml")

	cfg := "key_file: " + keyFile + "\nlog_level: error\nmetrics_textfile: " + promFile + "\n"
	if err := os.WriteFile(configFile, []byte(cfg), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if code, _, stderr := cli(t, nil, "keygen", "--config="+configFile); code != 0 {
		t.Fatalf("keygen failed: %s", stderr)
	}
	if code, _, stderr := cli(t, []byte("count me"), "encrypt", "--config="+configFile); code != 0 {
		t.Fatalf("encrypt failed: %s", stderr)
	}

	data, err := os.ReadFile(promFile)
	if err != nil {
		t.Fatalf("Metrics textfile not written: %v", err)
	}

	text := string(data)
	for _, want := range []string{
		`envelope_operations_total{operation="encrypt",status="success"} 1`,
		`envelope_key_provider_calls_total{call="generate_data_key",status="success"} 1`,
		"envelope_data_keys_wiped_total 1",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Metrics textfile missing %q", want)
		}
	}
}

func TestRun_MissingKeyFile(t *testing.T) {
	isolateEnv(t)

	code, _, stderr := cli(t, []byte("x"), "encrypt", "--key-file="+filepath.Join(t.TempDir(), "absent.json"))
	if code != 1 {
		t.Errorf("encrypt with missing key exited %d", code)
	}
	if !strings.Contains(stderr, "failed to read master key file") {
		t.Errorf("stderr = %q", stderr)
	}
}
