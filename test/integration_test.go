// ABOUTME: Integration tests for the healthhub CLI.
// ABOUTME: Builds the binary and runs a full record, read, reconcile and export workflow.
package test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestFullWorkflow(t *testing.T) {
	// Build the binary
	projectRoot, _ := filepath.Abs("..")
	binary := filepath.Join(t.TempDir(), "healthhub")

	buildCmd := exec.Command("go", "build", "-o", binary, "./cmd/healthhub")
	buildCmd.Dir = projectRoot
	if output, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build: %v\n%s", err, output)
	}

	// Use temp data dir and config
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, "data")
	configPath := filepath.Join(tmpDir, "config.json")
	config := `{"backend":"sqlite","data_dir":"` + dataDir + `","fallback":"json","log_level":"error"}`
	if err := os.WriteFile(configPath, []byte(config), 0600); err != nil {
		t.Fatal(err)
	}

	run := func(args ...string) (string, error) {
		fullArgs := append([]string{"--config", configPath}, args...)
		cmd := exec.Command(binary, fullArgs...)
		cmd.Env = append(os.Environ(), "NO_COLOR=1")
		output, err := cmd.CombinedOutput()
		return string(output), err
	}

	// Test adding metrics
	output, err := run("add", "weight", "82.5")
	if err != nil {
		t.Fatalf("Failed to add weight: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Added weight") {
		t.Errorf("Expected 'Added weight' in output, got: %s", output)
	}

	// Test blood pressure
	output, err = run("add", "bp", "145", "95")
	if err != nil {
		t.Fatalf("Failed to add bp: %v\n%s", err, output)
	}
	if !strings.Contains(output, "145/95 mmHg") {
		t.Errorf("Expected '145/95 mmHg' in output, got: %s", output)
	}

	// Test status classification
	output, err = run("status")
	if err != nil {
		t.Fatalf("Failed to get status: %v\n%s", err, output)
	}
	if !strings.Contains(output, "high") {
		t.Errorf("Expected 'high' blood pressure in status, got: %s", output)
	}

	// Test validation
	output, err = run("symptom", "headache", "--severity", "extreme")
	if err == nil {
		t.Errorf("Expected invalid severity to fail, got: %s", output)
	}

	// Test reconciling a legacy staging file with string-encoded numbers
	legacy := filepath.Join(tmpDir, "health_metrics.json")
	staged := `[{"user_id":1,"metric_type":"weight","value":"81.0","unit":"kg","recorded_at":"2024-01-01T00:00:00Z"}]`
	if err := os.WriteFile(legacy, []byte(staged), 0600); err != nil {
		t.Fatal(err)
	}
	output, err = run("sync-local", "--file", legacy)
	if err != nil {
		t.Fatalf("Failed to reconcile: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Inserted:   1") {
		t.Errorf("Expected one inserted record, got: %s", output)
	}

	// Test history includes the reconciled record
	output, err = run("history", "--days", "0", "--metric", "weight")
	if err != nil {
		t.Fatalf("Failed to list history: %v\n%s", err, output)
	}
	if !strings.Contains(output, "81.0 kg") || !strings.Contains(output, "82.5 kg") {
		t.Errorf("Expected both weights in history, got: %s", output)
	}

	// Test export
	output, err = run("export", "yaml")
	if err != nil {
		t.Fatalf("Failed to export: %v\n%s", err, output)
	}
	if !strings.Contains(output, "blood_pressure") {
		t.Errorf("Expected blood_pressure in export, got: %s", output)
	}
}
