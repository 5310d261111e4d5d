package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("APPDATA", "")

	got, err := defaultConfigPath()
	if err != nil {
		t.Fatalf("defaultConfigPath() error = %v", err)
	}
	want := filepath.Join(home, ".config", "opentraceisp", "config.yaml")
	if got != want {
		t.Errorf("defaultConfigPath() = %q, want %q", got, want)
	}

	t.Setenv("APPDATA", filepath.Join(home, "AppData"))
	got, _ = defaultConfigPath()
	if !strings.HasSuffix(got, filepath.Join("OpenTraceISP", "config.yaml")) {
		t.Errorf("defaultConfigPath() with APPDATA = %q", got)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	if _, err := loadConfig(filepath.Join(dir, "none.yaml"), false); err != nil {
		t.Errorf("missing default config should be ignored: %v", err)
	}
	if _, err := loadConfig(filepath.Join(dir, "none.yaml"), true); err == nil {
		t.Errorf("missing explicit config should fail")
	}

	path := filepath.Join(dir, "config.yaml")
	data := "adapter: usbasp\nbus: 0\nreset_line: 4\nbaudrate: 125000\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path, true)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Adapter != "usbasp" || cfg.BaudRate != 125000 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Bus == nil || *cfg.Bus != 0 || cfg.ResetLine == nil || *cfg.ResetLine != 4 {
		t.Errorf("bus/reset line not loaded: %+v", cfg)
	}

	if err := os.WriteFile(path, []byte("adapter: [\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path, true); err == nil {
		t.Errorf("expected parse error")
	}
}

func TestConfigFileSuppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	devices := filepath.Join(dir, "devices.yaml")
	def := "devices:\n  - name: CustomPart\n    signature: \"1E 95 0F\"\n    fuses:\n      lock:\n        - {name: LB, mask: 3, active_low: true}\n"
	if err := os.WriteFile(devices, []byte(def), 0o600); err != nil {
		t.Fatal(err)
	}
	config := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(config, []byte("adapter: simulator\ndevices: "+devices+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	output, err := executeCommand(t, "read", "--config", config)
	if err != nil {
		t.Fatalf("read: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Device:    CustomPart") {
		t.Errorf("config devices file not used:\n%s", output)
	}

	if _, err := executeCommand(t, "read", "--config", config, "--adapter", "bogus"); err == nil {
		t.Errorf("flag should override config adapter")
	}
	if _, err := executeCommand(t, "read", "--config", filepath.Join(dir, "missing.yaml")); err == nil {
		t.Errorf("expected error for missing explicit config")
	}
}
