package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// fileConfig holds defaults for the global flags. Flags given on the
// command line win.
type fileConfig struct {
	Adapter   string `yaml:"adapter"`
	Port      string `yaml:"port"`
	Bus       *int   `yaml:"bus"`
	ResetLine *int   `yaml:"reset_line"`
	BaudRate  int    `yaml:"baudrate"`
	Devices   string `yaml:"devices"`
	Trace     string `yaml:"trace"`
}

// defaultConfigPath returns the platform config file location.
func defaultConfigPath() (string, error) {
	if appData := os.Getenv("APPDATA"); appData != "" {
		// Windows: %APPDATA%\OpenTraceISP
		return filepath.Join(appData, "OpenTraceISP", "config.yaml"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	// Linux/macOS: ~/.config/opentraceisp
	return filepath.Join(homeDir, ".config", "opentraceisp", "config.yaml"), nil
}

// loadConfig reads path. A missing file is only an error when the path was
// given explicitly.
func loadConfig(path string, explicit bool) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return &fileConfig{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

func applyConfig(cmd *cobra.Command, args []string) error {
	path, explicit := configPath, configPath != ""
	if !explicit {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return nil
		}
	}

	cfg, err := loadConfig(path, explicit)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if cfg.Adapter != "" && !flags.Changed("adapter") {
		adapterType = cfg.Adapter
	}
	if cfg.Port != "" && !flags.Changed("port") {
		serialPort = cfg.Port
	}
	if cfg.Bus != nil && !flags.Changed("bus") {
		busIndex = *cfg.Bus
	}
	if cfg.ResetLine != nil && !flags.Changed("reset-line") {
		resetLine = *cfg.ResetLine
	}
	if cfg.BaudRate != 0 && !flags.Changed("baudrate") {
		baudRate = cfg.BaudRate
	}
	if cfg.Devices != "" && !flags.Changed("devices") {
		devicesFile = cfg.Devices
	}
	if cfg.Trace != "" && !flags.Changed("trace") {
		tracePath = cfg.Trace
	}
	return nil
}
