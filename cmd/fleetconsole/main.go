// Command fleetconsole is a terminal console for the fleet-management backend.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/nhle/fleetconsole/internal/app"
	"github.com/nhle/fleetconsole/internal/credential"
	"github.com/nhle/fleetconsole/internal/model"
)

func main() {
	configPath := pflag.StringP("config", "c", model.DefaultConfigPath(), "path to the YAML config file")
	logLevel := pflag.String("log-level", "", "override log.level (debug, info, warn, error)")
	logout := pflag.Bool("logout", false, "remove the stored API token and exit")
	pflag.Parse()

	if *logout {
		if err := credential.Delete(credential.TokenKey); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("API token removed.")
		return
	}

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot load config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logFile, err := setupLogging(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	token, err := credential.Token()
	if err != nil && !errors.Is(err, credential.ErrNoToken) {
		// The keyring being unavailable is not fatal; setup asks for a token.
		logrus.WithError(err).Warn("reading API token failed")
	}
	if cfg.API.BaseURL == "" {
		token = ""
	}

	logrus.WithFields(logrus.Fields{
		"config":   *configPath,
		"base_url": cfg.API.BaseURL,
		"roles":    cfg.Principal.Roles,
	}).Info("starting fleetconsole")

	p := tea.NewProgram(app.New(cfg, *configPath, token), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logrus.WithError(err).Error("program exited with error")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging sends logrus output to the configured file; the terminal
// belongs to the TUI.
func setupLogging(cfg model.LogConfig) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}

	logrus.SetFormatter(new(logrus.JSONFormatter))
	logrus.SetOutput(f)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	return f, nil
}
