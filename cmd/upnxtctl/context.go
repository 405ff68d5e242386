package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

type cliConfig struct {
	ServerURL string `toml:"server_url"`
}

type commandContext struct {
	serverFlag *string
	configFlag *string

	configOnce sync.Once
	config     cliConfig
	configErr  error
}

func newCommandContext(serverFlag, configFlag *string) *commandContext {
	return &commandContext{
		serverFlag: serverFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) serverURL() (string, error) {
	if c.serverFlag != nil && strings.TrimSpace(*c.serverFlag) != "" {
		return strings.TrimRight(strings.TrimSpace(*c.serverFlag), "/"), nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	if cfg.ServerURL != "" {
		return strings.TrimRight(cfg.ServerURL, "/"), nil
	}
	return "http://localhost:8080", nil
}

func (c *commandContext) ensureConfig() (cliConfig, error) {
	c.configOnce.Do(func() {
		path := ""
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		explicit := path != ""
		if path == "" {
			path = defaultConfigPath()
		}
		if path == "" {
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if !explicit && errors.Is(err, os.ErrNotExist) {
				return
			}
			c.configErr = fmt.Errorf("read config %s: %w", path, err)
			return
		}
		if err := toml.Unmarshal(data, &c.config); err != nil {
			c.configErr = fmt.Errorf("parse config %s: %w", path, err)
		}
	})
	return c.config, c.configErr
}

func (c *commandContext) client() (*apiClient, error) {
	base, err := c.serverURL()
	if err != nil {
		return nil, err
	}
	return newAPIClient(base), nil
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "upnxt", "config.toml")
}
