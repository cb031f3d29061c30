package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"leadcast/internal/config"
	"leadcast/internal/delivery"
	"leadcast/internal/journal"
	"leadcast/internal/logging"
	"leadcast/internal/notifications"
	"leadcast/internal/services/telegram"
	"leadcast/internal/staging"
)

type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if c.verboseFlag != nil && *c.verboseFlag {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg := c.configValue()
		if cfg == nil {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) telegramClient() *telegram.Client {
	cfg := c.configValue()
	return telegram.NewClient(telegram.Config{
		BaseURL:        cfg.Telegram.BaseURL,
		TimeoutSeconds: cfg.Delivery.RequestTimeoutSeconds,
	})
}

// runtime is the delivery wiring shared by the lead and send commands.
type runtime struct {
	orchestrator *delivery.Orchestrator
	journal      *journal.Store
}

func (r *runtime) Close() {
	if r != nil && r.journal != nil {
		_ = r.journal.Close()
	}
}

func (c *commandContext) newRuntime() (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger := c.log()
	staging.Sweep(context.Background(), cfg.Paths.StagingDir, staging.DefaultMaxAge, logger)
	store, err := journal.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	orchestrator := delivery.NewFromConfig(cfg, c.telegramClient(), notifications.NewService(cfg), store, logger)
	return &runtime{orchestrator: orchestrator, journal: store}, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func commandContextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
