package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SnowballHQ/geo-optimizer-sub002/internal/orchestrator"
)

const defaultServer = "http://localhost:8080"

// commandContext carries settings resolved from flags, SNOWBALL_* environment
// variables and an optional config file, in that order of precedence.
type commandContext struct {
	v      *viper.Viper
	client *orchestrator.Client
}

func newCommandContext() *commandContext {
	return &commandContext{v: viper.New()}
}

func (c *commandContext) init(cmd *cobra.Command) error {
	v := c.v
	v.SetEnvPrefix("SNOWBALL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	v.SetDefault("server", defaultServer)
	v.SetDefault("log-level", "warn")
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return eris.Wrap(err, "bind flags")
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return eris.Wrapf(err, "read config %s", path)
		}
	}

	if err := initLogger(v.GetString("log-level")); err != nil {
		return err
	}

	c.client = orchestrator.NewClient(v.GetString("server"), v.GetString("api-key"),
		&http.Client{Timeout: 15 * time.Minute})
	return nil
}

func initLogger(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return eris.Wrap(err, "parse log level")
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	logger, err := zc.Build()
	if err != nil {
		return eris.Wrap(err, "build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}

func (c *commandContext) orchestrator() *orchestrator.Orchestrator {
	return &orchestrator.Orchestrator{
		Client:  c.client,
		Options: orchestrator.Options{StepTimeout: c.v.GetDuration("timeout")},
	}
}
