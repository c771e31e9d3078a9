// Command casequery serves conversational full-text search over court judgments.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/casequery/internal/config"
	logpkg "github.com/kailas-cloud/casequery/internal/logger"
	"github.com/kailas-cloud/casequery/internal/version"
)

type rootOptions struct {
	env        string
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "casequery",
		Short:        "Conversational search over court judgments",
		Version:      version.String(),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(), "environment name: selects config/<env>.yaml and the log format")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "explicit config file path, overrides --env lookup")

	root.AddCommand(
		newServeCmd(opts),
		newExplainCmd(opts),
		newSessionCmd(),
		newIndexCmd(opts),
	)
	return root
}

// load reads the config and builds the logger for a command.
func (o *rootOptions) load() (config.Config, *zap.Logger, error) {
	var (
		cfg config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load(o.env)
	}
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(o.env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}
