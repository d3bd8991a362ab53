// Package cli implements the pipelinectl command line.
package cli

import (
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pomflow/backend/internal/config"
	"pomflow/backend/internal/logging"
	"pomflow/backend/internal/pipeline"
	"pomflow/backend/internal/services"
)

// app holds what every subcommand needs once configuration is loaded.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	backend   services.BackendClient
	workflow  *services.WorkflowService
	evaluator *pipeline.Evaluator
	output    string
}

// NewRootCommand builds the pipelinectl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "pipelinectl",
		Short: "Inspect and drive project pipelines",
		Long: `pipelinectl shows where a project stands in the
upload, scan, POM, test generation and execution pipeline, and
triggers the next step against the backend.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "backend base URL (overrides backend.url)")
	rootCmd.PersistentFlags().String("log-level", "", "log level written to stderr")
	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", "text", "output format: text, json or yaml")

	rootCmd.AddCommand(
		newProjectsCommand(a),
		newCreateCommand(a),
		newStatusCommand(a),
		newScanCommand(a),
		newPomCommand(a),
		newTestsCommand(a),
		newExecuteCommand(a),
		newCodeCommand(a),
	)
	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

func (a *app) init(cmd *cobra.Command) error {
	if err := validateOutput(a.output); err != nil {
		return err
	}

	v := viper.New()
	if backendURL, _ := cmd.Flags().GetString("backend"); backendURL != "" {
		v.Set("backend.url", backendURL)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		v.Set("log.level", level)
	}
	configFile, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	// Diagnostics go to stderr only when asked for.
	var logOut io.Writer = io.Discard
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		logOut = cmd.ErrOrStderr()
	}
	a.logger = logging.New(logOut, cfg.Log.Level)

	client := services.NewHTTPBackendClient(cfg.Backend.URL, cfg.Backend.Timeout)
	a.backend = client
	a.workflow = services.NewWorkflowService(client, a.logger)
	a.evaluator = pipeline.NewEvaluator(client, a.logger)
	return nil
}

func (a *app) pollInterval() time.Duration {
	if a.cfg.Pipeline.PollInterval > 0 {
		return a.cfg.Pipeline.PollInterval
	}
	return 2 * time.Second
}
