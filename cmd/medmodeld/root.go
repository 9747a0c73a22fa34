package main

import (
	"github.com/spf13/cobra"

	"medmodeld/internal/config"
)

// newRootCmd builds the command tree. Every subcommand resolves configuration
// in PersistentPreRunE and reads it from the shared app.
func newRootCmd() *cobra.Command {
	a := &app{}
	var (
		cfgPath   string
		logLevel  string
		logFormat string
	)
	root := &cobra.Command{
		Use:   "medmodeld",
		Short: "Manage and run healthcare-tuned local models on an Ollama runtime",
		Long: `medmodeld manages healthcare-specialised local models on an
Ollama-compatible runtime and proxies text and vision prompts to them.

Examples:
  medmodeld serve --addr :8080
  medmodeld install llava-medical
  medmodeld run mistral-medical "Summarize: BP 150/95, HR 88"
  medmodeld run llava-medical "Describe the findings" --image chest.png`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			a.cfg = cfg
			a.log = newLogger(cfg, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Config file (.yaml, .yml, .json, .toml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: trace|debug|info|warn|error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format: console|json")

	root.AddCommand(
		newServeCmd(a),
		newStatusCmd(a),
		newModelsCmd(a),
		newInstalledCmd(a),
		newInstallCmd(a),
		newRemoveCmd(a),
		newStartRuntimeCmd(a),
		newInfoCmd(a),
		newRunCmd(a),
		newProvidersCmd(a),
		newTokenCmd(a),
	)
	return root
}
