package main

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"medmodeld/internal/httpapi"
	"medmodeld/internal/manager"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Probe the runtime and the host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), mgr.Status(cmd.Context()))
		},
	}
}

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List cataloged models with installed flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager()
			if err != nil {
				return err
			}
			// best effort; without a runtime every entry reads as not installed
			if err := mgr.Sync(cmd.Context()); err != nil {
				a.log.Debug().Err(err).Msg("sync before listing")
			}
			return printJSON(cmd.OutOrStdout(), mgr.ListModels())
		},
	}
}

func newInstalledCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "installed",
		Short: "List models installed on the runtime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager()
			if err != nil {
				return err
			}
			if err := mgr.Sync(cmd.Context()); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), mgr.Installed())
		},
	}
}

func newInstallCmd(a *app) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:     "install <name>",
		Short:   "Pull the base model and create the specialised model",
		Example: "  medmodeld install llava-medical",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager()
			if err != nil {
				return err
			}
			var onProgress manager.ProgressFunc
			if !quiet {
				// cobra writers are not synchronised; progress arrives from two goroutines
				w := &syncWriter{w: cmd.ErrOrStderr()}
				onProgress = func(p manager.Progress) {
					w.printf("[%s] %s\n", p.Phase, p.Line)
				}
			}
			res, err := mgr.Install(cmd.Context(), args[0], onProgress)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress lines")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete an installed model from the runtime",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager()
			if err != nil {
				return err
			}
			if err := mgr.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"removed": args[0]})
		},
	}
}

func newStartRuntimeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start-runtime",
		Short: "Launch `ollama serve` in the background unless the runtime already answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager()
			if err != nil {
				return err
			}
			res, err := mgr.StartRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show runtime details of an installed model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager()
			if err != nil {
				return err
			}
			info, err := mgr.GetInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	var (
		image         string
		temperature   float64
		topP          float64
		topK          int
		repeatPenalty float64
		maxTokens     int
	)
	cmd := &cobra.Command{
		Use:   "run <name> <prompt>",
		Short: "Run a text prompt, or a vision prompt with --image",
		Example: `  medmodeld run mistral-medical "Summarize: BP 150/95, HR 88"
  medmodeld run llava-medical "Describe the findings" --image chest.png --temperature 0.1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager()
			if err != nil {
				return err
			}
			var opts manager.SamplingOptions
			f := cmd.Flags()
			if f.Changed("temperature") {
				opts.Temperature = &temperature
			}
			if f.Changed("top-p") {
				opts.TopP = &topP
			}
			if f.Changed("top-k") {
				opts.TopK = &topK
			}
			if f.Changed("repeat-penalty") {
				opts.RepeatPenalty = &repeatPenalty
			}
			if f.Changed("max-tokens") {
				opts.MaxTokens = &maxTokens
			}

			var res *manager.InferenceResult
			if image != "" {
				raw, err := readImage(image)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				res, err = mgr.RunVision(cmd.Context(), args[0], args[1], base64.StdEncoding.EncodeToString(raw), opts)
				if err != nil {
					return err
				}
			} else {
				res, err = mgr.RunText(cmd.Context(), args[0], args[1], opts)
				if err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	f := cmd.Flags()
	f.StringVar(&image, "image", "", "Image file for vision models (- for stdin)")
	f.Float64Var(&temperature, "temperature", 0, "Override sampling temperature")
	f.Float64Var(&topP, "top-p", 0, "Override top_p")
	f.IntVar(&topK, "top-k", 0, "Override top_k")
	f.Float64Var(&repeatPenalty, "repeat-penalty", 0, "Override repeat_penalty")
	f.IntVar(&maxTokens, "max-tokens", 0, "Maximum tokens to generate")
	return cmd
}

func newProvidersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Check connectivity to hosted and local AI providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), a.prober().ProbeAll(cmd.Context()))
		},
	}
}

func newTokenCmd(a *app) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API access token signed with jwt_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.JWTSecret == "" {
				return fmt.Errorf("jwt_secret is not configured")
			}
			tok, err := httpapi.IssueToken(a.cfg.JWTSecret, subject, role, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "Token subject")
	cmd.Flags().StringVar(&role, "role", httpapi.RoleAdmin, "Role claim: admin|clinician")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime (0 for no expiry)")
	return cmd
}
