// Package cli wires the client library into the llmc command.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bkyoung/llmclient/ledger"
	"github.com/bkyoung/llmclient/llm"
	"github.com/bkyoung/llmclient/service"
)

// ErrVersionRequested indicates the user requested the CLI version and no
// further work should be done.
var ErrVersionRequested = errors.New("version requested")

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Service  *service.Service
	Registry *llm.Registry
	Ledger   *ledger.Store // optional usage journal
	Args     Arguments
	Version  string
}

// NewRootCommand constructs the root Cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "llmc",
		Short: "Resilient multi-provider LLM client",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	root.AddCommand(completeCommand(deps))
	root.AddCommand(modelsCommand(deps))
	root.AddCommand(budgetCommand(deps))

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

func completeCommand(deps Dependencies) *cobra.Command {
	var providerID string
	var model string
	var systemPrompt string
	var maxTokens int
	var timeout time.Duration
	var jsonMode bool

	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: "Send a prompt to a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := deps.Service.Complete(cmd.Context(), args[0], service.Options{
				Provider:     llm.ProviderID(providerID),
				Model:        model,
				SystemPrompt: systemPrompt,
				MaxTokens:    maxTokens,
				Timeout:      timeout,
				JSONMode:     jsonMode,
			})
			if err != nil {
				return err
			}

			if deps.Ledger != nil {
				if err := deps.Ledger.RecordResponse(cmd.Context(), resp); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: ledger write failed: %v\n", err)
				}
			}

			return renderResponse(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&providerID, "provider", "", "Provider to use (default: configured preference order)")
	cmd.Flags().StringVar(&model, "model", "", "Model to use (default: provider default)")
	cmd.Flags().StringVar(&systemPrompt, "system", "", "System prompt")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Maximum completion tokens")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-request timeout")
	cmd.Flags().BoolVar(&jsonMode, "json-mode", false, "Force JSON output from the model")

	return cmd
}

func modelsCommand(deps Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List registered providers and their models",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			caser := cases.Title(language.English)

			for _, id := range deps.Registry.List() {
				provider, ok := deps.Registry.Get(id)
				if !ok {
					continue
				}
				models, err := provider.ListModels(cmd.Context())
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %v\n", id, err)
					continue
				}
				fmt.Fprintf(out, "%s (%s):\n", caser.String(string(id)), deps.Service.CircuitBreakerState(id))
				for _, m := range models {
					fmt.Fprintf(out, "  %s\n", m)
				}
			}
			return nil
		},
	}
}

func budgetCommand(deps Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "budget",
		Short: "Show token budget and recorded usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			budget, ok := deps.Service.TokenBudget()
			if !ok {
				fmt.Fprintln(out, "no token budget configured")
			} else {
				fmt.Fprintf(out, "daily:   %d/%s tokens\n", budget.DailyUsage, limitString(budget.DailyLimit))
				fmt.Fprintf(out, "monthly: %d/%s tokens\n", budget.MonthlyUsage, limitString(budget.MonthlyLimit))
				if !budget.ResetsAt.IsZero() {
					fmt.Fprintf(out, "resets:  %s\n", budget.ResetsAt.Format(time.RFC3339))
				}
			}

			if deps.Ledger == nil {
				return nil
			}
			totals, err := deps.Ledger.Totals(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range totals {
				fmt.Fprintf(out, "%s: %d requests, %d tokens, $%.4f\n",
					t.Provider, t.Requests, t.TotalTokens, t.CostUSD)
			}
			return nil
		},
	}
}

func limitString(limit int) string {
	if limit <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", limit)
}

// renderResponse writes a human-readable summary on a TTY and JSON otherwise,
// so the command composes in pipelines.
func renderResponse(out io.Writer, resp *llm.Response) error {
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		caser := cases.Title(language.English)
		fmt.Fprintln(out, resp.Content)
		fmt.Fprintf(out, "\n[%s/%s: %d tokens, $%.4f, %s]\n",
			caser.String(string(resp.Provider)), resp.Model,
			resp.Usage.TotalTokens, resp.CostUSD, resp.Latency.Round(time.Millisecond))
		return nil
	}

	payload := struct {
		Content      string         `json:"content"`
		Provider     llm.ProviderID `json:"provider"`
		Model        string         `json:"model"`
		Usage        llm.Usage      `json:"usage"`
		CostUSD      float64        `json:"costUsd"`
		LatencyMs    int64          `json:"latencyMs"`
		FinishReason string         `json:"finishReason,omitempty"`
	}{
		Content:      resp.Content,
		Provider:     resp.Provider,
		Model:        resp.Model,
		Usage:        resp.Usage,
		CostUSD:      resp.CostUSD,
		LatencyMs:    resp.Latency.Milliseconds(),
		FinishReason: resp.FinishReason,
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
