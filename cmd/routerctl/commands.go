package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/secureclaw/internal/config"
	"github.com/raaihank/secureclaw/internal/dispatch"
	"github.com/raaihank/secureclaw/internal/embeddings"
	"github.com/raaihank/secureclaw/internal/etl"
	"github.com/raaihank/secureclaw/internal/privacy"
	"github.com/raaihank/secureclaw/internal/router"
)

type options struct {
	configPath string
	jsonOutput bool
}

// loadConfig returns defaults when no file is given.
func (o *options) loadConfig() (*config.Config, error) {
	if o.configPath == "" {
		return config.GetDefaults(), nil
	}
	return config.Load(o.configPath)
}

func (o *options) detector() (*privacy.Detector, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return privacy.NewDetector(cfg.Privacy, zap.NewNop())
}

// buildRouter builds a router from the configured corpus and embedder. The
// returned cleanup func is never nil.
func (o *options) buildRouter() (*router.Router, func(), error) {
	noop := func() {}
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, noop, err
	}

	embedder, cleanup, err := embeddings.New(cfg.Embeddings, zap.NewNop())
	if err != nil {
		return nil, noop, err
	}
	embeddingType := ""
	var re router.Embedder
	if embedder != nil {
		embeddingType = embedder.Name()
		re = embedder
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	seeds, err := etl.LoadCorpus(ctx, cfg.Corpus, embeddingType, zap.NewNop())
	if err != nil {
		cleanup()
		return nil, noop, err
	}

	r, err := router.New(seeds, re, cfg.Router, zap.NewNop())
	if err != nil {
		cleanup()
		return nil, noop, err
	}
	return r, cleanup, nil
}

// inputText joins args, or reads stdin when there are none.
func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fail("no text given")
	}
	return text, nil
}

// parseTools accepts comma separated names or a JSON array of tool objects
// prefixed with '@' to read from a file.
func parseTools(value string) ([]router.Tool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if strings.HasPrefix(value, "@") {
		data, err := os.ReadFile(value[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read tools file: %w", err)
		}
		var tools []router.Tool
		if err := json.Unmarshal(data, &tools); err != nil {
			return nil, fmt.Errorf("failed to parse tools file: %w", err)
		}
		return tools, nil
	}

	var tools []router.Tool
	for _, name := range strings.Split(value, ",") {
		if name = strings.TrimSpace(name); name != "" {
			tools = append(tools, router.Tool{Name: name})
		}
	}
	return tools, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newScanCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [text]",
		Short: "Scan text for PII and report the risk level",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			d, err := opts.detector()
			if err != nil {
				return err
			}

			result := d.Scan(text)
			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, dispatch.Summarize(result))
			}

			style := localStyle
			if result.RiskLevel != privacy.RiskLow {
				style = warnStyle
			}
			fmt.Fprintf(out, "Risk:           %s\n", style.Render(result.RiskLevel.String()))
			fmt.Fprintf(out, "Recommendation: %s\n", result.Recommendation)
			if names := result.CategoryNames(); len(names) > 0 {
				fmt.Fprintf(out, "Categories:     %s\n", strings.Join(names, ", "))
			}
			fmt.Fprintln(out, dimStyle.Render(result.Summary))
			return nil
		},
	}
}

func newRedactCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "redact [text]",
		Short: "Replace detected PII with category placeholders",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			d, err := opts.detector()
			if err != nil {
				return err
			}

			redacted := d.Redact(text, nil)
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]string{"redacted": redacted})
			}
			fmt.Fprintln(cmd.OutOrStdout(), redacted)
			return nil
		},
	}
}

func newRouteCmd(opts *options) *cobra.Command {
	var toolSpec, override string

	cmd := &cobra.Command{
		Use:   "route [query]",
		Short: "Plan where a query runs: privacy override first, then the router",
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			tools, err := parseTools(toolSpec)
			if err != nil {
				return err
			}
			requested, err := dispatch.ParseOverride(override)
			if err != nil {
				return err
			}
			d, err := opts.detector()
			if err != nil {
				return err
			}
			r, cleanup, err := opts.buildRouter()
			if err != nil {
				return err
			}
			defer cleanup()

			plan := dispatch.NewPlanner(d, r, nil).Plan(query, tools, requested)
			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, plan)
			}

			fmt.Fprintf(out, "Route:   %s\n", routeStyle(plan.Route.String()).Render(plan.Route.String()))
			fmt.Fprintf(out, "Source:  %s\n", plan.Source)
			fmt.Fprintf(out, "Privacy: %s (%s)\n", plan.Privacy.RiskLevel, plan.Privacy.Summary)
			if plan.Prompt != query {
				fmt.Fprintf(out, "Prompt:  %s\n", plan.Prompt)
			}
			if dec := plan.Decision; dec != nil {
				fmt.Fprintf(out, "Reason:  %s\n", dec.Reason)
				fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf(
					"multi=%.2f privacy=%.2f complexity=%.2f similarity=%.2f borderline=%t",
					dec.MultiToolScore, dec.PrivacyScore, dec.ComplexityScore, dec.SimilarityScore, dec.Borderline)))
				for _, m := range dec.Matches {
					fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("  %.3f  %s (%d tools)", m.Similarity, m.Text, m.ToolCount)))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&toolSpec, "tools", "", "Available tools: comma separated names, or @file.json")
	cmd.Flags().StringVar(&override, "override", "auto", "Routing override: auto, local or cloud")
	return cmd
}

func newValidateCmd(opts *options) *cobra.Command {
	var toolSpec, query, outcomePath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the post-inference gate over a local model result",
		Long: `Reads the local model's result envelope ({"function_calls": [...],
"confidence": 0.9}) from --outcome or stdin and decides whether it can be
trusted. With --query the pre-inference decision is computed first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if outcomePath != "" && outcomePath != "-" {
				data, err = os.ReadFile(outcomePath)
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("failed to read outcome: %w", err)
			}
			if len(bytes.TrimSpace(data)) == 0 {
				return fail("no outcome given")
			}
			outcome, err := router.DecodeOutcome(data)
			if err != nil {
				return err
			}
			tools, err := parseTools(toolSpec)
			if err != nil {
				return err
			}

			r, cleanup, err := opts.buildRouter()
			if err != nil {
				return err
			}
			defer cleanup()

			var pre router.Decision
			if strings.TrimSpace(query) != "" {
				pre = r.Decide(query, tools)
			}
			verdict := r.Validate(outcome, pre, tools)

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, verdict)
			}

			if verdict.ShouldEscalate {
				fmt.Fprintf(out, "Verdict: %s\n", cloudStyle.Render("escalate to cloud"))
			} else {
				fmt.Fprintf(out, "Verdict: %s\n", localStyle.Render("trust local"))
			}
			fmt.Fprintf(out, "Reason:  %s\n", verdict.Reason)
			fmt.Fprintf(out, "Detail:  %s\n", verdict.Detail)
			fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("confidence %.2f (%s)", verdict.Confidence, verdict.Band)))
			return nil
		},
	}
	cmd.Flags().StringVar(&toolSpec, "tools", "", "Available tools: comma separated names, or @file.json")
	cmd.Flags().StringVar(&query, "query", "", "Original query, for the pre-inference disagreement check")
	cmd.Flags().StringVar(&outcomePath, "outcome", "", "Outcome JSON file, or - for stdin")
	return cmd
}
