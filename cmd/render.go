package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kayz/weave/internal/ai"
	"github.com/kayz/weave/internal/audit"
	"github.com/kayz/weave/internal/config"
	"github.com/kayz/weave/internal/logger"
	"github.com/kayz/weave/internal/promptgen"
	"github.com/kayz/weave/internal/sources"
)

var (
	renderBundlePath string
	renderMaxTokens  int
	renderOutputPath string
	renderAudit      bool
	renderSubmit     bool
)

// renderResult is the JSON envelope written by `weave render`.
type renderResult struct {
	TemplateID      string              `json:"template_id"`
	TemplateVersion int                 `json:"template_version"`
	TraceID         string              `json:"trace_id"`
	TokenEstimate   int                 `json:"token_estimate"`
	Messages        []promptgen.Message `json:"messages"`
	Reply           string              `json:"reply,omitempty"`
}

var renderCmd = &cobra.Command{
	Use:   "render <template.json>",
	Short: "Render a template against a context bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read template: %w", err)
		}

		var bundle *sources.Bundle
		if renderBundlePath != "" {
			bundle, err = sources.LoadBundle(renderBundlePath)
			if err != nil {
				return err
			}
		} else {
			bundle = &sources.Bundle{}
		}

		reg := sources.NewRegistry()
		bundle.WireInto(reg)

		store, err := sources.OpenTurnStore(cfg.ResolvePath(cfg.SQLitePath))
		if err != nil {
			logger.Warn("turns source unavailable: %v", err)
		} else {
			defer store.Close()
			defaults := bundle.Conversation
			if defaults.Limit <= 0 {
				defaults.Limit = cfg.Render.MaxHistory
			}
			reg.RegisterOrdered("turns", store.TurnsHandler(defaults))
		}

		tpl, err := promptgen.Compile(raw, &promptgen.CompileOptions{
			AllowedSources: reg.SourceNames(),
		})
		if err != nil {
			return compileFailure(err)
		}

		maxTokens := renderMaxTokens
		if maxTokens == 0 {
			maxTokens = cfg.Render.MaxTokens
		}
		manager := promptgen.NewBudgetManager(maxTokens)

		msgs, err := promptgen.Render(tpl, bundle.RenderContext(), manager, reg, &promptgen.RenderOptions{
			Globals: bundle.Globals,
		})
		if err != nil {
			return err
		}

		result := renderResult{
			TemplateID:      tpl.ID(),
			TemplateVersion: tpl.Version(),
			TraceID:         uuid.NewString(),
			TokenEstimate:   manager.Consumed(),
			Messages:        msgs,
		}

		if renderAudit || cfg.Audit.Enabled {
			trail := audit.NewTrail(cfg.ResolvePath(cfg.Audit.Dir), cfg.Audit.FilePrefix, cfg.Audit.RetentionDays)
			rec, err := trail.Write(tpl, bundle.RenderContext(), msgs, manager.Consumed())
			if err != nil {
				logger.Warn("audit write failed: %v", err)
			} else {
				result.TraceID = rec.TraceID
			}
		}

		if renderSubmit {
			client, err := ai.NewClient(cfg.AI)
			if err != nil {
				return fmt.Errorf("submit: %w", err)
			}
			reply, err := client.Submit(context.Background(), msgs)
			if err != nil {
				return err
			}
			result.Reply = reply
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		if renderOutputPath == "" {
			fmt.Println(string(out))
			return nil
		}
		if err := os.WriteFile(renderOutputPath, append(out, '\n'), 0644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderBundlePath, "bundle", "", "Path to YAML context bundle")
	renderCmd.Flags().IntVar(&renderMaxTokens, "max-tokens", 0,
		"Token budget (0 uses config, negative means unbounded)")
	renderCmd.Flags().StringVar(&renderOutputPath, "output", "", "Write result to file (default: stdout)")
	renderCmd.Flags().BoolVar(&renderAudit, "audit", false, "Write a JSONL audit record")
	renderCmd.Flags().BoolVar(&renderSubmit, "submit", false, "Submit the rendered messages to the configured model")
	rootCmd.AddCommand(renderCmd)
}
