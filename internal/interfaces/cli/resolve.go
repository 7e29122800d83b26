package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	appexport "github.com/DailyForkCast/osint-foresight-sub003/internal/application/export"
	appres "github.com/DailyForkCast/osint-foresight-sub003/internal/application/resolution"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/bootstrap"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/entity"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

// newResolveCommand builds the offline resolution command: it loads a
// mention dump, resolves it against a fresh in-memory registry, and prints
// the resulting entities and review artifacts. Nothing is persisted; the
// command exists for tuning thresholds and inspecting source dumps before
// they enter the production pipeline.
func newResolveCommand(opts *RootOptions) *cobra.Command {
	var (
		inputPath string
		runID     string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a mention dump offline against a fresh registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := opts.newLogger(cfg)
			if err != nil {
				return err
			}

			mentions, err := readMentionDump(inputPath)
			if err != nil {
				return err
			}
			if runID == "" {
				runID = uuid.NewString()
			}

			ctx := cmd.Context()
			store := entity.NewMemoryStore()
			core, err := bootstrap.BuildCore(ctx, store, cfg.Resolver, logger)
			if err != nil {
				return err
			}
			batchSvc, err := appres.NewService(core.Engine, core.Index, core.Normalizer, store,
				nil, nil, cfg.Worker.Concurrency, logger)
			if err != nil {
				return err
			}
			exportSvc, err := appexport.NewService(store, core.Packs, core.Calculator, nil, logger)
			if err != nil {
				return err
			}

			result, err := batchSvc.Run(ctx, &appres.RunInput{RunID: runID, Mentions: mentions})
			if err != nil {
				return err
			}
			entities, err := exportSvc.Registry(ctx)
			if err != nil {
				return err
			}

			if opts.Output == "json" {
				return printJSON(cmd, map[string]interface{}{
					"run_id":     runID,
					"entities":   entities,
					"decisions":  result.Decisions,
					"rejections": result.Rejections,
				})
			}

			merged, created, nearMisses := summarize(result)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s\n", runID)
			fmt.Fprintf(out, "  mentions:    %d\n", len(mentions))
			fmt.Fprintf(out, "  entities:    %d\n", len(entities))
			fmt.Fprintf(out, "  merged:      %d\n", merged)
			fmt.Fprintf(out, "  created:     %d\n", created)
			fmt.Fprintf(out, "  near misses: %d\n", nearMisses)
			fmt.Fprintf(out, "  rejected:    %d\n", len(result.Rejections))
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "path to a JSON mention dump (required)")
	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier (default: random)")
	cmd.MarkFlagRequired("input")

	return cmd
}

// readMentionDump parses a JSON array of mentions, accepting either a bare
// array or an object with a "mentions" field.
func readMentionDump(path string) ([]restypes.MentionDTO, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mention dump: %w", err)
	}

	var mentions []restypes.MentionDTO
	if err := json.Unmarshal(data, &mentions); err == nil {
		return mentions, nil
	}

	var wrapped struct {
		Mentions []restypes.MentionDTO `json:"mentions"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("mention dump %q is not a JSON mention array: %w", path, err)
	}
	return wrapped.Mentions, nil
}

func summarize(result *appres.RunResult) (merged, created, nearMisses int) {
	for _, d := range result.Decisions {
		switch d.State {
		case entity.StateMerged:
			merged++
		case entity.StateNewEntity:
			created++
		}
		if d.NearMiss {
			nearMisses++
		}
	}
	return merged, created, nearMisses
}
