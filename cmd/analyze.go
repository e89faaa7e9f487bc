// cmd/analyze.go
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
	"github.com/korhaliv/mend-cli/internal/analyze"
	"github.com/korhaliv/mend-cli/internal/applier"
	"github.com/korhaliv/mend-cli/internal/config"
	"github.com/korhaliv/mend-cli/internal/extract"
	"github.com/korhaliv/mend-cli/internal/llmservice"
	"github.com/korhaliv/mend-cli/internal/observability"
	"github.com/korhaliv/mend-cli/internal/pipeline"
	"github.com/korhaliv/mend-cli/internal/suggest"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	reportFormat string
	followEvents bool
	applyFixes   bool
	verifyFixes  bool
	commitFixes  bool
	outputPath   string
)

// newAnalyzeCmd creates and returns the analyze command.
func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <report-file>",
		Short: "Analyze a test-run artifact and produce ranked fix suggestions.",
		Long: `Analyze ingests a test report (JSON, JUnit XML, or a JSON-lines event
log with --events), clusters the failures by root cause, and emits ranked fix
suggestions as a structured JSON result. With --apply the top suggestion per
failing test is applied atomically, with every touched file backed up first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Flags override the loaded config so one-off runs don't need a
			// config file edit.
			if cmd.Flags().Changed("apply") {
				cfg.Apply.AutoApply = applyFixes
			}
			if cmd.Flags().Changed("verify") {
				cfg.Apply.Verify = verifyFixes
			}
			if cmd.Flags().Changed("commit") {
				cfg.Apply.Commit = commitFixes
			}
			if cfg.Apply.Verify && cfg.Apply.TestCommand == "" {
				return fmt.Errorf("--verify requires apply.test_command in the configuration")
			}
			return runAnalyze(cmd, cfg, observability.GetLogger(), args[0])
		},
	}

	cmd.Flags().StringVarP(&reportFormat, "format", "f", "", "report format: json, junit or events (default: auto-detect)")
	cmd.Flags().BoolVar(&followEvents, "events", false, "treat the input as a JSON-lines test event log")
	cmd.Flags().BoolVar(&applyFixes, "apply", false, "apply the top-ranked suggestion per failing test")
	cmd.Flags().BoolVar(&verifyFixes, "verify", false, "re-run the originating test after applying a fix")
	cmd.Flags().BoolVar(&commitFixes, "commit", false, "commit applied fixes to git")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the JSON result to a file instead of stdout")

	return cmd
}

func init() {
	rootCmd.AddCommand(newAnalyzeCmd())
}

// runAnalyze wires the pipeline out of the configured components and executes
// one run. The structured result is always written, even when the run dies
// with partial output.
func runAnalyze(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger, reportPath string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolver, err := pipeline.NewProjectResolver(cfg.Analyzer.ProjectRoot)
	if err != nil {
		return fmt.Errorf("failed to locate project root: %w", err)
	}

	var extractor schemas.Extractor
	if followEvents || extract.Format(reportFormat) == extract.FormatEvents {
		source := extract.NewTailEventSource(reportPath, logger)
		events, err := source.Follow(ctx)
		if err != nil {
			return err
		}
		extractor = extract.NewEventStreamExtractor(events, resolver, logger)
	} else {
		fileExtractor, closer, err := extract.OpenFileExtractor(reportPath, extract.Format(reportFormat), resolver, logger)
		if err != nil {
			return err
		}
		defer closer.Close()
		extractor = fileExtractor
	}

	rules := suggest.NewRuleBasedSuggester(logger)
	var (
		ai      schemas.Suggester
		breaker suggest.Breaker
	)
	if cfg.LLM.Provider != "" {
		client, err := llmservice.NewClient(cfg.LLM, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize LLM client: %w", err)
		}
		service := llmservice.New(client, cfg.LLM, logger)
		defer service.Close()
		ai = suggest.NewLLMSuggester(service, cfg.Suggest.MaxPromptContext, logger)
		breaker = service.Breaker()
	} else {
		logger.Info("No LLM provider configured, running with rule-based suggestions only")
	}
	engine := suggest.NewCoordinator(rules, ai, breaker, cfg.LLM.WorkerCount, logger)
	ranker := suggest.NewRanker(cfg.Suggest.MinConfidence, cfg.Suggest.MaxPerFailure, logger)

	var (
		fixApplier pipeline.FixApplier
		backups    *applier.FileBackupStore
	)
	if cfg.Apply.AutoApply {
		backups, err = applier.NewFileBackupStore(cfg.Apply.BackupDir, logger)
		if err != nil {
			return err
		}
		var runner schemas.TestRunner
		if cfg.Apply.Verify {
			runner = applier.NewCommandTestRunner(cfg.Apply.TestCommand, resolver.Root(), logger)
		}
		fixApplier = applier.NewApplier(resolver, backups, runner, cfg.Apply.Verify, logger)
	}

	monitor := pipeline.NewResourceMonitor(cfg.Analyzer, logger)
	machine := pipeline.NewStateMachine(extractor, analyze.NewAnalyzer(logger), engine, ranker, fixApplier, monitor, logger)

	result, runErr := machine.Run(ctx)

	if cfg.Apply.Commit && runErr == nil {
		commitApplied(result, resolver.Root(), logger)
	}
	if backups != nil && runErr == nil && allApplied(result.Applied) {
		if err := backups.Cleanup(result.RunID); err != nil {
			logger.Warn("Failed to clean up backups", zap.Error(err))
		}
	}

	if err := writeResult(result); err != nil {
		if runErr != nil {
			logger.Error("Failed to write result after run error", zap.Error(err))
			return runErr
		}
		return err
	}
	return runErr
}

// commitApplied records each successfully applied fix as its own commit.
func commitApplied(result schemas.RunResult, projectRoot string, logger *zap.Logger) {
	committer := applier.NewCommitter(projectRoot, logger)
	for _, fix := range result.Applied {
		if !fix.Success {
			continue
		}
		if _, err := committer.Commit(fix); err != nil {
			logger.Warn("Failed to commit applied fix",
				zap.String("test_id", fix.Suggestion.TestID),
				zap.Error(err))
		}
	}
}

func allApplied(applied []schemas.AppliedFix) bool {
	for _, fix := range applied {
		if !fix.Success {
			return false
		}
	}
	return true
}

// writeResult emits the structured run result as indented JSON.
func writeResult(result schemas.RunResult) error {
	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
