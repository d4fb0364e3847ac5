/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/valpere/vidscribe/internal/acquire"
	"github.com/valpere/vidscribe/internal/artifact"
	"github.com/valpere/vidscribe/internal/detector"
	"github.com/valpere/vidscribe/internal/orchestrator"
	"github.com/valpere/vidscribe/internal/passage"
	"github.com/valpere/vidscribe/internal/prompt"
	"github.com/valpere/vidscribe/internal/stage"
)

const defaultPassageChars = 600_000

var (
	runURL          string
	runModel        string
	runPassageChars int
	runFrom         string
	runSkipVideo    bool
	runNoLedger     bool
	runPromptsDir   string
	runPolicy       string
	runNoLangCheck  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline for one video",
	Long: `Download a video and its transcript, then run the four stages in order:

  extraction   select a passage of at most --passage-chars characters
  correction   fix transcription errors
  translation  translate into the configured target language
  dialogue     rewrite as a Host/Guest dialogue

Stages whose artifact already exists are skipped. Use --from to force a
stage and everything after it to run again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runPassageChars <= 0 {
			return fmt.Errorf("--passage-chars must be positive, got %d", runPassageChars)
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if runPromptsDir != "" {
			cfg.PromptsDir = runPromptsDir
		}
		if runPolicy != "" {
			cfg.OverflowPolicy = runPolicy
		}
		policy, err := passage.ParsePolicy(cfg.OverflowPolicy)
		if err != nil {
			return err
		}

		var from stage.Name
		if runFrom != "" {
			if from, err = stage.ParseName(runFrom); err != nil {
				return err
			}
		}

		resolver, err := buildResolver(cfg)
		if err != nil {
			return err
		}
		alias, err := resolver.Resolve(runModel)
		if err != nil {
			return err
		}

		prompts := buildPrompts(cfg.PromptsDir)
		if _, err := prompt.Check(prompts); err != nil {
			return err
		}

		target, err := buildTarget(cfg)
		if err != nil {
			return err
		}
		artifacts, err := buildArtifactStore(cfg)
		if err != nil {
			return err
		}

		deps := orchestrator.Deps{
			Acquirer: acquire.NewYTDLP(cfg.YTDLPPath, acquire.NewExecutor(),
				acquire.WithSubtitleLanguages(cfg.SubtitleLanguageList()...),
				acquire.WithLogger(logger),
			),
			Store:    artifacts,
			Stages: stage.Pipeline(stage.Deps{
				Completer: buildClient(cfg, logger),
				Prompts:   prompts,
				Logger:    logger,
			}),
			Logger: logger,
		}
		if !runNoLangCheck && cfg.SourceLanguage != "" {
			deps.Detector = detector.New()
		}
		if !runNoLedger {
			if ledger := openRunLedger(cfg, logger); ledger != nil {
				defer ledger.Close()
				deps.Ledger = ledger
			}
		}

		orch, err := orchestrator.New(deps, orchestrator.Settings{
			MaxPassageChars: runPassageChars,
			Model:           alias,
			Cache: stage.CacheSettings{
				PromptVersion: cfg.PromptVersion,
				Retention:     cfg.Retention(),
				Shards:        cfg.PromptCacheShards,
			},
			Target:         target,
			Policy:         policy,
			From:           from,
			SkipVideo:      runSkipVideo,
			SourceLanguage: cfg.SourceLanguage,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("starting pipeline",
			slog.String("url", runURL),
			slog.String("model", alias.Name),
			slog.Int("passage_chars", runPassageChars),
			slog.String("target", target.Describe()),
		)
		result, err := orch.Run(ctx, runURL)
		if err != nil {
			return err
		}

		fmt.Printf("Video: %s (run %s)\n", result.VideoID, result.RunID)
		if result.TranscriptLanguage != "" {
			fmt.Printf("Transcript language: %s\n", result.TranscriptLanguage)
		}
		rows := make([][]string, 0, len(artifact.Kinds))
		for _, kind := range artifact.Kinds {
			if path, ok := result.Artifacts[kind]; ok {
				rows = append(rows, []string{kind.String(), path})
			}
		}
		fmt.Println(renderTable([]string{"Artifact", "Path"}, rows, nil))
		fmt.Printf("Stages run: %d, skipped: %d\n", len(result.Ran), len(result.Skipped))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runURL, "url", "u", "", "Video URL (required)")
	runCmd.Flags().StringVarP(&runModel, "model", "m", "gpt5-low", "Model alias or backend model id")
	runCmd.Flags().IntVarP(&runPassageChars, "passage-chars", "n", defaultPassageChars, "Maximum passage length in characters")
	runCmd.Flags().StringVar(&runFrom, "from", "", "Re-run this stage and all later stages")
	runCmd.Flags().BoolVar(&runSkipVideo, "skip-video", false, "Fetch only the transcript")
	runCmd.Flags().BoolVar(&runNoLedger, "no-ledger", false, "Do not record the run in the ledger")
	runCmd.Flags().StringVar(&runPromptsDir, "prompts", "", "Directory of prompt templates overriding the defaults")
	runCmd.Flags().BoolVar(&runNoLangCheck, "no-language-check", false, "Skip the transcript language check")
	runCmd.Flags().StringVar(&runPolicy, "overflow", "", "Over-limit passage handling: truncate, reject, model")

	runCmd.MarkFlagRequired("url")
}
