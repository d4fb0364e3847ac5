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
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/vidscribe/internal/acquire"
	"github.com/valpere/vidscribe/internal/store"
)

var (
	historyURL   string
	historyID    string
	historyRun   string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs from the ledger",
	Long: `List recorded runs, newest first. With --run, show the stage events
of one run. The ledger is written by "vidscribe run" unless --no-ledger
was given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		if historyRun != "" {
			return printRun(ctx, db, historyRun)
		}

		videoID := historyID
		if historyURL != "" {
			if videoID, err = acquire.ExtractVideoID(historyURL); err != nil {
				return err
			}
		}

		runs, err := db.ListRuns(ctx, videoID, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, []string{r.ID, r.VideoID, r.ModelAlias, r.Status, formatTime(r.StartedAt), runDuration(r)})
		}
		fmt.Println(renderTable(
			[]string{"Run", "Video", "Model", "Status", "Started", "Duration"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		))
		return nil
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}
		fmt.Printf("Total runs:      %d\n", stats.TotalRuns)
		fmt.Printf("Completed runs:  %d\n", stats.CompletedRuns)
		fmt.Printf("Failed runs:     %d\n", stats.FailedRuns)
		fmt.Printf("Running runs:    %d\n", stats.RunningRuns)
		fmt.Printf("Videos:          %d\n", stats.DistinctVideos)
		fmt.Printf("Stage events:    %d\n", stats.StageEvents)
		fmt.Printf("Skipped stages:  %d\n", stats.SkippedStages)
		return nil
	},
}

func printRun(ctx context.Context, db *store.Store, runID string) error {
	run, err := db.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	fmt.Printf("Run:     %s\n", run.ID)
	fmt.Printf("Video:   %s (%s)\n", run.VideoID, run.SourceURL)
	fmt.Printf("Model:   %s -> %s/%s\n", run.ModelAlias, run.Backend, run.Model)
	fmt.Printf("Status:  %s\n", run.Status)
	if run.Error != "" {
		fmt.Printf("Error:   %s\n", run.Error)
	}

	events, err := db.ListStageEvents(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to list stage events: %w", err)
	}
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		sha := e.ContentSHA256
		if len(sha) > 12 {
			sha = sha[:12]
		}
		rows = append(rows, []string{
			e.Stage, e.Status, e.SourceKind, e.OutputPath,
			strconv.Itoa(e.Chars), e.Latency.Round(time.Millisecond).String(), sha,
		})
	}
	fmt.Println(renderTable(
		[]string{"Stage", "Status", "Source", "Output", "Chars", "Latency", "SHA-256"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
	return nil
}

func runDuration(r store.Run) string {
	if r.FinishedAt.IsZero() {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVarP(&historyURL, "url", "u", "", "Only runs for this video URL")
	historyCmd.Flags().StringVar(&historyID, "id", "", "Only runs for this video identifier")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Show stage events of one run")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to list")
	historyCmd.MarkFlagsMutuallyExclusive("url", "id")

	historyCmd.AddCommand(historyStatsCmd)
}
