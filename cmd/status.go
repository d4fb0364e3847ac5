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
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/valpere/vidscribe/internal/acquire"
	"github.com/valpere/vidscribe/internal/orchestrator"
	"github.com/valpere/vidscribe/internal/stage"
)

var (
	statusURL string
	statusID  string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which artifacts exist for a video",
	RunE: func(cmd *cobra.Command, args []string) error {
		videoID := statusID
		if statusURL != "" {
			id, err := acquire.ExtractVideoID(statusURL)
			if err != nil {
				return err
			}
			videoID = id
		}
		if videoID == "" {
			return errors.New("one of --url or --id is required")
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		artifacts, err := buildArtifactStore(cfg)
		if err != nil {
			return err
		}
		orch, err := orchestrator.New(orchestrator.Deps{
			Acquirer: acquire.NewYTDLP(cfg.YTDLPPath, acquire.NewExecutor()),
			Store:    artifacts,
			Stages:   stage.Pipeline(stage.Deps{Prompts: buildPrompts(cfg.PromptsDir), Logger: logger}),
			Logger:   logger,
		}, orchestrator.Settings{})
		if err != nil {
			return err
		}

		report, err := orch.Status(videoID)
		if err != nil {
			return err
		}

		video := report.VideoPath
		if video == "" {
			video = "(not downloaded)"
		}
		fmt.Printf("Video: %s\n", report.VideoID)
		fmt.Printf("Data: %s\n", artifacts.Root())
		fmt.Printf("Media: %s\n", video)

		rows := make([][]string, 0, len(report.Artifacts))
		for _, a := range report.Artifacts {
			state, size, modified := "missing", "-", "-"
			if a.Exists {
				state = "present"
				size = strconv.FormatInt(a.Size, 10)
				modified = formatTime(a.ModTime)
			}
			rows = append(rows, []string{a.Kind.String(), state, size, modified, a.Path})
		}
		fmt.Println(renderTable(
			[]string{"Artifact", "State", "Bytes", "Modified", "Path"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
		))

		if report.NextStage == "" {
			fmt.Println("All stages complete.")
		} else {
			fmt.Printf("Next stage: %s\n", report.NextStage)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusURL, "url", "u", "", "Video URL")
	statusCmd.Flags().StringVar(&statusID, "id", "", "Video identifier")
	statusCmd.MarkFlagsMutuallyExclusive("url", "id")
}
