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
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/vidscribe/internal/orchestrator"
)

var version = "0.3.0"

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "vidscribe",
	Short: "Turn a video's speech into a target-language dialogue",
	Long: `A CLI pipeline that downloads a video's transcript and runs it through
four language model stages: passage extraction, correction, translation
and dialogue rewriting. Every stage writes its artifact to disk, so a
failed run resumes from the last completed stage.

Use "vidscribe run --help" for pipeline options.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func reportError(err error) {
	var stageErr *orchestrator.StageError
	if errors.As(err, &stageErr) {
		fmt.Fprintf(os.Stderr, "Error: stage %s failed\n", stageErr.Stage)
		if stageErr.Path != "" {
			fmt.Fprintf(os.Stderr, "  artifact: %s\n", stageErr.Path)
		}
		fmt.Fprintf(os.Stderr, "  cause: %v\n", stageErr.Err)
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (TOML, YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console, json, auto")
}
