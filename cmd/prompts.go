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
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valpere/vidscribe/internal/prompt"
)

var (
	promptsDir  string
	promptsShow string
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Check and show the stage prompt templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if promptsDir != "" {
			cfg.PromptsDir = promptsDir
		}
		provider := buildPrompts(cfg.PromptsDir)

		if promptsShow != "" {
			text, err := provider.Load(promptsShow)
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		}

		templates, err := prompt.Check(provider)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(templates))
		for _, name := range prompt.Names() {
			text := templates[name]
			first, _, _ := strings.Cut(text, "\n")
			if r := []rune(first); len(r) > 60 {
				first = string(r[:57]) + "..."
			}
			rows = append(rows, []string{name, strconv.Itoa(len([]rune(text))), first})
		}
		fmt.Println(renderTable(
			[]string{"Template", "Chars", "First line"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft},
		))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(promptsCmd)

	promptsCmd.Flags().StringVar(&promptsDir, "prompts", "", "Directory of prompt templates overriding the defaults")
	promptsCmd.Flags().StringVar(&promptsShow, "show", "", "Print one template by name")
}
