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

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List model aliases",
	Long: `List the model alias table, including overrides from the models file.

Names not in the table are passed through as backend model ids when they
look like one (for example "openai/gpt-4o" or "gpt-4.1").`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		resolver, err := buildResolver(cfg)
		if err != nil {
			return err
		}

		aliases := resolver.Aliases()
		rows := make([][]string, 0, len(aliases))
		for _, a := range aliases {
			temp, effort, tokens := "-", "-", "-"
			if a.Params.Temperature != nil {
				temp = strconv.FormatFloat(*a.Params.Temperature, 'f', -1, 64)
			}
			if a.Params.ReasoningEffort != "" {
				effort = a.Params.ReasoningEffort
			}
			if a.Params.MaxOutputTokens > 0 {
				tokens = strconv.Itoa(a.Params.MaxOutputTokens)
			}
			rows = append(rows, []string{a.Name, string(a.Backend), a.Model, temp, effort, tokens})
		}
		fmt.Println(renderTable(
			[]string{"Alias", "Backend", "Model", "Temperature", "Reasoning", "Max tokens"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
		))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
