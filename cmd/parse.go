/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

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

	"github.com/spf13/cobra"

	"github.com/notargets/feaingest/ingest"
)

// ParseCmd represents the parse command
var ParseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse a result file and an optional mesh file",
	Long: `
Parses a line oriented result file (.frd) against an optional mesh definition
(.inp or .vtu) and writes nodes, elements and classified fields.

feaingest parse -r job.frd -m job.inp -f yaml -o job.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			resultFile, meshFile string
			opts                 ingest.Options
			res                  *ingest.Result
		)
		if resultFile, err = cmd.Flags().GetString("result"); err != nil {
			return
		}
		if len(resultFile) == 0 {
			return fmt.Errorf("must supply a result file (-r, --result)")
		}
		meshFile, _ = cmd.Flags().GetString("mesh")
		if opts, err = options(cmd); err != nil {
			return
		}
		if res, err = ingest.ParseFiles(resultFile, meshFile, opts); err != nil {
			return
		}
		return writeOutput(cmd, res)
	},
}

func init() {
	rootCmd.AddCommand(ParseCmd)
	ParseCmd.Flags().StringP("result", "r", "", "result file to read (.frd or .vtu)")
	ParseCmd.Flags().StringP("mesh", "m", "", "mesh definition file (.inp or .vtu)")
	addOutputFlags(ParseCmd)
}
