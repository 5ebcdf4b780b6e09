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

// InspectCmd represents the inspect command
var InspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List the data blocks of a result file, largest first",
	Long: `
Lists the largest data blocks of a result file with their header, component
count and how many row ids match node and element ids. Useful for finding the
coordinate block and the field blocks of an unfamiliar file.

feaingest inspect -r job.frd -t 12`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			opts ingest.Options
			rep  *ingest.Report
		)
		resultFile, _ := cmd.Flags().GetString("result")
		if len(resultFile) == 0 {
			return fmt.Errorf("must supply a result file (-r, --result)")
		}
		meshFile, _ := cmd.Flags().GetString("mesh")
		top, _ := cmd.Flags().GetInt("top")
		if opts, err = options(cmd); err != nil {
			return
		}
		if rep, err = ingest.InspectFiles(resultFile, meshFile, top, opts); err != nil {
			return
		}
		// Plain text unless an encoding is asked for
		if cmd.Flags().Changed("format") {
			return writeOutput(cmd, rep)
		}
		rep.Write(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(InspectCmd)
	InspectCmd.Flags().StringP("result", "r", "", "result file to inspect (.frd)")
	InspectCmd.Flags().StringP("mesh", "m", "", "mesh definition file (.inp or .vtu)")
	InspectCmd.Flags().IntP("top", "t", 12, "number of blocks to list, negative for all")
	addOutputFlags(InspectCmd)
}
