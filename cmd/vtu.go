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
	"os"

	"github.com/spf13/cobra"

	"github.com/notargets/feaingest/ingest"
)

// VTUCmd represents the vtu command
var VTUCmd = &cobra.Command{
	Use:   "vtu FILE",
	Short: "Decode an XML unstructured grid (.vtu)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := options(cmd)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		res, err := ingest.ParseVTU(data, opts)
		if err != nil {
			return err
		}
		return writeOutput(cmd, res)
	},
}

func init() {
	rootCmd.AddCommand(VTUCmd)
	addOutputFlags(VTUCmd)
}
