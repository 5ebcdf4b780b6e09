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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/ghodss/yaml"
	"github.com/spf13/cobra"
)

// cborEncMode writes map keys in canonical order so identical results give
// identical bytes
var cborEncMode cbor.EncMode

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	if cborEncMode, err = encOpts.EncMode(); err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}
}

func encode(v interface{}, format string) ([]byte, error) {
	switch format {
	case "json":
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case "yaml":
		return yaml.Marshal(v)
	case "cbor":
		return cborEncMode.Marshal(v)
	}
	return nil, fmt.Errorf("unknown output format %q, want json, yaml or cbor", format)
}

// writeOutput encodes v to the --out file, or to the command output when
// --out is empty
func writeOutput(cmd *cobra.Command, v interface{}) (err error) {
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")
	var data []byte
	if data, err = encode(v, format); err != nil {
		return
	}
	var w io.Writer = cmd.OutOrStdout()
	if out != "" {
		var f *os.File
		if f, err = os.Create(out); err != nil {
			return
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}
	_, err = w.Write(data)
	return
}

func addOutputFlags(c *cobra.Command) {
	c.Flags().StringP("format", "f", "json", "output format: json, yaml or cbor")
	c.Flags().StringP("out", "o", "", "output file, standard output when empty")
}
