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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/feaingest/InputParameters"
	"github.com/notargets/feaingest/ingest"
)

const configName = ".feaingest"

var (
	config   = viper.New()
	logger   = slog.New(slog.DiscardHandler)
	profiler interface{ Stop() }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "feaingest",
	Short: "Read finite element results into one node aligned mesh and field set",
	Long: `
Reads CalculiX style result files (.frd) with an optional mesh definition (.inp),
or XML unstructured grids (.vtu), classifies every result block and writes the
unified {nodes, elements, fields} structure.

feaingest parse --result job.frd --mesh job.inp --format json`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "heuristic parameters file (default is $HOME/"+configName+".yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("profile", "", "write a cpu or mem profile to the working directory")
	pf.Float64("displacement-ratio", InputParameters.DefaultDisplacementRatio,
		"max scalar below ratio*diagonal classifies an unlabeled field as displacement")
	pf.Float64("scalar-ratio", InputParameters.DefaultScalarRatio,
		"max scalar above ratio*diagonal classifies an unlabeled field as scalar")
	pf.Int("max-components", InputParameters.DefaultMaxComponents, "components kept per data row")
	for _, name := range []string{"config", "log-level", "log-format", "profile",
		"displacement-ratio", "scalar-ratio", "max-components"} {
		if err := config.BindPFlag(name, pf.Lookup(name)); err != nil {
			panic(err)
		}
	}
	config.SetEnvPrefix("FEAINGEST")
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	config.AutomaticEnv()
}

func setup(cmd *cobra.Command, args []string) error {
	logger = newLogger(config.GetString("log-level"), config.GetString("log-format"), cmd.ErrOrStderr()).
		With(slog.String("run", uuid.New().String()))
	switch mode := config.GetString("profile"); mode {
	case "":
	case "cpu":
		profiler = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet, profile.NoShutdownHook)
	case "mem":
		profiler = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet, profile.NoShutdownHook)
	default:
		return fmt.Errorf("unknown profile mode %q, want cpu or mem", mode)
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if profiler != nil {
		profiler.Stop()
		profiler = nil
	}
	return nil
}

// newLogger builds a logger on w, unknown levels fall back to info
func newLogger(levelStr, formatStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// loadParams reads the heuristic parameters file located through viper, then
// applies flag and FEAINGEST_* environment overrides. At debug level the
// final parameters are printed to w.
func loadParams(w io.Writer) (*InputParameters.HeuristicParameters, error) {
	hp := InputParameters.Defaults()
	file := config.GetString("config")
	explicit := file != ""
	if !explicit {
		home, err := homedir.Dir()
		if err != nil {
			return nil, err
		}
		file = home + string(os.PathSeparator) + configName + ".yaml"
	}
	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err = hp.Parse(data); err != nil {
			return nil, fmt.Errorf("config %s: %w", file, err)
		}
		logger.Debug("using config file", slog.String("file", file))
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	if config.IsSet("displacement-ratio") {
		hp.DisplacementRatio = config.GetFloat64("displacement-ratio")
	}
	if config.IsSet("scalar-ratio") {
		hp.ScalarRatio = config.GetFloat64("scalar-ratio")
	}
	if config.IsSet("max-components") {
		hp.MaxComponents = config.GetInt("max-components")
	}
	if err = hp.Validate(); err != nil {
		return nil, err
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		hp.Print(w)
	}
	return hp, nil
}

func options(cmd *cobra.Command) (ingest.Options, error) {
	hp, err := loadParams(cmd.ErrOrStderr())
	if err != nil {
		return ingest.Options{}, err
	}
	return ingest.Options{Params: hp, Logger: logger}, nil
}
