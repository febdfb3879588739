// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cliUtils

import (
	"fmt"
	"os"
	"runtime/pprof"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

var commonFlags = []cli.Flag{
	CpuProfileFlag,
	VerbosityFlag,
	ConfigFlag,
}

// AddCommonFlags adds profiling, logging and configuration file support to
// the given command. Values of the configuration file are applied to all
// flags of the command not set on the command line.
func AddCommonFlags(command cli.Command) cli.Command {
	command.Flags = append(command.Flags, commonFlags...)

	action := command.Action
	command.Action = func(ctx *cli.Context) (err error) {
		if path := ConfigFlag.Fetch(ctx); path != "" {
			if err := ApplyConfigFile(ctx, path); err != nil {
				return err
			}
		}
		SetupLogging(VerbosityFlag.Fetch(ctx))

		if cpuprofileFilename := CpuProfileFlag.Fetch(ctx); cpuprofileFilename != "" {
			f, err := os.Create(cpuprofileFilename)
			if err != nil {
				return fmt.Errorf("could not create CPU profile: %w", err)
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("could not start CPU profile: %w", err)
			}
			defer pprof.StopCPUProfile()
		}

		return action(ctx)
	}
	return command
}

// SetupLogging installs a terminal logger on stderr with the given legacy
// verbosity level.
func SetupLogging(verbosity int) {
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(verbosity), false)
	log.SetDefault(log.NewLogger(handler))
}

type configFlagType struct {
	cli.StringFlag
}

var ConfigFlag = &configFlagType{
	cli.StringFlag{
		Name:      "config",
		Usage:     "run configuration file (YAML, TOML or JSON)",
		TakesFile: true,
	},
}

func (f *configFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

// configKeys maps the keys of run configuration files to flag names.
var configKeys = []struct {
	key  string
	flag string
	list bool
}{
	{key: "engine", flag: EngineFlag.Name},
	{key: "inputs", flag: InputFlag.Name, list: true},
	{key: "name_pattern", flag: FilterFlag.Name},
	{key: "tag_predicate", flag: TagsFlag.Name},
	{key: "feature_gate", flag: FeaturesFlag.Name, list: true},
	{key: "explicit_skip_list", flag: SkipFlag.Name, list: true},
	{key: "repetitions", flag: RepetitionsFlag.Name},
	{key: "parallelism", flag: JobsFlag.Name},
	{key: "fail_fast", flag: FailFastFlag.Name},
	{key: "gas_tolerance_override", flag: GasToleranceFlag.Name},
	{key: "timeout", flag: TimeoutFlag.Name},
	{key: "lenient", flag: LenientFlag.Name},
	{key: "metric", flag: MetricFlag.Name},
	{key: "seed", flag: SeedFlag.Name},
	{key: "verbosity", flag: VerbosityFlag.Name},
}

// ApplyConfigFile reads the given configuration file and sets every flag
// of the current command that has a value in the file but was not set
// explicitly.
func ApplyConfigFile(context *cli.Context, path string) error {
	settings := viper.New()
	settings.SetConfigFile(path)
	if err := settings.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration %s: %w", path, err)
	}

	defined := map[string]bool{}
	if context.Command != nil {
		for _, flag := range context.Command.Flags {
			for _, name := range flag.Names() {
				defined[name] = true
			}
		}
	}

	for _, entry := range configKeys {
		if !defined[entry.flag] || !settings.IsSet(entry.key) || context.IsSet(entry.flag) {
			continue
		}
		values := []string{settings.GetString(entry.key)}
		if entry.list {
			values = settings.GetStringSlice(entry.key)
		}
		for _, value := range values {
			if err := context.Set(entry.flag, value); err != nil {
				return fmt.Errorf("invalid value %s for %s in %s: %w", strconv.Quote(value), entry.key, path, err)
			}
		}
	}
	return nil
}
