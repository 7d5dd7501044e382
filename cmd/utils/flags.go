// Copyright 2015 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

// Package utils contains internal helper functions for kangaroo commands.
package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tos-network/kangaroo/internal/flags"
	"github.com/tos-network/kangaroo/log"
)

// These are all the command line flags we support.
// If you add to this list, please remember to include the
// flag in the appropriate command definition.
//
// The flags are defined here so their names and help texts
// are the same for all commands.

var (
	ConfigFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Category: flags.MiscCategory,
	}
	DataDirFlag = &cli.StringFlag{
		Name:     "datadir",
		Usage:    "Data directory for the table database",
		Value:    DefaultDataDir(),
		Category: flags.TablesCategory,
	}
	TablesDirFlag = &cli.StringFlag{
		Name:     "tables.dir",
		Usage:    "Directory holding the stock table files (output_<w>_<n>_<bits>_<r>.json)",
		Value:    "tables",
		Category: flags.TablesCategory,
	}
	TableFileFlag = &cli.StringSliceFlag{
		Name:     "table",
		Usage:    "Table file to load instead of the stock tables, in escalation order",
		Category: flags.TablesCategory,
	}
	TableDBFlag = &cli.BoolFlag{
		Name:     "tables.db",
		Usage:    "Load the latest imported table of each stock width from the table database",
		Category: flags.TablesCategory,
	}
	BudgetsFlag = &cli.StringFlag{
		Name:     "budgets",
		Usage:    "Comma separated time budget per table (e.g. 50ms,1.5s,0), 0 is unbounded",
		Category: flags.SolverCategory,
	}
	CacheFlag = &cli.IntFlag{
		Name:     "cache",
		Usage:    "Megabytes of memory allocated to the table database",
		Value:    64,
		Category: flags.PerfCategory,
	}
	VerbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value:    int(log.LvlInfo),
		Category: flags.LoggingCategory,
	}
	LogJSONFlag = &cli.BoolFlag{
		Name:     "log.json",
		Usage:    "Format logs with JSON",
		Category: flags.LoggingCategory,
	}
)

// LoggingFlags are the flags read by SetupLogging.
var LoggingFlags = []cli.Flag{VerbosityFlag, LogJSONFlag}

// SetupLogging installs the root logger configured by the logging flags.
func SetupLogging(ctx *cli.Context) error {
	lvl := log.Lvl(ctx.Int(VerbosityFlag.Name))
	if lvl < log.LvlCrit || lvl > log.LvlTrace {
		return fmt.Errorf("invalid verbosity %d", lvl)
	}
	if ctx.Bool(LogJSONFlag.Name) {
		log.SetDefault(log.NewJSONLogger(os.Stderr, lvl))
	} else {
		log.SetLevel(lvl)
	}
	return nil
}

// DefaultDataDir is the default data directory to use for the table database.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Kangaroo")
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "Kangaroo")
	default:
		return filepath.Join(home, ".kangaroo")
	}
}

// ParseBudgets parses a comma separated list of durations. A bare number is
// read as milliseconds.
func ParseBudgets(list string) ([]time.Duration, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	fields := strings.Split(list, ",")
	budgets := make([]time.Duration, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		d, err := time.ParseDuration(f)
		if err != nil {
			d, err = time.ParseDuration(f + "ms")
		}
		if err != nil {
			return nil, fmt.Errorf("invalid budget %q", f)
		}
		if d < 0 {
			return nil, fmt.Errorf("negative budget %q", f)
		}
		budgets[i] = d
	}
	return budgets, nil
}

// Fatalf formats a message to standard error and exits the program.
// The message is also printed to standard output if standard error
// is redirected to a different file.
func Fatalf(format string, args ...interface{}) {
	w := io.MultiWriter(os.Stdout, os.Stderr)
	if runtime.GOOS == "windows" {
		// The SameFile check below doesn't work on Windows.
		// stdout is unlikely to get redirected though, so just print there.
		w = os.Stdout
	} else {
		outf, _ := os.Stdout.Stat()
		errf, _ := os.Stderr.Stat()
		if outf != nil && errf != nil && os.SameFile(outf, errf) {
			w = os.Stderr
		}
	}
	color.New(color.FgRed, color.Bold).Fprint(w, "Fatal: ")
	fmt.Fprintf(w, format+"\n", args...)
	os.Exit(1)
}
