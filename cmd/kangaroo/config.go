package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"
	"unicode"

	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"

	"github.com/tos-network/kangaroo/cmd/utils"
	"github.com/tos-network/kangaroo/params"
)

var dumpConfigCommand = &cli.Command{
	Action:      dumpConfig,
	Name:        "dumpconfig",
	Usage:       "Show configuration values",
	ArgsUsage:   "[dumpfile]",
	Flags:       tableFlags,
	Description: `The dumpconfig command shows configuration values.`,
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// duration is a time.Duration written as "1.5s" in TOML.
type duration time.Duration

func (d duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %s", text)
	}
	*d = duration(v)
	return nil
}

type kangarooConfig struct {
	DataDir   string
	Cache     int
	TablesDir string
	TableDB   bool `toml:",omitempty"`
	Tables    []tableConfig
}

// tableConfig selects one table, either from a file or by its fingerprint in
// the table database. Zero parameters are taken from the table itself.
type tableConfig struct {
	Name   string   `toml:",omitempty"`
	File   string   `toml:",omitempty"`
	Hash   string   `toml:",omitempty"`
	Bits   uint8    `toml:",omitempty"`
	N      uint64   `toml:",omitempty"`
	W      uint64   `toml:",omitempty"`
	R      uint64   `toml:",omitempty"`
	I      uint64   `toml:",omitempty"`
	Budget duration `toml:",omitempty"`
}

func defaultConfig() kangarooConfig {
	cfg := kangarooConfig{
		DataDir:   utils.DefaultDataDir(),
		Cache:     utils.CacheFlag.Value,
		TablesDir: utils.TablesDirFlag.Value,
	}
	for _, p := range params.DefaultTablePresets {
		cfg.Tables = append(cfg.Tables, tableConfig{
			Name:   fmt.Sprintf("%d-bit", p.Bits),
			File:   p.FileName(),
			Bits:   p.Bits,
			N:      p.N,
			W:      p.W,
			R:      p.R,
			Budget: duration(p.Budget),
		})
	}
	return cfg
}

func loadConfig(file string, cfg *kangarooConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the configuration file, if any, and applies the command
// line flags on top of it.
func makeConfig(ctx *cli.Context) (kangarooConfig, error) {
	cfg := defaultConfig()
	if file := ctx.String(utils.ConfigFileFlag.Name); file != "" {
		// A config file with its own table list replaces the stock tables.
		cfg.Tables = nil
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	if ctx.IsSet(utils.DataDirFlag.Name) {
		cfg.DataDir = ctx.String(utils.DataDirFlag.Name)
	}
	if ctx.IsSet(utils.TablesDirFlag.Name) {
		cfg.TablesDir = ctx.String(utils.TablesDirFlag.Name)
	}
	if ctx.IsSet(utils.CacheFlag.Name) {
		cfg.Cache = ctx.Int(utils.CacheFlag.Name)
	}
	if ctx.IsSet(utils.TableDBFlag.Name) {
		cfg.TableDB = ctx.Bool(utils.TableDBFlag.Name)
	}
	if files := ctx.StringSlice(utils.TableFileFlag.Name); len(files) > 0 {
		cfg.Tables = make([]tableConfig, len(files))
		for i, file := range files {
			cfg.Tables[i] = tableConfig{File: file}
		}
	}
	if ctx.IsSet(utils.BudgetsFlag.Name) {
		budgets, err := utils.ParseBudgets(ctx.String(utils.BudgetsFlag.Name))
		if err != nil {
			return cfg, err
		}
		if len(budgets) != len(cfg.Tables) {
			return cfg, fmt.Errorf("%d budgets given for %d tables", len(budgets), len(cfg.Tables))
		}
		for i, b := range budgets {
			cfg.Tables[i].Budget = duration(b)
		}
	}
	if len(cfg.Tables) == 0 {
		return cfg, errors.New("no tables configured")
	}
	return cfg, nil
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	dump.Write(out)
	return nil
}
