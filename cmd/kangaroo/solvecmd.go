package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"

	"github.com/tos-network/kangaroo/cmd/utils"
	"github.com/tos-network/kangaroo/dlp"
)

var decimalFlag = &cli.BoolFlag{
	Name:  "decimal",
	Usage: "read targets as decimal integers of the 32-byte big-endian encoding",
}

type solveOutput struct {
	Target    string `json:"target"`
	Found     bool   `json:"found"`
	Value     string `json:"value,omitempty"`
	Bits      uint8  `json:"bits,omitempty"`
	Table     int    `json:"table"`
	ElapsedMs int64  `json:"elapsedMs"`
}

var commandSolve = &cli.Command{
	Name:      "solve",
	Usage:     "recover x from the encoding of x·G",
	ArgsUsage: "<target> [<target>...]",
	Description: `
Solve loads the configured tables, smallest first, and recovers the discrete
logarithm of each target. Targets are 32-byte canonical Ristretto255 encodings
in hex, optionally prefixed with 0x.

A target outside every table's range is reported as not found.`,
	Flags: append([]cli.Flag{jsonFlag, decimalFlag}, tableFlags...),
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() == 0 {
			utils.Fatalf("Usage: kangaroo solve <target> [<target>...]")
		}
		targets := make([][]byte, ctx.NArg())
		for i, arg := range ctx.Args().Slice() {
			target, err := parseTarget(arg, ctx.Bool(decimalFlag.Name))
			if err != nil {
				utils.Fatalf("Invalid target %q: %v", arg, err)
			}
			targets[i] = target
		}
		cfg, err := makeConfig(ctx)
		if err != nil {
			utils.Fatalf("%v", err)
		}
		d, err := newDispatcher(ctx.Context, &cfg)
		if err != nil {
			utils.Fatalf("Failed to load tables: %v", err)
		}

		outputs := make([]solveOutput, 0, len(targets))
		for _, target := range targets {
			out := solveOutput{Target: hex.EncodeToString(target), Table: -1}
			sol, err := d.Solve(ctx.Context, target)
			switch {
			case errors.Is(err, dlp.ErrNoSolutionFound):
			case err != nil:
				utils.Fatalf("Solve %s: %v", out.Target, err)
			default:
				out.Found = true
				out.Value = fmt.Sprint(sol.Value)
				out.Bits = sol.Bits
				out.Table = sol.Index
				out.ElapsedMs = sol.Elapsed.Milliseconds()
			}
			outputs = append(outputs, out)
		}

		if ctx.Bool(jsonFlag.Name) {
			mustPrintJSON(outputs)
			return nil
		}
		for _, out := range outputs {
			if out.Found {
				fmt.Printf("%s  %s  (%d-bit table, %dms)\n", out.Target, color.GreenString(out.Value), out.Bits, out.ElapsedMs)
			} else {
				fmt.Printf("%s  %s\n", out.Target, color.YellowString("not found"))
			}
		}
		return nil
	},
}

// parseTarget decodes a target given in hex or, with decimal set, as a
// decimal integer. Decimal input always yields all 32 bytes.
func parseTarget(s string, decimal bool) ([]byte, error) {
	if decimal {
		z, err := uint256.FromDecimal(s)
		if err != nil {
			return nil, err
		}
		b := z.Bytes32()
		return b[:], nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("%d bytes, want 32", len(b))
	}
	return b, nil
}
