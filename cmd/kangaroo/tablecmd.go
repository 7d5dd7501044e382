package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/tos-network/kangaroo/cmd/utils"
	"github.com/tos-network/kangaroo/crypto/kangaroo"
	"github.com/tos-network/kangaroo/log"
	"github.com/tos-network/kangaroo/params"
	"github.com/tos-network/kangaroo/tabledb"
)

type outputInspect struct {
	File   string `json:"file"`
	Format string `json:"format"`
	Bits   uint8  `json:"bits"`
	N      uint64 `json:"n"`
	W      uint64 `json:"w"`
	R      uint64 `json:"r"`
	Points int    `json:"points"`
	Hash   string `json:"hash"`
}

var (
	paramFlags = []cli.Flag{
		&cli.UintFlag{Name: "bits", Usage: "search space bit width, when the table does not carry it"},
		&cli.Uint64Flag{Name: "n", Usage: "distinguished point count, when the table does not carry it"},
		&cli.Uint64Flag{Name: "w", Usage: "mean jump size, when the table does not carry it"},
		&cli.Uint64Flag{Name: "r", Usage: "jump table rows, when the table does not carry it"},
	}

	commandInspect = &cli.Command{
		Name:      "inspect",
		Usage:     "print the parameters of table files",
		ArgsUsage: "<table-file> [<table-file>...]",
		Flags:     []cli.Flag{jsonFlag},
		Action:    inspectTables,
	}
	commandConvert = &cli.Command{
		Name:      "convert",
		Usage:     "convert a table between the JSON and the binary encoding",
		ArgsUsage: "<input> <output>",
		Description: `
Convert rewrites a table file. An output name ending in .json selects the
reference JSON layout, anything else the compressed binary layout.`,
		Flags:  paramFlags,
		Action: convertTable,
	}
	commandImport = &cli.Command{
		Name:      "import",
		Usage:     "import table files into the table database",
		ArgsUsage: "<table-file> [<table-file>...]",
		Flags:     append([]cli.Flag{utils.DataDirFlag, utils.CacheFlag}, paramFlags...),
		Action:    importTables,
	}
	commandTables = &cli.Command{
		Name:  "tables",
		Usage: "manage the table database",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list the stored tables",
				Flags:  []cli.Flag{utils.DataDirFlag, utils.CacheFlag, jsonFlag},
				Action: listTables,
			},
			{
				Name:      "remove",
				Usage:     "remove stored tables",
				ArgsUsage: "<hash> [<hash>...]",
				Flags:     []cli.Flag{utils.DataDirFlag, utils.CacheFlag},
				Action:    removeTables,
			},
		},
	}
)

// tableParams returns the parameters of a table, preferring what the table
// says about itself over the command line.
func tableParams(ctx *cli.Context, tbl *kangaroo.Table) (kangaroo.Parameters, error) {
	p, ok := tbl.Params()
	if !ok {
		p = kangaroo.Parameters{
			Bits: uint8(ctx.Uint("bits")),
			N:    ctx.Uint64("n"),
			W:    ctx.Uint64("w"),
			R:    ctx.Uint64("r"),
		}
		if p.N == 0 {
			p.N = uint64(len(tbl.Points))
		}
		if p.R == 0 {
			p.R = uint64(len(tbl.Jumps))
		}
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, tbl.CheckShape(p)
}

func inspectTables(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		utils.Fatalf("Usage: kangaroo inspect <table-file> [<table-file>...]")
	}
	var outputs []outputInspect
	for _, path := range ctx.Args().Slice() {
		tbl, err := kangaroo.OpenTableFile(path)
		if err != nil {
			utils.Fatalf("Failed to read table: %v", err)
		}
		out := outputInspect{File: filepath.Base(path), Format: "json", Points: len(tbl.Points)}
		if tbl.Header != nil {
			out.Format = "binary"
		}
		if p, ok := tbl.Params(); ok {
			out.Bits, out.N, out.W, out.R = p.Bits, p.N, p.W, p.R
		}
		hash := tbl.Hash()
		out.Hash = hex.EncodeToString(hash[:])
		outputs = append(outputs, out)
	}
	if ctx.Bool(jsonFlag.Name) {
		mustPrintJSON(outputs)
		return nil
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"File", "Format", "Bits", "N", "W", "R", "Points", "Hash"})
	for _, out := range outputs {
		table.Append([]string{
			out.File, out.Format, orUnknown(uint64(out.Bits)), orUnknown(out.N), orUnknown(out.W), orUnknown(out.R),
			strconv.Itoa(out.Points), out.Hash[:16],
		})
	}
	table.Render()
	return nil
}

func orUnknown(v uint64) string {
	if v == 0 {
		return "?"
	}
	return strconv.FormatUint(v, 10)
}

func convertTable(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		utils.Fatalf("Usage: kangaroo convert <input> <output>")
	}
	in, out := ctx.Args().Get(0), ctx.Args().Get(1)
	tbl, err := kangaroo.OpenTableFile(in)
	if err != nil {
		utils.Fatalf("Failed to read table: %v", err)
	}
	p, err := tableParams(ctx, tbl)
	if err != nil {
		utils.Fatalf("Table %s: %v", in, err)
	}
	var enc []byte
	if strings.EqualFold(filepath.Ext(out), ".json") {
		tbl.FileName = params.TablePreset{Bits: p.Bits, N: p.N, W: p.W, R: p.R}.FileName()
		enc, err = tbl.MarshalJSON()
	} else {
		enc, err = kangaroo.EncodeBinary(tbl, p)
	}
	if err != nil {
		utils.Fatalf("Failed to encode table: %v", err)
	}
	if err := os.WriteFile(out, enc, 0644); err != nil {
		utils.Fatalf("Failed to write table: %v", err)
	}
	log.Info("Converted kangaroo table", "in", in, "out", out, "params", p, "size", len(enc))
	return nil
}

func openStore(ctx *cli.Context) *tabledb.Store {
	cfg := kangarooConfig{DataDir: ctx.String(utils.DataDirFlag.Name), Cache: ctx.Int(utils.CacheFlag.Name)}
	db, err := openDatabase(&cfg)
	if err != nil {
		utils.Fatalf("Failed to open table database: %v", err)
	}
	return db
}

func importTables(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		utils.Fatalf("Usage: kangaroo import <table-file> [<table-file>...]")
	}
	db := openStore(ctx)
	defer db.Close()

	for _, path := range ctx.Args().Slice() {
		tbl, err := kangaroo.OpenTableFile(path)
		if err != nil {
			utils.Fatalf("Failed to read table: %v", err)
		}
		p, err := tableParams(ctx, tbl)
		if err != nil {
			utils.Fatalf("Table %s: %v", path, err)
		}
		entry, err := db.Put(filepath.Base(path), tbl, p)
		if err != nil {
			utils.Fatalf("Failed to store table: %v", err)
		}
		fmt.Printf("%s  %s  (%v)\n", color.GreenString(entry.Hash.String()), entry.Name, p)
	}
	return nil
}

func listTables(ctx *cli.Context) error {
	db := openStore(ctx)
	defer db.Close()

	entries, err := db.Entries()
	if err != nil {
		utils.Fatalf("Failed to list tables: %v", err)
	}
	if ctx.Bool(jsonFlag.Name) {
		mustPrintJSON(entries)
		return nil
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Hash", "Name", "Bits", "N", "W", "R", "Size"})
	for _, e := range entries {
		table.Append([]string{
			e.Hash.String(), e.Name,
			strconv.Itoa(int(e.Params.Bits)),
			strconv.FormatUint(e.Params.N, 10),
			strconv.FormatUint(e.Params.W, 10),
			strconv.FormatUint(e.Params.R, 10),
			strconv.Itoa(e.Size),
		})
	}
	table.Render()
	return nil
}

func removeTables(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		utils.Fatalf("Usage: kangaroo tables remove <hash> [<hash>...]")
	}
	db := openStore(ctx)
	defer db.Close()

	for _, arg := range ctx.Args().Slice() {
		hash, err := tabledb.HexToHash(arg)
		if err != nil {
			utils.Fatalf("Invalid hash %q: %v", arg, err)
		}
		if err := db.Delete(hash); err != nil {
			utils.Fatalf("Failed to remove %s: %v", arg, err)
		}
		log.Info("Removed kangaroo table", "hash", hash)
	}
	return nil
}
