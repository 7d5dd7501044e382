package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/gtank/ristretto255"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/tos-network/kangaroo/cmd/utils"
	"github.com/tos-network/kangaroo/dlp"
	"github.com/tos-network/kangaroo/log"
)

var (
	benchBitsFlag = &cli.UintFlag{
		Name:  "bits",
		Usage: "bit width of the random secrets",
		Value: 32,
	}
	benchCountFlag = &cli.IntFlag{
		Name:  "count",
		Usage: "number of secrets to recover",
		Value: 10,
	}
)

var commandBench = &cli.Command{
	Name:  "bench",
	Usage: "time the recovery of random secrets",
	Description: `
Bench draws random secrets below 2^bits, encodes them as points and recovers
them with the configured tables, reporting average, lowest and highest times.`,
	Flags:  append([]cli.Flag{benchBitsFlag, benchCountFlag}, tableFlags...),
	Action: bench,
}

type benchStats struct {
	solved, missed int
	total          time.Duration
	lowest         time.Duration
	highest        time.Duration
	perTable       map[int]int
}

func (s *benchStats) add(elapsed time.Duration, table int) {
	if s.solved == 0 || elapsed < s.lowest {
		s.lowest = elapsed
	}
	if elapsed > s.highest {
		s.highest = elapsed
	}
	s.solved++
	s.total += elapsed
	s.perTable[table]++
}

func (s *benchStats) average() time.Duration {
	if s.solved == 0 {
		return 0
	}
	return s.total / time.Duration(s.solved)
}

func bench(ctx *cli.Context) error {
	bits := ctx.Uint(benchBitsFlag.Name)
	if bits == 0 || bits > 64 {
		utils.Fatalf("Bit width must be in [1, 64], got %d", bits)
	}
	count := ctx.Int(benchCountFlag.Name)
	if count <= 0 {
		utils.Fatalf("Count must be positive, got %d", count)
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		utils.Fatalf("%v", err)
	}
	d, err := newDispatcher(ctx.Context, &cfg)
	if err != nil {
		utils.Fatalf("Failed to load tables: %v", err)
	}

	var (
		stats    = &benchStats{perTable: make(map[int]int)}
		progress = rate.NewLimiter(rate.Every(8*time.Second), 1)
	)
	for i := 0; i < count; i++ {
		if progress.Allow() && i > 0 {
			log.Info("Benchmarking", "done", i, "count", count, "solved", stats.solved, "average", stats.average())
		}
		x := randomSecret(bits)
		start := time.Now()
		sol, err := d.Solve(ctx.Context, secretPoint(x))
		elapsed := time.Since(start)
		switch {
		case errors.Is(err, dlp.ErrNoSolutionFound):
			stats.missed++
			continue
		case err != nil:
			utils.Fatalf("Solve: %v", err)
		case sol.Value != x:
			utils.Fatalf("Wrong result for secret %d: got %d", x, sol.Value)
		}
		stats.add(elapsed, sol.Index)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Bits", "Secrets", "Solved", "Missed", "Average", "Lowest", "Highest"})
	table.Append([]string{
		strconv.FormatUint(uint64(bits), 10),
		strconv.Itoa(count),
		strconv.Itoa(stats.solved),
		strconv.Itoa(stats.missed),
		stats.average().String(),
		stats.lowest.String(),
		stats.highest.String(),
	})
	table.Render()
	for i, info := range d.Instances() {
		if n := stats.perTable[i]; n > 0 {
			fmt.Printf("%s table solved %d\n", info.Name, n)
		}
	}
	return nil
}

func randomSecret(bits uint) uint64 {
	if bits >= 64 {
		return rand.Uint64()
	}
	return rand.Uint64N(1 << bits)
}

// secretPoint returns the encoding of x·G.
func secretPoint(x uint64) []byte {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[:8], x)
	s, err := ristretto255.NewScalar().SetCanonicalBytes(buf[:])
	if err != nil {
		panic(err)
	}
	return ristretto255.NewIdentityElement().ScalarBaseMult(s).Bytes()
}
