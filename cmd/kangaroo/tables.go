package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	mapset "github.com/deckarep/golang-set"
	"golang.org/x/sync/errgroup"

	"github.com/tos-network/kangaroo/crypto/kangaroo"
	"github.com/tos-network/kangaroo/dlp"
	"github.com/tos-network/kangaroo/log"
	"github.com/tos-network/kangaroo/tabledb"
)

// needsDatabase reports whether any configured table comes from the table
// database.
func (cfg *kangarooConfig) needsDatabase() bool {
	if cfg.TableDB {
		return true
	}
	for _, tc := range cfg.Tables {
		if tc.Hash != "" {
			return true
		}
	}
	return false
}

func openDatabase(cfg *kangarooConfig) (*tabledb.Store, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("no data directory configured")
	}
	return tabledb.Open(filepath.Join(cfg.DataDir, "tables"), cfg.Cache)
}

func (tc *tableConfig) label(i int) string {
	switch {
	case tc.Name != "":
		return tc.Name
	case tc.File != "":
		return filepath.Base(tc.File)
	case tc.Hash != "":
		return tc.Hash
	}
	return fmt.Sprintf("#%d", i)
}

// checkLabels rejects configurations naming the same table twice.
func checkLabels(tables []tableConfig) error {
	seen := mapset.NewSet()
	for i := range tables {
		if label := tables[i].label(i); !seen.Add(label) {
			return fmt.Errorf("duplicate table %q", label)
		}
	}
	return nil
}

// loadTables reads every configured table in parallel and returns the
// descriptors and budgets in configuration order.
func loadTables(ctx context.Context, cfg *kangarooConfig, db *tabledb.Store) ([]*dlp.TableDescriptor, []time.Duration, error) {
	if err := checkLabels(cfg.Tables); err != nil {
		return nil, nil, err
	}
	var (
		descs   = make([]*dlp.TableDescriptor, len(cfg.Tables))
		budgets = make([]time.Duration, len(cfg.Tables))
		start   = time.Now()
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := range cfg.Tables {
		tc := cfg.Tables[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			desc, err := loadTable(cfg, &tc, db)
			if err != nil {
				return fmt.Errorf("table %s: %w", tc.label(i), err)
			}
			desc.Name = tc.label(i)
			descs[i], budgets[i] = desc, time.Duration(tc.Budget)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	log.Debug("Loaded kangaroo tables", "count", len(descs), "elapsed", time.Since(start))
	return descs, budgets, nil
}

func loadTable(cfg *kangarooConfig, tc *tableConfig, db *tabledb.Store) (*dlp.TableDescriptor, error) {
	var (
		payload []byte
		own     kangaroo.Parameters
		known   bool
	)
	hash := tc.Hash
	if hash == "" && cfg.TableDB && db != nil && tc.Bits != 0 {
		if entry, err := db.Latest(tc.Bits); err == nil {
			hash = entry.Hash.String()
		} else if !errors.Is(err, tabledb.ErrNotFound) {
			return nil, err
		}
	}
	switch {
	case hash != "":
		if db == nil {
			return nil, errors.New("table database not open")
		}
		h, err := tabledb.HexToHash(hash)
		if err != nil {
			return nil, err
		}
		entry, err := db.Entry(h)
		if err != nil {
			return nil, err
		}
		if payload, err = db.Blob(h); err != nil {
			return nil, err
		}
		own, known = entry.Params, true

	case tc.File != "":
		path := tc.File
		if !filepath.IsAbs(path) && cfg.TablesDir != "" {
			path = filepath.Join(cfg.TablesDir, path)
		}
		tbl, raw, err := kangaroo.ReadTableFile(path)
		if err != nil {
			return nil, err
		}
		if tbl.FileName == "" {
			tbl.FileName = filepath.Base(path)
		}
		payload = raw
		own, known = tbl.Params()

	default:
		return nil, errors.New("neither file nor hash given")
	}
	desc := &dlp.TableDescriptor{Bits: tc.Bits, N: tc.N, W: tc.W, R: tc.R, I: tc.I, Payload: payload}
	if known {
		fillParams(desc, own)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return desc, nil
}

// fillParams copies the table's own parameters into unset descriptor fields.
func fillParams(desc *dlp.TableDescriptor, p kangaroo.Parameters) {
	if desc.Bits == 0 {
		desc.Bits = p.Bits
	}
	if desc.N == 0 {
		desc.N = p.N
	}
	if desc.W == 0 {
		desc.W = p.W
	}
	if desc.R == 0 {
		desc.R = p.R
	}
	if desc.I == 0 {
		desc.I = p.I
	}
}

// newDispatcher loads the configured tables and initializes a dispatcher.
func newDispatcher(ctx context.Context, cfg *kangarooConfig) (*dlp.Dispatcher, error) {
	var db *tabledb.Store
	if cfg.needsDatabase() {
		var err error
		if db, err = openDatabase(cfg); err != nil {
			return nil, err
		}
		defer db.Close()
	}
	descs, budgets, err := loadTables(ctx, cfg, db)
	if err != nil {
		return nil, err
	}
	d := dlp.New()
	if err := d.Initialize(ctx, descs, budgets...); err != nil {
		return nil, err
	}
	return d, nil
}
