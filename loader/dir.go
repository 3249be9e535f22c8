package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/trilochan-behera-dev/database-query/table"
)

// LoadDir loads every supported file in dir into a Store, one table per
// file, reading files concurrently. Tables with a schema in catalog are
// coerced to it.
func LoadDir(ctx context.Context, dir string, catalog table.Catalog) (*table.Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read data directory %s: %w", dir, err)
	}

	var files []string
	owner := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(Extensions, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		name := TableName(e.Name())
		if prev, ok := owner[name]; ok {
			return nil, fmt.Errorf("table %q is provided by both %s and %s", name, prev, e.Name())
		}
		owner[name] = e.Name()
		files = append(files, filepath.Join(dir, e.Name()))
	}

	tables := make([]*table.Table, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := LoadWithSchema(path, catalog.Lookup(TableName(path)))
			if err != nil {
				return err
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return table.NewStore(tables...), nil
}
