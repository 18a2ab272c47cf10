package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/funvibe/ilstack/internal/fixture"
	"github.com/funvibe/ilstack/internal/stackdepth"
)

// collectFixtures expands directories in args into the fixture files below
// them. Files named explicitly are kept whatever their extension.
func collectFixtures(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && fixture.IsFixture(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", arg, err)
		}
		slices.Sort(found)
		out = append(out, found...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no fixtures found")
	}
	return out, nil
}

// session is one analyzed fixture
type session struct {
	path     string
	fx       *fixture.Fixture
	provider *stackdepth.Provider
}

// forEachFixture loads every file and runs fn on it with its own provider.
// Files are processed concurrently, bounded by the configured worker count;
// results are returned in argument order.
func forEachFixture[T any](ctx context.Context, a *app, files []string, fn func(context.Context, *session) (T, error)) ([]T, error) {
	results := make([]T, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.settings.Workers)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fx, err := fixture.Load(path)
			if err != nil {
				return err
			}
			log := a.logger.With(zap.String("fixture", fx.Name))
			s := &session{
				path: path,
				fx:   fx,
				provider: stackdepth.New(fx.Code, fx.Meta,
					stackdepth.WithCapacity(a.settings.Capacity),
					stackdepth.WithLogger(log)),
			}
			res, err := fn(ctx, s)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			log.Debug("fixture analyzed", zap.String("path", path))
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
