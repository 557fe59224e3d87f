package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dmitrymomot/notemail/internal/config"
	"github.com/dmitrymomot/notemail/internal/dispatch"
	"github.com/dmitrymomot/notemail/internal/store/postgres"
	"github.com/dmitrymomot/notemail/pkg/templating"
)

func migrate(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	pool, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	pool.Close()
	log.Info("migrations applied")
	return nil
}

func importTemplates(ctx context.Context, cfg *config.Config, log *slog.Logger, ownerID, dir string) error {
	pool, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := dispatch.NewTemplates(postgres.New(pool), log)
	n, err := importDir(ctx, svc, ownerID, dir)
	log.Info("templates imported", slog.Int("count", n), slog.String("dir", dir))
	return err
}

// importDir creates one template per *.md file in dir. The name defaults
// to the file name without extension. It stops at the first failure.
func importDir(ctx context.Context, svc *dispatch.Templates, ownerID, dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return 0, err
	}
	sort.Strings(paths)

	n := 0
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return n, err
		}
		doc, err := templating.ParseDocument(content)
		if err != nil {
			return n, fmt.Errorf("%s: %w", path, err)
		}
		name := doc.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		if _, err := svc.Create(ctx, ownerID, name, doc.Subject, doc.Body); err != nil {
			return n, fmt.Errorf("%s: %w", path, err)
		}
		n++
	}
	return n, nil
}
