// Command notemail serves the note email API and runs maintenance tasks.
//
// Usage:
//
//	notemail [serve]                       run the HTTP API and job workers
//	notemail migrate                       apply database migrations
//	notemail import-templates <owner> <dir> create templates from *.md files
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dmitrymomot/notemail/internal/api"
	"github.com/dmitrymomot/notemail/internal/config"
	"github.com/dmitrymomot/notemail/internal/dispatch"
	"github.com/dmitrymomot/notemail/pkg/logger"
)

var errUsage = errors.New("usage: notemail [-env file] [serve | migrate | import-templates <owner> <dir>]")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("notemail", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", "", "dotenv file to load (default .env when present)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}

	extractors := append(dispatch.LogExtractors(), api.RequestIDExtractor())
	log, flush := logger.New(cfg.Log, extractors...)
	defer flush()

	cmd, rest := "serve", fs.Args()
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, log)
	case "migrate":
		err = migrate(ctx, cfg, log)
	case "import-templates":
		if len(rest) != 2 {
			return errUsage
		}
		err = importTemplates(ctx, cfg, log, rest[0], rest[1])
	default:
		return errUsage
	}
	if err != nil {
		log.Error("command failed", slog.String("command", cmd), slog.String("error", err.Error()))
	}
	return err
}
