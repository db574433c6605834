package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"gopkg.in/yaml.v3"

	"zupgo/internal/batch"
	"zupgo/internal/fetch"
	"zupgo/internal/gate"
	"zupgo/internal/models"
	"zupgo/internal/utils"
)

func main() {
	var (
		file        string
		dir         string
		concurrency int
		timeout     time.Duration
		verbose     bool
	)
	flag.StringVar(&file, "f", "", "batch file (YAML or JSON) with title, img_url_array and page_url; - for stdin")
	flag.StringVar(&dir, "dir", "./downloads", "destination root")
	flag.IntVar(&concurrency, "c", gate.DefaultCapacity, "maximum concurrent fetches")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "per-request timeout")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	})))

	if file == "" {
		fmt.Fprintln(os.Stderr, "Error: -f is required")
		flag.Usage()
		os.Exit(2)
	}

	req, err := loadBatch(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := fetch.New(gate.New(concurrency), fetch.Options{Timeout: timeout})
	coord := batch.New(worker, dir, batch.WithObserver(batch.ObserverFunc(func(p batch.Progress) {
		fmt.Fprintf(os.Stderr, "\r%d/%d done, %d failed", p.Done, p.Total, p.Failed)
	})))

	res, err := coord.Run(ctx, req)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		color.Red("Batch aborted: %v", err)
		os.Exit(1)
	}

	printSummary(os.Stdout, res)
	if len(res.Failed) > 0 {
		os.Exit(1)
	}
}

func loadBatch(path string) (models.BatchRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return models.BatchRequest{}, fmt.Errorf("read batch file: %w", err)
	}
	return parseBatch(data)
}

// parseBatch accepts YAML, and JSON as a subset of it.
func parseBatch(data []byte) (models.BatchRequest, error) {
	var req models.BatchRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return models.BatchRequest{}, fmt.Errorf("parse batch file: %w", err)
	}
	if req.Title == "" {
		return models.BatchRequest{}, errors.New("batch file has no title")
	}
	return req, nil
}

func printSummary(w io.Writer, res *models.BatchResult) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	bold.Fprintf(w, "%s\n", res.Collection)
	fmt.Fprintf(w, "  dir:       %s\n", res.Dir)
	green.Fprintf(w, "  succeeded: %d (%s)\n", res.Succeeded, utils.FormatBytes(res.BytesWritten))
	yellow.Fprintf(w, "  skipped:   %d\n", res.Skipped)
	if len(res.Failed) == 0 {
		green.Fprintf(w, "  failed:    0\n")
		return
	}
	red.Fprintf(w, "  failed:    %d\n", len(res.Failed))
	for _, f := range res.Failed {
		red.Fprintf(w, "    #%04d %s: %s\n", f.Index+1, f.SourceURL, f.Reason)
	}
}
