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

	"treesize/internal/core"
)

func main() {
	var (
		limitsPath string
		threshold  int64
		capacity   int64
		showTree   bool
		watchMode  bool
	)

	defaults := core.DefaultLimits()
	flag.StringVar(&limitsPath, "limits", "", "optional YAML file with small_directory_threshold and capacity_limit")
	flag.Int64Var(&threshold, "threshold", defaults.SmallDirectoryThreshold, "largest directory size counted as small")
	flag.Int64Var(&capacity, "capacity", defaults.CapacityLimit, "most bytes the tree may occupy")
	flag.BoolVar(&showTree, "tree", false, "print the reconstructed tree")
	flag.BoolVar(&watchMode, "watch", false, "re-analyze whenever the transcript file changes")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <transcript|->\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	limits := defaults
	if limitsPath != "" {
		var err error
		limits, err = core.LoadLimits(limitsPath, limits)
		if err != nil {
			logger.Error("Failed to load limits", "path", limitsPath, "error", err)
			os.Exit(1)
		}
	}

	// flags given explicitly win over the limits file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "threshold":
			limits.SmallDirectoryThreshold = threshold
		case "capacity":
			limits.CapacityLimit = capacity
		}
	})
	if err := limits.Validate(); err != nil {
		logger.Error("Invalid limits", "error", err)
		os.Exit(1)
	}

	opts := options{limits: limits, showTree: showTree}

	if watchMode {
		if path == "-" {
			logger.Error("Watch mode needs a transcript file, not stdin")
			os.Exit(2)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := watchTranscript(ctx, path, opts, os.Stdout, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Watch mode terminated", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := analyzeFile(path, opts, os.Stdout); err != nil {
		logger.Error("Analysis failed", "path", path, "error", err)
		os.Exit(1)
	}
}

type options struct {
	limits   core.Limits
	showTree bool
}

func analyzeFile(path string, opts options, out io.Writer) error {
	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open transcript: %w", err)
		}
		defer f.Close()
		in = f
	}

	tree, report, err := core.AnalyzeTranscript(in, opts.limits)
	if err != nil {
		return err
	}

	if opts.showTree {
		if err := tree.Render(out); err != nil {
			return fmt.Errorf("failed to render tree: %w", err)
		}
		fmt.Fprintln(out)
	}

	printReport(out, report)
	return nil
}

func printReport(out io.Writer, report *core.Report) {
	fmt.Fprintf(out, "Total used: %d bytes in %d directories, %d files\n",
		report.TotalUsed, report.Directories, report.Files)
	fmt.Fprintf(out, "Sum of directories up to %d bytes: %d\n",
		report.Limits.SmallDirectoryThreshold, report.SmallDirectoryTotal)

	smallest, err := report.Smallest()
	if err != nil {
		fmt.Fprintf(out, "No directory frees at least %d bytes\n", report.RequiredFree)
		return
	}
	fmt.Fprintf(out, "Smallest directory freeing at least %d bytes: %d\n", report.RequiredFree, smallest)
}
