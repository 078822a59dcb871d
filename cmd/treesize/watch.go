package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounceInterval = 150 * time.Millisecond

// watchTranscript analyzes path once, then again every time writes to it
// settle. The parent directory is watched so editors that replace the file
// by renaming are still picked up.
func watchTranscript(ctx context.Context, path string, opts options, out io.Writer, logger *slog.Logger) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve transcript path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	logger.Info("Watch mode active", "path", target, "debounce", watchDebounceInterval.String())
	runAnalysis(target, opts, out, logger)

	var debounceTimer *time.Timer
	for {
		var debounceC <-chan time.Time
		if debounceTimer != nil {
			debounceC = debounceTimer.C
		}

		select {
		case <-ctx.Done():
			logger.Info("Stopping watch mode", "reason", ctx.Err())
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !isContentChange(event.Op) {
				continue
			}
			if debounceTimer == nil {
				debounceTimer = time.NewTimer(watchDebounceInterval)
			} else {
				debounceTimer.Reset(watchDebounceInterval)
			}
		case err, ok := <-watcher.Errors:
			if !ok || err == nil {
				continue
			}
			logger.Error("Watcher error", "error", err)
		case <-debounceC:
			debounceTimer = nil
			runAnalysis(target, opts, out, logger)
		}
	}
}

func isContentChange(op fsnotify.Op) bool {
	return op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func runAnalysis(path string, opts options, out io.Writer, logger *slog.Logger) {
	if err := analyzeFile(path, opts, out); err != nil {
		logger.Error("Analysis failed", "path", path, "error", err)
		return
	}
	fmt.Fprintln(out)
}
