package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config at path whenever it changes and hands the result
// to onChange. It runs until ctx is cancelled.
//
// The parent directory is watched rather than the file, so editors and
// config-map mounts that replace the file by rename are followed. A reload
// that fails to load or validate is logged and dropped; the caller keeps the
// previous config.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", target)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(target)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", target, "err", err)
				continue
			}

			slog.Info("config: reloaded", "path", target, "reports", len(cfg.Reports))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
