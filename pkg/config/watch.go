package config

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// watchDebounce coalesces editor write bursts into one reload.
const watchDebounce = 500 * time.Millisecond

// Watch reloads the configuration file on change and calls onChange with
// each successfully loaded result. A file that fails to load or validate is
// logged and skipped; the previous configuration stays in effect.
func Watch(ctx context.Context, path string, logger zerolog.Logger, onChange func(*Config)) error {
	if path == "" {
		return fmt.Errorf("config watch requires a file path")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	log := logger.With().Str("component", "config-watch").Str("path", path).Logger()

	go func() {
		defer watcher.Close()
		var reloadTimer *time.Timer

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				if reloadTimer != nil {
					reloadTimer.Stop()
				}
				reloadTimer = time.AfterFunc(watchDebounce, func() {
					cfg, err := Load(path)
					if err != nil {
						log.Error().Err(err).Msg("Config reload failed, keeping previous")
						return
					}
					log.Info().Msg("Config reloaded")
					onChange(cfg)
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("Watcher error")
			}
		}
	}()

	log.Info().Msg("Watching config file")
	return nil
}
