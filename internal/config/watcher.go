package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// WatchLogLevel watches the config file and applies logging.level changes to
// the atomic level at runtime. It returns a stop function; if the file's
// directory cannot be watched an error is returned and logging stays at the
// boot-time level.
func WatchLogLevel(path string, level zap.AtomicLevel, logger *zap.Logger) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: editors and config maps replace the
	// file, which would drop a direct file watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load()
				if err != nil {
					logger.Warn("Config reload failed", zap.Error(err))
					continue
				}
				parsed, err := zapcore.ParseLevel(cfg.Logging.Level)
				if err != nil {
					logger.Warn("Invalid log level in config",
						zap.String("level", cfg.Logging.Level))
					continue
				}
				if level.Level() != parsed {
					level.SetLevel(parsed)
					logger.Info("Log level updated",
						zap.String("level", parsed.String()))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Config watcher error", zap.Error(err))
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
