package ml

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ArtifactWatcher watches the models directory and announces newly written
// artifact files. It never reloads the running artifact; swapping models
// requires a restart, the watcher only surfaces that a newer pair exists.
type ArtifactWatcher struct {
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	onNew   func(path string)
	done    chan struct{}
}

// NewArtifactWatcher starts watching dir. onNew is invoked with the path of
// every model or metadata file created or rewritten under it.
func NewArtifactWatcher(dir string, logger *zap.Logger, onNew func(path string)) (*ArtifactWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w := &ArtifactWatcher{
		watcher: fsWatcher,
		logger:  logger,
		onNew:   onNew,
		done:    make(chan struct{}),
	}
	go w.run()
	logger.Info("watching artifact directory", zap.String("dir", dir))
	return w, nil
}

func (w *ArtifactWatcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isArtifactFile(event.Name) {
				continue
			}
			w.logger.Info("new artifact version detected, restart to pick it up",
				zap.String("path", event.Name))
			if w.onNew != nil {
				w.onNew(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("artifact watcher error", zap.Error(err))
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *ArtifactWatcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func isArtifactFile(path string) bool {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ".json") {
		return false
	}
	return strings.HasPrefix(name, "best_model_") || strings.HasPrefix(name, "model_metadata_")
}
