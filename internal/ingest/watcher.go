package ingest

import (
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/memrook/askdocs/internal/docconv"
)

// debounceWindow suppresses repeated dirty notifications while an editor
// or sync tool rewrites files.
const debounceWindow = 2 * time.Second

// watcher flags the corpus as dirty when document files change. It never
// triggers an ingestion run by itself.
type watcher struct {
	fs     *fsnotify.Watcher
	done   chan struct{}
	logger *slog.Logger
}

func newWatcher(dir string, pipeline *Pipeline, logger *slog.Logger) (*watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fs.Add(dir); err != nil {
		_ = fs.Close()
		return nil, err
	}

	w := &watcher{fs: fs, done: make(chan struct{}), logger: logger}
	go w.loop(pipeline)

	logger.Info("watching docs directory", "dir", dir)
	return w, nil
}

func (w *watcher) loop(pipeline *Pipeline) {
	var lastMark time.Time
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) {
				continue
			}
			if !docconv.Supported(ev.Name) {
				continue
			}
			if time.Since(lastMark) < debounceWindow {
				continue
			}
			lastMark = time.Now()
			w.logger.Info("document change detected", "file", ev.Name, "op", ev.Op.String())
			pipeline.MarkDirty()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

func (w *watcher) Close() error {
	close(w.done)
	return w.fs.Close()
}
