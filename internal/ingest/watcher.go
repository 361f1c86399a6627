// Package ingest watches a drop directory for new audio files and runs
// each one through the analyzer. This gives batch users a no-API path:
// copy a file in, segments come out.
package ingest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/snarg/audiosift/internal/segment"
)

// debounceDelay coalesces rapid Create+Write events on the same file and
// gives slow copies time to finish before the file is read.
const debounceDelay = 2 * time.Second

// Analyzer is the slice of the analyzer the watcher needs.
type Analyzer interface {
	Analyze(ctx context.Context, source string, isURL bool) ([]segment.Segment, error)
}

// SegmentSink receives the segments of each successfully analyzed file.
type SegmentSink func(path string, segs []segment.Segment)

// Watcher monitors a directory tree for new audio files.
type Watcher struct {
	analyzer Analyzer
	sink     SegmentSink
	watchDir string
	log      zerolog.Logger

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	filesProcessed atomic.Int64
	filesFailed    atomic.Int64
}

// NewWatcher creates a watcher over watchDir. Call Start to begin.
func NewWatcher(watchDir string, analyzer Analyzer, sink SegmentSink, log zerolog.Logger) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		analyzer:       analyzer,
		sink:           sink,
		watchDir:       watchDir,
		log:            log.With().Str("component", "watcher").Logger(),
		ctx:            ctx,
		cancel:         cancel,
		debounceTimers: make(map[string]*time.Timer),
	}
}

// Start initializes the fsnotify watcher, adds all existing directories,
// and begins watching for new audio files.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fsw

	dirCount := 0
	err = filepath.WalkDir(w.watchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("error walking directory")
			return nil // continue walking
		}
		if d.IsDir() {
			if addErr := fsw.Add(path); addErr != nil {
				w.log.Warn().Err(addErr).Str("path", path).Msg("failed to watch directory")
			} else {
				dirCount++
			}
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return err
	}

	w.log.Info().
		Int("directories", dirCount).
		Str("watch_dir", w.watchDir).
		Msg("drop directory watcher initialized")

	w.wg.Add(1)
	go w.watchLoop()
	return nil
}

// Stop closes the fsnotify watcher and cancels in-flight analyses.
func (w *Watcher) Stop() {
	w.cancel()
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.wg.Wait()
	w.log.Info().
		Int64("files_processed", w.filesProcessed.Load()).
		Int64("files_failed", w.filesFailed.Load()).
		Msg("drop directory watcher stopped")
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			// New subdirectory: add it to the watch set.
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.watcher.Add(event.Name); err != nil {
					w.log.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
				}
				continue
			}

			if !isAudioFile(event.Name) {
				continue
			}

			w.scheduleProcess(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleProcess debounces per-path so each dropped file is analyzed once,
// after writes have settled.
func (w *Watcher) scheduleProcess(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Reset(debounceDelay)
		return
	}

	w.debounceTimers[path] = time.AfterFunc(debounceDelay, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		w.process(path)
	})
}

// process runs one dropped file through the analyzer and hands the
// segments to the sink. Failures are logged and counted; the watcher
// keeps running.
func (w *Watcher) process(path string) {
	log := w.log.With().Str("path", path).Logger()
	log.Info().Msg("analyzing dropped file")

	segs, err := w.analyzer.Analyze(w.ctx, path, false)
	if err != nil {
		w.filesFailed.Add(1)
		log.Warn().Err(err).Msg("analysis of dropped file failed")
		return
	}

	w.filesProcessed.Add(1)
	log.Info().Int("segments", len(segs)).Msg("dropped file analyzed")

	if w.sink != nil {
		w.sink(path, segs)
	}
}

// isAudioFile reports whether the path looks like audio we can submit.
func isAudioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".m4a", ".wav", ".flac", ".ogg", ".aac", ".opus", ".mp4":
		return true
	default:
		return false
	}
}

// Stats reports watcher counters for the health endpoint.
func (w *Watcher) Stats() (processed, failed int64) {
	return w.filesProcessed.Load(), w.filesFailed.Load()
}
