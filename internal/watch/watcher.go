// Package watch validates protobuf files on disk changes, without an LSP
// client. Diagnostics are written to an output stream as JSON lines.
package watch

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomschdev/proto-lindt-ext/internal/lintserver"
	"github.com/tomschdev/proto-lindt-ext/internal/lintserver/defines"
	"github.com/tomschdev/proto-lindt-ext/internal/utils"
	"github.com/tomschdev/proto-lindt-ext/internal/validation"
)

const PROTO_FILE_EXTENSION = ".proto"

type Watcher struct {
	dir          string
	orchestrator *validation.Orchestrator
	watcher      *fsnotify.Watcher
	logger       zerolog.Logger
}

// NewWatcher watches $dir and its current subdirectories, directories
// created later are added as they appear.
func NewWatcher(dir string, orchestrator *validation.Orchestrator, logger zerolog.Logger) (*Watcher, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:          absDir,
		orchestrator: orchestrator,
		watcher:      watcher,
		logger:       logger,
	}

	err = filepath.WalkDir(absDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return nil, err
	}
	return w, nil
}

// Run validates every .proto file already present, then blocks listening
// for filesystem events until the context is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	w.validateExistingFiles()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) validateExistingFiles() {
	filepath.WalkDir(w.dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil //the directory may have been removed concurrently
		}
		if !entry.IsDir() && strings.HasSuffix(path, PROTO_FILE_EXTENSION) {
			w.trigger(path, true)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		info, err := os.Lstat(event.Name)
		if err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Error().Err(err).Str("dir", event.Name).Msg("failed to watch new directory")
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, PROTO_FILE_EXTENSION) {
		return
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		//Editors often produce bursts of writes, debouncing coalesces them.
		w.trigger(event.Name, false)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.orchestrator.CloseDocument(fileURI(event.Name))
	}
}

func (w *Watcher) trigger(absFilePath string, immediate bool) {
	content, err := os.ReadFile(absFilePath)
	if err != nil {
		w.logger.Debug().Err(err).Str("file", absFilePath).Msg("failed to read changed file")
		return
	}
	w.orchestrator.TriggerValidation(fileURI(absFilePath), absFilePath, string(content), immediate)
}

func fileURI(absFilePath string) defines.DocumentUri {
	//Paths handed to the watcher are always absolute.
	return utils.Must(lintserver.FileURI(filepath.ToSlash(absFilePath)))
}

// StreamPublisher writes one JSON line per validated document.
type StreamPublisher struct {
	lock sync.Mutex
	out  io.Writer
}

func NewStreamPublisher(out io.Writer) *StreamPublisher {
	return &StreamPublisher{out: out}
}

func (p *StreamPublisher) PublishDiagnostics(docURI defines.DocumentUri, diagnostics []defines.Diagnostic) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	encoder := json.NewEncoder(p.out)
	return encoder.Encode(defines.PublishDiagnosticsParams{
		Uri:         docURI,
		Diagnostics: diagnostics,
	})
}
