package report

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/devicelab-dev/fastest-runner/pkg/core"
)

// IndexWriter keeps report.json current while scripts run. It is safe
// for concurrent use.
type IndexWriter struct {
	mu        sync.Mutex
	outputDir string
	path      string
	index     *Index
}

// NewIndexWriter creates the output directories and a writer for index.
func NewIndexWriter(outputDir string, index *Index) (*IndexWriter, error) {
	if err := ensureDir(filepath.Join(outputDir, scriptsDir)); err != nil {
		return nil, err
	}
	return &IndexWriter{
		outputDir: outputDir,
		path:      filepath.Join(outputDir, indexFile),
		index:     index,
	}, nil
}

// Start marks the run as started.
func (w *IndexWriter) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.index.Status = StatusRunning
	w.index.StartTime = time.Now()
	return w.flushLocked()
}

// ScriptStarted marks script i as running.
func (w *IndexWriter) ScriptStarted(i int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if i < 0 || i >= len(w.index.Scripts) {
		return nil
	}
	start := time.Now()
	w.index.Scripts[i].Status = StatusRunning
	w.index.Scripts[i].StartTime = &start
	return w.flushLocked()
}

// ScriptFinished writes the detail file for script i and updates its entry.
func (w *IndexWriter) ScriptFinished(i int, r *core.RunResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.recordLocked(i, r); err != nil {
		return err
	}
	return w.flushLocked()
}

// End records any results not reported yet (scripts skipped without
// starting) and marks the run complete.
func (w *IndexWriter) End(results []*core.RunResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, r := range results {
		if r == nil || i >= len(w.index.Scripts) || w.index.Scripts[i].Status.IsTerminal() {
			continue
		}
		if err := w.recordLocked(i, r); err != nil {
			return err
		}
	}

	end := time.Now()
	w.index.EndTime = &end
	w.index.Status = w.computeRunStatus()
	return w.flushLocked()
}

// Index returns a snapshot of the current index.
func (w *IndexWriter) Index() *Index {
	w.mu.Lock()
	defer w.mu.Unlock()

	snapshot := *w.index
	snapshot.Scripts = append([]ScriptEntry(nil), w.index.Scripts...)
	return &snapshot
}

func (w *IndexWriter) recordLocked(i int, r *core.RunResult) error {
	if i < 0 || i >= len(w.index.Scripts) {
		return nil
	}
	entry := &w.index.Scripts[i]
	dataFile := filepath.Join(scriptsDir, entry.ID+".json")
	if err := atomicWriteJSON(filepath.Join(w.outputDir, dataFile), buildDetail(entry.ID, r)); err != nil {
		return err
	}
	entry.DataFile = filepath.ToSlash(dataFile)
	applyResult(entry, r)
	return nil
}

func (w *IndexWriter) flushLocked() error {
	w.index.Summary = computeSummary(w.index.Scripts)
	return atomicWriteJSON(w.path, w.index)
}

// computeRunStatus is failed if any script failed, otherwise passed.
func (w *IndexWriter) computeRunStatus() Status {
	for _, e := range w.index.Scripts {
		if e.Status == StatusFailed {
			return StatusFailed
		}
	}
	return StatusPassed
}
