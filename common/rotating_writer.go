package common

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotatingFileWriter appends to one file per day named
// <prefix><yyyy-mm-dd><suffix> inside dir, keeping at most maxFiles of them.
type RotatingFileWriter struct {
	mu          sync.Mutex
	dir         string
	prefix      string
	suffix      string
	maxFiles    int
	currentDate string
	file        *os.File
	now         func() time.Time
}

var _ io.WriteCloser = (*RotatingFileWriter)(nil)

func NewRotatingFileWriter(dir, prefix, suffix string, maxFiles int) (*RotatingFileWriter, error) {
	w := &RotatingFileWriter{
		dir:      dir,
		prefix:   prefix,
		suffix:   suffix,
		maxFiles: maxFiles,
		now:      time.Now,
	}
	if err := w.rotateIfNeeded(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.rotateIfNeeded(); err != nil {
		return 0, err
	}
	return w.file.Write(p)
}

func (w *RotatingFileWriter) CurrentPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pathFor(w.currentDate)
}

func (w *RotatingFileWriter) pathFor(date string) string {
	return filepath.Join(w.dir, w.prefix+date+w.suffix)
}

func (w *RotatingFileWriter) rotateIfNeeded() error {
	today := w.now().Format(time.DateOnly)
	if w.currentDate == today && w.file != nil {
		return nil
	}

	if w.file != nil {
		w.file.Close()
	}

	file, err := os.OpenFile(w.pathFor(today), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	w.file = file
	w.currentDate = today

	w.removeOldFiles()
	return nil
}

func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// file names embed the date, so lexical order is chronological
func (w *RotatingFileWriter) removeOldFiles() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, w.prefix) && strings.HasSuffix(name, w.suffix) {
			names = append(names, name)
		}
	}
	if len(names) <= w.maxFiles {
		return
	}

	sort.Strings(names)
	for _, name := range names[:len(names)-w.maxFiles] {
		os.Remove(filepath.Join(w.dir, name))
	}
}
