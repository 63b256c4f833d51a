package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileOptions configures a rotating log file.
type FileOptions struct {
	Dir       string
	Name      string
	MaxSizeMB int
	MaxFiles  int
	// Daily also rotates once a day regardless of size.
	Daily bool
}

// FileWriter writes logs to rotating files, gzipping rotated ones.
type FileWriter struct {
	mu           sync.Mutex
	opts         FileOptions
	maxSize      int64
	current      *os.File
	currentSize  int64
	lastRotation time.Time
	wg           sync.WaitGroup
}

// NewFileWriter opens (or creates) Dir/Name for appending.
func NewFileWriter(opts FileOptions) (*FileWriter, error) {
	if opts.Name == "" {
		opts.Name = "raidfinder.log"
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = 5
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	fw := &FileWriter{
		opts:         opts,
		maxSize:      int64(opts.MaxSizeMB) * 1024 * 1024,
		lastRotation: time.Now(),
	}
	if err := fw.open(); err != nil {
		return nil, err
	}
	return fw, nil
}

func (fw *FileWriter) path() string {
	return filepath.Join(fw.opts.Dir, fw.opts.Name)
}

func (fw *FileWriter) open() error {
	f, err := os.OpenFile(fw.path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	fw.current = f
	fw.currentSize = info.Size()
	return nil
}

func (fw *FileWriter) Write(p []byte) (int, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.current == nil {
		return 0, os.ErrClosed
	}
	if fw.shouldRotate(int64(len(p))) {
		if err := fw.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := fw.current.Write(p)
	fw.currentSize += int64(n)
	return n, err
}

func (fw *FileWriter) shouldRotate(writeSize int64) bool {
	if fw.currentSize > 0 && fw.currentSize+writeSize > fw.maxSize {
		return true
	}
	return fw.opts.Daily && time.Since(fw.lastRotation) > 24*time.Hour
}

func (fw *FileWriter) rotate() error {
	if err := fw.current.Close(); err != nil {
		return fmt.Errorf("close current file: %w", err)
	}

	rotated := fmt.Sprintf("%s.%s", fw.path(), time.Now().Format("20060102-150405.000"))
	if err := os.Rename(fw.path(), rotated); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}

	fw.wg.Add(1)
	go func() {
		defer fw.wg.Done()
		compressFile(rotated)
		fw.cleanup()
	}()

	if err := fw.open(); err != nil {
		return err
	}
	fw.lastRotation = time.Now()
	return nil
}

func compressFile(path string) {
	in, err := os.Open(path)
	if err != nil {
		return
	}
	defer in.Close()

	gzPath := path + ".gz"
	out, err := os.Create(gzPath)
	if err != nil {
		return
	}
	gz := gzip.NewWriter(out)
	_, copyErr := io.Copy(gz, in)
	closeErr := gz.Close()
	out.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(gzPath)
		return
	}
	os.Remove(path)
}

// cleanup keeps at most MaxFiles rotated archives, oldest removed first.
func (fw *FileWriter) cleanup() {
	matches, err := filepath.Glob(fw.path() + ".*.gz")
	if err != nil || len(matches) <= fw.opts.MaxFiles {
		return
	}
	// Rotated names embed a sortable timestamp.
	sort.Strings(matches)
	for _, path := range matches[:len(matches)-fw.opts.MaxFiles] {
		os.Remove(path)
	}
}

// Close waits for pending compression and closes the current file.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	f := fw.current
	fw.current = nil
	fw.mu.Unlock()

	fw.wg.Wait()
	if f != nil {
		return f.Close()
	}
	return nil
}
