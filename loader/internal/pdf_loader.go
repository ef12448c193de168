package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pdfrag/types"
)

type FileState int

const (
	FileDone FileState = iota
	FileBad
)

// seen is what the watcher knows about a file in the source directory.
type seen struct {
	since   time.Time
	size    int64
	modTime time.Time
}

// PDFLoader watches the source directory and files processed PDFs away.
type PDFLoader struct {
	cfg  types.LoaderConfig
	tick time.Duration
	now  func() time.Time

	mu         sync.Mutex
	firstSeen  map[string]seen
	processing map[string]bool
}

func NewPDFLoader(cfg types.LoaderConfig) (*PDFLoader, error) {
	if err := createDirectories(cfg.SourceDir, cfg.ArchiveDir, cfg.BadDir); err != nil {
		return nil, err
	}
	return &PDFLoader{
		cfg:        cfg,
		tick:       time.Second,
		now:        time.Now,
		firstSeen:  make(map[string]seen),
		processing: make(map[string]bool),
	}, nil
}

// SetTick changes the polling interval.
func (l *PDFLoader) SetTick(d time.Duration) {
	l.tick = d
}

// WatchFile sends the path of every PDF that stayed unchanged for the
// monitoring time. A path is not sent again until Release is called for it.
func (l *PDFLoader) WatchFile(ctx context.Context, fileChan chan<- string) {
	log.Printf("[LOADER] start monitoring folder: %s", l.cfg.SourceDir)

	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()
	defer log.Println("[LOADER] file watcher stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, path := range l.scan() {
				select {
				case fileChan <- path:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// scan returns the files that became ready since the last scan.
func (l *PDFLoader) scan() []string {
	files, err := os.ReadDir(l.cfg.SourceDir)
	if err != nil {
		log.Printf("[LOADER] error while reading source directory: %s", err)
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	current := make(map[string]bool)
	var ready []string
	for _, file := range files {
		if file.IsDir() || !strings.EqualFold(filepath.Ext(file.Name()), ".pdf") {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(l.cfg.SourceDir, file.Name())
		current[path] = true
		if l.processing[path] {
			continue
		}

		prev, exists := l.firstSeen[path]
		if !exists || prev.size != info.Size() || !prev.modTime.Equal(info.ModTime()) {
			if !exists {
				log.Printf("[LOADER] new file detected: %s", path)
			}
			l.firstSeen[path] = seen{since: now, size: info.Size(), modTime: info.ModTime()}
			continue
		}

		if now.Sub(prev.since) >= l.cfg.MonitoringTime {
			l.processing[path] = true
			ready = append(ready, path)
		}
	}

	for path := range l.firstSeen {
		if !current[path] {
			delete(l.firstSeen, path)
			delete(l.processing, path)
		}
	}
	return ready
}

// Release forgets path so that a new file with the same name is picked up.
func (l *PDFLoader) Release(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.processing, path)
	delete(l.firstSeen, path)
}

// MoveToArchive moves filePath under <archive or bad dir>/<date>/, adding a
// _N suffix when the name is taken. It returns the destination path.
func (l *PDFLoader) MoveToArchive(filePath string, state FileState) (string, error) {
	root := l.cfg.ArchiveDir
	if state == FileBad {
		root = l.cfg.BadDir
	}

	destDir := filepath.Join(root, l.now().Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("error creating directory: %w", err)
	}

	destPath := filepath.Join(destDir, filepath.Base(filePath))
	ext := filepath.Ext(destPath)
	baseName := strings.TrimSuffix(filepath.Base(destPath), ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(destPath); errors.Is(err, os.ErrNotExist) {
			break
		}
		destPath = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", baseName, counter, ext))
	}

	if err := os.Rename(filePath, destPath); err != nil {
		// rename fails across devices
		if err := copyFile(filePath, destPath); err != nil {
			return "", fmt.Errorf("error moving file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", err
		}
	}
	return destPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func createDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
