package filesystem

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// memoryFileInfo implements fs.FileInfo for in-memory entries.
type memoryFileInfo struct {
	name    string
	size    int64
	modTime time.Time
	isDir   bool
}

func (f *memoryFileInfo) Name() string       { return f.name }
func (f *memoryFileInfo) Size() int64        { return f.size }
func (f *memoryFileInfo) ModTime() time.Time { return f.modTime }
func (f *memoryFileInfo) IsDir() bool        { return f.isDir }
func (f *memoryFileInfo) Sys() interface{}   { return nil }

func (f *memoryFileInfo) Mode() fs.FileMode {
	if f.isDir {
		return 0755 | fs.ModeDir
	}
	return 0644
}

type memoryEntry struct {
	content []byte
	openErr error
	modTime time.Time
}

// MemoryFileSystem is an in-memory Provider for tests. Paths are slash
// separated and cleaned. It records how many files are open at once.
type MemoryFileSystem struct {
	mu      sync.Mutex
	files   map[string]*memoryEntry
	open    int
	maxOpen int
	opens   int
}

// NewMemoryFileSystem creates an empty in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{files: make(map[string]*memoryEntry)}
}

// AddFile adds or replaces a file.
func (m *MemoryFileSystem) AddFile(name, content string) {
	m.AddBytes(name, []byte(content))
}

// AddBytes adds or replaces a file with binary content.
func (m *MemoryFileSystem) AddBytes(name string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path.Clean(name)] = &memoryEntry{content: content, modTime: time.Now()}
}

// AddUnreadable adds a file whose Open fails with err.
func (m *MemoryFileSystem) AddUnreadable(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path.Clean(name)] = &memoryEntry{openErr: err, modTime: time.Now()}
}

// MaxConcurrentOpen returns the highest number of files open at once.
func (m *MemoryFileSystem) MaxConcurrentOpen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxOpen
}

// OpenCount returns the total number of successful opens.
func (m *MemoryFileSystem) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// OpenFiles returns the number of files currently open.
func (m *MemoryFileSystem) OpenFiles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *MemoryFileSystem) Open(_ context.Context, name string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.files[path.Clean(name)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if entry.openErr != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: entry.openErr}
	}

	m.open++
	m.opens++
	if m.open > m.maxOpen {
		m.maxOpen = m.open
	}
	return &memoryReader{Reader: bytes.NewReader(entry.content), fs: m}, nil
}

func (m *MemoryFileSystem) Stat(_ context.Context, name string) (FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clean := path.Clean(name)
	if entry, ok := m.files[clean]; ok {
		return &memoryFileInfo{name: path.Base(clean), size: int64(len(entry.content)), modTime: entry.modTime}, nil
	}
	prefix := dirPrefix(clean)
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			return &memoryFileInfo{name: path.Base(clean), isDir: true, modTime: time.Now()}, nil
		}
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

func (m *MemoryFileSystem) List(_ context.Context, dir string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := dirPrefix(path.Clean(dir))
	var out []string
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, &fs.PathError{Op: "list", Path: dir, Err: fs.ErrNotExist}
	}
	sort.Strings(out)
	return out, nil
}

func dirPrefix(dir string) string {
	switch dir {
	case ".":
		return ""
	case "/":
		return "/"
	}
	return dir + "/"
}

type memoryReader struct {
	*bytes.Reader
	fs     *MemoryFileSystem
	closed bool
}

func (r *memoryReader) Close() error {
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	if !r.closed {
		r.closed = true
		r.fs.open--
	}
	return nil
}

var _ Provider = (*MemoryFileSystem)(nil)
