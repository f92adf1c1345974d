package source

import (
	"fmt"
	"sync"

	"fortio.org/safecast"
)

// FileTable maps file ids to the paths reported in runtime panic messages.
// It is append-only and safe for concurrent use.
type FileTable struct {
	mu    sync.RWMutex
	paths []string          // paths[0] is the unknown file
	index map[string]FileID // path -> FileID
}

// NewFileTable creates an empty table with the zero FileID reserved.
func NewFileTable() *FileTable {
	return &FileTable{
		paths: []string{""},
		index: map[string]FileID{"": 0},
	}
}

// Add registers path and returns its id. Known paths keep their id.
func (t *FileTable) Add(path string) FileID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.index[path]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(t.paths))
	if err != nil {
		panic(fmt.Errorf("file table overflow: %w", err))
	}
	id := FileID(n)
	t.paths = append(t.paths, path)
	t.index[path] = id
	return id
}

// Path returns the path for id.
func (t *FileTable) Path(id FileID) (string, bool) {
	if t == nil {
		return "", false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.paths) {
		return "", false
	}
	return t.paths[id], true
}

// PathOf returns the path for the file of pos, or "" when unknown.
func (t *FileTable) PathOf(pos Pos) string {
	p, _ := t.Path(pos.File)
	return p
}

// Len returns the number of entries, including the reserved zero id.
func (t *FileTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.paths)
}
