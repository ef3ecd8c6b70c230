package gguf

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// parseGroup coalesces concurrent ParseFileCached calls for the same path
// into a single mmap-and-parse, so that several sessions starting up at
// once against the same model file don't each pay the header/metadata/
// tensor-info parse cost independently.
var parseGroup singleflight.Group

// fileCache holds already-parsed Files keyed by path, so a second
// ParseFileCached call for a path already open reuses the same parsed
// header, tensor-info table and mapping rather than re-parsing and
// re-mapping it. Callers share ownership: Close on a cached File is a no-op until
// every caller has released it.
var fileCache sync.Map // path string -> *refCountedFile

type refCountedFile struct {
	mu   sync.Mutex
	file *File
	refs int
}

// ParseFileCached parses path like ParseFile, but returns a shared File for
// repeat calls with the same path while at least one prior caller still
// holds it open. Each returned File must still be Closed exactly once by
// its caller; the underlying mmap is only released when the last reference
// is closed.
func ParseFileCached(path string) (*File, error) {
	v, err, _ := parseGroup.Do(path, func() (any, error) {
		if existing, ok := fileCache.Load(path); ok {
			return existing, nil
		}

		f, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		rf := &refCountedFile{file: f}
		fileCache.Store(path, rf)
		return rf, nil
	})
	if err != nil {
		return nil, err
	}

	// Every caller takes its own reference, including callers whose Do was
	// coalesced onto another caller's run.
	rf := v.(*refCountedFile)
	rf.mu.Lock()
	rf.refs++
	rf.mu.Unlock()
	return &File{
		Header:      rf.file.Header,
		TensorInfos: rf.file.TensorInfos,
		DataOffset:  rf.file.DataOffset,
		src:         &sharedSource{path: path, rf: rf, dataSource: rf.file.src},
	}, nil
}

// sharedSource wraps a cached File's dataSource so Close drops one
// reference instead of unmapping bytes other callers still use.
type sharedSource struct {
	dataSource
	path string
	rf   *refCountedFile
}

func (s *sharedSource) Close() error {
	s.rf.mu.Lock()
	s.rf.refs--
	last := s.rf.refs == 0
	s.rf.mu.Unlock()

	if !last {
		return nil
	}
	fileCache.Delete(s.path)
	return s.dataSource.Close()
}
