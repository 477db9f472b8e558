package persist

import (
	"os"
	"path/filepath"

	"github.com/brindlefield/merkletree/tree"
)

// dirLock is an inter-process mutual exclusion primitive: an O_EXCL file
// whose mere existence marks a directory as owned by an open persistent
// tree. Grounded on Carmen's CreateLockFile (common/lock_file.go), using
// os.OpenFile's portable O_EXCL support instead of raw syscall calls.
type dirLock struct {
	path string
	f    *os.File
}

// acquireDirLock atomically creates the lock file, failing if one already
// exists - which means another process (or an earlier, still-live Open in
// this process) currently owns the directory.
func acquireDirLock(dir string) (*dirLock, error) {
	path := filepath.Join(dir, "LOCK")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, tree.Wrapf(tree.ErrIO, "directory %s is already locked by another open tree", dir)
		}
		return nil, tree.Wrap(tree.ErrIO, err)
	}
	return &dirLock{path: path, f: f}, nil
}

// release closes and removes the lock file. It is safe to call at most
// once; a second call returns an error rather than silently succeeding.
func (l *dirLock) release() error {
	if l.f == nil {
		return tree.Wrapf(tree.ErrInvalidArgument, "lock already released")
	}
	closeErr := l.f.Close()
	removeErr := os.Remove(l.path)
	l.f = nil
	if closeErr != nil {
		return tree.Wrap(tree.ErrIO, closeErr)
	}
	if removeErr != nil {
		return tree.Wrap(tree.ErrIO, removeErr)
	}
	return nil
}
