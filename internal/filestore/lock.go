package filestore

import "path/filepath"

// LockFile guards read-modify-write cycles on the data directory, so the API
// server and chamadactl can share one DATA_DIR.
const LockFile = ".chamada.lock"

type dirLock struct {
	path string
}

func newDirLock(dir string) *dirLock {
	return &dirLock{path: filepath.Join(dir, LockFile)}
}
