//go:build !unix

package store

// Advisory file locking is unavailable here; Open proceeds without
// multi-process protection on these platforms.
type dirLock struct{}

func acquireDirLock(path string) (*dirLock, error) {
	return &dirLock{}, nil
}

func (l *dirLock) release() error {
	return nil
}
