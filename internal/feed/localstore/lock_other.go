//go:build !unix

package localstore

// lockDir is a no-op where flock is unavailable; the in-process mutex still
// serializes writers of one Store.
func lockDir(dir string) (func(), error) {
	return func() {}, nil
}
