//go:build !unix

package alert

// lockDir is a no-op where flock is unavailable; concurrent inserts sharing
// a dedupe scope may then both survive.
func lockDir(dir string) (func(), error) {
	return func() {}, nil
}
