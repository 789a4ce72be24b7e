//go:build !darwin && !linux

package notify

func autoBackend(func(string) (string, error)) string {
	return BackendNone
}
