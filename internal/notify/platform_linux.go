//go:build linux

package notify

func autoBackend(lookPath func(string) (string, error)) string {
	if _, err := lookPath(BackendNotifySend); err == nil {
		return BackendNotifySend
	}
	return BackendNone
}
