//go:build darwin

package notify

func autoBackend(lookPath func(string) (string, error)) string {
	if _, err := lookPath(BackendTerminalNotifier); err == nil {
		return BackendTerminalNotifier
	}
	return BackendOSAScript
}
