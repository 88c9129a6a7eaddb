package platform

import (
	"os/exec"
	"runtime"
)

// OpenInEditor launches editorPath (or, if empty, the OS default
// opener) on file. It does not wait for the editor to exit.
func OpenInEditor(editorPath, file string) error {
	if editorPath != "" {
		return exec.Command(editorPath, file).Start()
	}
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", file).Start()
	case "windows":
		return exec.Command("cmd", "/c", "start", "", file).Start()
	default:
		return exec.Command("xdg-open", file).Start()
	}
}
