package executor

import (
	"os"
	"path/filepath"
	"runtime"
)

// FallbackTrashName is the dedicated trash folder used on platforms without
// a conventional trash location, created under the user's home.
const FallbackTrashName = ".kestrel-trash"

// platformTrashDir returns the soft-delete destination for this platform:
// the user Trash on macOS, the XDG trash directory on Linux, and a dedicated
// fallback folder elsewhere.
func platformTrashDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, ".Trash")
	case "linux":
		if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
			return filepath.Join(dataHome, "Trash", "files")
		}
		return filepath.Join(home, ".local", "share", "Trash", "files")
	default:
		return filepath.Join(home, FallbackTrashName)
	}
}
