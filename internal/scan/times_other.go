//go:build !linux && !darwin

package scan

import (
	"os"
	"time"
)

// fileTimes falls back to the modification time on platforms without a
// portable stat structure.
func fileTimes(fi os.FileInfo) (created, accessed time.Time) {
	return fi.ModTime(), fi.ModTime()
}
