//go:build darwin

package scan

import (
	"os"
	"syscall"
	"time"
)

// fileTimes extracts the true birth time and access time from the stat
// structure.
func fileTimes(fi os.FileInfo) (created, accessed time.Time) {
	created = fi.ModTime()
	accessed = fi.ModTime()
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return created, accessed
	}

	accessed = time.Unix(st.Atimespec.Sec, st.Atimespec.Nsec)
	if birth := time.Unix(st.Birthtimespec.Sec, st.Birthtimespec.Nsec); !birth.IsZero() {
		created = birth
	}
	return created, accessed
}
