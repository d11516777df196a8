//go:build linux

package scan

import (
	"os"
	"syscall"
	"time"
)

// fileTimes extracts creation and access times from the stat structure.
// Linux has no true birth time in stat, so the inode change time serves as
// the creation time when it predates the modification time.
func fileTimes(fi os.FileInfo) (created, accessed time.Time) {
	created = fi.ModTime()
	accessed = fi.ModTime()
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return created, accessed
	}

	accessed = time.Unix(st.Atim.Sec, st.Atim.Nsec)
	if ctime := time.Unix(st.Ctim.Sec, st.Ctim.Nsec); ctime.Before(created) {
		created = ctime
	}
	return created, accessed
}
