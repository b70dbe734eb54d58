//go:build unix

package audit

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockExclusive takes an advisory exclusive lock on the open store file.
// The call blocks until any concurrent writer releases its lock.
func lockExclusive(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX)
}

// unlock releases the advisory lock. Closing the file would also release
// it; the explicit call keeps the lock window as small as possible.
func unlock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
