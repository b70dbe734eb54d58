//go:build !unix

package audit

import "os"

// Advisory file locking is unavailable on this platform. Appends still
// rely on O_APPEND atomicity for single-line records.
func lockExclusive(*os.File) error { return nil }

func unlock(*os.File) {}
