// Package goid identifies the calling goroutine.
//
// Transports use it to tell a call made from inside one of their own
// callbacks apart from a call made by any other goroutine. It must not be
// used for anything that outlives the goroutine.
package goid

import (
	"runtime"
)

// ID returns the id of the calling goroutine. It is never 0.
func ID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The trace starts with "goroutine <id> [".
	const prefix = len("goroutine ")
	var id uint64
	for i := prefix; i < n; i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
