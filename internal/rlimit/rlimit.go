// SPDX-License-Identifier: GPL-3.0-or-later

// Package rlimit raises the open file limit so that many connections can
// be open at the same time.
package rlimit

import "errors"

// ErrUnsupported indicates a platform without a settable open file limit.
var ErrUnsupported = errors.New("rlimit: unsupported platform")

// Limit is the soft and hard open file limit.
type Limit struct {
	Soft uint64
	Hard uint64
}

// Needed returns the open file limit required by admissionLimit
// concurrent connections plus the descriptors the process uses anyway.
func Needed(admissionLimit int) uint64 {
	const reserved = 64
	return uint64(max(admissionLimit, 0)) + reserved
}
