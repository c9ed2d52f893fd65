// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !(linux || darwin)

package rlimit

// Get returns [ErrUnsupported].
func Get() (Limit, error) {
	return Limit{}, ErrUnsupported
}

// Raise returns [ErrUnsupported].
func Raise(want uint64) (Limit, error) {
	return Limit{}, ErrUnsupported
}
