// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux || darwin

package rlimit

import "golang.org/x/sys/unix"

// Get returns the current open file limit.
func Get() (Limit, error) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return Limit{}, err
	}
	return Limit{Soft: uint64(rl.Cur), Hard: uint64(rl.Max)}, nil
}

// Raise raises the soft open file limit to want, capped at the hard limit,
// and returns the resulting limit. It never lowers the soft limit.
func Raise(want uint64) (Limit, error) {
	current, err := Get()
	if err != nil {
		return Limit{}, err
	}
	target := min(want, current.Hard)
	if current.Soft >= target {
		return current, nil
	}
	rl := unix.Rlimit{Cur: target, Max: current.Hard}
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return current, err
	}
	return Get()
}
