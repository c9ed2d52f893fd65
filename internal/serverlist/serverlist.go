// SPDX-License-Identifier: GPL-3.0-or-later

// Package serverlist reads line-oriented lists of server addresses.
package serverlist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bassosimone/slp"
)

// Stdin is the path naming the standard input.
const Stdin = "-"

// Read parses one address per line from r.
//
// Surrounding whitespace is trimmed. Blank lines and lines starting with
// "#" are skipped. Each remaining line is parsed by [slp.ParseServerTarget]
// using defaultPort, and the first invalid line fails the whole read.
func Read(r io.Reader, defaultPort uint16) ([]slp.ServerTarget, error) {
	var targets []slp.ServerTarget
	scanner := bufio.NewScanner(r)
	var lineno int
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		target, err := slp.ParseServerTarget(line, defaultPort)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		targets = append(targets, target)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}

// ReadFile is like [Read] but reads the file at path, or the standard
// input when path is [Stdin].
func ReadFile(path string, defaultPort uint16) ([]slp.ServerTarget, error) {
	if path == Stdin {
		return Read(os.Stdin, defaultPort)
	}
	filep, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer filep.Close()
	targets, err := Read(filep, defaultPort)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return targets, nil
}

// ParseAll parses each address using defaultPort.
func ParseAll(addrs []string, defaultPort uint16) ([]slp.ServerTarget, error) {
	targets := make([]slp.ServerTarget, 0, len(addrs))
	for _, addr := range addrs {
		target, err := slp.ParseServerTarget(addr, defaultPort)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, nil
}
