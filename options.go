// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import (
	"fmt"
	"runtime"
)

// DefaultAdmissionLimit is the default maximum number of queries in the
// active phase at the same time.
const DefaultAdmissionLimit = 1024

// Options configures a [*Dispatcher].
//
// Zero values select the defaults. Negative values are invalid.
type Options struct {
	// AdmissionLimit is the maximum number of concurrently active queries.
	//
	// Zero means [DefaultAdmissionLimit].
	AdmissionLimit int

	// Workers is the number of goroutines admitting queued queries.
	//
	// Zero means [runtime.NumCPU].
	Workers int

	// CallbackWorkers is the number of goroutines delivering outcomes.
	//
	// Zero means one, which serialises the [Handler] calls.
	CallbackWorkers int
}

// withDefaults validates opts and fills in the zero fields.
func (opts Options) withDefaults() (Options, error) {
	if opts.AdmissionLimit < 0 || opts.Workers < 0 || opts.CallbackWorkers < 0 {
		return opts, fmt.Errorf("%w: negative value in %+v", ErrInvalidOptions, opts)
	}
	if opts.AdmissionLimit == 0 {
		opts.AdmissionLimit = DefaultAdmissionLimit
	}
	if opts.Workers == 0 {
		opts.Workers = max(1, runtime.NumCPU())
	}
	if opts.CallbackWorkers == 0 {
		opts.CallbackWorkers = 1
	}
	return opts, nil
}
