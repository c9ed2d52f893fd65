// SPDX-License-Identifier: GPL-3.0-or-later

package slp

// Unit is a type not containing any value.
//
// Use this type to construct [Func] that take no argument, such as
// the endpoint stage of a DNS resolver pipeline.
type Unit struct{}
