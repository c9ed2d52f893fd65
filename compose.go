// SPDX-License-Identifier: GPL-3.0-or-later

package slp

import "context"

// Compose2 returns a [Func] feeding the result of op1 into op2.
//
// When op1 fails, op2 does not run and the zero value is returned along
// with the op1 error.
func Compose2[A, B, C any](op1 Func[A, B], op2 Func[B, C]) Func[A, C] {
	return FuncAdapter[A, C](func(ctx context.Context, input A) (C, error) {
		middle, err := op1.Call(ctx, input)
		if err != nil {
			var zero C
			return zero, err
		}
		return op2.Call(ctx, middle)
	})
}

// Compose3 is [Compose2] with three stages.
func Compose3[A, B, C, D any](op1 Func[A, B], op2 Func[B, C], op3 Func[C, D]) Func[A, D] {
	return Compose2(Compose2(op1, op2), op3)
}

// Compose4 is [Compose2] with four stages, the length of both dial
// pipelines: connect, no-delay, observe and cancel-watch for [*Connection];
// endpoint, connect, observe and cancel-watch for [*DNSResolver].
func Compose4[A, B, C, D, E any](op1 Func[A, B], op2 Func[B, C], op3 Func[C, D], op4 Func[D, E]) Func[A, E] {
	return Compose2(Compose3(op1, op2, op3), op4)
}
