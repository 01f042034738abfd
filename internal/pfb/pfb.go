// Package pfb implements a polyphase finite-impulse-response filter bank:
// a prototype filter decomposed into N sub-filters, each reading a shared
// delay line, so that any fractional-sample phase can be evaluated on
// demand without re-filtering the input.
package pfb

import "errors"

// ErrBankCount is returned when a bank is constructed with zero sub-filters.
var ErrBankCount = errors.New("pfb: number of sub-filters must be greater than zero")

// ErrPrototypeLength is returned when the prototype filter is too short to
// decompose into at least one tap per sub-filter.
var ErrPrototypeLength = errors.New("pfb: prototype filter is too short for the requested bank count")

// Sample is the set of numeric types a filter bank can push and evaluate:
// the two combinations the synchronizer cares about are complex samples
// with real coefficients, and real samples with real coefficients.
type Sample interface {
	~complex64 | ~complex128 | ~float32 | ~float64
}

// MAC multiply-accumulates a single real coefficient against a sample,
// adding the result onto acc. It is the "operator-set abstraction" that
// lets Bank stay generic over both real and complex sample types without
// runtime type dispatch.
type MAC[T Sample] func(acc T, coef float64, x T) T

// MulAddComplex64 is the MAC for complex64 samples with real coefficients.
func MulAddComplex64(acc complex64, coef float64, x complex64) complex64 {
	return acc + x*complex(float32(coef), 0)
}

// MulAddFloat32 is the MAC for real float32 samples with real coefficients.
func MulAddFloat32(acc float32, coef float64, x float32) float32 {
	return acc + x*float32(coef)
}

// Bank is a polyphase decomposition of a prototype filter of length
// npfb*L into npfb sub-filters of length L, sharing one delay line.
type Bank[T Sample] struct {
	npfb  int
	l     int
	h     [][]float64 // h[b][n] = prototype[n*npfb+b]
	delay []T         // shared delay line, delay[0] = most recent sample
	mac   MAC[T]
}

// New decomposes prototype h into npfb polyphase sub-filters. The
// sub-filter length is floor((len(h)-1)/npfb), matching the standard
// decomposition for prototypes of length npfb*k*2*m+1.
func New[T Sample](npfb int, h []float64, mac MAC[T]) (*Bank[T], error) {
	if npfb <= 0 {
		return nil, ErrBankCount
	}
	if len(h) == 0 {
		return nil, ErrPrototypeLength
	}

	l := (len(h) - 1) / npfb
	if l <= 0 {
		return nil, ErrPrototypeLength
	}

	sub := make([][]float64, npfb)
	for b := 0; b < npfb; b++ {
		taps := make([]float64, l)
		for n := 0; n < l; n++ {
			taps[n] = h[n*npfb+b]
		}
		sub[b] = taps
	}

	return &Bank[T]{
		npfb:  npfb,
		l:     l,
		h:     sub,
		delay: make([]T, l),
		mac:   mac,
	}, nil
}

// Len returns the number of taps in each sub-filter.
func (bk *Bank[T]) Len() int { return bk.l }

// NumFilters returns the number of sub-filters (the phase resolution).
func (bk *Bank[T]) NumFilters() int { return bk.npfb }

// Push shifts a new sample into the shared delay line.
func (bk *Bank[T]) Push(x T) {
	copy(bk.delay[1:], bk.delay[:len(bk.delay)-1])
	bk.delay[0] = x
}

// Execute evaluates sub-filter b against the current delay line. Push and
// Execute are independent: the caller may evaluate any sub-filter any
// number of times without consuming a new input sample.
func (bk *Bank[T]) Execute(b int) T {
	taps := bk.h[b]
	var acc T
	for n, c := range taps {
		acc = bk.mac(acc, c, bk.delay[n])
	}
	return acc
}

// Clear zeroes the delay line.
func (bk *Bank[T]) Clear() {
	for i := range bk.delay {
		var zero T
		bk.delay[i] = zero
	}
}

// Derivative computes the centered finite-difference derivative of a
// prototype filter with circular boundaries, scaled by npfb/16. This is
// the numerical normalization that keeps the timing-error-detector gain
// close to 1 for typical Nyquist pulses.
func Derivative(h []float64, npfb int) []float64 {
	m := len(h)
	dh := make([]float64, m)
	scale := float64(npfb) / 16.0
	for i := 0; i < m; i++ {
		switch {
		case i == 0:
			dh[i] = (h[1] - h[m-1]) * scale
		case i == m-1:
			dh[i] = (h[0] - h[i-1]) * scale
		default:
			dh[i] = (h[i+1] - h[i-1]) * scale
		}
	}
	return dh
}
