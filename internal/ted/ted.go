// Package ted implements the timing-error detector and loop filter used
// by the symbol timing synchronizer: a Gardner/Mengali-style detector
// producing a scalar timing error, smoothed by a first-order recursive
// filter into a stable control signal.
package ted

import (
	"errors"

	"symsync/internal/pfb"
)

// ErrLoopBandwidth is returned when a loop bandwidth outside [0,1] is set.
var ErrLoopBandwidth = errors.New("ted: loop bandwidth must be in [0,1]")

// Product computes Re(conj(u)*v) for complex samples, or u*v for real
// samples (which is already real, so no conjugation is needed). Together
// with pfb.MAC this is the operator-set abstraction that lets the
// timing-error detector stay generic over sample type without runtime
// dispatch.
type Product[T pfb.Sample] func(u, v T) float64

// ProductComplex64 implements Product for complex64 matched-filter and
// derivative-matched-filter outputs: Re(conj(u)*v) = Re(u)Re(v)+Im(u)Im(v).
func ProductComplex64(u, v complex64) float64 {
	return float64(real(u))*float64(real(v)) + float64(imag(u))*float64(imag(v))
}

// ProductFloat32 implements Product for real-valued matched-filter paths.
func ProductFloat32(u, v float32) float64 {
	return float64(u) * float64(v)
}

// Detect computes the instantaneous timing error q from a paired
// matched-filter output u and derivative-matched-filter output v,
// clipped to [-1, 1] to bound a transient outlier's impact on the loop.
func Detect[T pfb.Sample](product Product[T], u, v T) float64 {
	q := product(u, v)
	switch {
	case q > 1.0:
		return 1.0
	case q < -1.0:
		return -1.0
	default:
		return q
	}
}

// LoopFilter is a first-order recursive smoother: qHat = beta*q +
// alpha*qPrime, qPrime = qHat. alpha and beta are derived from a
// bandwidth parameter bt in [0,1]; larger bt tracks faster at the cost
// of more noise sensitivity.
type LoopFilter struct {
	alpha, beta float64
	qPrime      float64
}

// NewLoopFilter constructs a loop filter at the given bandwidth.
func NewLoopFilter(bt float64) (*LoopFilter, error) {
	lf := &LoopFilter{}
	if err := lf.SetBandwidth(bt); err != nil {
		return nil, err
	}
	return lf, nil
}

// SetBandwidth recomputes alpha and beta from bt without resetting
// qPrime. beta is fixed-scaled by 0.22 for a critically damped response;
// this constant must be reproduced exactly for numerical equivalence.
func (lf *LoopFilter) SetBandwidth(bt float64) error {
	if bt < 0.0 || bt > 1.0 {
		return ErrLoopBandwidth
	}
	lf.alpha = 1.0 - bt
	lf.beta = 0.22 * bt
	return nil
}

// Update filters a new instantaneous error q, returning qHat.
func (lf *LoopFilter) Update(q float64) float64 {
	qHat := q*lf.beta + lf.qPrime*lf.alpha
	lf.qPrime = qHat
	return qHat
}

// Reset zeroes the filter's internal state without touching alpha/beta.
func (lf *LoopFilter) Reset() {
	lf.qPrime = 0.0
}
