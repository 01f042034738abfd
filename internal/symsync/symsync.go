// Package symsync implements a closed-loop symbol timing synchronizer:
// a polyphase matched-filter bank and its derivative bank, a
// Gardner/Mengali timing-error detector, a first-order loop filter, and
// a fractional phase accumulator that selects which polyphase branch to
// evaluate on each input sample. Given a stream of samples at k per
// symbol, it produces a stream at k_out per symbol aligned to the
// transmitter's symbol instants.
package symsync

import (
	"errors"
	"fmt"
	"io"
	"math"

	"symsync/internal/pfb"
	"symsync/internal/rrc"
	"symsync/internal/ted"
)

// Construction-time validation errors. A non-nil error here means no
// usable Synchronizer was built; steady-state operations have no
// recoverable error classes of their own.
var (
	ErrSamplesPerSymbol = errors.New("symsync: samples per symbol (k) must be at least 2")
	ErrFilterLength     = errors.New("symsync: filter length must be greater than zero")
	ErrOutputRate       = errors.New("symsync: output rate (k_out) must be greater than zero")
)

// Synchronizer is parametric over the sample type T: complex64 for
// passband/IQ data, float32 for a real-valued baseband path. The
// coefficient type is always real (float64): the two combinations that
// matter in practice are complex samples against real coefficients, and
// all-real, so the coefficient type is pinned rather than threaded
// through as its own type parameter.
type Synchronizer[T pfb.Sample] struct {
	k, npfb int
	kOut    int

	mf  *pfb.Bank[T]
	dmf *pfb.Bank[T]

	mac     pfb.MAC[T]
	product ted.Product[T]
	lf      *ted.LoopFilter

	tau, bf float64
	b       int
	del     float64

	q, qHat float64

	decimCounter int
	isLocked     bool

	history debugHistory
}

// debugHistory accumulates the per-loop-update trace consumed by
// DumpDebug. Its layout is an implementation detail, not a wire format.
type debugHistory struct {
	del, tau, bf, qHat []float64
	b                  []int
}

// New constructs a synchronizer from explicit prototype coefficients h
// (length npfb*L+1), k samples/symbol, and npfb polyphase sub-filters.
// mac and product are the type-specific operator abstractions described
// in pfb and ted; see NewComplex64 and NewFloat32 for the common cases.
func New[T pfb.Sample](k, npfb int, h []float64, mac pfb.MAC[T], product ted.Product[T]) (*Synchronizer[T], error) {
	if k < 2 {
		return nil, ErrSamplesPerSymbol
	}
	if len(h) == 0 {
		return nil, ErrFilterLength
	}

	mfBank, err := pfb.New(npfb, h, mac)
	if err != nil {
		return nil, err
	}
	dh := pfb.Derivative(h, npfb)
	dmfBank, err := pfb.New(npfb, dh, mac)
	if err != nil {
		return nil, err
	}

	lf, err := ted.NewLoopFilter(0.01)
	if err != nil {
		// 0.01 is a fixed, always-valid default; a failure here would
		// indicate a programming error in this package, not bad input.
		panic(err)
	}

	s := &Synchronizer[T]{
		k:       k,
		npfb:    npfb,
		mf:      mfBank,
		dmf:     dmfBank,
		mac:     mac,
		product: product,
		lf:      lf,
	}
	if err := s.SetOutputRate(1); err != nil {
		panic(err)
	}
	s.Unlock()
	s.Reset()
	return s, nil
}

// NewComplex64 builds a synchronizer for complex64 samples with real
// coefficients — the common (complex, real, complex) combination.
func NewComplex64(k, npfb int, h []float64) (*Synchronizer[complex64], error) {
	return New[complex64](k, npfb, h, pfb.MulAddComplex64, ted.ProductComplex64)
}

// NewFloat32 builds a synchronizer for real float32 samples — the
// (real, real, real) combination.
func NewFloat32(k, npfb int, h []float64) (*Synchronizer[float32], error) {
	return New[float32](k, npfb, h, pfb.MulAddFloat32, ted.ProductFloat32)
}

// NewRNyquistComplex64 designs a square-root-Nyquist prototype and
// builds a complex64 synchronizer from it in one step.
func NewRNyquistComplex64(kind rrc.Kind, k, m int, beta float64, npfb int) (*Synchronizer[complex64], error) {
	h, err := rrc.Design(kind, k*npfb, m, beta, 0)
	if err != nil {
		return nil, err
	}
	return NewComplex64(k, npfb, h)
}

// NewRNyquistFloat32 designs a square-root-Nyquist prototype and builds
// a real float32 synchronizer from it in one step.
func NewRNyquistFloat32(kind rrc.Kind, k, m int, beta float64, npfb int) (*Synchronizer[float32], error) {
	h, err := rrc.Design(kind, k*npfb, m, beta, 0)
	if err != nil {
		return nil, err
	}
	return NewFloat32(k, npfb, h)
}

// SetLoopBandwidth recomputes the loop filter's alpha/beta coefficients
// from bt in [0,1]. It does not reset any loop state.
func (s *Synchronizer[T]) SetLoopBandwidth(bt float64) error {
	return s.lf.SetBandwidth(bt)
}

// SetOutputRate updates k_out and recomputes the nominal phase step
// k/k_out. It does not reset tau; any loop-driven adjustment to del is
// dropped until the next loop update recomputes it.
func (s *Synchronizer[T]) SetOutputRate(kOut int) error {
	if kOut <= 0 {
		return ErrOutputRate
	}
	s.kOut = kOut
	s.del = float64(s.k) / float64(kOut)
	return nil
}

// Lock suppresses loop updates; emissions continue using the frozen del.
func (s *Synchronizer[T]) Lock() { s.isLocked = true }

// Unlock resumes loop updates.
func (s *Synchronizer[T]) Unlock() { s.isLocked = false }

// IsLocked reports whether loop updates are currently suppressed.
func (s *Synchronizer[T]) IsLocked() bool { return s.isLocked }

// Tau returns the current fractional timing phase in symbols.
func (s *Synchronizer[T]) Tau() float64 { return s.tau }

// QHat returns the current filtered timing-error estimate.
func (s *Synchronizer[T]) QHat() float64 { return s.qHat }

// Del returns the current per-output phase increment.
func (s *Synchronizer[T]) Del() float64 { return s.del }

// Reset clears both filterbanks' delay lines and zeroes all loop state:
// tau, bf, b, q, qHat, the loop filter's internal state, and the
// decimation counter.
func (s *Synchronizer[T]) Reset() {
	s.mf.Clear()
	s.dmf.Clear()
	s.b = 0
	s.tau = 0.0
	s.bf = 0.0
	s.q = 0.0
	s.qHat = 0.0
	s.lf.Reset()
	s.decimCounter = 0
}

// Execute runs Step over an entire input block and returns the
// concatenated output along with the number of samples written.
func (s *Synchronizer[T]) Execute(x []T) ([]T, int) {
	y := make([]T, 0, len(x)*s.kOut/s.k+1)
	total := 0
	for _, xi := range x {
		out, n := s.Step(xi)
		y = append(y, out...)
		total += n
	}
	return y, total
}

// Step pushes one input sample into the matched-filter and derivative
// matched-filter banks (in lock-step, so they always share delay-line
// state) and emits zero or more output samples, advancing the
// fractional timing phase after each one. Exactly one symbol's worth of
// phase is unwound at the end of the call.
func (s *Synchronizer[T]) Step(x T) ([]T, int) {
	s.mf.Push(x)
	s.dmf.Push(x)

	y := make([]T, 0, 2)
	n := 0

	for s.b < s.npfb {
		mfOut := s.mf.Execute(s.b)
		y = append(y, s.scale(mfOut))

		if s.decimCounter == s.kOut {
			s.decimCounter = 0
			if !s.isLocked {
				dmfOut := s.dmf.Execute(s.b)
				s.advanceLoop(mfOut, dmfOut)
			}
		}
		s.decimCounter++

		s.tau += s.del
		s.bf = s.tau * float64(s.npfb)
		s.b = int(math.Round(s.bf))
		n++
	}

	s.tau -= 1.0
	s.bf -= float64(s.npfb)
	s.b -= s.npfb

	return y, n
}

// scale divides a matched-filter output by k, compensating for the
// oversampled matched-filter gain.
func (s *Synchronizer[T]) scale(mfOut T) T {
	switch v := any(mfOut).(type) {
	case complex64:
		return any(v / complex(float32(s.k), 0)).(T)
	case complex128:
		return any(v / complex(float64(s.k), 0)).(T)
	case float32:
		return any(v / float32(s.k)).(T)
	case float64:
		return any(v / float64(s.k)).(T)
	default:
		return mfOut
	}
}

// advanceLoop runs the timing-error detector and loop filter on the
// paired matched-filter / derivative-matched-filter outputs for the
// current "ideal-timing" sample, then updates del for the next phase
// advance. The update applies with one sample of latency: it affects
// the next phase advance, not the emission that produced it.
func (s *Synchronizer[T]) advanceLoop(mf, dmf T) {
	s.q = ted.Detect(s.product, mf, dmf)
	s.qHat = s.lf.Update(s.q)
	s.del = float64(s.k)/float64(s.kOut) + s.qHat

	s.history.del = append(s.history.del, s.del)
	s.history.tau = append(s.history.tau, s.tau)
	s.history.bf = append(s.history.bf, s.bf)
	s.history.b = append(s.history.b, s.b)
	s.history.qHat = append(s.history.qHat, s.qHat)
}

// DumpDebug writes the accumulated per-update history (del, tau, bf, b,
// qHat) as plain text, one row per loop update. The format is opaque to
// the core contract; it exists only to feed an external plotting tool.
func (s *Synchronizer[T]) DumpDebug(w io.Writer) error {
	fmt.Fprintf(w, "# del, tau, bf, b, q_hat\n")
	for i := range s.history.del {
		_, err := fmt.Fprintf(w, "%.8f, %.8f, %.8f, %d, %.8f\n",
			s.history.del[i], s.history.tau[i], s.history.bf[i], s.history.b[i], s.history.qHat[i])
		if err != nil {
			return err
		}
	}
	return nil
}
