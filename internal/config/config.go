// Package config holds default tunables for the symsync-demo driver.
// These are demo-level defaults only, not synchronizer construction
// parameters — the synchronizer's own k, npfb, and pulse parameters
// remain explicit arguments at the call site.
package config

import "symsync/internal/rrc"

// Config holds the demo driver's default configuration parameters.
type Config struct {
	SamplesPerSymbol int     // k
	SymbolSpan       int     // m, one-sided symbol span of the RRC pulse
	Rolloff          float64 // beta, excess bandwidth
	NumPolyphase     int     // npfb, bank phase resolution
	LoopBandwidth    float64 // bt
	OutputRate       int     // k_out
	PulseKind        rrc.Kind
	SampleBlockSize  int
	RingBufferSize   int
}

// New returns a Config populated with defaults suitable for the demo's
// synthetic BPSK-over-RRC signal chain.
func New() *Config {
	return &Config{
		SamplesPerSymbol: 2,
		SymbolSpan:       3,
		Rolloff:          0.3,
		NumPolyphase:     32,
		LoopBandwidth:    0.01,
		OutputRate:       1,
		PulseKind:        rrc.RootRaisedCosine,
		SampleBlockSize:  256,
		RingBufferSize:   1 << 14,
	}
}
