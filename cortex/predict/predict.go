// Package predict implements the prediction/surprise/calibration tracker
// (spec §4.5): per-channel surprise EMA and a binned expected-calibration-
// error report.
package predict

import (
	"math"
	"sync"

	"github.com/QuestoM/cortex-docs-sub005/cortex"
)

// Health is the calibration health label from spec §4.5's ECE bands.
type Health string

const (
	HealthOptimal   Health = "optimal"
	HealthHealthy   Health = "healthy"
	HealthDegrading Health = "degrading"
	HealthCritical  Health = "critical"
)

func healthFor(eceComplement float64) Health {
	switch {
	case eceComplement >= 0.7:
		return HealthOptimal
	case eceComplement >= 0.5:
		return HealthHealthy
	case eceComplement >= 0.3:
		return HealthDegrading
	default:
		return HealthCritical
	}
}

type channelState struct {
	surpriseEMA float64
	seen        bool
}

type bin struct {
	hits  float64
	n     int
	confSum float64
}

// CalibrationReport summarizes accumulated (confidence, hit) observations
// into the ECE metric and a health label (spec §4.5).
type CalibrationReport struct {
	ECE    float64
	Health Health
	Bins   int
	N      int
}

// Tracker owns per-channel surprise state and the calibration histogram for
// one session.
type Tracker struct {
	mu sync.Mutex

	scale      float64
	surpriseLR float64
	numBins    int

	channels map[string]*channelState
	bins     []bin
	total    int
}

// New constructs a Tracker. scale normalizes the |predicted-observed| raw
// error into [0,1] before clamping; surpriseLR is the EMA rate; numBins is
// the calibration histogram's bin count (spec uses uniform-width bins).
func New(scale, surpriseLR float64, numBins int) *Tracker {
	if numBins <= 0 {
		numBins = 10
	}
	return &Tracker{
		scale:      scale,
		surpriseLR: surpriseLR,
		numBins:    numBins,
		channels:   make(map[string]*channelState),
		bins:       make([]bin, numBins),
	}
}

// Observe records one step's (predicted, observed) pair on channel,
// updating that channel's surprise EMA and returning the step's raw
// surprise value (spec §4.5: surprise = clamp(|predicted-observed|/scale, 0, 1)).
func (t *Tracker) Observe(channel string, predicted, observed float64) (float64, error) {
	if channel == "" {
		return 0, cortex.NewFault("predict.Observe", cortex.InvalidArgument, channel, "channel must not be empty")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	scale := t.scale
	if scale <= 0 {
		scale = 1
	}
	surprise := cortex.Clamp01(math.Abs(predicted-observed) / scale)

	st, ok := t.channels[channel]
	if !ok {
		st = &channelState{}
		t.channels[channel] = st
	}
	if !st.seen {
		st.surpriseEMA = surprise
		st.seen = true
	} else {
		st.surpriseEMA = cortex.EMA(st.surpriseEMA, surprise, t.surpriseLR)
	}
	return surprise, nil
}

// SurpriseEMA returns the current smoothed surprise for channel, or 0 if
// unobserved.
func (t *Tracker) SurpriseEMA(channel string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.channels[channel]; ok {
		return st.surpriseEMA
	}
	return 0
}

// RecordCalibration accumulates one (confidence, hit) pair into the
// uniform-width confidence histogram used by Calibration's ECE (spec §4.5).
func (t *Tracker) RecordCalibration(confidence float64, hit bool) error {
	if confidence < 0 || confidence > 1 {
		return cortex.NewFault("predict.RecordCalibration", cortex.InvalidArgument, "", "confidence must be in [0,1]")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := int(confidence * float64(t.numBins))
	if idx >= t.numBins {
		idx = t.numBins - 1
	}
	b := &t.bins[idx]
	b.n++
	b.confSum += confidence
	if hit {
		b.hits++
	}
	t.total++
	return nil
}

// Calibration computes the expected calibration error over every bin with
// at least one observation (spec §4.5: ECE = Σ_b (n_b/N)·|acc_b − conf_b|)
// and labels the result with a health band.
func (t *Tracker) Calibration() CalibrationReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.total == 0 {
		return CalibrationReport{Health: HealthOptimal}
	}

	var ece float64
	populated := 0
	for _, b := range t.bins {
		if b.n == 0 {
			continue
		}
		populated++
		acc := b.hits / float64(b.n)
		conf := b.confSum / float64(b.n)
		ece += (float64(b.n) / float64(t.total)) * math.Abs(acc-conf)
	}
	return CalibrationReport{
		ECE:    ece,
		Health: healthFor(1 - ece),
		Bins:   populated,
		N:      t.total,
	}
}
