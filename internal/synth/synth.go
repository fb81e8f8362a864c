// Package synth turns classification results into concrete synthesis
// descriptions. All randomness flows from an explicitly supplied seed, so
// identical (type, intensity, seed) triples yield bit-identical output.
package synth

import (
	"math/rand"

	"github.com/Melos47/Urban-Legends-Forum/internal/classify"
)

// PeakCeiling is the normalized peak amplitude after normalization,
// leaving headroom against clipping.
const PeakCeiling = 0.85

// Layer kinds.
const (
	LayerTone    = "tone"    // steady sine partial
	LayerMod     = "mod"     // amplitude-modulated tone
	LayerImpulse = "impulse" // periodic transient bursts
	LayerNoise   = "noise"   // filtered noise bed
)

// Layer is one additive component of a waveform.
type Layer struct {
	Kind      string  `json:"kind"`
	Frequency float64 `json:"frequency"` // Hz; impulse layers use it as repetition rate
	Amplitude float64 `json:"amplitude"`
	ModRate   float64 `json:"mod_rate,omitempty"`  // Hz
	ModDepth  float64 `json:"mod_depth,omitempty"` // 0..1
}

// Envelope shapes overall amplitude: a rise across the first half and a
// jittered decay across the second.
type Envelope struct {
	RiseFraction float64   `json:"rise_fraction"`
	DecaySteps   []float64 `json:"decay_steps"` // multipliers applied across the decay half
}

// Waveform is a full audio synthesis description.
type Waveform struct {
	Type       classify.SynthesisType `json:"type"`
	Intensity  float64                `json:"intensity"`
	Seed       int64                  `json:"seed"`
	Duration   float64                `json:"duration_seconds"`
	SampleRate int                    `json:"sample_rate"`
	Layers     []Layer                `json:"layers"`
	Envelope   Envelope               `json:"envelope"`
	Peak       float64                `json:"peak"`
}

// Synthesize builds the layered waveform description for a synthesis
// type. Intensity scales level and movement; seed drives all jitter.
func Synthesize(synthType classify.SynthesisType, intensity float64, seed int64) Waveform {
	rng := rand.New(rand.NewSource(seed))

	w := Waveform{
		Type:       synthType,
		Intensity:  intensity,
		Seed:       seed,
		Duration:   6 + 4*intensity,
		SampleRate: 22050,
		Peak:       PeakCeiling,
	}

	switch synthType {
	case classify.TypeKnock:
		w.Layers = []Layer{
			{Kind: LayerTone, Frequency: 55 + 10*rng.Float64(), Amplitude: 0.3},
			{Kind: LayerImpulse, Frequency: 1.2 + 0.8*intensity, Amplitude: 0.8 * intensity},
			{Kind: LayerNoise, Frequency: 400 + 200*rng.Float64(), Amplitude: 0.15},
		}
	case classify.TypeVoice:
		w.Layers = []Layer{
			{Kind: LayerTone, Frequency: 160 + 60*rng.Float64(), Amplitude: 0.4},
			{Kind: LayerMod, Frequency: 220 + 120*rng.Float64(), Amplitude: 0.5 * intensity, ModRate: 4 + 3*rng.Float64(), ModDepth: 0.6},
			{Kind: LayerMod, Frequency: 340 + 160*rng.Float64(), Amplitude: 0.25 * intensity, ModRate: 6 + 4*rng.Float64(), ModDepth: 0.4},
			{Kind: LayerNoise, Frequency: 1200, Amplitude: 0.08},
		}
	case classify.TypeWind:
		w.Layers = []Layer{
			{Kind: LayerNoise, Frequency: 300 + 150*rng.Float64(), Amplitude: 0.6 * intensity},
			{Kind: LayerMod, Frequency: 90 + 40*rng.Float64(), Amplitude: 0.35, ModRate: 0.2 + 0.3*rng.Float64(), ModDepth: 0.8},
			{Kind: LayerTone, Frequency: 45 + 15*rng.Float64(), Amplitude: 0.2},
		}
	case classify.TypeHollowEcho:
		w.Layers = []Layer{
			{Kind: LayerTone, Frequency: 70 + 20*rng.Float64(), Amplitude: 0.45},
			{Kind: LayerImpulse, Frequency: 0.4 + 0.4*intensity, Amplitude: 0.5 * intensity},
			{Kind: LayerMod, Frequency: 140 + 50*rng.Float64(), Amplitude: 0.3, ModRate: 0.5 + 0.5*rng.Float64(), ModDepth: 0.7},
			{Kind: LayerNoise, Frequency: 800, Amplitude: 0.05},
		}
	case classify.TypeElectricalHum:
		w.Layers = []Layer{
			{Kind: LayerTone, Frequency: 50, Amplitude: 0.5},
			{Kind: LayerTone, Frequency: 100, Amplitude: 0.3 * intensity},
			{Kind: LayerMod, Frequency: 150, Amplitude: 0.2 * intensity, ModRate: 8 + 6*rng.Float64(), ModDepth: 0.9},
			{Kind: LayerNoise, Frequency: 2000 + 1000*rng.Float64(), Amplitude: 0.1},
		}
	default: // ambientEerie
		w.Layers = []Layer{
			{Kind: LayerTone, Frequency: 40 + 12*rng.Float64(), Amplitude: 0.4},
			{Kind: LayerMod, Frequency: 110 + 70*rng.Float64(), Amplitude: 0.3 * intensity, ModRate: 0.1 + 0.2*rng.Float64(), ModDepth: 0.5},
			{Kind: LayerNoise, Frequency: 600 + 300*rng.Float64(), Amplitude: 0.12},
		}
	}

	w.Envelope = buildEnvelope(rng, intensity)
	normalize(&w)
	return w
}

// buildEnvelope rises over the first half and decays with jitter over
// the second.
func buildEnvelope(rng *rand.Rand, intensity float64) Envelope {
	steps := make([]float64, 8)
	level := 1.0
	for i := range steps {
		// Each step drops further, with seeded jitter scaled by intensity.
		level *= 0.75 + 0.15*rng.Float64()*intensity
		steps[i] = level
	}
	return Envelope{
		RiseFraction: 0.5,
		DecaySteps:   steps,
	}
}

// normalize scales layer amplitudes so their sum equals the peak ceiling.
func normalize(w *Waveform) {
	total := 0.0
	for _, l := range w.Layers {
		total += l.Amplitude
	}
	if total == 0 {
		return
	}
	scale := PeakCeiling / total
	for i := range w.Layers {
		w.Layers[i].Amplitude *= scale
	}
}
