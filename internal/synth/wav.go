package synth

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/rand"
)

// RenderWAV renders a waveform description to 16-bit mono PCM WAV bytes.
// The render is as deterministic as the description: the noise layers
// re-derive their generator from the waveform seed.
func RenderWAV(w Waveform) []byte {
	sampleCount := int(w.Duration * float64(w.SampleRate))
	samples := make([]float64, sampleCount)
	rng := rand.New(rand.NewSource(w.Seed))

	for _, layer := range w.Layers {
		addLayer(samples, layer, w.SampleRate, rng)
	}

	applyEnvelope(samples, w.Envelope)
	clampPeak(samples, w.Peak)

	return encodePCM16(samples, w.SampleRate)
}

func addLayer(samples []float64, l Layer, sampleRate int, rng *rand.Rand) {
	dt := 1.0 / float64(sampleRate)

	switch l.Kind {
	case LayerTone:
		for i := range samples {
			t := float64(i) * dt
			samples[i] += l.Amplitude * math.Sin(2*math.Pi*l.Frequency*t)
		}
	case LayerMod:
		for i := range samples {
			t := float64(i) * dt
			mod := 1 - l.ModDepth*(0.5+0.5*math.Sin(2*math.Pi*l.ModRate*t))
			samples[i] += l.Amplitude * mod * math.Sin(2*math.Pi*l.Frequency*t)
		}
	case LayerImpulse:
		// Short decaying bursts at the repetition rate.
		period := int(float64(sampleRate) / l.Frequency)
		if period <= 0 {
			return
		}
		burst := sampleRate / 20 // 50ms
		for start := 0; start < len(samples); start += period {
			for j := 0; j < burst && start+j < len(samples); j++ {
				decay := math.Exp(-8 * float64(j) / float64(burst))
				samples[start+j] += l.Amplitude * decay * math.Sin(2*math.Pi*90*float64(j)*dt)
			}
		}
	case LayerNoise:
		// Single-pole lowpass over white noise, corner near Frequency.
		alpha := 1 - math.Exp(-2*math.Pi*l.Frequency*dt)
		prev := 0.0
		for i := range samples {
			white := 2*rng.Float64() - 1
			prev += alpha * (white - prev)
			samples[i] += l.Amplitude * prev
		}
	}
}

// applyEnvelope ramps amplitude up across the rise fraction and steps it
// down through the jittered decay multipliers afterwards.
func applyEnvelope(samples []float64, env Envelope) {
	n := len(samples)
	if n == 0 {
		return
	}
	rise := int(env.RiseFraction * float64(n))

	for i := 0; i < rise; i++ {
		samples[i] *= float64(i) / float64(rise)
	}

	decayLen := n - rise
	if decayLen <= 0 || len(env.DecaySteps) == 0 {
		return
	}
	stepLen := decayLen / len(env.DecaySteps)
	if stepLen == 0 {
		stepLen = 1
	}
	for i := rise; i < n; i++ {
		step := (i - rise) / stepLen
		if step >= len(env.DecaySteps) {
			step = len(env.DecaySteps) - 1
		}
		samples[i] *= env.DecaySteps[step]
	}
}

// clampPeak rescales so the absolute peak equals the ceiling.
func clampPeak(samples []float64, ceiling float64) {
	peak := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return
	}
	scale := ceiling / peak
	for i := range samples {
		samples[i] *= scale
	}
}

// encodePCM16 writes a canonical 44-byte RIFF header plus little-endian
// 16-bit samples.
func encodePCM16(samples []float64, sampleRate int) []byte {
	dataLen := len(samples) * 2

	var buf bytes.Buffer
	buf.Grow(44 + dataLen)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))

	for _, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.Write(&buf, binary.LittleEndian, int16(s*32767))
	}

	return buf.Bytes()
}
