package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPriorityOrder(t *testing.T) {
	// Rhythmic cues outrank voice cues even when both are present.
	synth, _ := Classify("I heard a voice between the knocking sounds")
	assert.Equal(t, TypeKnock, synth)

	// Electrical cues outrank voices too.
	synth, _ = Classify("the radio crackled and a voice came through")
	assert.Equal(t, TypeElectricalHum, synth)

	// Generic dread loses to anything specific.
	synth, _ = Classify("a cold shadow and a whisper in the dark")
	assert.Equal(t, TypeVoice, synth)
}

func TestClassifyFallback(t *testing.T) {
	synth, intensity := Classify("nothing unusual happened at the market today")
	assert.Equal(t, TypeAmbientEerie, synth)
	assert.Equal(t, DefaultIntensity, intensity)

	// Empty input is still total.
	synth, intensity = Classify("")
	assert.Equal(t, TypeAmbientEerie, synth)
	assert.Equal(t, DefaultIntensity, intensity)
}

func TestClassifyDeterministic(t *testing.T) {
	inputs := []string{
		"深夜听到敲门声，开门却没有人",
		"电视机自己打开了，全是雜訊",
		"隧道里的脚步声跟着我",
		"The wind howled through the empty corridor",
		"",
		"完全无关的文本",
	}

	for _, in := range inputs {
		s1, i1 := Classify(in)
		s2, i2 := Classify(in)
		require.Equal(t, s1, s2, "type must be stable for %q", in)
		require.Equal(t, i1, i2, "intensity must be stable for %q", in)
	}
}

func TestClassifyIntensityBounds(t *testing.T) {
	// Pile on every knock keyword; intensity must stay capped at 1.
	text := "knock knocking tapping banging thump 敲门 拍门"
	synth, intensity := Classify(text)
	require.Equal(t, TypeKnock, synth)
	assert.LessOrEqual(t, intensity, 1.0)
	assert.Greater(t, intensity, 0.8, "extra matches should raise intensity")
}

func TestClassifyCaseInsensitive(t *testing.T) {
	s1, i1 := Classify("A VOICE IN THE WALLS")
	s2, i2 := Classify("a voice in the walls")
	assert.Equal(t, s1, s2)
	assert.Equal(t, i1, i2)
	assert.Equal(t, TypeVoice, s1)
}

func TestClassifyChineseKeywords(t *testing.T) {
	synth, _ := Classify("墙里传来低语，还有哭声")
	assert.Equal(t, TypeVoice, synth)

	synth, _ = Classify("走廊尽头传来回音")
	assert.Equal(t, TypeHollowEcho, synth)
}
