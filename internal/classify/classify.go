// Package classify maps free-form story text to synthesis parameters.
//
// Classification is a first-match-wins scan over an ordered rule table:
// the first rule with any keyword contained in the input wins, so rule
// order is part of the contract. Rhythmic and mechanical cues outrank
// voices and ambience, and generic dread cues are checked last.
package classify

import "strings"

// SynthesisType is an acoustic/visual motif for evidence generation.
type SynthesisType string

const (
	TypeVoice         SynthesisType = "voice"
	TypeKnock         SynthesisType = "knock"
	TypeWind          SynthesisType = "wind"
	TypeHollowEcho    SynthesisType = "hollowEcho"
	TypeElectricalHum SynthesisType = "electricalHum"
	TypeAmbientEerie  SynthesisType = "ambientEerie"
)

// DefaultIntensity is returned when no rule matches.
const DefaultIntensity = 0.5

type rule struct {
	keywords  []string
	synth     SynthesisType
	intensity float64
}

// rules is scanned in order; do not sort or reorder.
// Keywords are bilingual because the forum's content is largely zh-HK.
var rules = []rule{
	{
		keywords:  []string{"knock", "knocking", "tapping", "banging", "thump", "敲", "敲门", "拍门", "叩"},
		synth:     TypeKnock,
		intensity: 0.8,
	},
	{
		keywords:  []string{"static", "hum", "buzzing", "flicker", "television", "radio", "电视", "收音机", "电流", "杂讯", "雜訊"},
		synth:     TypeElectricalHum,
		intensity: 0.75,
	},
	{
		keywords:  []string{"voice", "whisper", "speaking", "scream", "crying", "人声", "低语", "说话", "尖叫", "哭声"},
		synth:     TypeVoice,
		intensity: 0.7,
	},
	{
		keywords:  []string{"echo", "tunnel", "footstep", "hollow", "stairwell", "回声", "回音", "隧道", "脚步", "空洞"},
		synth:     TypeHollowEcho,
		intensity: 0.65,
	},
	{
		keywords:  []string{"wind", "draft", "howling", "breeze", "风声", "穿堂风", "呼啸"},
		synth:     TypeWind,
		intensity: 0.6,
	},
	// Generic dread cues come last so anything more specific wins.
	{
		keywords:  []string{"shadow", "dark", "cold", "silence", "黑影", "阴影", "冰冷", "寂静"},
		synth:     TypeAmbientEerie,
		intensity: 0.55,
	},
}

// Classify maps text to a synthesis type and a normalized intensity in
// [0,1]. It is pure and total: it never fails, never blocks, and returns
// identical output for identical input. Within the winning rule, each
// additional matched keyword nudges the intensity up slightly.
func Classify(text string) (SynthesisType, float64) {
	folded := strings.ToLower(text)

	for _, r := range rules {
		hits := 0
		for _, kw := range r.keywords {
			if strings.Contains(folded, kw) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		intensity := r.intensity + 0.05*float64(hits-1)
		if intensity > 1 {
			intensity = 1
		}
		return r.synth, intensity
	}

	return TypeAmbientEerie, DefaultIntensity
}

// Types returns all synthesis types in rule-priority order, ending with
// the fallback.
func Types() []SynthesisType {
	return []SynthesisType{
		TypeKnock,
		TypeElectricalHum,
		TypeVoice,
		TypeHollowEcho,
		TypeWind,
		TypeAmbientEerie,
	}
}
