package synth

import (
	"regexp"
	"strings"

	"github.com/Melos47/Urban-Legends-Forum/internal/classify"
	"github.com/Melos47/Urban-Legends-Forum/internal/types"
)

// sceneTemplate pairs scene keywords with an image-prompt template. Like
// the classifier, templates are scanned in order and the first keyword
// hit wins.
type sceneTemplate struct {
	keywords []string
	template string
}

var sceneTemplates = []sceneTemplate{
	{
		keywords: []string{"subway", "train", "platform", "station", "地铁", "港铁", "车厢", "月台"},
		template: "empty subway platform at night, harsh fluorescent light, security camera angle, motion blur",
	},
	{
		keywords: []string{"building", "corridor", "stairwell", "apartment", "大厦", "走廊", "楼梯", "荒废"},
		template: "abandoned building interior, peeling walls, single light source, found footage quality",
	},
	{
		keywords: []string{"mirror", "reflection", "window", "镜子", "倒影", "窗"},
		template: "dark reflective surface with an indistinct figure, grainy photo, wrong shadows",
	},
	{
		keywords: []string{"television", "screen", "phone", "radio", "电视", "手机", "屏幕", "收音机"},
		template: "glowing screen in a dark room, distorted image, scan lines, vhs artifact",
	},
	{
		keywords: []string{"street", "alley", "market", "街", "后巷", "小摊"},
		template: "deserted night street, sodium vapor lamps, long exposure, something at the edge of frame",
	},
}

const defaultSceneTemplate = "dark grainy photo, low light, authentic amateur camera, unsettling atmosphere"

// quoteRe matches phrases in ASCII or CJK quotation marks.
var quoteRe = regexp.MustCompile(`"([^"]{1,40})"|“([^”]{1,40})”|「([^」]{1,40})」`)

// timeRe matches clock times and small hour expressions (3:33, 03:15,
// 2am, 凌晨3点, 深夜11时).
var timeRe = regexp.MustCompile(`\d{1,2}[:点时]\d{2}|\d{1,2}\s?(?:am|pm|AM|PM)|(?:凌晨|深夜|半夜)\d{1,2}[点时]?`)

// ComposeScene assembles a content-grounded image prompt from story
// text. The template is chosen first-match-wins over scene keywords;
// quoted phrases and time tokens are carried as explicit entities so the
// image generator receives specifics instead of a generic prompt.
func ComposeScene(synthType classify.SynthesisType, intensity float64, text string) types.PromptSpec {
	folded := strings.ToLower(text)

	template := defaultSceneTemplate
	for _, st := range sceneTemplates {
		if matchAny(folded, st.keywords) {
			template = st.template
			break
		}
	}

	return types.PromptSpec{
		Template:   template,
		Subject:    subjectFor(synthType),
		Quotes:     extractQuotes(text),
		TimeTokens: dedupe(timeRe.FindAllString(text, 5)),
		Intensity:  intensity,
	}
}

func matchAny(folded string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

// subjectFor maps the acoustic motif onto a visual subject hint.
func subjectFor(synthType classify.SynthesisType) string {
	switch synthType {
	case classify.TypeKnock:
		return "a door slightly ajar, marks on the frame"
	case classify.TypeVoice:
		return "an empty room where someone was just speaking"
	case classify.TypeWind:
		return "curtains moving with no open window"
	case classify.TypeHollowEcho:
		return "a long empty passage receding into darkness"
	case classify.TypeElectricalHum:
		return "flickering electrical fixtures, static on a screen"
	default:
		return "an ordinary place that feels watched"
	}
}

func extractQuotes(text string) []string {
	var quotes []string
	for _, m := range quoteRe.FindAllStringSubmatch(text, 5) {
		for _, group := range m[1:] {
			if group != "" {
				quotes = append(quotes, group)
				break
			}
		}
	}
	return dedupe(quotes)
}

func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
