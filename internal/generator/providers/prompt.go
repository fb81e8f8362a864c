package providers

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/Melos47/Urban-Legends-Forum/internal/types"
)

// Persona is a narrator identity stories are told through.
type Persona struct {
	Name  string
	Emoji string
	Style string
}

// Personas the narrative voice rotates through.
var Personas = []Persona{
	{Name: "深夜目击者", Emoji: "👁️", Style: "witness"},
	{Name: "都市调查员", Emoji: "🔍", Style: "investigator"},
	{Name: "匿名举报人", Emoji: "🕵️", Style: "whistleblower"},
	{Name: "失踪者日记", Emoji: "📔", Style: "victim"},
	{Name: "地铁守夜人", Emoji: "🚇", Style: "worker"},
}

// Locations the legends are anchored to.
var Locations = []string{
	"旺角金鱼街",
	"油麻地戏院",
	"中环至半山自动扶梯",
	"彩虹邨",
	"怪兽大厦 (鲗鱼涌)",
	"重庆大厦",
	"达德学校 (元朗屏山)",
	"西贡结界",
	"大埔铁路博物馆",
	"高街鬼屋 (西营盘社区综合大楼)",
}

// storyPrompts keys a first-person scenario prompt by category.
var storyPrompts = map[types.Category]string{
	types.CategorySubwayGhost:        "作为%s，讲述你在港铁%s站深夜遭遇的诡异经历。描述具体的时间、空无一人的车厢、听到的怪声或看到的异常倒影。语气要真实，像在论坛上分享亲身经历。",
	types.CategoryAbandonedBuilding:  "你是%s，最近在%s探险时发现了令人不安的秘密。详细描述建筑内部的荒废景象、发现的旧物件、以及让你毛骨悚然的超自然现象。",
	types.CategoryCursedObject:       "作为%s，你在%s附近的一个小摊上买到了一个被诅咒的物品。讲述物品的来历、获得的过程、以及之后发生的连串怪事。",
	types.CategoryMissingPerson:      "你是%s，正在调查一宗发生在%s的离奇失踪案。提供案件细节、失踪者最后的行踪、以及你发现的无法用常理解释的线索。",
	types.CategoryTimeAnomaly:        "作为%s，你在%s的某条后巷经历了时间错位。描述周围环境的瞬间变化、手机时间的跳跃、以及重复经历的几分钟。",
	types.CategoryShadowFigure:       "你是%s，最近几晚总在%s的窗外看到一个无法形容的黑影。详细描述黑影的形态、它如何移动、以及它似乎在对你做什么。",
	types.CategoryHauntedElectronics: "作为%s，你在%s居住时，家里的电子设备开始出现恐怖的现象。描述电视里出现的奇怪人脸、收音机里传出的非人话语、以及手机自动播放的诡异视频。",
}

const narratorSystemPrompt = "你是一个都市传说讲述者，擅长创作真实感极强的恐怖故事。使用第一人称，加入具体的时间、地点、人物细节，让读者感觉这是真实发生的事件。"

// buildTitlePrompt asks for a short suspenseful title for generated
// story content.
func buildTitlePrompt(content string) string {
	return fmt.Sprintf("为以下都市传说故事生成一个简短（5-10字）、吸引人、略带悬疑的标题。不要加引号。\n\n%s", clip(content, 200))
}

// cleanTitle strips quoting and whitespace a model may wrap a title in.
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	return strings.Trim(title, "\"“”「」『』")
}

// pickConstraints fills empty constraint fields from the tables using
// the provider's random source.
func pickConstraints(rng *rand.Rand, category types.Category, location string) (types.Category, string, Persona) {
	if category == "" {
		cats := types.Categories()
		category = cats[rng.Intn(len(cats))]
	}
	if location == "" {
		location = Locations[rng.Intn(len(Locations))]
	}
	persona := Personas[rng.Intn(len(Personas))]
	return category, location, persona
}

// buildStoryPrompt constructs the narrative generation prompt for a
// category, location and persona.
func buildStoryPrompt(category types.Category, location string, persona Persona) string {
	tmpl, ok := storyPrompts[category]
	if !ok {
		tmpl = storyPrompts[types.CategorySubwayGhost]
	}
	return fmt.Sprintf(tmpl, persona.Name, location)
}

// buildReplyPrompt constructs the narrator's reply prompt for a user
// comment on a story.
func buildReplyPrompt(story *types.Story, comment *types.Comment) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "你是故事\"%s\"的讲述者（%s）。\n\n", story.Title, story.Persona)
	fmt.Fprintf(&sb, "故事摘要：\n%s\n\n", clip(story.Content, 300))
	fmt.Fprintf(&sb, "用户评论：\n%s\n\n", comment.Content)
	sb.WriteString("作为故事的讲述者，请用1-3句话回复用户的评论。你可以：\n")
	sb.WriteString("1. 透露更多细节或线索\n")
	sb.WriteString("2. 表达恐惧或担忧\n")
	sb.WriteString("3. 提出新的疑问\n")
	sb.WriteString("4. 描述后续发展\n\n")
	sb.WriteString("保持神秘感和紧张氛围，不要完全揭示真相。请直接回复，不要加前缀。")

	return sb.String()
}

// ReplyPrefix marks narrator replies in comment threads.
const ReplyPrefix = "【楼主回复】"

// fallbackReplies are used when the provider is unreachable; the thread
// keeps moving even with the generator down.
var fallbackReplies = []string{
	"谢谢关心！刚才又去了一趟，情况越来越诡异了...我发现了一些新线索，但不敢轻举妄动。",
	"各位，我现在有点害怕...刚才发生的事情完全超出我的理解。我会继续更新的，大家帮我分析一下。",
	"更新来了！今天又有新发现，这件事比我想象的要复杂得多。有没有懂行的朋友给点建议？",
	"感谢大家的支持！说实话我现在很纠结要不要继续调查下去...但好奇心驱使我想弄清楚真相。",
	"刚才又去现场看了，确实很不对劲。我拍了几张照片，但手机总是莫名其妙地卡顿...诡异。",
}

// FallbackReply returns a canned narrator reply.
func FallbackReply(rng *rand.Rand) string {
	return ReplyPrefix + fallbackReplies[rng.Intn(len(fallbackReplies))]
}

// buildImagePrompt flattens a structured prompt spec into the final
// image generation prompt, carrying the extracted entities.
func buildImagePrompt(spec types.PromptSpec) string {
	var sb strings.Builder
	sb.WriteString(spec.Template)
	sb.WriteString(", ")
	sb.WriteString(spec.Subject)

	for _, q := range spec.Quotes {
		fmt.Fprintf(&sb, ", hinting at %q", q)
	}
	if len(spec.TimeTokens) > 0 {
		fmt.Fprintf(&sb, ", timestamp overlay %s", spec.TimeTokens[0])
	}
	if spec.Intensity > 0.7 {
		sb.WriteString(", heavily distorted")
	}

	return sb.String()
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
