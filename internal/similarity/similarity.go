// Package similarity decides whether a candidate story is distinct
// enough from recent history to admit. The check is advisory: callers
// that fail to read history should pass an empty window, which accepts.
package similarity

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Melos47/Urban-Legends-Forum/internal/types"
)

// Filter holds the rejection thresholds.
type Filter struct {
	maxPerCategory  int
	titleThreshold  float64
	prefixThreshold float64
}

// prefixLen is the number of leading runes compared for content overlap.
const prefixLen = 100

// New creates a Filter. maxPerCategory is the category quota within the
// recency window; titleThreshold and prefixThreshold are the Jaccard and
// aligned-prefix rejection bounds.
func New(maxPerCategory int, titleThreshold, prefixThreshold float64) *Filter {
	return &Filter{
		maxPerCategory:  maxPerCategory,
		titleThreshold:  titleThreshold,
		prefixThreshold: prefixThreshold,
	}
}

// Accept checks a candidate against the recent window. It returns false
// with a human-readable reason on rejection. An empty window always
// accepts.
func (f *Filter) Accept(candidate types.Candidate, recent []types.Story) (bool, string) {
	if len(recent) == 0 {
		return true, ""
	}

	sameCategory := 0
	for _, s := range recent {
		if s.Category == candidate.Category {
			sameCategory++
		}
	}
	if sameCategory >= f.maxPerCategory {
		return false, fmt.Sprintf("category %s already has %d of the last %d stories",
			candidate.Category, sameCategory, len(recent))
	}

	candTokens := tokenSet(candidate.Title)
	for _, s := range recent {
		if j := jaccard(candTokens, tokenSet(s.Title)); j > f.titleThreshold {
			return false, fmt.Sprintf("title too similar to %q (jaccard %.2f)", s.Title, j)
		}
	}

	candPrefix := contentPrefix(candidate.Content)
	for _, s := range recent {
		if p := alignedSimilarity(candPrefix, contentPrefix(s.Content)); p > f.prefixThreshold {
			return false, fmt.Sprintf("content opening too similar to story %s (%.2f)", s.ID, p)
		}
	}

	return true, ""
}

// tokenSet splits a title into a case-folded token set. Tokens are runs
// of letters and digits so CJK and Latin titles both tokenize.
func tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b|. Two empty sets are treated as
// identical.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// contentPrefix strips bracketed tags and returns the first prefixLen
// runes of the remaining content.
func contentPrefix(s string) []rune {
	stripped := stripTags(s)
	runes := []rune(strings.TrimSpace(stripped))
	if len(runes) > prefixLen {
		runes = runes[:prefixLen]
	}
	return runes
}

// stripTags removes [..] and 【..】 markers so boilerplate prefixes like
// 【楼主回复】 don't inflate the overlap.
func stripTags(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '[', '【':
			depth++
		case ']', '】':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// alignedSimilarity is the fraction of position-aligned equal runes over
// the longer prefix length.
func alignedSimilarity(a, b []rune) float64 {
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	if longer == 0 {
		return 0
	}

	shorter := len(a)
	if len(b) < shorter {
		shorter = len(b)
	}
	matches := 0
	for i := 0; i < shorter; i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(longer)
}
