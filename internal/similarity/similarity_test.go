package similarity

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Melos47/Urban-Legends-Forum/internal/types"
)

func defaultFilter() *Filter {
	return New(3, 0.6, 0.4)
}

func story(id string, category types.Category, title, content string) types.Story {
	return types.Story{ID: id, Category: category, Title: title, Content: content}
}

func TestAcceptEmptyWindow(t *testing.T) {
	f := defaultFilter()
	ok, _ := f.Accept(types.Candidate{
		Title:    "anything",
		Content:  "anything at all",
		Category: types.CategorySubwayGhost,
	}, nil)
	assert.True(t, ok, "empty window must accept unconditionally")
}

func TestCategoryQuota(t *testing.T) {
	f := defaultFilter()

	recent := []types.Story{
		story("1", types.CategoryCursedObject, "the compass", "a story about a compass"),
		story("2", types.CategoryCursedObject, "the jade pendant", "a story about a pendant"),
		story("3", types.CategoryCursedObject, "the music box", "a story about a music box"),
		story("4", types.CategorySubwayGhost, "last train", "a story about a train"),
	}

	// Quota hit: rejected regardless of how different title/content are.
	ok, reason := f.Accept(types.Candidate{
		Title:    "completely novel title",
		Content:  "completely novel content with nothing shared",
		Category: types.CategoryCursedObject,
	}, recent)
	require.False(t, ok)
	assert.Contains(t, reason, "cursed_object")

	// A different category with room is fine.
	ok, _ = f.Accept(types.Candidate{
		Title:    "completely novel title",
		Content:  "completely novel content with nothing shared",
		Category: types.CategoryShadowFigure,
	}, recent)
	assert.True(t, ok)
}

func TestTitleJaccard(t *testing.T) {
	f := defaultFilter()

	recent := []types.Story{
		story("1", types.CategorySubwayGhost, "the last train to nowhere", "long gone content"),
	}

	// Identical title: jaccard 1.0 > 0.6.
	ok, reason := f.Accept(types.Candidate{
		Title:    "The Last Train To Nowhere",
		Content:  "entirely different body text here",
		Category: types.CategoryTimeAnomaly,
	}, recent)
	require.False(t, ok)
	assert.Contains(t, reason, "title too similar")

	// Mostly disjoint tokens pass.
	ok, _ = f.Accept(types.Candidate{
		Title:    "whispers in the old theatre",
		Content:  "entirely different body text here",
		Category: types.CategoryTimeAnomaly,
	}, recent)
	assert.True(t, ok)
}

func TestContentPrefixSimilarity(t *testing.T) {
	f := defaultFilter()

	base := "It was past midnight when I first noticed the flickering light at the end of the platform, and I"
	recent := []types.Story{
		story("1", types.CategorySubwayGhost, "platform light", base),
	}

	// Same opening, different title tokens: rejected on the prefix rule.
	ok, reason := f.Accept(types.Candidate{
		Title:    "strange glow underground",
		Content:  base + " could not look away from it no matter what",
		Category: types.CategoryTimeAnomaly,
	}, recent)
	require.False(t, ok)
	assert.Contains(t, reason, "content opening")

	// A different opening passes.
	ok, _ = f.Accept(types.Candidate{
		Title:    "strange glow underground",
		Content:  "Nobody believed me when I said the vending machine hummed a tune every night at three.",
		Category: types.CategoryTimeAnomaly,
	}, recent)
	assert.True(t, ok)
}

func TestBracketedTagsIgnored(t *testing.T) {
	f := defaultFilter()

	recent := []types.Story{
		story("1", types.CategorySubwayGhost, "tag test", "【目击报告】The corridor was empty when I arrived."),
	}

	// The tag differs but the real opening is identical; still rejected.
	ok, _ := f.Accept(types.Candidate{
		Title:    "something else entirely",
		Content:  "[update] The corridor was empty when I arrived.",
		Category: types.CategoryTimeAnomaly,
	}, recent)
	assert.False(t, ok)
}

func TestQuotaCountsOnlyWindow(t *testing.T) {
	f := defaultFilter()

	// Only 2 of the category in the window: accepted.
	recent := []types.Story{
		story("1", types.CategoryMissingPerson, "gone at noon", "first body"),
		story("2", types.CategoryMissingPerson, "vanished mid-call", "second body"),
	}
	fillers := []types.Category{
		types.CategorySubwayGhost,
		types.CategoryCursedObject,
		types.CategoryTimeAnomaly,
		types.CategoryShadowFigure,
		types.CategoryHauntedElectronics,
	}
	for i, cat := range fillers {
		recent = append(recent, story(fmt.Sprintf("x%d", i), cat, "unrelated filler entry", "some other account entirely"))
	}

	ok, _ := f.Accept(types.Candidate{
		Title:    "the third disappearance",
		Content:  "a wholly different account of events",
		Category: types.CategoryMissingPerson,
	}, recent)
	assert.True(t, ok)
}
