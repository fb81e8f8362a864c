package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Melos47/Urban-Legends-Forum/internal/lifecycle"
	"github.com/Melos47/Urban-Legends-Forum/internal/store"
	"github.com/Melos47/Urban-Legends-Forum/internal/types"
)

// demoStories mirrors the launch content of the forum: one settled
// legend per district, already active so the engine picks them up.
var demoStories = []types.Story{
	{
		ID:       "01DEMO0000000000000000001",
		Title:    "彩虹邨的镜子只在凌晨反光",
		Content:  "我在彩虹邨住了八年。上个月开始，走廊尽头那面镜子会在凌晨三点自己亮起来，像有人在里面打了灯。我试过把它拆下来，第二天它又挂回去了。",
		Category: types.CategoryCursedObject,
		Location: "彩虹邨",
		Persona:  "👁️ 深夜目击者",
	},
	{
		ID:       "01DEMO0000000000000000002",
		Title:    "油麻地果栏收工后的敲击声",
		Content:  "凌晨两点经过油麻地果栏，卷闸门里传出有节奏的敲击声，三下停一下。我数了二十分钟，节奏完全没有变过。果栏的人说里面根本没有人。",
		Category: types.CategoryAbandonedBuilding,
		Location: "油麻地果栏",
		Persona:  "🔍 都市调查员",
	},
	{
		ID:       "01DEMO0000000000000000003",
		Title:    "尾班车之后还有一班车",
		Content:  "地铁职员都知道，尾班车开走之后隧道里还会再过一班车，车厢是亮的，但是不载客。我拍过一次，照片里只有隧道。",
		Category: types.CategorySubwayGhost,
		Location: "旺角金鱼街",
		Persona:  "🚇 地铁夜班员",
	},
}

var demoComments = []struct {
	storyIndex int
	author     string
	content    string
}{
	{0, "kowloon_walker", "彩虹邨哪一座？我细个住过，冇听讲过"},
	{0, "nightowl", "凌晨三点去看过，真的会反光，吓死"},
	{1, "fruitmarket_fan", "果栏晚上是有看更的，但看更说敲击声不是他"},
	{2, "last_train", "我是做夜班的，这班车我们叫它空车，没人敢提"},
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo stories and comments into an empty database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, _, err := openEnv()
			if err != nil {
				return err
			}
			defer st.Close()

			return seedDemo(st)
		},
	}
}

func seedDemo(st *store.Store) error {
	now := time.Now()

	for i := range demoStories {
		story := demoStories[i]
		story.State = types.StateSeed
		story.CreatedAt = now.Add(time.Duration(i) * time.Minute)

		if err := st.CreateStory(&story, "seeded"); err != nil {
			return fmt.Errorf("seed story %s: %w", story.ID, err)
		}
		if err := st.UpdateStoryState(story.ID, types.StateSeed, types.StateActive,
			lifecycle.TriggerAdmitted, story.CreatedAt); err != nil {
			return fmt.Errorf("activate story %s: %w", story.ID, err)
		}
	}

	for i, c := range demoComments {
		comment := &types.Comment{
			StoryID:   demoStories[c.storyIndex].ID,
			Author:    c.author,
			Content:   c.content,
			CreatedAt: now.Add(time.Duration(len(demoStories)+i) * time.Minute),
		}
		if err := st.CreateComment(comment); err != nil {
			return fmt.Errorf("seed comment: %w", err)
		}
	}

	fmt.Printf("seeded %d stories and %d comments\n", len(demoStories), len(demoComments))
	return nil
}
