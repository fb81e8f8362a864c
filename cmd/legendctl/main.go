// Command legendctl is a maintenance CLI for the narrative engine:
// trigger ticks, force evidence episodes, inspect stories and seed demo
// data.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/Melos47/Urban-Legends-Forum/internal/config"
	"github.com/Melos47/Urban-Legends-Forum/internal/engine"
	"github.com/Melos47/Urban-Legends-Forum/internal/generator"
	"github.com/Melos47/Urban-Legends-Forum/internal/generator/providers"
	"github.com/Melos47/Urban-Legends-Forum/internal/store"
)

func main() {
	log.SetFlags(0)

	root := &cobra.Command{
		Use:           "legendctl",
		Short:         "Maintenance CLI for the urban legends narrative engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(generateCmd(), evidenceCmd(), storiesCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		log.Fatalf("legendctl: %v", err)
	}
}

// openEnv loads config and opens the store and engine the daemon would
// use, so CLI actions hit the same database and media directory.
func openEnv() (*config.Config, *store.Store, *engine.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, nil, nil, err
		}
		cfg = config.Default()
		if err := cfg.FillStorageDefaults(); err != nil {
			return nil, nil, nil, err
		}
	}

	st, err := store.New(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, nil, err
	}

	gen := newProvider(cfg)
	eng := engine.New(cfg, st, gen, 0)
	return cfg, st, eng, nil
}

func newProvider(cfg *config.Config) generator.Generator {
	if cfg.Generator.Provider == config.ProviderAnthropic {
		return providers.NewAnthropicProvider(cfg.Generator.APIKey, cfg.Generator.Model, 0)
	}
	return providers.NewLocalProvider(cfg.Generator.BaseURL, cfg.Generator.APIKey,
		cfg.Generator.Model, cfg.Storage.MediaDir, 0)
}

func generateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Run one engine tick now (sweep plus admission)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, eng, err := openEnv()
			if err != nil {
				return err
			}
			defer st.Close()

			return eng.Tick(cmd.Context())
		},
	}
}

func evidenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evidence <story-id>",
		Short: "Force an evidence episode for a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, eng, err := openEnv()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := eng.ForceEvidence(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("evidence episode complete for %s\n", args[0])
			return nil
		},
	}
}

func storiesCmd() *cobra.Command {
	var limit int
	var history bool

	cmd := &cobra.Command{
		Use:   "stories",
		Short: "List recent stories and their lifecycle state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, _, err := openEnv()
			if err != nil {
				return err
			}
			defer st.Close()

			stories, err := st.RecentStories(limit)
			if err != nil {
				return err
			}

			for _, story := range stories {
				fmt.Printf("%s  %-11s %-20s %s\n", story.ID, story.State, story.Category, story.Title)
				if !history {
					continue
				}
				changes, err := st.StateHistory(story.ID)
				if err != nil {
					return err
				}
				for _, c := range changes {
					fmt.Printf("    %s  %-11s %s\n", c.At.Format("2006-01-02 15:04"), c.State, c.Trigger)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum stories to list")
	cmd.Flags().BoolVar(&history, "history", false, "show the state history of each story")
	return cmd
}
