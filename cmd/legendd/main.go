// Command legendd runs the narrative engine daemon: a cron-driven tick
// that admits new stories, ages existing ones and archives finished
// threads.
package main

import (
	"crypto/rand"
	"encoding/binary"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Melos47/Urban-Legends-Forum/internal/config"
	"github.com/Melos47/Urban-Legends-Forum/internal/engine"
	"github.com/Melos47/Urban-Legends-Forum/internal/generator"
	"github.com/Melos47/Urban-Legends-Forum/internal/generator/providers"
	"github.com/Melos47/Urban-Legends-Forum/internal/scheduler"
	"github.com/Melos47/Urban-Legends-Forum/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load or create configuration
	cfg, err := config.Load()
	if err != nil {
		if os.IsNotExist(err) {
			// First run - create default config
			cfg = config.Default()
			if err := cfg.FillStorageDefaults(); err != nil {
				log.Fatalf("Failed to derive storage paths: %v", err)
			}
			if err := cfg.Save(); err != nil {
				log.Printf("Warning: could not save default config: %v", err)
			} else {
				path, _ := config.ConfigPath()
				log.Printf("Created default config at: %s", path)
			}
		} else {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	st, err := store.New(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	gen, err := newProvider(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize generator: %v", err)
	}

	eng := engine.New(cfg, st, gen, newSeed())

	sched := scheduler.New()
	if err := sched.AddTickJob(cfg.Tick(), eng.Tick); err != nil {
		log.Fatalf("Failed to schedule tick: %v", err)
	}

	log.Println("legendd starting...")
	sched.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Println("legendd shutting down...")
	<-sched.Stop().Done()
}

// newProvider builds the configured generation backend.
func newProvider(cfg *config.Config) (generator.Generator, error) {
	switch cfg.Generator.Provider {
	case config.ProviderAnthropic:
		return providers.NewAnthropicProvider(cfg.Generator.APIKey, cfg.Generator.Model, newSeed()), nil
	case config.ProviderLocal:
		return providers.NewLocalProvider(cfg.Generator.BaseURL, cfg.Generator.APIKey,
			cfg.Generator.Model, cfg.Storage.MediaDir, newSeed()), nil
	default:
		log.Printf("Unknown provider %q, falling back to local", cfg.Generator.Provider)
		return providers.NewLocalProvider(cfg.Generator.BaseURL, cfg.Generator.APIKey,
			cfg.Generator.Model, cfg.Storage.MediaDir, newSeed()), nil
	}
}

// newSeed draws a random seed for ULID entropy and evidence synthesis.
func newSeed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		log.Fatalf("Failed to seed random source: %v", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:]) >> 1)
}
