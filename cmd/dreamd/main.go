package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Big0290/memory-context-manager-v2-sub000/internal/budget"
	"github.com/Big0290/memory-context-manager-v2-sub000/internal/config"
	"github.com/Big0290/memory-context-manager-v2-sub000/internal/dream"
	"github.com/Big0290/memory-context-manager-v2-sub000/internal/store"
)

func main() {
	log.Println("dreamd - knowledge graph consolidation daemon")
	log.Println("=============================================")

	// Load .env file (optional - won't error if missing)
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, using environment variables")
	} else {
		log.Println("[config] Loaded .env file")
	}

	configPath := flag.String("config", os.Getenv("DREAM_CONFIG"), "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	st, err := store.Open(cfg.StatePath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()
	log.Printf("[dreamd] Database: %s", st.Path())

	engine, err := dream.NewEngine(st)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	var gate *budget.Gate
	if cfg.Idle.Enabled {
		gate = budget.NewGate()
		gate.SetThresholds(cfg.Idle.BusyThreshold, time.Duration(cfg.Idle.IdleDuration))
		gate.Start()
		defer gate.Stop()
	}

	interval := time.Duration(cfg.CycleInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Printf("[dreamd] Cycle every %v (state: %s, idle gate: %v)",
		interval, cfg.StatePath, cfg.Idle.Enabled)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if gate != nil && !gate.Idle() {
				log.Println("[dreamd] Host busy, deferring cycle")
				continue
			}
			engine.RunCycle()
		case sig := <-sigChan:
			log.Printf("[dreamd] Received %v, shutting down", sig)
			return
		}
	}
}
