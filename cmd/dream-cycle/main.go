package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/Big0290/memory-context-manager-v2-sub000/internal/dream"
	"github.com/Big0290/memory-context-manager-v2-sub000/internal/ingest"
	"github.com/Big0290/memory-context-manager-v2-sub000/internal/store"
)

func main() {
	stateDir := flag.String("state", "state", "Path to state directory")
	statusOnly := flag.Bool("status", false, "Print engine status without running a cycle")
	dryRun := flag.Bool("dry-run", false, "Print store stats and exit without running a cycle")
	asJSON := flag.Bool("json", false, "Emit result as JSON")
	ingestPath := flag.String("ingest", "", "Ingest a text file as a learning bit before the cycle")
	source := flag.String("source", "cli", "Provenance tag for ingested content")
	flag.Parse()

	st, err := store.Open(*stateDir)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	stats, err := st.Stats()
	if err != nil {
		log.Fatalf("Failed to get stats: %v", err)
	}
	log.Printf("Database: %s", st.Path())
	log.Printf("Current state:")
	log.Printf("  Learning bits: %d", stats["learning_bits"])
	log.Printf("  Cross-references: %d", stats["cross_references"])
	log.Printf("  Enhancement tasks: %d", stats["context_enhancement_pipeline"])

	if *dryRun {
		log.Println("Dry run - exiting")
		return
	}

	if *ingestPath != "" {
		data, err := os.ReadFile(*ingestPath)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", *ingestPath, err)
		}
		res, err := ingest.NewPipeline(st).Ingest(string(data), *source)
		if err != nil {
			log.Fatalf("Failed to ingest: %v", err)
		}
		if res.Duplicate {
			log.Printf("Already stored as bit %s", res.Bit.ID)
		} else {
			log.Printf("Stored bit %s (%s/%s)", res.Bit.ID, res.Bit.ContentType, res.Bit.Category)
		}
	}

	engine, err := dream.NewEngine(st)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	if *statusOnly {
		status := engine.Status()
		if *asJSON {
			printJSON(status)
			return
		}
		log.Printf("Cycles: %d  Effectiveness: %.2f  Health: %s",
			status.DreamCycles, status.Effectiveness, status.Health)
		return
	}

	result := engine.RunCycle()
	if *asJSON {
		printJSON(result)
		return
	}
	log.Printf("Cycle result:")
	log.Printf("  Consolidation: %s (boosted %d/%d)",
		result.Consolidation.Status, result.Consolidation.BitsBoosted, result.Consolidation.BitsProcessed)
	log.Printf("  Patterns: %s (analyzed %d, insights %d)",
		result.Patterns.Status, result.Patterns.PatternsAnalyzed, result.Patterns.InsightsQueued)
	log.Printf("  Enhancement: %s (created %d)",
		result.Enhancement.Status, result.Enhancement.ReferencesCreated)
	log.Printf("  Optimization: %s (effectiveness %.2f, triggers %d)",
		result.Optimization.Status, result.Optimization.Effectiveness, result.Optimization.TriggersCreated)
	log.Printf("  Synthesis: %s (events %d)",
		result.Synthesis.Status, result.Synthesis.EventsQueued)
	log.Printf("  Overall effectiveness: %.2f", result.Effectiveness)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal: %v", err)
	}
	os.Stdout.Write(append(data, '\n'))
}
