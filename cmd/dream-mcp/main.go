// dream-mcp exposes the knowledge graph and its consolidation engine over
// stdio MCP: run cycles, check status, store and link learning bits, and
// poll the enhancement queue.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Big0290/memory-context-manager-v2-sub000/internal/dream"
	"github.com/Big0290/memory-context-manager-v2-sub000/internal/ingest"
	"github.com/Big0290/memory-context-manager-v2-sub000/internal/store"
)

const priorityLearningRelationship = 4

type app struct {
	store    *store.Store
	engine   *dream.Engine
	pipeline *ingest.Pipeline
}

func main() {
	_ = godotenv.Load()

	statePath := os.Getenv("DREAM_STATE_PATH")
	if statePath == "" {
		statePath = "state"
	}

	st, err := store.Open(statePath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	engine, err := dream.NewEngine(st)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	a := &app{store: st, engine: engine, pipeline: ingest.NewPipeline(st)}

	s := server.NewMCPServer(
		"dream-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(runCycleTool(), a.handleRunCycle)
	s.AddTool(statusTool(), a.handleStatus)
	s.AddTool(storeBitTool(), a.handleStoreBit)
	s.AddTool(linkBitsTool(), a.handleLinkBits)
	s.AddTool(pendingTool(), a.handlePending)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func runCycleTool() mcp.Tool {
	return mcp.NewTool("run_dream_cycle",
		mcp.WithDescription("Run one full consolidation cycle over the knowledge graph: memory consolidation, pattern analysis, relationship enhancement, context optimization, and knowledge synthesis. Returns the per-phase outcomes and the cumulative effectiveness score."),
	)
}

func (a *app) handleRunCycle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := a.engine.RunCycle()
	return jsonResult(result)
}

func statusTool() mcp.Tool {
	return mcp.NewTool("dream_status",
		mcp.WithDescription("Report the consolidation engine's cumulative state: cycle count, metrics, effectiveness score, and health (optimal or needs_attention)."),
	)
}

func (a *app) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(a.engine.Status())
}

func storeBitTool() mcp.Tool {
	return mcp.NewTool("store_learning_bit",
		mcp.WithDescription("Store a piece of knowledge as a learning bit. Content is classified, categorized by its entities, scored, and deduplicated; re-storing identical content returns the existing bit."),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The knowledge to store"),
		),
		mcp.WithString("source",
			mcp.Description("Provenance tag (default: mcp)"),
		),
	)
}

func (a *app) handleStoreBit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	content, _ := args["content"].(string)
	source, _ := args["source"].(string)
	if content == "" {
		return mcp.NewToolResultError("content is required"), nil
	}
	if source == "" {
		source = "mcp"
	}

	result, err := a.pipeline.Ingest(content, source)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to store: %v", err)), nil
	}
	return jsonResult(result)
}

func linkBitsTool() mcp.Tool {
	return mcp.NewTool("link_learning_bits",
		mcp.WithDescription("Create a typed cross-reference between two learning bits. Duplicate (source, target, type) triples are silently ignored. A pending learning_relationship task is queued for new links."),
		mcp.WithString("source_id",
			mcp.Required(),
			mcp.Description("ID of the source bit"),
		),
		mcp.WithString("target_id",
			mcp.Required(),
			mcp.Description("ID of the target bit"),
		),
		mcp.WithString("relationship_type",
			mcp.Description("One of: related, implements, depends_on, similar_to, references, extends, composes (default: related)"),
		),
		mcp.WithNumber("strength",
			mcp.Description("Edge strength 0.0-1.0 (default: 0.5)"),
		),
		mcp.WithBoolean("bidirectional",
			mcp.Description("Whether the relationship reads both ways (default: false)"),
		),
	)
}

var validRelationships = map[store.RelationshipType]bool{
	store.RelRelated:    true,
	store.RelImplements: true,
	store.RelDependsOn:  true,
	store.RelSimilarTo:  true,
	store.RelReferences: true,
	store.RelExtends:    true,
	store.RelComposes:   true,
}

func (a *app) handleLinkBits(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	sourceID, _ := args["source_id"].(string)
	targetID, _ := args["target_id"].(string)
	relType, _ := args["relationship_type"].(string)
	strength := 0.5
	if v, ok := args["strength"].(float64); ok {
		strength = v
	}
	bidirectional, _ := args["bidirectional"].(bool)

	if sourceID == "" || targetID == "" {
		return mcp.NewToolResultError("source_id and target_id are required"), nil
	}
	if relType == "" {
		relType = string(store.RelRelated)
	}
	if !validRelationships[store.RelationshipType(relType)] {
		return mcp.NewToolResultError(fmt.Sprintf("unknown relationship_type %q", relType)), nil
	}
	if strength < 0 || strength > 1 {
		return mcp.NewToolResultError("strength must be between 0.0 and 1.0"), nil
	}

	for _, id := range []string{sourceID, targetID} {
		bit, err := a.store.GetBit(id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to look up bit: %v", err)), nil
		}
		if bit == nil {
			return mcp.NewToolResultError(fmt.Sprintf("no learning bit with id %s", id)), nil
		}
	}

	ref := &store.CrossReference{
		SourceBitID:      sourceID,
		TargetBitID:      targetID,
		RelationshipType: store.RelationshipType(relType),
		Strength:         strength,
		Bidirectional:    bidirectional,
	}
	inserted, err := a.store.InsertCrossReference(ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to link: %v", err)), nil
	}
	if !inserted {
		return mcp.NewToolResultText("Link already exists, nothing created"), nil
	}

	task := &store.EnhancementTask{
		TriggerType:      store.TriggerLearningRelationship,
		SourceID:         sourceID,
		TargetID:         targetID,
		RelationshipType: store.RelationshipType(relType),
		EnhancementType:  "relationship_mapping",
		Status:           store.TaskPending,
		Priority:         priorityLearningRelationship,
	}
	if err := a.store.EnqueueEnhancement(task); err != nil {
		log.Printf("[mcp] failed to queue relationship task: %v", err)
	}

	return jsonResult(ref)
}

func pendingTool() mcp.Tool {
	return mcp.NewTool("pending_enhancements",
		mcp.WithDescription("Poll the context enhancement pipeline for pending tasks, oldest first. Consumers own task lifecycle; this server never transitions or removes them."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum tasks to return (default: 20)"),
		),
	)
}

func (a *app) handlePending(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	limit := 20
	if v, ok := args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	tasks, err := a.store.PendingEnhancements(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to query tasks: %v", err)), nil
	}
	return jsonResult(tasks)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
