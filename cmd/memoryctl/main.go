// Package main provides the memoryctl CLI entry point: a thin smoke-test
// harness that exercises the memory core end-to-end from a shell.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orneryd/memorycore/pkg/config"
	"github.com/orneryd/memorycore/pkg/embed"
	"github.com/orneryd/memorycore/pkg/memory"
)

var version = "0.1.0"

// demoCorpus seeds the search and context subcommands with a small fixed set
// of turns so a single invocation has something to search against, since the Long-Term
// Store is in-memory only and does not persist across processes.
var demoCorpus = []string{
	"The capital of France is Paris",
	"The capital of Italy is Rome",
	"Paris is known for the Eiffel Tower",
	"Nuclear energy has the lowest death rate per terawatt-hour among major power sources",
	"Quarterly revenue exceeded analyst expectations this period",
}

func newManager() *memory.Manager {
	cfg := config.Default()
	embedder := embed.NewStaticEmbedder(64)
	return memory.NewManager(cfg, memory.ManagerOptions{Embedder: embedder})
}

func seedDemoCorpus(ctx context.Context, m *memory.Manager) {
	for _, text := range demoCorpus {
		if _, err := m.Insert(ctx, text, nil); err != nil {
			fmt.Fprintf(os.Stderr, "warning: seeding %q: %v\n", text, err)
		}
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "memoryctl",
		Short: "memoryctl - hybrid retrieval memory core smoke-test CLI",
		Long: `memoryctl exercises the hybrid retrieval memory core's public API from a
shell: inserting turns, running a hybrid search, and assembling a
four-zone context payload.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("memoryctl v%s\n", version)
		},
	})

	insertCmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert a turn into the long-term store and print its id",
		RunE:  runInsert,
	}
	insertCmd.Flags().String("text", "", "text to insert")
	insertCmd.MarkFlagRequired("text")
	rootCmd.AddCommand(insertCmd)

	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Seed a demo corpus and run a hybrid search against it",
		RunE:  runSearch,
	}
	searchCmd.Flags().String("query", "", "search query")
	searchCmd.Flags().Int("k", 5, "number of results")
	searchCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(searchCmd)

	contextCmd := &cobra.Command{
		Use:   "context",
		Short: "Seed a demo corpus and assemble a four-zone context payload",
		RunE:  runContext,
	}
	contextCmd.Flags().String("system-prompt", "You are a helpful assistant", "Zone 1 content")
	contextCmd.Flags().String("task", "", "Zone 4 content / Zone 2 query")
	contextCmd.MarkFlagRequired("task")
	rootCmd.AddCommand(contextCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runInsert(cmd *cobra.Command, args []string) error {
	text, _ := cmd.Flags().GetString("text")

	m := newManager()
	ctx := context.Background()

	id, err := m.Insert(ctx, text, nil)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	fmt.Printf("inserted id=%s\n", id)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	k, _ := cmd.Flags().GetInt("k")

	m := newManager()
	ctx := context.Background()
	seedDemoCorpus(ctx, m)

	results, err := m.Search(ctx, query, k, memory.SearchOptions{})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}

	for _, r := range results {
		fmt.Printf("%d. (%.4f) %s\n", r.Rank, r.Score, r.Text)
	}
	return nil
}

func runContext(cmd *cobra.Command, args []string) error {
	systemPrompt, _ := cmd.Flags().GetString("system-prompt")
	task, _ := cmd.Flags().GetString("task")

	m := newManager()
	ctx := context.Background()
	seedDemoCorpus(ctx, m)

	if _, err := m.AddInteraction(ctx, "user", task, nil, false); err != nil {
		return fmt.Errorf("add interaction: %w", err)
	}

	payload, err := m.BuildContextPayload(ctx, systemPrompt, task, memory.ContextOptions{})
	if err != nil {
		return fmt.Errorf("build context payload: %w", err)
	}

	fmt.Println(payload)
	return nil
}
