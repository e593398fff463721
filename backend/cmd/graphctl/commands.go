package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"content-graph/backend/internal/bootstrap"
	"content-graph/backend/internal/graph"
	"content-graph/backend/internal/knowledge"
)

// appOpener builds the process collaborators for one command run
type appOpener func(ctx context.Context, storeOverride string) (*bootstrap.App, error)

func newRootCmd(open appOpener) *cobra.Command {
	var storeOverride string

	rootCmd := &cobra.Command{
		Use:   "graphctl",
		Short: "Operate the content knowledge graph",
		Long: `graphctl manages the content knowledge graph: it creates the store schema,
replays domain events into the graph and queries related nodes,
recommendations and statistics.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&storeOverride, "store", "", "Graph store backend (neo4j, memory); defaults to GRAPH_STORE")

	// withApp opens the app, runs fn and always releases the app
	withApp := func(fn func(cmd *cobra.Command, args []string, app *bootstrap.App) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			app, err := open(ctx, storeOverride)
			if err != nil {
				return err
			}
			defer app.Close(ctx)
			return fn(cmd, args, app)
		}
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Create store constraints and indexes",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
			if err := app.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
			return nil
		}),
	})

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Replay a JSON array of {type, data} events into the graph",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
			file, _ := cmd.Flags().GetString("file")
			keepGoing, _ := cmd.Flags().GetBool("continue-on-error")
			return runIngest(cmd, app.Engine, file, keepGoing)
		}),
	}
	ingestCmd.Flags().StringP("file", "f", "-", "Events file, - for stdin")
	ingestCmd.Flags().Bool("continue-on-error", false, "Keep going after an event fails")
	rootCmd.AddCommand(ingestCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print node and relationship counts by type",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
			stats, err := app.Engine.GetGraphStatistics(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		}),
	})

	relatedCmd := &cobra.Command{
		Use:   "related <node-id>",
		Short: "Walk the graph outward from a node",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
			depth, _ := cmd.Flags().GetInt("depth")
			rawTypes, _ := cmd.Flags().GetStringSlice("types")

			var types []graph.RelationshipType
			for _, t := range rawTypes {
				if t = strings.TrimSpace(t); t != "" {
					types = append(types, graph.RelationshipType(t))
				}
			}

			result, err := app.Engine.GetRelatedNodes(cmd.Context(), args[0], depth, types)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		}),
	}
	relatedCmd.Flags().Int("depth", 2, "Maximum hops from the seed")
	relatedCmd.Flags().StringSlice("types", nil, "Relationship types to follow (comma separated)")
	rootCmd.AddCommand(relatedCmd)

	recommendCmd := &cobra.Command{
		Use:   "recommend <node-type>",
		Short: "Rank nodes of a type by connection strength",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
			limit, _ := cmd.Flags().GetInt("limit")
			recs, err := app.Engine.GetRecommendations(cmd.Context(), graph.NodeType(args[0]), limit, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), recs)
		}),
	}
	recommendCmd.Flags().Int("limit", knowledge.DefaultRecommendationLimit, "Maximum results")
	rootCmd.AddCommand(recommendCmd)

	return rootCmd
}

func runIngest(cmd *cobra.Command, engine *knowledge.Engine, file string, keepGoing bool) error {
	var in io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("failed to open events file: %w", err)
		}
		defer f.Close()
		in = f
	}

	var events []knowledge.SystemEvent
	if err := json.NewDecoder(in).Decode(&events); err != nil {
		return fmt.Errorf("failed to parse events: %w", err)
	}

	out := cmd.OutOrStdout()
	failed := 0
	for i, ev := range events {
		summary, err := engine.ProcessSystemEvent(cmd.Context(), ev)
		if err != nil {
			failed++
			fmt.Fprintf(out, "event %d (%s): error: %v\n", i, ev.Type, err)
			if !keepGoing {
				return fmt.Errorf("event %d failed: %w", i, err)
			}
			continue
		}
		fmt.Fprintf(out, "event %d (%s): %d nodes, %d relationships, %d concepts\n",
			i, ev.Type, len(summary.Nodes), len(summary.Relationships), len(summary.Concepts))
	}

	fmt.Fprintf(out, "ingested %d/%d events\n", len(events)-failed, len(events))
	if failed > 0 {
		return fmt.Errorf("%d event(s) failed", failed)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
