package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/enrollstore"
	"github.com/kozaktomas/face-recognizer/internal/index"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index and enrollment statistics",
	Long: `Show the size, dimension, and last update time of the similarity
index, plus the number of recorded enrollments. Reads only the meta
sidecar, so it is cheap even for a large index.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().Bool("json", false, "Output statistics as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	meta, err := index.LoadMeta(cfg.Index.Path)
	if err != nil {
		return fmt.Errorf("reading index meta: %w", err)
	}

	store, err := enrollstore.NewStore(cfg.Faces.Dir)
	if err != nil {
		return fmt.Errorf("opening enrollment store: %w", err)
	}
	records, err := store.Records()
	if err != nil {
		return fmt.Errorf("reading enrollment records: %w", err)
	}

	if mustGetBool(cmd, "json") {
		out := map[string]any{
			"index_path":  cfg.Index.Path,
			"size":        meta.Count,
			"dim":         meta.Dim,
			"updated_at":  meta.UpdatedAt,
			"enrollments": len(records),
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	fmt.Printf("Index:       %s\n", cfg.Index.Path)
	fmt.Printf("Faces:       %d\n", meta.Count)
	fmt.Printf("Dimension:   %d\n", meta.Dim)
	fmt.Printf("Updated:     %s\n", meta.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Enrollments: %d\n", len(records))
	return nil
}
