package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/index"
	"github.com/kozaktomas/face-recognizer/internal/recognizer"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the similarity index",
	Long: `Create a new empty similarity index at INDEX_PATH.

This is the explicit first-run action: the server refuses to start
without an index, so that a lost or misplaced index file never silently
resets the set of known faces.

With --seed-dir, every image in the directory is pushed through the
full recognition pipeline afterwards, enrolling each unseen face. The
detection and embedding model servers must be reachable for seeding.`,
	RunE: runBootstrap,
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)

	bootstrapCmd.Flags().Int("dim", 0, "Embedding dimension (defaults to EMBEDDING_DIM)")
	bootstrapCmd.Flags().String("seed-dir", "", "Directory of face images to enroll after creating the index")
}

// seedImageExts are the file extensions considered during seeding.
var seedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
	".gif":  true,
}

// listSeedImages returns the image files directly inside dir, sorted by
// name so seeding order is reproducible.
func listSeedImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading seed directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if seedImageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// seedFromDir enrolls every image in dir through the full pipeline,
// sequentially, so duplicates within the directory match instead of
// enrolling twice.
func seedFromDir(ctx context.Context, service *recognizer.Service, dir string) error {
	paths, err := listSeedImages(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Printf("No images found in %s\n", dir)
		return nil
	}

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Seeding index"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var enrolled, matched, failed int
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("\nWarning: skipping %s: %v\n", path, err)
			_ = bar.Add(1)
			continue
		}

		result := service.RecognizeImage(ctx, data, filepath.Base(path))
		for _, face := range result.Results {
			switch face.Outcome {
			case recognizer.OutcomeNew:
				enrolled++
			case recognizer.OutcomeReturning:
				matched++
			case recognizer.OutcomeFailed:
				failed++
			}
		}
		_ = bar.Add(1)
	}
	fmt.Println()

	fmt.Printf("Seeding complete: %d enrolled, %d already known, %d failed\n", enrolled, matched, failed)
	return nil
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	dim := mustGetInt(cmd, "dim")
	if dim == 0 {
		dim = cfg.Embedding.Dim
	}

	idx, err := index.Bootstrap(cfg.Index.Path, dim)
	if err != nil {
		return fmt.Errorf("bootstrapping index: %w", err)
	}
	fmt.Printf("Created empty index at %s (dim %d)\n", idx.Path(), idx.Dim())

	seedDir := mustGetString(cmd, "seed-dir")
	if seedDir == "" {
		return nil
	}

	service, err := buildService(cfg)
	if err != nil {
		return err
	}
	return seedFromDir(cmd.Context(), service, seedDir)
}
