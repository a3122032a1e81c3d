package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/recognizer"
	"github.com/spf13/cobra"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image> [image...]",
	Short: "Recognize faces in local image files",
	Long: `Run the recognition pipeline on local image files without the server.

Images are processed in argument order as one batch: a face enrolled
from an earlier image is matched by later ones. Unknown faces are
enrolled exactly as they would be through the API.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().Bool("json", false, "Output results as JSON")
}

func printImageResult(result recognizer.ImageResult) {
	fmt.Printf("%s: %d face(s)\n", result.Filename, result.FaceCount)
	for i, face := range result.Results {
		switch face.Outcome {
		case recognizer.OutcomeReturning:
			fmt.Printf("  face %d: returning visitor #%d (similarity %.4f)\n", i, face.Rank, face.Similarity)
		case recognizer.OutcomeNew:
			fmt.Printf("  face %d: new visitor #%d, saved to %s\n", i, face.Rank, face.SavedPath)
		case recognizer.OutcomeFailed:
			fmt.Printf("  face %d: failed: %s\n", i, face.Reason)
		}
	}
}

func runRecognize(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	jsonOutput := mustGetBool(cmd, "json")

	service, err := buildService(cfg)
	if err != nil {
		return err
	}

	items := make([]recognizer.BatchItem, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			// Unreadable files become zero-face results, like a malformed
			// upload through the API.
			fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", path, err)
			data = nil
		}
		items = append(items, recognizer.BatchItem{Filename: filepath.Base(path), Data: data})
	}

	results := service.RecognizeBatch(cmd.Context(), items)

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}

	for _, result := range results {
		printImageResult(result)
	}
	return nil
}
