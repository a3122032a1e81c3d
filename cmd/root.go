package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-recognizer",
	Short: "A match-or-enroll face recognition service",
	Long: `Face Recognizer answers one question per detected face: have we seen
this person before? Unknown faces are enrolled on the spot, so every
face is either a returning identity or a brand new one.

Detection and embedding are delegated to external HTTP model servers;
this process owns the similarity index and the enrollment records.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
