package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "facerag",
	Short: "Face enrollment, recognition and record Q&A service",
	Long: `facerag registers faces, recognizes them with an LBPH model trained
from all stored faces and answers questions about the stored records
with a retrieval-augmented language model.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/config/config.yaml", "Path to the configuration file")
}

func initConfig() {
	// .env ist optional
	_ = godotenv.Load()
}
