package main

import (
	"context"
	"fmt"

	"facerag/internal/app"

	"github.com/spf13/cobra"
)

var retrainCmd = &cobra.Command{
	Use:   "retrain",
	Short: "Retrain the recognition model from all stored faces",
	Args:  cobra.NoArgs,
	RunE:  runRetrain,
}

func init() {
	rootCmd.AddCommand(retrainCmd)
}

func runRetrain(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	a, err := app.New(ctx, configPath, app.Options{Vision: true})
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.Pool.Retrain(ctx, "cli")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Records:  %d\n", summary.Records)
	fmt.Fprintf(out, "Samples:  %d\n", summary.Samples)
	fmt.Fprintf(out, "Labels:   %d\n", summary.Labels)
	fmt.Fprintf(out, "Trained:  %t\n", summary.Trained)
	fmt.Fprintf(out, "Duration: %s\n", summary.Duration)
	if summary.Trained {
		fmt.Fprintf(out, "Model:    %s\n", a.Config.Recognizer.ModelFile)
	}
	return nil
}
