package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"facerag/internal/app"
	"facerag/internal/server"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server with the /register, /recognize and /query endpoints.
On start the recognition model is restored from the last training run or
retrained from the stored faces.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, configPath, app.Options{Vision: true, Answers: true, Events: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		a.Config.Server.Port = port
	}

	log.Info("Preparing recognition model...")
	if err := a.PrepareModel(ctx); err != nil {
		return fmt.Errorf("failed to prepare recognition model: %w", err)
	}

	a.StartCleanup()

	router, err := a.Router()
	if err != nil {
		return err
	}

	return server.New(a.Config.Server, router).Run(ctx)
}
