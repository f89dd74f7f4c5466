package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"facerag/internal/app"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the stored records",
	Long: `Ask a question about the stored records. Without an argument the command
reads questions line by line until "exit" or end of input.`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().Bool("context", false, "Print the retrieved context with each answer")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, configPath, app.Options{Answers: true})
	if err != nil {
		return err
	}
	defer a.Close()

	showContext, _ := cmd.Flags().GetBool("context")
	out := cmd.OutOrStdout()

	ask := func(question string) error {
		answer, err := a.Answers.Ask(ctx, question)
		if err != nil {
			return err
		}
		if showContext {
			for _, chunk := range answer.Context {
				fmt.Fprintf(out, "  [%d] %s\n", chunk.RecordID, chunk.Text)
			}
		}
		fmt.Fprintf(out, "Bot: %s\n", answer.Text)
		return nil
	}

	if len(args) > 0 {
		return ask(strings.Join(args, " "))
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(question, "exit") {
			return nil
		}
		if question == "" {
			continue
		}
		if err := ask(question); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}
