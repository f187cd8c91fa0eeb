package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "connectu",
	Short: "Form builder with AI-driven respondent matching",
	Long: `connectu runs questionnaire forms, turns each respondent's answers into
an LLM profile summary, embeds the summaries, and ranks every pair of
respondents by similarity.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.Version = version
	rootCmd.AddCommand(serveCmd, processCmd, statusCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
