package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promptblocks",
		Short: "Prompt block extraction service for AI-generated images",
		Long: `Promptblocks decomposes AI-generated images into the 13 semantic blocks
of their likely generation prompt using vision-capable LLMs (OpenAI or Gemini).

It ships a web server that streams batch analysis progress as NDJSON, and a
CLI client for running batches against it from local image files or URLs.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newBatchCmd())

	return cmd
}
