package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prompt-atelier/promptblocks/internal/export"
	"github.com/prompt-atelier/promptblocks/internal/images"
	"github.com/prompt-atelier/promptblocks/internal/models"
	"github.com/prompt-atelier/promptblocks/internal/stream"
	"github.com/spf13/cobra"
)

func newBatchCmd() *cobra.Command {
	var (
		server      string
		token       string
		apiKey      string
		provider    string
		model       string
		preamble    string
		outputPath  string
		parquetPath string
	)

	cmd := &cobra.Command{
		Use:   "batch [images...]",
		Short: "Decompose a batch of images against a running server",
		Long: `Submits up to 5 images to a Promptblocks server and streams per-image
analysis progress. Arguments may be local image files or http(s) URLs.

Credentials default to the PROMPTBLOCKS_TOKEN and AI_API_KEY env vars.`,
		Example: `  # Analyze two local images with Gemini
  promptblocks batch --provider gemini a.png b.png

  # Save a YAML report and a parquet dataset of the run
  promptblocks batch --output run.yaml --parquet run.parquet a.png`,
		Args: cobra.RangeArgs(1, 5),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("PROMPTBLOCKS_TOKEN")
			}
			if apiKey == "" {
				apiKey = os.Getenv("AI_API_KEY")
			}

			inputs, err := loadImages(args)
			if err != nil {
				return err
			}

			client := stream.NewClient(server)
			if err := client.WaitForServer(cmd.Context(), 3*time.Second); err != nil {
				return err
			}

			slog.Info("Submitting batch", "images", len(inputs), "provider", provider, "server", server)

			complete, err := client.Run(cmd.Context(), inputs, stream.Options{
				Token:        token,
				APIKey:       apiKey,
				Provider:     provider,
				Model:        model,
				ModePreamble: preamble,
				OnProgress: func(ev *models.ProgressEvent) {
					if ev.Item.Status == models.StatusSuccess {
						slog.Info("Image analyzed",
							"index", ev.Item.Index,
							"name", ev.Item.Name,
							"percentage", ev.Progress.Percentage)
					} else {
						errMsg := ""
						if ev.Item.Error != nil {
							errMsg = *ev.Item.Error
						}
						slog.Warn("Image analysis failed",
							"index", ev.Item.Index,
							"name", ev.Item.Name,
							"error", errMsg)
					}
				},
			})
			if err != nil {
				return err
			}

			slog.Info("Batch finished",
				"total", complete.Progress.Total,
				"succeeded", complete.Progress.Succeeded,
				"failed", complete.Progress.Failed)

			for _, item := range complete.Results {
				if item.Prompt != nil {
					fmt.Printf("%d. %s\n%s\n\n", item.Index, item.Name, *item.Prompt)
				}
			}

			if outputPath != "" {
				if err := export.SaveYAML(outputPath, server, provider, model, complete); err != nil {
					return err
				}
				slog.Info("Report saved", "path", outputPath)
			}

			if parquetPath != "" {
				if err := export.SaveParquet(parquetPath, complete.Results); err != nil {
					return err
				}
				slog.Info("Dataset saved", "path", parquetPath)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:8888", "Base URL of the Promptblocks server")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token (defaults to PROMPTBLOCKS_TOKEN)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Provider API key (defaults to AI_API_KEY)")
	cmd.Flags().StringVar(&provider, "provider", "gpt", "AI provider: gpt or gemini")
	cmd.Flags().StringVar(&model, "model", "", "Model identifier (provider default when empty)")
	cmd.Flags().StringVar(&preamble, "preamble", "", "Optional mode preamble prepended to the analysis prompt")
	cmd.Flags().StringVar(&outputPath, "output", "", "Write a YAML report of the run to this path")
	cmd.Flags().StringVar(&parquetPath, "parquet", "", "Write a parquet dataset of the run to this path")

	return cmd
}

func loadImages(args []string) ([]stream.ImageInput, error) {
	fetcher := images.NewFetcher()

	inputs := make([]stream.ImageInput, 0, len(args))
	for _, arg := range args {
		var dataURI string
		var err error

		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			dataURI, err = fetcher.FetchToDataURI(arg)
		} else {
			dataURI, err = images.FileToDataURI(arg)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", arg, err)
		}

		inputs = append(inputs, stream.ImageInput{
			Name:  displayName(arg),
			Image: dataURI,
		})
	}
	return inputs, nil
}

func displayName(arg string) string {
	parts := strings.Split(arg, "/")
	return parts[len(parts)-1]
}
