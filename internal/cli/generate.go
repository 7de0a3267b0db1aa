package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"personastudio/internal/apiclient"
	"personastudio/internal/domain"
	"personastudio/internal/generations"
	"personastudio/internal/prompts"
	"personastudio/internal/storage"
)

type generateResult struct {
	Image          string                  `json:"image"`
	Prompt         string                  `json:"prompt"`
	EnhancedPrompt string                  `json:"enhanced_prompt,omitempty"`
	Saved          *domain.SavedGeneration `json:"saved,omitempty"`
	File           string                  `json:"file,omitempty"`
}

func newGenerateCommand(opts *RootOptions) *cobra.Command {
	var (
		model  string
		llm    string
		width  int
		height int
		save   bool
		out    string
	)
	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate a persona image",
		Long: `Generate a persona image.

The prompt is cut at a word boundary to the model's length limit. With --save
the image is added to your gallery; with --out it is written under the
profile's output directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			api, err := opts.remote()
			if err != nil {
				return err
			}
			prompt := prompts.ForModel(strings.TrimSpace(strings.Join(args, " ")), model)
			resp, err := api.GenerateImage(ctx, apiclient.GenerateRequest{
				Prompt:   prompt,
				Model:    model,
				Width:    width,
				Height:   height,
				LLMModel: llmOrDefault(opts, llm),
			})
			if err != nil {
				return err
			}
			if resp.Image == "" {
				return &domain.UnsuccessfulError{Message: "Image generation returned no image"}
			}

			res := generateResult{Image: resp.Image, Prompt: resp.Prompt, EnhancedPrompt: resp.EnhancedPrompt}
			if out != "" {
				res.File, err = writeArtifact(ctx, opts, api, out, resp.Image)
				if err != nil {
					return err
				}
			}
			if save {
				_, gallery, err := opts.account(ctx)
				if err != nil {
					return err
				}
				data, err := imagePayload(ctx, api, resp.Image)
				if err != nil {
					return err
				}
				res.Saved, err = gallery.Store(ctx, generations.StoreRequest{
					Prompt:         prompt,
					EnhancedPrompt: resp.EnhancedPrompt,
					ImageModel:     model,
					LLMModel:       llmOrDefault(opts, llm),
					ImageData:      data,
				})
				if err != nil {
					return fmt.Errorf("save to gallery: %w", err)
				}
			}
			return opts.emit(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintln(w, shortRef(res.Image))
				if res.File != "" {
					fmt.Fprintf(w, "wrote %s\n", res.File)
				}
				if res.Saved != nil {
					fmt.Fprintf(w, "saved as %s\n", res.Saved.ID)
				}
			})
		},
	}
	cmd.Flags().StringVar(&model, "model", "titan-g1", "image model id")
	cmd.Flags().StringVar(&llm, "llm-model", "", "language model id (default from profile)")
	cmd.Flags().IntVar(&width, "width", 512, "image width")
	cmd.Flags().IntVar(&height, "height", 512, "image height")
	cmd.Flags().BoolVar(&save, "save", false, "add the image to your gallery")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the image to this key under the output directory")
	return cmd
}

// imagePayload returns the raw base64 payload of ref, downloading it first
// when ref is a URL.
func imagePayload(ctx context.Context, f storage.Fetcher, ref string) (string, error) {
	if _, payload, ok := domain.SplitDataURL(ref); ok {
		return payload, nil
	}
	data, _, err := f.FetchImage(ctx, ref)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func writeArtifact(ctx context.Context, opts *RootOptions, f storage.Fetcher, key, ref string) (string, error) {
	store, err := storage.NewFileStore(opts.profile.OutputDir)
	if err != nil {
		return "", err
	}
	written, err := store.WriteArtifact(ctx, f, key, ref)
	if err != nil {
		return "", err
	}
	return store.Path(written), nil
}

// shortRef keeps data URLs from flooding the terminal.
func shortRef(ref string) string {
	if mime, payload, ok := domain.SplitDataURL(ref); ok {
		return fmt.Sprintf("data:%s;base64 (%d bytes encoded)", mime, len(payload))
	}
	return ref
}
