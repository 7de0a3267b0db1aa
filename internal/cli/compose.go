package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"personastudio/internal/domain"
	"personastudio/internal/studio"
)

type composeResult struct {
	Status domain.RunStatus        `json:"status"`
	Merged string                  `json:"merged_image,omitempty"`
	Final  string                  `json:"final_image,omitempty"`
	Saved  *domain.SavedGeneration `json:"saved,omitempty"`
	File   string                  `json:"file,omitempty"`
}

func newComposeCommand(opts *RootOptions) *cobra.Command {
	var (
		persona string
		product string
		prompt  string
		out     string
		noSave  bool
	)
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Place a product with a persona",
		Long: `Place a product with a persona.

The persona is either a gallery generation id or an image URL. The product
image is merged next to the persona, then the editor renders the persona
using the product as the prompt describes. The result is saved to the gallery
unless --no-save is given.`,
		Example: "  studio compose --persona 7f3c --product mug.png --prompt 'holding the mug at a cafe' -o mug-shot",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			api, err := opts.remote()
			if err != nil {
				return err
			}
			var store studio.GenerationStore
			var lookup func(context.Context, string) (*domain.Generation, error)
			if !noSave || !isImageRef(persona) {
				_, gallery, err := opts.account(ctx)
				if err != nil {
					return err
				}
				lookup = gallery.Get
				if !noSave {
					store = gallery
				}
			}

			sel, err := resolvePersona(ctx, persona, lookup)
			if err != nil {
				return err
			}
			asset, err := readProductFile(product)
			if err != nil {
				return err
			}

			seq := studio.New(api, store, studio.Options{LLMModel: opts.profile.LLMModel, Logger: &opts.logger})
			stderr := cmd.ErrOrStderr()
			seq.Observe(studio.ObserverFunc(func(_ context.Context, ev studio.Event) {
				switch ev.Kind {
				case studio.EventTransition:
					fmt.Fprintf(stderr, "%s\n", ev.Snapshot.StepLabel())
				case studio.EventSaveFailed:
					fmt.Fprintf(stderr, "could not save to gallery: %v\n", ev.Err)
				}
			}))
			if err := seq.SelectPersona(sel); err != nil {
				return err
			}
			if err := seq.SetProduct(asset); err != nil {
				return err
			}
			seq.SetPrompt(prompt)
			if err := seq.Start(ctx); err != nil {
				return err
			}

			snap := seq.Snapshot()
			res := composeResult{Status: snap.Status, Merged: snap.MergedImage, Final: snap.FinalImage, Saved: snap.Saved}
			if out != "" {
				res.File, err = writeArtifact(ctx, opts, api, out, snap.FinalImage)
				if err != nil {
					return err
				}
			}
			return opts.emit(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintln(w, shortRef(res.Final))
				if res.File != "" {
					fmt.Fprintf(w, "wrote %s\n", res.File)
				}
				if res.Saved != nil {
					fmt.Fprintf(w, "saved as %s\n", res.Saved.ID)
				}
			})
		},
	}
	cmd.Flags().StringVar(&persona, "persona", "", "gallery generation id or persona image URL")
	cmd.Flags().StringVar(&product, "product", "", "product image file")
	cmd.Flags().StringVar(&prompt, "prompt", "", "how the persona should use the product")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the final image to this key under the output directory")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not add the result to the gallery")
	_ = cmd.MarkFlagRequired("persona")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

func isImageRef(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "data:")
}

func resolvePersona(ctx context.Context, ref string, lookup func(context.Context, string) (*domain.Generation, error)) (domain.PersonaSelection, error) {
	ref = strings.TrimSpace(ref)
	if isImageRef(ref) {
		return domain.PersonaSelection{ImageURL: ref}, nil
	}
	if lookup == nil {
		return domain.PersonaSelection{}, domain.Invalid("persona", "sign in to use a gallery persona")
	}
	g, err := lookup(ctx, ref)
	if err != nil {
		return domain.PersonaSelection{}, fmt.Errorf("load persona %s: %w", ref, err)
	}
	return domain.PersonaFromGeneration(*g), nil
}

func readProductFile(path string) (domain.ProductAsset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ProductAsset{}, fmt.Errorf("read product: %w", err)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return domain.ProductAsset{}, domain.Invalid("product", "product must be an image, got "+mime)
	}
	return domain.ProductAsset{MIMEType: mime, Data: data}, nil
}
