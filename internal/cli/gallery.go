package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"personastudio/internal/domain"
	"personastudio/internal/export"
	"personastudio/internal/storage"
)

func newGalleryCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gallery",
		Aliases: []string{"gen"},
		Short:   "Manage your saved generations",
	}
	cmd.AddCommand(
		newGalleryListCommand(opts),
		newGalleryGetCommand(opts),
		newGalleryDeleteCommand(opts),
		newGalleryVisibilityCommand(opts, "publish", true),
		newGalleryVisibilityCommand(opts, "unpublish", false),
		newGalleryStatsCommand(opts),
		newGalleryExportCommand(opts),
	)
	return cmd
}

func newGalleryListCommand(opts *RootOptions) *cobra.Command {
	var (
		limit  int
		cursor string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your generations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gallery, err := opts.account(cmd.Context())
			if err != nil {
				return err
			}
			page, err := gallery.List(cmd.Context(), limit, cursor)
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), page, func(w io.Writer) { printPage(w, page) })
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	cmd.Flags().StringVar(&cursor, "cursor", "", "continue from a previous page")
	return cmd
}

func newGalleryGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gallery, err := opts.account(cmd.Context())
			if err != nil {
				return err
			}
			g, err := gallery.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), g, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "id\t%s\n", g.ID)
				fmt.Fprintf(tw, "created\t%s\n", g.CreatedAt)
				fmt.Fprintf(tw, "model\t%s\n", g.ImageModel)
				fmt.Fprintf(tw, "public\t%t\n", g.IsPublic)
				fmt.Fprintf(tw, "prompt\t%s\n", g.Prompt)
				if g.EnhancedPrompt != "" {
					fmt.Fprintf(tw, "enhanced\t%s\n", g.EnhancedPrompt)
				}
				fmt.Fprintf(tw, "image\t%s\n", shortRef(g.ImageURL))
				_ = tw.Flush()
			})
		},
	}
}

func newGalleryDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a generation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gallery, err := opts.account(cmd.Context())
			if err != nil {
				return err
			}
			if err := gallery.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printMessage(opts, cmd, "Deleted "+args[0])
		},
	}
}

func newGalleryVisibilityCommand(opts *RootOptions, use string, public bool) *cobra.Command {
	short := "Share a generation on the explore feed"
	if !public {
		short = "Remove a generation from the explore feed"
	}
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gallery, err := opts.account(cmd.Context())
			if err != nil {
				return err
			}
			if public {
				err = gallery.Publish(cmd.Context(), args[0])
			} else {
				err = gallery.Unpublish(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			verb := "Published"
			if !public {
				verb = "Unpublished"
			}
			return printMessage(opts, cmd, verb+" "+args[0])
		},
	}
}

func newGalleryStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show gallery totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gallery, err := opts.account(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := gallery.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), stats, func(w io.Writer) {
				fmt.Fprintf(w, "%d generations\n", stats.TotalGenerations)
			})
		},
	}
}

type exportResult struct {
	File     string `json:"file"`
	Included int    `json:"included"`
	Skipped  int    `json:"skipped"`
}

func newGalleryExportCommand(opts *RootOptions) *cobra.Command {
	var (
		limit       int
		concurrency int
		name        string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download your gallery as a zip archive",
		Long: `Download your gallery as a zip archive.

Images that fail to download are skipped. The archive is written under the
profile's output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			api, err := opts.remote()
			if err != nil {
				return err
			}
			_, gallery, err := opts.account(ctx)
			if err != nil {
				return err
			}
			res, err := export.Gallery(ctx, gallery, api, export.Options{
				Limit:       limit,
				Concurrency: concurrency,
				Logger:      &opts.logger,
			})
			if err != nil {
				return err
			}
			if name == "" {
				name = export.Filename(time.Now())
			}
			store, err := storage.NewFileStore(opts.profile.OutputDir)
			if err != nil {
				return err
			}
			key, err := store.Write(ctx, name, res.Archive)
			if err != nil {
				return err
			}
			out := exportResult{File: store.Path(key), Included: res.Included, Skipped: res.Skipped}
			return opts.emit(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "wrote %s (%d images", out.File, out.Included)
				if out.Skipped > 0 {
					fmt.Fprintf(w, ", %d skipped", out.Skipped)
				}
				fmt.Fprintln(w, ")")
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", export.DefaultLimit, "maximum generations to include")
	cmd.Flags().IntVar(&concurrency, "concurrency", export.DefaultConcurrency, "parallel downloads")
	cmd.Flags().StringVar(&name, "name", "", "archive file name (default generations-YYYYMMDD.zip)")
	return cmd
}

func newExploreCommand(opts *RootOptions) *cobra.Command {
	var (
		limit  int
		cursor string
	)
	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Browse generations other users have published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := opts.remote()
			if err != nil {
				return err
			}
			page, err := api.ListPublicGenerations(cmd.Context(), limit, cursor)
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), page, func(w io.Writer) { printPage(w, page) })
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	cmd.Flags().StringVar(&cursor, "cursor", "", "continue from a previous page")
	return cmd
}

func newModelsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the text and image models the service offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := opts.remote()
			if err != nil {
				return err
			}
			models, err := api.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), models, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "KIND\tID\tNAME")
				for _, m := range models.TextModels {
					fmt.Fprintf(tw, "text\t%s\t%s\n", m.ID, m.Name)
				}
				for _, m := range models.ImageModels {
					fmt.Fprintf(tw, "image\t%s\t%s\n", m.ID, m.Name)
				}
				_ = tw.Flush()
			})
		},
	}
}

func printPage(w io.Writer, page *domain.GenerationPage) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tMODEL\tPROMPT")
	for _, g := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", g.ID, g.CreatedAt, g.ImageModel, clip(g.Prompt, 60))
	}
	_ = tw.Flush()
	if page.NextCursor != "" {
		fmt.Fprintf(w, "more: --cursor %s\n", page.NextCursor)
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
