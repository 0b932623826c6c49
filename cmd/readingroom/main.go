package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"readingroom/internal/bootstrap"
	readerinadapter "readingroom/internal/modules/reader/adapter/in"
	readerdto "readingroom/internal/modules/reader/dto"
	"readingroom/internal/platform/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dataDir string

	root := &cobra.Command{
		Use:           "readingroom",
		Short:         "Terminal reading room with durable progress",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data", ".", "data directory (documents, database, config)")

	root.AddCommand(newTUICmd(&dataDir))
	root.AddCommand(newCatalogCmd(&dataDir))
	root.AddCommand(newProgressCmd(&dataDir))
	root.AddCommand(newRelayCmd(&dataDir))
	root.AddCommand(newViewerCmd(&dataDir))
	return root
}

// withApp builds the application, runs fn and releases the stores afterwards.
func withApp(dataDir string, fn func(app *bootstrap.App) error) error {
	settings, err := config.NewManager(dataDir)
	if err != nil {
		return err
	}
	app, err := bootstrap.New(settings)
	if err != nil {
		return err
	}
	runErr := fn(app)
	if closeErr := app.Close(); closeErr != nil && runErr == nil {
		return closeErr
	}
	return runErr
}

func newTUICmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the reading room terminal UI",
		RunE: func(_ *cobra.Command, _ []string) error {
			return withApp(*dataDir, bootstrap.RunTUI)
		},
	}
}

func newCatalogCmd(dataDir *string) *cobra.Command {
	catalog := &cobra.Command{Use: "catalog", Short: "Manage the document catalog"}

	var title string
	var authors, tags []string

	fileCmd := &cobra.Command{
		Use:   "add-file <path>",
		Short: "Add a local PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*dataDir, func(app *bootstrap.App) error {
				out, err := app.LibraryCLI.AddFile(context.Background(), args[0], title, authors, tags)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s) book=%d note=%s\n", out.Title, out.ID, out.UserBookID, out.NotePath)
				return nil
			})
		},
	}
	fileCmd.Flags().StringVar(&title, "title", "", "document title (optional)")
	fileCmd.Flags().StringSliceVar(&authors, "authors", nil, "author names")
	fileCmd.Flags().StringSliceVar(&tags, "tags", nil, "tags")

	urlCmd := &cobra.Command{
		Use:   "add-url <url>",
		Short: "Add a remote PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*dataDir, func(app *bootstrap.App) error {
				out, err := app.LibraryCLI.AddURL(context.Background(), args[0], title, authors, tags)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s) book=%d note=%s\n", out.Title, out.ID, out.UserBookID, out.NotePath)
				return nil
			})
		},
	}
	urlCmd.Flags().StringVar(&title, "title", "", "document title (optional)")
	urlCmd.Flags().StringSliceVar(&authors, "authors", nil, "author names")
	urlCmd.Flags().StringSliceVar(&tags, "tags", nil, "tags")

	list := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*dataDir, func(app *bootstrap.App) error {
				docs, err := app.LibraryCLI.ListDocuments(context.Background())
				if err != nil {
					return err
				}
				if len(docs) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no documents")
					return nil
				}
				for _, d := range docs {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\t%s\t%.0f%%\n", d.ID, d.UserBookID, d.Status, d.Title, d.Percent)
				}
				return nil
			})
		},
	}

	var documentID string
	show := &cobra.Command{
		Use:   "show --id <id>",
		Short: "Show document details",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(documentID) == "" {
				return fmt.Errorf("--id is required")
			}
			return withApp(*dataDir, func(app *bootstrap.App) error {
				d, err := app.LibraryCLI.GetDocument(context.Background(), documentID)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "id: %s\ntitle: %s\nauthors: %s\nkind: %s\nbook: %d\nstatus: %s\nprogress: %.0f%%\nfile: %s\nurl: %s\nnote: %s\n",
					d.ID, d.Title, strings.Join(d.Authors, ", "), d.Kind, d.UserBookID, d.Status, d.Percent, d.FilePath, d.URL, d.NotePath)
				return nil
			})
		},
	}
	show.Flags().StringVar(&documentID, "id", "", "document id")

	reindex := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the SQLite projection from document notes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*dataDir, func(app *bootstrap.App) error {
				if err := app.LibraryCLI.Reindex(context.Background()); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "reindex completed")
				return nil
			})
		},
	}

	catalog.AddCommand(fileCmd, urlCmd, list, show, reindex)
	return catalog
}

func newProgressCmd(dataDir *string) *cobra.Command {
	progress := &cobra.Command{Use: "progress", Short: "Reading progress"}

	var showID string
	show := &cobra.Command{
		Use:   "show --document <id>",
		Short: "Show stored position and progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(showID) == "" {
				return fmt.Errorf("--document is required")
			}
			return withApp(*dataDir, func(app *bootstrap.App) error {
				pos, err := app.ReaderCLI.Position(context.Background(), showID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "document: %s\n", pos.DocumentID)
				_, _ = fmt.Fprintf(out, "scroll top: %s\n", optional(pos.ScrollTop, "%.0f"))
				_, _ = fmt.Fprintf(out, "stored progress: %s\n", optional(pos.StoredProgressPct, "%.0f%%"))
				if pos.BackendProgress != nil {
					_, _ = fmt.Fprintf(out, "backend progress: %.0f%% (book %d)\n", pos.BackendProgress.ProgressPct, pos.BackendProgress.UserBookID)
				} else {
					_, _ = fmt.Fprintln(out, "backend progress: -")
				}
				return nil
			})
		},
	}
	show.Flags().StringVar(&showID, "document", "", "document id")

	var finishID string
	finish := &cobra.Command{
		Use:   "finish --document <id>",
		Short: "Mark a document as finished",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(finishID) == "" {
				return fmt.Errorf("--document is required")
			}
			return withApp(*dataDir, func(app *bootstrap.App) error {
				out, err := app.ReaderCLI.Finish(context.Background(), finishID)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "finished %s book=%d progress=%d%%\n", out.DocumentID, out.UserBookID, out.ProgressPct)
				return nil
			})
		},
	}
	finish.Flags().StringVar(&finishID, "document", "", "document id")

	progress.AddCommand(show, finish)
	return progress
}

func newRelayCmd(dataDir *string) *cobra.Command {
	relay := &cobra.Command{Use: "relay", Short: "Scroll telemetry relay"}

	var documentID string
	var scrollTop, scrollHeight, clientHeight, pct float64
	post := &cobra.Command{
		Use:   "post --document <id>",
		Short: "Post a pdfScroll message to the running reader",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(documentID) == "" {
				return fmt.Errorf("--document is required")
			}
			cfg, err := config.New(*dataDir)
			if err != nil {
				return err
			}
			msg := readerdto.TelemetryMessage{
				Type:         "pdfScroll",
				ScrollTop:    scrollTop,
				ScrollHeight: scrollHeight,
				ClientHeight: clientHeight,
			}
			if cmd.Flags().Changed("progress") {
				msg.Progress = &pct
			}
			result, err := readerinadapter.NewRelayClient().PostScroll(context.Background(), cfg.SocketPath, readerdto.TelemetryEnvelope{DocumentID: documentID, Message: msg})
			if err != nil {
				return fmt.Errorf("post scroll: %w", err)
			}
			if result.Delivered {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "delivered")
			} else {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no reader is showing this document")
			}
			return nil
		},
	}
	post.Flags().StringVar(&documentID, "document", "", "document id")
	post.Flags().Float64Var(&scrollTop, "scroll-top", 0, "scroll offset")
	post.Flags().Float64Var(&scrollHeight, "scroll-height", 0, "total scrollable height")
	post.Flags().Float64Var(&clientHeight, "client-height", 0, "visible height")
	post.Flags().Float64Var(&pct, "progress", 0, "explicit progress percent (overrides geometry)")

	relay.AddCommand(post)
	return relay
}

func newViewerCmd(dataDir *string) *cobra.Command {
	viewer := &cobra.Command{Use: "viewer", Short: "Basic viewer plugin"}
	viewer.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Start the configured viewer plugin and print its metadata",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*dataDir, func(app *bootstrap.App) error {
				if app.Plugin == nil {
					return fmt.Errorf("viewer_plugin is not configured")
				}
				meta, err := app.Plugin.Check(cmd.Context())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s@%s telemetry=%t binary=%s\n", meta.Name, meta.Version, meta.Telemetry, app.Config.ViewerPlugin)
				return nil
			})
		},
	})
	return viewer
}

func optional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}
