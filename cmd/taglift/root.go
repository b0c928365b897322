package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ramkansal/taglift/internal/agent"
	"github.com/ramkansal/taglift/internal/contact"
	"github.com/ramkansal/taglift/internal/extractor"
	"github.com/ramkansal/taglift/internal/output"
	"github.com/ramkansal/taglift/internal/page"
	"github.com/ramkansal/taglift/internal/scrape"
	"github.com/ramkansal/taglift/internal/server"
	"github.com/ramkansal/taglift/pkg/plugin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Shared CLI flags.
var (
	noColor bool
	quiet   bool
)

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "taglift",
		Short: "taglift - profile extraction with tags and delivery",
		Long: `taglift extracts profile details from a live browser tab, attaches
your tags and saves the record to your profile API.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !quiet && cmd.Name() != "version" && cmd.Name() != "completion" {
				printBanner()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress the banner")

	rootCmd.AddCommand(scrapeCmd(a))
	rootCmd.AddCommand(serveCmd(a))
	rootCmd.AddCommand(extractCmd(a))
	rootCmd.AddCommand(authCmd(a))
	rootCmd.AddCommand(tagsCmd(a))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "taglift v%s\n", version)
		},
	}
}

// ---------- scrape ----------

func scrapeCmd(a *app) *cobra.Command {
	var (
		tagSpecs  []string
		immediate bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "scrape <profile-url>",
		Short: "Open a profile, extract it and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, err := agent.ParseTags(tagSpecs)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			browser, live, err := a.openBrowser(ctx, args[0])
			if err != nil {
				return err
			}
			defer browser.Close()

			p, err := a.buildPipeline(live, nil, io.Discard)
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.session.Extract(ctx, scrape.Request{Tags: tags, Immediate: immediate})
			if err != nil {
				return err
			}
			// Let a queued delivery finish before the browser goes away.
			p.Close()

			return printRecord(cmd.OutOrStdout(), res.Record, asJSON)
		},
	}

	cmd.Flags().StringArrayVarP(&tagSpecs, "tag", "t", nil, `tag as "name" or "name:#color" (repeatable, max 10)`)
	cmd.Flags().BoolVar(&immediate, "immediate", false, "save in the background without the duplicate check")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the record as JSON")
	return cmd
}

// ---------- serve ----------

func serveCmd(a *app) *cobra.Command {
	var (
		startURL string
		addr     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Drive a browser tab and accept extraction requests over HTTP and websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.ListenAddr
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			trigger, err := agent.NewTrigger(a.triggerConfig())
			if err != nil {
				return err
			}

			browser, live, err := a.openBrowser(ctx, startURL)
			if err != nil {
				return err
			}
			defer browser.Close()

			hub := server.NewHub(a.logger)
			p, err := a.buildPipeline(live, hub, io.Discard)
			if err != nil {
				return err
			}
			defer p.Close()

			router := agent.NewRouter(p.session, p.store, p.session.Notifier(), a.logger)
			srv := server.New(router, hub, a.logger).WithTrigger(trigger, live)

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s %s\n", clr("cyan", "Listening:"), addr)
			fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n\n", clr("dim", "Session:"), p.session.ID())
			return srv.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&startURL, "url", "https://www.linkedin.com/feed/", "page to open in the browser")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from TAGLIFT_LISTEN_ADDR)")
	return cmd
}

// ---------- extract ----------

func extractCmd(a *app) *cobra.Command {
	var (
		pageURL  string
		tagSpecs []string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "extract <saved-page.html>",
		Short: "Extract a profile from a saved HTML page without delivering it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, err := agent.ParseTags(tagSpecs)
			if err != nil {
				return err
			}
			if pageURL == "" {
				abs, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				pageURL = "file://" + filepath.ToSlash(abs)
			}

			static, err := page.LoadFile(args[0], pageURL)
			if err != nil {
				return err
			}
			doc, err := static.Document(cmd.Context())
			if err != nil {
				return err
			}

			rec := plugin.NewProfileRecord(pageURL, "offline", time.Now())
			extractor.NewSet(a.logger).ExtractAll(doc).ApplyTo(rec)
			c := contact.FromDocument(doc)
			rec.Email, rec.Phone = c.Email, c.Phone
			rec.Tags = tags

			if !rec.Valid() {
				a.logger.Warn("Insufficient profile data", zap.String("file", args[0]))
			}
			return printRecord(cmd.OutOrStdout(), rec, asJSON)
		},
	}

	cmd.Flags().StringVar(&pageURL, "url", "", "profile URL the page was saved from")
	cmd.Flags().StringArrayVarP(&tagSpecs, "tag", "t", nil, `tag as "name" or "name:#color"`)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the record as JSON")
	return cmd
}

func printRecord(w io.Writer, rec *plugin.ProfileRecord, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	_, err := io.WriteString(w, output.RenderRecord(rec))
	return err
}

// ---------- auth ----------

func authCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored username and token",
	}

	var username, token string
	set := &cobra.Command{
		Use:   "set",
		Short: "Store credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("TAGLIFT_TOKEN")
			}
			store, err := a.credentials()
			if err != nil {
				return err
			}
			router := agent.NewRouter(nil, store, nil, a.logger)
			resp := router.Handle(cmd.Context(), agent.Message{Action: agent.ActionSetAuthData, Username: username, Token: token})
			if !resp.Success {
				return fmt.Errorf("%s", resp.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s Logged in as %s\n", clr("green", "✓"), username)
			return nil
		},
	}
	set.Flags().StringVarP(&username, "username", "u", "", "account username")
	set.Flags().StringVar(&token, "token", "", "API token (default from TAGLIFT_TOKEN)")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show who is logged in",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := a.loggedIn(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  Logged in as %s\n", creds.Username)
			return nil
		},
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.credentials()
			if err != nil {
				return err
			}
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s Credentials cleared\n", clr("green", "✓"))
			return nil
		},
	}

	cmd.AddCommand(set, status, clear)
	return cmd
}

// ---------- tags ----------

func tagsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Manage saved tags on the server",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := a.loggedIn(cmd.Context())
			if err != nil {
				return err
			}
			tags, err := a.tagClient().ListTags(cmd.Context(), creds)
			if err != nil {
				return err
			}
			if len(tags) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "  No tags")
				return nil
			}
			for _, t := range tags {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-20s %s\n", t.Name, t.Color)
			}
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <name[:color]>",
		Short: "Save a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, err := agent.ParseTags(args)
			if err != nil {
				return err
			}
			creds, err := a.loggedIn(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.tagClient().CreateTag(cmd.Context(), creds, tags[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s Saved tag %s\n", clr("green", "✓"), tags[0].Name)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := a.loggedIn(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.tagClient().DeleteTag(cmd.Context(), creds, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s Deleted tag %s\n", clr("green", "✓"), args[0])
			return nil
		},
	}

	cmd.AddCommand(list, add, del)
	return cmd
}
