package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dgallion1/threadpost/internal/config"
	"github.com/dgallion1/threadpost/internal/document"
	"github.com/dgallion1/threadpost/internal/fakeinstance"
	"github.com/dgallion1/threadpost/internal/frontmatter"
	"github.com/dgallion1/threadpost/internal/mastodon"
	"github.com/dgallion1/threadpost/internal/parser"
	"github.com/dgallion1/threadpost/internal/publish"
	"github.com/dgallion1/threadpost/internal/render"
	"github.com/dgallion1/threadpost/internal/segment"
)

const dryRunToken = "dry-run"

type options struct {
	envFile string
	dryRun  bool
	verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "threadpost <file>",
		Short: "Publish a long document as a numbered reply thread",
		Long: `threadpost splits a document at sentence and paragraph boundaries into
posts that fit the instance's character limit, numbers them " (i/N)" and
publishes them as a reply chain. If any post fails, the posts already
created are deleted.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "file of KEY=value settings loaded before the environment is read")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "publish to an in-process instance and print the thread")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	return cmd
}

func run(ctx context.Context, opts options, path string, stdout, stderr io.Writer) error {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", opts.envFile, err)
		}
	}

	cfg := config.Load()
	level := cfg.LogLevel
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	validate := cfg.Validate
	if opts.dryRun {
		validate = cfg.ValidateSegmenting
	}
	if err := validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return err
	}

	doc, err := document.Load(path, parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext})
	var decodeErr *frontmatter.DecodeError
	switch {
	case errors.As(err, &decodeErr):
		log.Warn("ignoring front matter", "file", path, "format", decodeErr.Format, "error", decodeErr.Err)
	case err != nil:
		log.Error("cannot read document", "file", path, "error", err)
		return err
	}
	if doc.Text == "" {
		err := fmt.Errorf("%s: document is empty", path)
		log.Error("nothing to publish", "file", path)
		return err
	}

	limit, err := cfg.EffectiveLimit(doc.Options.ContentWarning)
	if err != nil {
		log.Error("invalid content warning", "error", err)
		return err
	}

	renderer, err := render.ForFormat(cfg.RenderFormat)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		return err
	}
	measure := render.Measure(renderer)
	splitter := segment.NewSplitter(segment.Config{EstimateFactor: cfg.EstimateFactor, Measure: measure})

	segments, err := splitter.Split(doc.Text, limit)
	if err != nil {
		log.Error("segmentation failed", "error", err)
		return err
	}
	if err := segment.Validate(segments, limit, measure); err != nil {
		log.Error("document cannot be split within the character limit", "error", err)
		return err
	}
	log.Info("document segmented", "file", path, "posts", len(segments), "limit", limit)

	texts := make([]string, len(segments))
	for i, seg := range segments {
		out, err := renderer.Render(seg.Text())
		if err != nil {
			log.Error("render failed", "post", seg.Index, "error", err)
			return err
		}
		texts[i] = out
	}

	creds := mastodon.Credentials{
		BaseURL:      cfg.InstanceURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AccessToken:  cfg.AccessToken,
	}
	if opts.dryRun {
		inst := fakeinstance.New(dryRunToken, log)
		inst.MaxCharacters = cfg.CharacterLimit
		baseURL, stopInstance, err := fakeinstance.Start(inst)
		if err != nil {
			log.Error("cannot start dry-run instance", "error", err)
			return err
		}
		defer stopInstance()
		creds = mastodon.Credentials{BaseURL: baseURL, ClientID: dryRunToken, AccessToken: dryRunToken}
	}

	client := mastodon.NewClient(creds, mastodon.WithTimeout(cfg.HTTPTimeout))
	defer client.Close()
	log.Debug("publishing", "instance", creds.BaseURL, "client_id", client.ClientID())

	pub := publish.New(client, publish.Config{
		Language:    cfg.Language,
		ContentType: renderer.ContentType(),
	}, log)
	statuses, err := pub.Publish(ctx, texts, doc.Options)
	if err != nil {
		log.Error("publish failed", "error", err)
		return err
	}

	if opts.dryRun {
		printThread(stdout, statuses)
		return nil
	}
	root := statuses[0].URL
	if root == "" {
		root = statuses[0].URI
	}
	fmt.Fprintln(stdout, root)
	return nil
}

func printThread(w io.Writer, statuses []mastodon.Status) {
	for i, st := range statuses {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "--- %s [%s]", st.ID, st.Visibility)
		if st.SpoilerText != "" {
			fmt.Fprintf(w, " CW: %s", st.SpoilerText)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.Content)
	}
}
