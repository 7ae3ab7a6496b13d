package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cthulhu-news/internal/news"
	"cthulhu-news/internal/reactions"
	"cthulhu-news/internal/storage"
)

type IngestOptions struct {
	*RootOptions
	OPML string
}

func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest [feed-url...]",
		Short: "Run one ingestion pass into the server database",
		Long: `Fetch the configured feeds, plus any given on the command line or in an
OPML file, and store the new articles in the server database.

Example:
  newsctl ingest --opml subscriptions.opml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.OPML, "opml", "", "OPML subscription list (defaults to news.opml)")

	return cmd
}

type ingestResult struct {
	Feeds    int `json:"feeds"`
	Inserted int `json:"inserted"`
}

func (r ingestResult) String() string {
	return fmt.Sprintf("%d feeds read, %d new articles", r.Feeds, r.Inserted)
}

func runIngest(opts *IngestOptions, extra []string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	cfg := opts.Config

	opml := opts.OPML
	if opml == "" {
		opml = cfg.News.OPML
	}
	feeds, err := news.FeedList(append(append([]string{}, cfg.News.Feeds...), extra...), opml)
	if err != nil {
		return exitErrorf(ExitCommandError, "read feeds: %w", err)
	}
	if len(feeds) == 0 {
		return exitErrorf(ExitCommandError, "no feeds configured")
	}

	db, err := storage.InitDatabase(ctx, cfg.Database)
	if err != nil {
		return exitErrorf(ExitCommandError, "open database: %w", err)
	}
	defer db.Close()

	svc, err := reactions.NewService(ctx, db, cfg.Database.Driver, nil, opts.Logger)
	if err != nil {
		return exitErrorf(ExitCommandError, "prepare schema: %w", err)
	}

	ingestor := news.NewIngestor(news.NewFetcher(cfg.News.FetchTimeout, opts.Logger), svc, feeds, cfg.News.MaxArticles, opts.Logger)
	n, err := ingestor.Once(ctx)
	if err != nil {
		return exitErrorf(ExitFailure, "ingest: %w", err)
	}
	return opts.formatter(cmd).Success(ingestResult{Feeds: len(feeds), Inserted: n})
}
