package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cthulhu-news/internal/dedup"
	"cthulhu-news/internal/page"
)

type CommentOptions struct {
	*RootOptions
	Author string
	Text   string
}

func NewCommentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CommentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "comment <article-id>",
		Short: "Comment on an article once",
		Long: `Post a comment on an article. Each article takes one comment per
visitor; later runs for the same article do nothing.

Example:
  newsctl comment 42 --author "Abdul Alhazred" --text "That is not dead"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComment(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Author, "author", "", "author name (shown masked)")
	cmd.Flags().StringVar(&opts.Text, "text", "", "comment text")
	_ = cmd.MarkFlagRequired("author")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

type commentResult struct {
	Article  string `json:"article"`
	Outcome  string `json:"outcome"`
	Comments int    `json:"comments"`
	Thanks   bool   `json:"thanks_shown"`
}

func (r commentResult) String() string {
	switch r.Outcome {
	case dedup.OutcomeSkipped.String():
		return fmt.Sprintf("article %s: already commented, nothing sent", r.Article)
	case dedup.OutcomeEffectFailed.String():
		return fmt.Sprintf("article %s: recorded, but the comment was not delivered", r.Article)
	default:
		return fmt.Sprintf("article %s: comment sent, %d comments visible", r.Article, r.Comments)
	}
}

func runComment(opts *CommentOptions, articleID string, cmd *cobra.Command) error {
	if strings.TrimSpace(opts.Author) == "" || strings.TrimSpace(opts.Text) == "" {
		return exitErrorf(ExitCommandError, "author and text must not be empty")
	}
	ctx := commandContext(cmd)

	sess, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	doc, err := sess.loadPage(ctx, "/article/"+articleID)
	if err != nil {
		return err
	}

	// The comment form posts itself: the article is claimed first, then the
	// comment goes out with no guard around it.
	d := sess.deduplicator(dedup.CommentOptions(nil, nil), doc.Comments(), nil)
	if err := d.Initialize(ctx); err != nil {
		return exitErrorf(ExitCommandError, "load profile: %w", err)
	}

	first, err := d.Claim(ctx, articleID)
	if err != nil {
		return exitErrorf(ExitFailure, "record comment: %w", err)
	}
	outcome := dedup.OutcomeSkipped
	if first {
		outcome = dedup.OutcomePerformed
		fragment, err := sess.client.CommentEffect(d.UserID(), opts.Author, opts.Text)(ctx, "", articleID)
		switch {
		case err != nil:
			sess.opts.Logger.Error("comment not delivered", zap.String("article", articleID), zap.Error(err))
			outcome = dedup.OutcomeEffectFailed
		case fragment != "":
			if err := doc.ReplaceFragment("comments-"+articleID, fragment); err != nil {
				sess.opts.Logger.Warn("replace comments", zap.String("article", articleID), zap.Error(err))
			}
			d.Refresh()
		}
	}

	result := commentResult{
		Article:  articleID,
		Outcome:  outcome.String(),
		Comments: doc.Find(".comment").Length(),
		Thanks:   doc.Display(page.ThanksPrefix+articleID) == "block",
	}
	if err := sess.out.Success(result); err != nil {
		return err
	}
	if outcome == dedup.OutcomeEffectFailed {
		return exitErrorf(ExitFailure, "comment not delivered")
	}
	return nil
}
