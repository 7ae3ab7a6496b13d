package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cthulhu-news/internal/dedup"
	"cthulhu-news/internal/reactions"
)

type ReactOptions struct {
	*RootOptions
	Vote string
}

func NewReactCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReactOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "react <article-id>",
		Short: "React to an article once",
		Long: `React to an article with a truth or lie vote.

The article is recorded in the local profile before the vote is sent, so a
second run for the same article does nothing.

Example:
  newsctl react 42 --vote lie`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReact(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Vote, "vote", reactions.VoteTruth, "vote kind (truth|lie)")

	return cmd
}

type reactResult struct {
	Article  string `json:"article"`
	Vote     string `json:"vote"`
	Outcome  string `json:"outcome"`
	Count    string `json:"count,omitempty"`
	Disabled bool   `json:"disabled"`
}

func (r reactResult) String() string {
	switch r.Outcome {
	case dedup.OutcomeSkipped.String():
		return fmt.Sprintf("article %s: already reacted, nothing sent", r.Article)
	case dedup.OutcomeEffectFailed.String():
		return fmt.Sprintf("article %s: recorded, but the %s vote was not delivered", r.Article, r.Vote)
	default:
		return fmt.Sprintf("article %s: %s vote sent, count is now %s", r.Article, r.Vote, r.Count)
	}
}

func runReact(opts *ReactOptions, articleID string, cmd *cobra.Command) error {
	if !reactions.ValidVote(opts.Vote) {
		return exitErrorf(ExitCommandError, "invalid vote %q: must be truth or lie", opts.Vote)
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

	d := sess.deduplicator(dedup.ReactionOptions(nil, nil), doc.Reactions(), sess.client.ReactEffect)
	if err := d.Initialize(ctx); err != nil {
		return exitErrorf(ExitCommandError, "load profile: %w", err)
	}

	counterID := "votes-" + opts.Vote + "-" + articleID
	outcome, err := d.PerformGuardedAction(ctx, articleID, dedup.Payload{Action: opts.Vote, ElementID: counterID})
	if err != nil {
		return exitErrorf(ExitFailure, "record reaction: %w", err)
	}

	_, disabled := doc.Find(`[data-like-btn="` + articleID + `"]`).Attr("disabled")
	result := reactResult{
		Article:  articleID,
		Vote:     opts.Vote,
		Outcome:  outcome.String(),
		Count:    doc.Find("#" + counterID).Text(),
		Disabled: disabled,
	}
	if err := sess.out.Success(result); err != nil {
		return err
	}
	if outcome == dedup.OutcomeEffectFailed {
		return exitErrorf(ExitFailure, "reaction not delivered")
	}
	return nil
}
