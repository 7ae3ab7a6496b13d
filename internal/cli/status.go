package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cthulhu-news/internal/dedup"
)

func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status [article-id...]",
		Short: "Show the visitor profile",
		Long: `Show the visitor id and the articles already reacted to or commented on.
With article ids, also report whether each of them is still open.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, args, cmd)
		},
	}
}

type statusResult struct {
	UserID    string          `json:"user_id"`
	Reacted   []string        `json:"reacted"`
	Commented []string        `json:"commented"`
	Articles  []articleStatus `json:"articles,omitempty"`
}

type articleStatus struct {
	ID        string `json:"id"`
	Reacted   bool   `json:"reacted"`
	Commented bool   `json:"commented"`
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (r statusResult) String() string {
	list := func(keys []string) string {
		if len(keys) == 0 {
			return "-"
		}
		return strings.Join(keys, ", ")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "user:      %s\nreacted:   %s\ncommented: %s", r.UserID, list(r.Reacted), list(r.Commented))
	for _, a := range r.Articles {
		fmt.Fprintf(&b, "\narticle %s: reacted %s, commented %s", a.ID, yesNo(a.Reacted), yesNo(a.Commented))
	}
	return b.String()
}

func runStatus(opts *RootOptions, articleIDs []string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	sess, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	reacted := sess.deduplicator(dedup.ReactionOptions(nil, nil), nil, nil)
	if err := reacted.Initialize(ctx); err != nil {
		return exitErrorf(ExitCommandError, "load profile: %w", err)
	}
	commented := sess.deduplicator(dedup.CommentOptions(nil, nil), nil, nil)
	if err := commented.Initialize(ctx); err != nil {
		return exitErrorf(ExitCommandError, "load profile: %w", err)
	}

	result := statusResult{
		UserID:    reacted.UserID(),
		Reacted:   reacted.Records(),
		Commented: commented.Records(),
	}
	for _, id := range articleIDs {
		result.Articles = append(result.Articles, articleStatus{
			ID:        id,
			Reacted:   reacted.Has(id),
			Commented: commented.Has(id),
		})
	}
	return sess.out.Success(result)
}
