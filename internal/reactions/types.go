package reactions

import (
	"errors"
	"strings"
	"time"
)

// Vote kinds accepted by React.
const (
	VoteTruth = "truth"
	VoteLie   = "lie"
)

var validVotes = map[string]bool{
	VoteTruth: true,
	VoteLie:   true,
}

var (
	ErrArticleNotFound = errors.New("article not found")
	ErrInvalidVote     = errors.New("invalid vote")
)

// ValidVote reports whether vote is one of the accepted kinds.
func ValidVote(vote string) bool { return validVotes[vote] }

// Votes maps vote kind to count; every kind is present.
type Votes map[string]int

func newVotes() Votes {
	return Votes{VoteTruth: 0, VoteLie: 0}
}

type Article struct {
	ID          int64
	Title       string
	Link        string
	Source      string
	Summary     string
	PublishedAt time.Time
	Votes       Votes
}

type Comment struct {
	ID        string
	ArticleID int64
	Author    string
	Body      string
	CreatedAt time.Time
	Hidden    bool
	Accepted  bool
}

// MaskAuthor blacks out every character of name except spaces.
func MaskAuthor(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == ' ' {
			b.WriteRune(' ')
		} else {
			b.WriteRune('█')
		}
	}
	return b.String()
}
