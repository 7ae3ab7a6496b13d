// Package reactions keeps the server side of article reactions: vote
// counters, comments and the articles they hang off.
package reactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cthulhu-news/internal/storage"
)

// Service is safe for concurrent use; every operation runs in its own
// statement or transaction.
type Service struct {
	db        *sql.DB
	driver    string
	pseudonym func(string) string
	logger    *zap.Logger
	now       func() time.Time
}

// NewService applies the schema and returns the service. pseudonym maps a
// visitor id to the value stored in the voters table; nil disables voter
// tracking.
func NewService(ctx context.Context, db *sql.DB, driver string, pseudonym func(string) string, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := applySchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return &Service{db: db, driver: driver, pseudonym: pseudonym, logger: logger, now: time.Now}, nil
}

func (s *Service) q(query string) string { return storage.Rebind(s.driver, query) }

// React counts one vote on an article and returns the new count for that
// vote kind. When visitorID is set and the visitor already voted on the
// article, the current count is returned unchanged.
func (s *Service) React(ctx context.Context, articleID int64, vote, visitorID string) (count int, retErr error) {
	if !ValidVote(vote) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVote, vote)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if err := s.ensureArticle(ctx, tx, articleID); err != nil {
		return 0, err
	}

	counted := true
	if visitorID != "" && s.pseudonym != nil {
		res, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO voters (article_id, voter, vote) VALUES (?, ?, ?) ON CONFLICT (article_id, voter) DO NOTHING`),
			articleID, s.pseudonym(visitorID), vote)
		if err != nil {
			return 0, fmt.Errorf("record voter: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("record voter: %w", err)
		}
		counted = n > 0
	}

	if counted {
		if _, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO votes (article_id, vote, count) VALUES (?, ?, 1)
			ON CONFLICT (article_id, vote) DO UPDATE SET count = votes.count + 1`),
			articleID, vote); err != nil {
			return 0, fmt.Errorf("increment vote: %w", err)
		}
	}

	var n int64
	err = tx.QueryRowContext(ctx, s.q(`SELECT count FROM votes WHERE article_id = ? AND vote = ?`), articleID, vote).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		n = 0
	} else if err != nil {
		return 0, fmt.Errorf("read vote count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	if counted {
		s.logger.Info("reacted to the article",
			zap.Int64("article_id", articleID),
			zap.String("vote", vote),
			zap.Int64("count", n))
	} else {
		s.logger.Info("repeated reaction ignored",
			zap.Int64("article_id", articleID),
			zap.String("vote", vote))
	}
	return int(n), nil
}

func (s *Service) ensureArticle(ctx context.Context, tx *sql.Tx, articleID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx, s.q(`SELECT id FROM articles WHERE id = ?`), articleID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrArticleNotFound, articleID)
	}
	if err != nil {
		return fmt.Errorf("lookup article: %w", err)
	}
	return nil
}

// Votes returns the counters of one article.
func (s *Service) Votes(ctx context.Context, articleID int64) (Votes, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT vote, count FROM votes WHERE article_id = ?`), articleID)
	if err != nil {
		return nil, fmt.Errorf("select votes: %w", err)
	}
	defer rows.Close()

	votes := newVotes()
	for rows.Next() {
		var vote string
		var n int64
		if err := rows.Scan(&vote, &n); err != nil {
			return nil, fmt.Errorf("scan votes: %w", err)
		}
		votes[vote] = int(n)
	}
	return votes, rows.Err()
}

// SubmitComment stores a comment. An empty author or body is ignored and
// yields a nil comment.
func (s *Service) SubmitComment(ctx context.Context, articleID int64, author, body string) (*Comment, error) {
	author = strings.TrimSpace(author)
	body = strings.TrimSpace(body)
	if author == "" || body == "" {
		return nil, nil
	}
	if _, err := s.Article(ctx, articleID); err != nil {
		return nil, err
	}

	c := &Comment{
		ID:        uuid.New().String(),
		ArticleID: articleID,
		Author:    author,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO comments (id, article_id, author, body, created_at, hidden, accepted) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.ArticleID, c.Author, c.Body, c.CreatedAt.UnixMilli(), c.Hidden, c.Accepted)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	s.logger.Info("commented the article", zap.Int64("article_id", articleID), zap.String("comment_id", c.ID))
	return c, nil
}

// Comments returns the visible comments of an article, oldest first.
func (s *Service) Comments(ctx context.Context, articleID int64) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT id, article_id, author, body, created_at, hidden, accepted
		FROM comments WHERE article_id = ? AND hidden = FALSE ORDER BY created_at ASC, id ASC`),
		articleID)
	if err != nil {
		return nil, fmt.Errorf("select comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		var created int64
		if err := rows.Scan(&c.ID, &c.ArticleID, &c.Author, &c.Body, &created, &c.Hidden, &c.Accepted); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.CreatedAt = time.UnixMilli(created).UTC()
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// Article loads one article with its votes.
func (s *Service) Article(ctx context.Context, articleID int64) (*Article, error) {
	var a Article
	var published int64
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, title, link, source, summary, published_at FROM articles WHERE id = ?`), articleID,
	).Scan(&a.ID, &a.Title, &a.Link, &a.Source, &a.Summary, &published)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrArticleNotFound, articleID)
	}
	if err != nil {
		return nil, fmt.Errorf("select article: %w", err)
	}
	a.PublishedAt = time.Unix(published, 0).UTC()
	if a.Votes, err = s.Votes(ctx, a.ID); err != nil {
		return nil, err
	}
	return &a, nil
}

// Articles lists the newest articles with their votes.
func (s *Service) Articles(ctx context.Context, limit int) ([]Article, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT id, title, link, source, summary, published_at FROM articles
		ORDER BY published_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("select articles: %w", err)
	}
	var articles []Article
	for rows.Next() {
		var a Article
		var published int64
		if err := rows.Scan(&a.ID, &a.Title, &a.Link, &a.Source, &a.Summary, &published); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.PublishedAt = time.Unix(published, 0).UTC()
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range articles {
		if articles[i].Votes, err = s.Votes(ctx, articles[i].ID); err != nil {
			return nil, err
		}
	}
	return articles, nil
}

// UpsertArticles inserts articles whose link is not stored yet and returns
// how many were inserted.
func (s *Service) UpsertArticles(ctx context.Context, articles []Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	inserted := 0
	for _, a := range articles {
		if a.Link == "" {
			continue
		}
		res, err := s.db.ExecContext(ctx,
			s.q(`INSERT INTO articles (title, link, source, summary, published_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (link) DO NOTHING`),
			a.Title, a.Link, a.Source, a.Summary, a.PublishedAt.Unix())
		if err != nil {
			return inserted, fmt.Errorf("insert article %s: %w", a.Link, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	s.logger.Info("inserted articles", zap.Int("n", inserted), zap.Int("offered", len(articles)))
	return inserted, nil
}
