package reactions

import (
	"context"
	"database/sql"
	"fmt"

	"cthulhu-news/internal/config"
)

func schema(driver string) []string {
	articleID := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == config.DriverPostgres {
		articleID = "BIGSERIAL PRIMARY KEY"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS articles (
			id ` + articleID + `,
			title TEXT NOT NULL,
			link TEXT NOT NULL UNIQUE,
			source TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			published_at BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS votes (
			article_id BIGINT NOT NULL,
			vote TEXT NOT NULL,
			count BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (article_id, vote)
		)`,
		`CREATE TABLE IF NOT EXISTS voters (
			article_id BIGINT NOT NULL,
			voter TEXT NOT NULL,
			vote TEXT NOT NULL,
			PRIMARY KEY (article_id, voter)
		)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id TEXT PRIMARY KEY,
			article_id BIGINT NOT NULL,
			author TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			hidden BOOLEAN NOT NULL DEFAULT FALSE,
			accepted BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS comments_article_idx ON comments (article_id, created_at)`,
	}
}

func applySchema(ctx context.Context, db *sql.DB, driver string) error {
	for _, stmt := range schema(driver) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
