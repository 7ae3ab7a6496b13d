package api

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"cthulhu-news/internal/reactions"
)

//go:embed templates/*.html
var templateFS embed.FS

type voteData struct {
	ArticleID int64
	Vote      string
	Count     int
}

type commentsData struct {
	ArticleID     int64
	Comments      []reactions.Comment
	JustSubmitted bool
}

type indexData struct {
	Articles []reactions.Article
}

type articleData struct {
	Article  *reactions.Article
	Comments commentsData
}

var funcs = template.FuncMap{
	"mask": reactions.MaskAuthor,
	"iso":  func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	"stamp": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("2006-01-02 15:04")
	},
	"voteView": func(id int64, vote string, votes reactions.Votes) voteData {
		return voteData{ArticleID: id, Vote: vote, Count: votes[vote]}
	},
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

func render(tmpl *template.Template, name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
