package news

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

type Head struct {
	Title string `xml:"title"`
}

type Body struct {
	Outlines []Outline `xml:"outline"`
}

type Outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr"`
	Type     string    `xml:"type,attr"`
	XMLURL   string    `xml:"xmlUrl,attr"`
	HTMLURL  string    `xml:"htmlUrl,attr"`
	Outlines []Outline `xml:"outline"`
}

// ParseOPML returns the feed URLs of an OPML subscription list, including
// nested folders, without duplicates.
func ParseOPML(r io.Reader) ([]string, error) {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode opml: %w", err)
	}
	seen := map[string]bool{}
	var feeds []string
	for _, outline := range doc.Body.Outlines {
		collectFeedsRecursive(outline, seen, &feeds)
	}
	return feeds, nil
}

func collectFeedsRecursive(outline Outline, seen map[string]bool, feeds *[]string) {
	if outline.XMLURL != "" && !seen[outline.XMLURL] {
		seen[outline.XMLURL] = true
		*feeds = append(*feeds, outline.XMLURL)
	}
	for _, child := range outline.Outlines {
		collectFeedsRecursive(child, seen, feeds)
	}
}

// FeedList merges the configured feed URLs with the ones listed in the OPML
// file at opmlPath, if any. Order is kept and duplicates are dropped.
func FeedList(feeds []string, opmlPath string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(urls []string) {
		for _, u := range urls {
			if u != "" && !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	add(feeds)
	if opmlPath == "" {
		return out, nil
	}
	f, err := os.Open(opmlPath)
	if err != nil {
		return nil, fmt.Errorf("open opml: %w", err)
	}
	defer f.Close()
	fromOPML, err := ParseOPML(f)
	if err != nil {
		return nil, err
	}
	add(fromOPML)
	return out, nil
}
