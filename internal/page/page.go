// Package page exposes a rendered news page as a dedup.Surface: controls
// are found by data attribute and fragments are swapped by element id.
package page

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cthulhu-news/internal/dedup"
)

// Selectors and attributes used by the news templates.
const (
	LikeButtonAttr  = "data-like-btn"
	CommentFormAttr = "data-comment-form"
	ThanksPrefix    = "thanks-message-"
)

// Document wraps a parsed page.
type Document struct {
	doc *goquery.Document
}

func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return &Document{doc: doc}, nil
}

func ParseString(html string) (*Document, error) {
	return Parse(strings.NewReader(html))
}

// HTML renders the current state of the document.
func (d *Document) HTML() (string, error) {
	return d.doc.Html()
}

// Find exposes goquery selection for callers that inspect the page.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// ReplaceFragment swaps the outer HTML of the element with the given id.
func (d *Document) ReplaceFragment(elementID, fragment string) error {
	sel := d.byID(elementID)
	if sel.Length() == 0 {
		return fmt.Errorf("element %q not found", elementID)
	}
	sel.ReplaceWithHtml(fragment)
	return nil
}

func (d *Document) byID(id string) *goquery.Selection {
	return d.doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("id")
		return v == id
	}).First()
}

// Reactions returns the surface over the like/react buttons.
func (d *Document) Reactions() *ReactionSurface {
	return &ReactionSurface{doc: d}
}

// Comments returns the surface over the comment forms.
func (d *Document) Comments() *CommentSurface {
	return &CommentSurface{doc: d}
}

// ReactionSurface binds every [data-like-btn] element; disabling sets the
// disabled attribute.
type ReactionSurface struct {
	doc *Document
}

func (s *ReactionSurface) Controls() []dedup.Control {
	var controls []dedup.Control
	s.doc.doc.Find("[" + LikeButtonAttr + "]").Each(func(_ int, sel *goquery.Selection) {
		key, _ := sel.Attr(LikeButtonAttr)
		controls = append(controls, &button{sel: sel, key: key})
	})
	return controls
}

func (s *ReactionSurface) ReplaceFragment(elementID, fragment string) error {
	return s.doc.ReplaceFragment(elementID, fragment)
}

type button struct {
	sel *goquery.Selection
	key string
}

func (b *button) Key() string { return b.key }

func (b *button) SetDisabled(disabled bool) {
	if disabled {
		b.sel.SetAttr("disabled", "disabled")
	} else {
		b.sel.RemoveAttr("disabled")
	}
}

// CommentSurface binds every [data-comment-form]. A disabled form has its
// submit button disabled, is hidden, and its thanks message is shown.
type CommentSurface struct {
	doc *Document
}

func (s *CommentSurface) Controls() []dedup.Control {
	var controls []dedup.Control
	s.doc.doc.Find("[" + CommentFormAttr + "]").Each(func(_ int, sel *goquery.Selection) {
		key, _ := sel.Attr(CommentFormAttr)
		controls = append(controls, &commentForm{doc: s.doc, sel: sel, key: key})
	})
	return controls
}

func (s *CommentSurface) ReplaceFragment(elementID, fragment string) error {
	return s.doc.ReplaceFragment(elementID, fragment)
}

type commentForm struct {
	doc *Document
	sel *goquery.Selection
	key string
}

func (f *commentForm) Key() string { return f.key }

// SetDisabled only acts on disable; a submitted form stays closed.
func (f *commentForm) SetDisabled(disabled bool) {
	if !disabled {
		return
	}
	f.sel.Find(`button[type="submit"]`).SetAttr("disabled", "disabled")
	setDisplay(f.sel, "none")
	if thanks := f.doc.byID(ThanksPrefix + f.key); thanks.Length() > 0 {
		setDisplay(thanks, "block")
	}
}

// setDisplay rewrites the display property of an inline style attribute.
func setDisplay(sel *goquery.Selection, value string) {
	style, _ := sel.Attr("style")
	var kept []string
	for _, decl := range strings.Split(style, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		if name, _, ok := strings.Cut(decl, ":"); ok && strings.TrimSpace(name) == "display" {
			continue
		}
		kept = append(kept, decl)
	}
	kept = append(kept, "display: "+value)
	sel.SetAttr("style", strings.Join(kept, "; "))
}

// Display returns the inline display value of the element with the given id.
func (d *Document) Display(elementID string) string {
	style, _ := d.byID(elementID).Attr("style")
	for _, decl := range strings.Split(style, ";") {
		if name, value, ok := strings.Cut(decl, ":"); ok && strings.TrimSpace(name) == "display" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
