package repl

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
)

const docCacheCapacity = 256

// docStore is the bounded DocumentHandle cache backing parseHTML/parsePage.
// Grounded on the teacher's use of goquery for HTML scraping in
// internal/tools/builtin's web-fetch family; the LRU bound is what keeps a
// Task that never calls freeDoc from exhausting memory (SPEC_FULL.md §4.2).
type docStore struct {
	cache *lru.Cache[string, *goquery.Document]
	seq   int
}

func newDocStore() *docStore {
	c, _ := lru.New[string, *goquery.Document](docCacheCapacity)
	return &docStore{cache: c}
}

func (d *docStore) parse(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	d.seq++
	handle := docHandleID(d.seq)
	d.cache.Add(handle, doc)
	return handle, nil
}

func (d *docStore) free(handle string) {
	d.cache.Remove(handle)
}

func (d *docStore) get(handle string) (*goquery.Document, bool) {
	return d.cache.Get(handle)
}

func docHandleID(seq int) string {
	return "doc-" + itoa(seq)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// domNode is the plain record the host serializes DOM nodes into
// (spec.md §4.2 Serialization).
type domNode struct {
	Tag       string            `json:"tag"`
	ID        string            `json:"id,omitempty"`
	ClassName string            `json:"className,omitempty"`
	Text      string            `json:"text"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	InnerHTML string            `json:"innerHTML,omitempty"`
	Children  int               `json:"childCount,omitempty"`
}

func nodeFromSelection(s *goquery.Selection, includeInner bool) domNode {
	n := domNode{
		Tag:       goquery.NodeName(s),
		ID:        s.AttrOr("id", ""),
		ClassName: s.AttrOr("class", ""),
		Text:      capString(strings.TrimSpace(s.Text()), 500),
		Attrs:     attrsOf(s),
	}
	if includeInner {
		if html, err := s.Html(); err == nil {
			n.InnerHTML = capString(html, 2000)
		}
		n.Children = s.Children().Length()
	}
	return n
}

func attrsOf(s *goquery.Selection) map[string]string {
	if s.Length() == 0 || s.Get(0) == nil {
		return nil
	}
	out := make(map[string]string)
	for _, a := range s.Get(0).Attr {
		out[a.Key] = a.Val
	}
	return out
}

func capString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// queryAll returns a domNode per match, queryOne returns the single-element
// form (including innerHTML/childCount per spec.md §4.2), queryText returns
// just the concatenated text.
func queryAll(doc *goquery.Document, selector string) []domNode {
	var out []domNode
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, nodeFromSelection(s, false))
	})
	return out
}

func queryOne(doc *goquery.Document, selector string) (domNode, bool) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return domNode{}, false
	}
	return nodeFromSelection(sel, true), true
}

func queryText(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).Text())
}
