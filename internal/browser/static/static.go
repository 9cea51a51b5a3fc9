// Package static implements browser.Driver over plain HTTP and goquery. It
// never executes JavaScript; clicks follow links and form actions.
package static

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"appointment-checker/internal/browser"
)

type Driver struct {
	Client    *http.Client
	UserAgent string
}

func (d *Driver) Name() string {
	return "static"
}

func (d *Driver) Open(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, browser.Classify(err)
	}
	client := d.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Page{client: client, userAgent: d.UserAgent}, nil
}

type Page struct {
	client    *http.Client
	userAgent string
	url       *url.URL
	doc       *goquery.Document
}

func (p *Page) Goto(ctx context.Context, raw string) error {
	target, err := p.resolve(raw)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", target, browser.Classify(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("navigate %s: status %s", target, resp.Status)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("parse %s: %w", target, browser.Classify(err))
	}
	p.url = resp.Request.URL
	p.doc = doc
	return nil
}

// WaitIdle returns immediately: a fetched document has no pending network activity.
func (p *Page) WaitIdle(ctx context.Context) error {
	if p.doc == nil {
		return fmt.Errorf("no page loaded")
	}
	return browser.Classify(ctx.Err())
}

func (p *Page) URL() string {
	if p.url == nil {
		return "about:blank"
	}
	return p.url.String()
}

func (p *Page) Query(ctx context.Context, css string) ([]browser.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, browser.Classify(err)
	}
	sel, err := p.find(css)
	if err != nil {
		return nil, err
	}

	index := make(map[*html.Node]int, sel.Length())
	for i, n := range sel.Nodes {
		index[n] = i
	}
	cands := make([]browser.Candidate, 0, sel.Length())
	sel.Each(func(i int, s *goquery.Selection) {
		parent := -1
		for n := s.Get(0).Parent; n != nil; n = n.Parent {
			if j, ok := index[n]; ok {
				parent = j
				break
			}
		}
		cands = append(cands, browser.Candidate{
			Text:    elementText(s),
			Class:   s.AttrOr("class", ""),
			Parent:  parent,
			Visible: visible(s),
		})
	})
	return cands, nil
}

func (p *Page) Click(ctx context.Context, css string, index int) error {
	sel, err := p.find(css)
	if err != nil {
		return err
	}
	if index < 0 || index >= sel.Length() {
		return fmt.Errorf("%s[%d]: %w", css, index, browser.ErrNotFound)
	}
	target := clickTarget(sel.Eq(index))
	if target == "" {
		return fmt.Errorf("%s[%d]: %w", css, index, browser.ErrNotClickable)
	}
	return p.Goto(ctx, target)
}

func (p *Page) Close() error {
	p.doc = nil
	return nil
}

func (p *Page) find(css string) (sel *goquery.Selection, err error) {
	if p.doc == nil {
		return nil, fmt.Errorf("no page loaded")
	}
	// goquery panics on selectors cascadia cannot compile.
	defer func() {
		if r := recover(); r != nil {
			sel, err = nil, fmt.Errorf("invalid selector %q: %v", css, r)
		}
	}()
	return p.doc.Find(css).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return rendered(s.Get(0))
	}), nil
}

// unrendered holds elements whose text never shows on the page.
var unrendered = map[string]bool{"head": true, "script": true, "style": true, "noscript": true, "template": true}

func rendered(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && unrendered[n.Data] {
			return false
		}
	}
	return true
}

func (p *Page) resolve(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", raw, err)
	}
	if p.url != nil {
		u = p.url.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url %q", u.String())
	}
	return u, nil
}

func elementText(s *goquery.Selection) string {
	text := browser.Normalize(s.Text())
	if text == "" {
		text = browser.Normalize(s.AttrOr("value", ""))
	}
	return text
}

func visible(s *goquery.Selection) bool {
	if s.Length() == 0 || !rendered(s.Get(0)) {
		return false
	}
	if strings.EqualFold(s.AttrOr("type", ""), "hidden") {
		return false
	}
	for cur := s; cur.Length() > 0; cur = cur.Parent() {
		if _, ok := cur.Attr("hidden"); ok {
			return false
		}
		style := strings.ToLower(strings.ReplaceAll(cur.AttrOr("style", ""), " ", ""))
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

func clickTarget(s *goquery.Selection) string {
	if href := linkHref(s); href != "" {
		return href
	}
	if href := linkHref(s.ParentsFiltered("a[href]").First()); href != "" {
		return href
	}
	if href := linkHref(s.Find("a[href]").First()); href != "" {
		return href
	}
	if href := strings.TrimSpace(s.AttrOr("data-href", "")); href != "" {
		return href
	}
	form := s.Closest("form")
	if form.Length() > 0 && !strings.EqualFold(form.AttrOr("method", "get"), "post") {
		action := strings.TrimSpace(form.AttrOr("action", ""))
		if action == "" {
			action = "."
		}
		return action
	}
	return ""
}

func linkHref(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	href := strings.TrimSpace(s.AttrOr("href", ""))
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	return href
}
