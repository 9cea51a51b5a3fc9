// Package browser abstracts the handful of page operations the appointment
// prober needs, so the same probe can run against headless Chrome or a plain
// HTTP fetch of server-rendered HTML.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrTimeout      = errors.New("timed out")
	ErrNotFound     = errors.New("element not found")
	ErrNotClickable = errors.New("element not clickable")
)

// Driver opens one browser session per probe.
type Driver interface {
	Name() string
	Open(ctx context.Context) (Page, error)
}

// Page is a single tab. Every blocking call honours ctx and reports an
// expired deadline as ErrTimeout.
type Page interface {
	Goto(ctx context.Context, url string) error
	WaitIdle(ctx context.Context) error
	URL() string
	// Query returns every element matching css in document order.
	Query(ctx context.Context, css string) ([]Candidate, error)
	// Click activates the index-th element matching css.
	Click(ctx context.Context, css string, index int) error
	Close() error
}

// Candidate is one element returned by Query. Parent is the index of the
// nearest ancestor that is also in the result set, or -1.
type Candidate struct {
	Text    string `json:"text"`
	Class   string `json:"class"`
	Parent  int    `json:"parent"`
	Visible bool   `json:"visible"`
}

// Locator selects elements by CSS and, optionally, by their visible text.
type Locator struct {
	CSS   string
	Text  string
	Exact bool
}

func ByText(text string) Locator {
	return Locator{CSS: "*", Text: text}
}

func ByRole(css, name string) Locator {
	return Locator{CSS: css, Text: name}
}

func ByCSS(css string) Locator {
	return Locator{CSS: css}
}

func (l Locator) String() string {
	if l.Text == "" {
		return l.CSS
	}
	return fmt.Sprintf("%s:has-text(%q)", l.CSS, l.Text)
}

// MatchText applies the text filter after collapsing whitespace. Non-exact
// matches are case-insensitive substrings.
func (l Locator) MatchText(text string) bool {
	if l.Text == "" {
		return true
	}
	want := Normalize(l.Text)
	got := Normalize(text)
	if l.Exact {
		return got == want
	}
	return strings.Contains(strings.ToLower(got), strings.ToLower(want))
}

func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Pick returns the index of the first candidate matching l, or -1. When l
// filters by text, outer elements whose text only matches through a matching
// descendant are skipped, and a visible match wins over an earlier hidden one.
func Pick(cands []Candidate, l Locator) int {
	matched := make([]bool, len(cands))
	for i, c := range cands {
		matched[i] = l.MatchText(c.Text)
	}
	if l.Text == "" {
		for i := range cands {
			if matched[i] {
				return i
			}
		}
		return -1
	}

	covered := make([]bool, len(cands))
	for i := range cands {
		if !matched[i] {
			continue
		}
		for child, p := i, cands[i].Parent; p >= 0 && p < child; child, p = p, cands[p].Parent {
			covered[p] = true
		}
	}
	first := -1
	for i := range cands {
		if !matched[i] || covered[i] {
			continue
		}
		if cands[i].Visible {
			return i
		}
		if first < 0 {
			first = i
		}
	}
	return first
}

// Find runs a single query and returns the located element.
func Find(ctx context.Context, page Page, l Locator) (int, Candidate, error) {
	cands, err := page.Query(ctx, l.CSS)
	if err != nil {
		return -1, Candidate{}, err
	}
	i := Pick(cands, l)
	if i < 0 {
		return -1, Candidate{}, fmt.Errorf("%s: %w", l, ErrNotFound)
	}
	return i, cands[i], nil
}

const pollInterval = 100 * time.Millisecond

// WaitVisible polls until l resolves to a visible element or ctx expires.
func WaitVisible(ctx context.Context, page Page, l Locator) (int, error) {
	for {
		i, c, err := Find(ctx, page, l)
		if err == nil && c.Visible {
			return i, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return -1, err
		}
		select {
		case <-ctx.Done():
			return -1, fmt.Errorf("waiting for %s: %w", l, Classify(ctx.Err()))
		case <-time.After(pollInterval):
		}
	}
}

// IsVisible reports whether l becomes visible within timeout. Errors count as not visible.
func IsVisible(ctx context.Context, page Page, l Locator, timeout time.Duration) bool {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := WaitVisible(waitCtx, page, l)
	return err == nil
}

// Click waits for l to become visible and clicks it.
func Click(ctx context.Context, page Page, l Locator) error {
	i, err := WaitVisible(ctx, page, l)
	if err != nil {
		return err
	}
	if err := page.Click(ctx, l.CSS, i); err != nil {
		return fmt.Errorf("click %s: %w", l, err)
	}
	return nil
}

// Classify maps an expired deadline onto ErrTimeout and leaves other errors alone.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
