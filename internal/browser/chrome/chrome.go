// Package chrome implements browser.Driver on top of chromedp.
package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chromedp/chromedp"

	"appointment-checker/internal/browser"
)

const targetAttr = "data-checker-target"

type Driver struct {
	Headless  bool
	UserAgent string
	ExecPath  string
	// NoSandbox is needed when running as root inside containers.
	NoSandbox bool
}

func (d *Driver) Name() string {
	return "chrome"
}

func (d *Driver) Open(ctx context.Context) (browser.Page, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, d.allocatorOptions()...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// The first Run launches the browser and binds it to tabCtx.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", browser.Classify(err))
	}
	return &Page{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}, nil
}

func (d *Driver) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.Headless),
		chromedp.Flag("deny-permission-prompts", true),
	)
	if d.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(d.UserAgent))
	}
	if d.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(d.ExecPath))
	}
	if d.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	return opts
}

type Page struct {
	ctx     context.Context
	cancel  context.CancelFunc
	lastURL string
	marks   atomic.Int64
}

// run executes actions on the tab while honouring the caller's deadline and
// cancellation. Cancelling the derived context leaves the tab open.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return browser.Classify(ctx.Err())
		}
		return browser.Classify(err)
	}
	return nil
}

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url), chromedp.Location(&p.lastURL)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitIdle waits for the document to finish loading.
func (p *Page) WaitIdle(ctx context.Context) error {
	var ready bool
	err := p.run(ctx,
		chromedp.Poll(`document.readyState === "complete"`, &ready, chromedp.WithPollingInterval(100*time.Millisecond)),
		chromedp.Location(&p.lastURL),
	)
	if err != nil {
		return fmt.Errorf("wait for page load: %w", err)
	}
	return nil
}

func (p *Page) URL() string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err == nil && loc != "" {
		p.lastURL = loc
	}
	if p.lastURL == "" {
		return "about:blank"
	}
	return p.lastURL
}

func (p *Page) Query(ctx context.Context, css string) ([]browser.Candidate, error) {
	script, err := queryScript(css)
	if err != nil {
		return nil, err
	}
	var cands []browser.Candidate
	if err := p.run(ctx, chromedp.Evaluate(script, &cands)); err != nil {
		return nil, fmt.Errorf("query %q: %w", css, err)
	}
	return cands, nil
}

func (p *Page) Click(ctx context.Context, css string, index int) error {
	token := fmt.Sprintf("t%d", p.marks.Add(1))
	script, err := markScript(css, index, token)
	if err != nil {
		return err
	}
	var found bool
	if err := p.run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return fmt.Errorf("mark %s[%d]: %w", css, index, err)
	}
	if !found {
		return fmt.Errorf("%s[%d]: %w", css, index, browser.ErrNotFound)
	}
	sel := fmt.Sprintf(`[%s=%q]`, targetAttr, token)
	if err := p.run(ctx, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %s[%d]: %w", css, index, err)
	}
	return nil
}

func (p *Page) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}

// skipJS lists elements whose text is never rendered. Query and mark both
// filter with it so candidate indices line up.
const skipJS = "head, script, style, noscript, template"

const queryJS = `(() => {
	const els = Array.from(document.querySelectorAll(%s)).filter((el) => !el.closest(%s));
	const index = new Map(els.map((el, i) => [el, i]));
	return els.map((el) => {
		let parent = -1;
		for (let p = el.parentElement; p; p = p.parentElement) {
			if (index.has(p)) { parent = index.get(p); break; }
		}
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		return {
			text: el.innerText || el.value || el.textContent || "",
			class: el.getAttribute("class") || "",
			parent: parent,
			visible: rect.width > 0 && rect.height > 0 && style.visibility !== "hidden" && style.display !== "none",
		};
	});
})()`

const markJS = `(() => {
	const el = Array.from(document.querySelectorAll(%s)).filter((el) => !el.closest(%s))[%d];
	if (!el) { return false; }
	el.setAttribute(%s, %s);
	return true;
})()`

func queryScript(css string) (string, error) {
	sel, err := json.Marshal(css)
	if err != nil {
		return "", err
	}
	skip, _ := json.Marshal(skipJS)
	return fmt.Sprintf(queryJS, sel, skip), nil
}

func markScript(css string, index int, token string) (string, error) {
	sel, err := json.Marshal(css)
	if err != nil {
		return "", err
	}
	attr, _ := json.Marshal(targetAttr)
	tok, _ := json.Marshal(token)
	skip, _ := json.Marshal(skipJS)
	return fmt.Sprintf(markJS, sel, skip, index, attr, tok), nil
}
