package chrome

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"

	"appointment-checker/internal/browser"
)

func TestScriptsQuoteSelectors(t *testing.T) {
	script, err := queryScript(`div[class*="Activate-Unit"]`)
	if err != nil {
		t.Fatalf("query script: %v", err)
	}
	if !strings.Contains(script, `document.querySelectorAll("div[class*=\"Activate-Unit\"]")`) {
		t.Fatalf("selector not quoted: %s", script)
	}

	if !strings.Contains(script, `!el.closest("head, script, style, noscript, template")`) {
		t.Fatalf("query script must skip unrendered elements: %s", script)
	}

	mark, err := markScript("a", 3, "t1")
	if err != nil {
		t.Fatalf("mark script: %v", err)
	}
	if !strings.Contains(mark, `querySelectorAll("a")).filter((el) => !el.closest("head, script, style, noscript, template"))[3]`) || !strings.Contains(mark, `setAttribute("data-checker-target", "t1")`) {
		t.Fatalf("unexpected mark script: %s", mark)
	}
}

func TestAllocatorOptions(t *testing.T) {
	d := &Driver{Headless: true, UserAgent: "ua", ExecPath: "/bin/chrome", NoSandbox: true}
	if got, base := len(d.allocatorOptions()), len(chromedp.DefaultExecAllocatorOptions); got != base+5 {
		t.Fatalf("expected %d options, got %d", base+5, got)
	}
	if got, base := len((&Driver{}).allocatorOptions()), len(chromedp.DefaultExecAllocatorOptions); got != base+2 {
		t.Fatalf("expected %d options, got %d", base+2, got)
	}
}

func findChrome() string {
	for _, name := range []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func TestChromeAgainstLocalSite(t *testing.T) {
	path := findChrome()
	if path == "" {
		t.Skip("no chrome binary on PATH")
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<button onclick="location.href='/units'">Make an Appointment</button>`)
		default:
			fmt.Fprint(w, `<div class="Activate-Unit">Raleigh West</div>`)
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	d := &Driver{Headless: true, ExecPath: path, NoSandbox: true}
	page, err := d.Open(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer page.Close()

	if err := page.Goto(ctx, server.URL); err != nil {
		t.Fatalf("goto: %v", err)
	}
	if err := browser.Click(ctx, page, browser.ByRole("button", "make an appointment")); err != nil {
		t.Fatalf("click: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for !strings.HasSuffix(page.URL(), "/units") && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
	if err := page.WaitIdle(ctx); err != nil {
		t.Fatalf("wait idle: %v", err)
	}
	cands, err := page.Query(ctx, "div[class*='Activate-Unit']")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(cands) != 1 || cands[0].Text != "Raleigh West" {
		t.Fatalf("unexpected units: %+v", cands)
	}
}
