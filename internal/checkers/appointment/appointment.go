package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"appointment-checker/internal/browser"
	"appointment-checker/internal/core/check"
	"appointment-checker/internal/utils/logger"
	"appointment-checker/internal/utils/trace"
)

// StartControls matches the elements a booking flow typically uses as its entry point.
const StartControls = "button, [role=button], a, input[type=submit]"

// Checker drives the booking flow and looks for an open unit at Location.
type Checker struct {
	NameValue string
	URL       string

	StartLocator    browser.Locator
	ServiceLocators []browser.Locator
	UnitSelector    string
	Location        string

	PageTimeout    time.Duration
	VisibleTimeout time.Duration
	SettleDelay    time.Duration

	// Preflight, when set, must succeed before a browser session is opened.
	Preflight Reacher

	Driver browser.Driver
	Trace  *trace.Recorder
	Log    *logger.Logger
}

// Reacher reports whether the site is reachable at all.
type Reacher interface {
	Reach(ctx context.Context) error
}

func (c *Checker) Name() string {
	return c.NameValue
}

func (c *Checker) Check(ctx context.Context) check.Result {
	res := check.Result{Name: c.NameValue, RunID: runID(ctx)}
	log := c.logger()

	log.Infof("starting appointment check via %s driver", c.Driver.Name())
	log.Infof("target location: %s", c.Location)
	c.Trace.Begin(res.RunID, time.Now())

	if c.Preflight != nil {
		if err := c.withTimeout(ctx, c.Preflight.Reach); err != nil {
			c.fail(&res, fmt.Errorf("preflight: %w", err), c.URL)
			res.CheckedAt = time.Now()
			return res
		}
	}

	page, err := c.Driver.Open(ctx)
	if err != nil {
		c.fail(&res, err, "")
		res.CheckedAt = time.Now()
		return res
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debugf("close browser: %v", err)
		}
	}()

	if err := c.probe(ctx, page, &res); err != nil {
		c.fail(&res, err, page.URL())
	}
	res.CheckedAt = time.Now()
	return res
}

func (c *Checker) probe(ctx context.Context, page browser.Page, res *check.Result) error {
	log := c.logger()

	log.Infof("navigating to %s", c.URL)
	if err := c.withTimeout(ctx, func(ctx context.Context) error { return page.Goto(ctx, c.URL) }); err != nil {
		return err
	}
	if err := c.settle(ctx, page); err != nil {
		return err
	}
	c.Trace.Step(1, "Initial page loaded", page.URL())

	log.Infof("clicking %s", c.StartLocator)
	if err := c.withTimeout(ctx, func(ctx context.Context) error { return browser.Click(ctx, page, c.StartLocator) }); err != nil {
		return err
	}
	if err := c.settle(ctx, page); err != nil {
		return err
	}
	c.Trace.Step(2, fmt.Sprintf("Clicked %q", c.StartLocator.Text), page.URL())

	if err := c.selectService(ctx, page); err != nil {
		return err
	}
	if err := c.settle(ctx, page); err != nil {
		return err
	}
	c.Trace.Step(3, "After service selection", page.URL())

	log.Infof("searching for location: %s", c.Location)
	var units []browser.Candidate
	err := c.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		units, err = page.Query(ctx, c.UnitSelector)
		return err
	})
	if err != nil {
		return err
	}
	res.Units = len(units)
	log.Infof("found %d unit elements matching %s", len(units), c.UnitSelector)
	c.Trace.Step(4, fmt.Sprintf("Found %d unit elements", len(units)), page.URL())

	want := browser.Normalize(c.Location)
	for i, unit := range units {
		text := browser.Normalize(unit.Text)
		if !strings.Contains(text, want) {
			continue
		}
		c.Trace.Unit(i+1, unit.Class, text)
		c.Trace.End()
		log.Infof("found open unit for %s: %s", c.Location, excerpt(text, 100))
		res.Available = true
		res.Message = fmt.Sprintf("Appointment available at %s.\n\n%s\n\nChecked %d unit(s) on %s", c.Location, text, len(units), page.URL())
		return nil
	}

	c.Trace.End()
	res.Message = fmt.Sprintf("No open appointment at %s among %d unit(s).", c.Location, len(units))
	return nil
}

// selectService tries each locator in order and clicks the first one that becomes visible.
// A miss is not an error: the site may have preselected the service.
func (c *Checker) selectService(ctx context.Context, page browser.Page) error {
	log := c.logger()
	for _, loc := range c.ServiceLocators {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !browser.IsVisible(ctx, page, loc, c.VisibleTimeout) {
			log.Debugf("service locator %s not visible", loc)
			continue
		}
		err := c.withTimeout(ctx, func(ctx context.Context) error { return browser.Click(ctx, page, loc) })
		if err != nil {
			log.Debugf("service locator %s failed: %v", loc, err)
			continue
		}
		log.Infof("clicked service %s", loc)
		return nil
	}
	c.Trace.Warn("Could not find service type")
	log.Warnf("could not find service type; it may be preselected or the page layout changed")
	return nil
}

func (c *Checker) settle(ctx context.Context, page browser.Page) error {
	if err := c.withTimeout(ctx, page.WaitIdle); err != nil {
		return err
	}
	if c.SettleDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.SettleDelay):
		return nil
	}
}

func (c *Checker) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if c.PageTimeout <= 0 {
		return fn(ctx)
	}
	opCtx, cancel := context.WithTimeout(ctx, c.PageTimeout)
	defer cancel()
	return browser.Classify(fn(opCtx))
}

func (c *Checker) fail(res *check.Result, err error, url string) {
	res.Available = false
	if errors.Is(err, browser.ErrTimeout) {
		res.Error = fmt.Sprintf("timeout error: %v", err)
	} else {
		res.Error = fmt.Sprintf("error during check: %v", err)
	}
	c.logger().Errorf("%s", res.Error)
	c.Trace.Error(err, url)
}

func (c *Checker) logger() *logger.Logger {
	if c.Log == nil {
		return logger.Discard()
	}
	return c.Log
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

type runIDKey struct{}

// WithRunID tags ctx so the result and trace of this cycle carry id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
