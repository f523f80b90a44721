package browser

import (
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/probelab/uitester/executor"
	"github.com/probelab/uitester/selector"
)

// Page adapts a playwright page to the narrow interfaces the selector
// resolver and step executor work against.
type Page struct {
	pw playwright.Page
}

var _ executor.Page = (*Page)(nil)

// WaitVisible waits for the first element matching sel to become
// visible within timeout.
func (p *Page) WaitVisible(sel string, timeout time.Duration) (selector.Element, error) {
	loc := p.pw.Locator(sel).First()
	if err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return nil, err
	}
	return &element{loc: loc}, nil
}

// FindAll returns every element currently matching sel, visible or not.
func (p *Page) FindAll(sel string) ([]selector.Element, error) {
	loc := p.pw.Locator(sel)
	count, err := loc.Count()
	if err != nil {
		return nil, err
	}
	els := make([]selector.Element, 0, count)
	for i := 0; i < count; i++ {
		els = append(els, &element{loc: loc.Nth(i)})
	}
	return els, nil
}

func (p *Page) Navigate(url string, wait executor.NavWait, timeout time.Duration) error {
	waitUntil := playwright.WaitUntilStateNetworkidle
	if wait == executor.NavWaitDOMContentLoaded {
		waitUntil = playwright.WaitUntilStateDomcontentloaded
	}
	_, err := p.pw.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntil,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	return err
}

func (p *Page) WaitLoaded(timeout time.Duration) error {
	return p.pw.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateLoad,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (p *Page) ScrollToBottom() error {
	_, err := p.pw.Evaluate("window.scrollTo(0, document.body.scrollHeight)")
	return err
}

// Screenshot writes a full page capture to path.
func (p *Page) Screenshot(path string) error {
	_, err := p.pw.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

type element struct {
	loc playwright.Locator
}

func (e *element) IsVisible() (bool, error) {
	return e.loc.IsVisible()
}

func (e *element) InnerText() (string, error) {
	return e.loc.InnerText()
}

func (e *element) GetAttribute(name string) (string, error) {
	return e.loc.GetAttribute(name)
}

func (e *element) Click() error {
	return e.loc.Click()
}

func (e *element) Fill(value string) error {
	return e.loc.Fill(value)
}
