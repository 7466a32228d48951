package redeem

import (
	"context"
	"strings"
	"time"
)

// fakePage is a scripted stand-in for a browser page. Elements are keyed by
// the selector that finds them; hooks mutate the page in response to key
// presses and clicks the way the live dialogs do.
type fakePage struct {
	elements  map[string][]*fakeElement
	onEnter   func(p *fakePage)
	findErr   error // returned by FindAll once armed
	armErr    bool
	events    []string
	snapshots []string
	keys      []string
}

type fakeElement struct {
	page     *fakePage
	label    string
	text     string
	visible  bool
	typed    string
	cleared  int
	clicks   int
	clickErr error
	onClick  func(p *fakePage)
}

func newFakePage() *fakePage {
	return &fakePage{elements: make(map[string][]*fakeElement)}
}

func (p *fakePage) add(selector, label, text string, onClick func(p *fakePage)) *fakeElement {
	el := &fakeElement{page: p, label: label, text: text, visible: true, onClick: onClick}
	p.elements[selector] = append(p.elements[selector], el)
	return el
}

func (p *fakePage) remove(selector string) {
	delete(p.elements, selector)
}

func (p *fakePage) Find(_ context.Context, selector string, state State, _ time.Duration) (Element, error) {
	for _, el := range p.elements[selector] {
		if state == Visible && !el.visible {
			continue
		}
		return el, nil
	}
	return nil, ErrNotFound
}

func (p *fakePage) FindAll(_ context.Context, selector string) ([]Element, error) {
	if p.armErr && p.findErr != nil {
		return nil, p.findErr
	}
	var out []Element
	for _, el := range p.elements[selector] {
		out = append(out, el)
	}
	return out, nil
}

func (p *fakePage) PressKey(_ context.Context, key string) error {
	p.keys = append(p.keys, key)
	p.events = append(p.events, "key:"+key)
	return nil
}

func (p *fakePage) Snapshot(_ context.Context, name string) error {
	p.snapshots = append(p.snapshots, name)
	return nil
}

func (p *fakePage) hasEvent(ev string) bool {
	for _, e := range p.events {
		if e == ev {
			return true
		}
	}
	return false
}

func (e *fakeElement) Click(context.Context) error {
	if e.clickErr != nil {
		return e.clickErr
	}
	e.clicks++
	e.page.events = append(e.page.events, "click:"+e.label)
	if e.onClick != nil {
		e.onClick(e.page)
	}
	return nil
}

func (e *fakeElement) Clear(context.Context) error {
	e.cleared++
	e.typed = ""
	return nil
}

func (e *fakeElement) Press(_ context.Context, key string) error {
	e.page.events = append(e.page.events, "press:"+key)
	switch key {
	case "Delete":
		e.typed = ""
	case "Enter":
		if e.page.onEnter != nil {
			e.page.onEnter(e.page)
		}
	}
	return nil
}

func (e *fakeElement) Type(_ context.Context, text string) error {
	e.typed += text
	e.page.events = append(e.page.events, "type:"+text)
	return nil
}

func (e *fakeElement) Text(context.Context) (string, error) {
	return e.text, nil
}

func (e *fakeElement) Visible(context.Context) (bool, error) {
	return e.visible, nil
}

// Scripted flows over the default selectors.

var sel = DefaultSelectors()

func withInput(p *fakePage) *fakeElement {
	return p.add(sel.InputPrecise, "input", "", nil)
}

// showError adds an error banner with a cancel button that removes it.
func showError(text string) func(p *fakePage) {
	return func(p *fakePage) {
		p.add(sel.ErrorBanner, "error", text, nil)
		p.add(sel.CancelButton, "cancel", "Cancel", func(p *fakePage) {
			p.remove(sel.ErrorBanner)
			p.remove(sel.CancelButton)
		})
	}
}

func showSuccess(p *fakePage) {
	p.add(sel.SuccessDialog, "success", "Redemption Successful", nil)
	p.add(sel.OKButton, "ok", "OK", func(p *fakePage) {
		p.remove(sel.SuccessDialog)
		p.remove(sel.OKButton)
	})
}

// showConfirm opens the confirmation prompt; confirming runs then.
func showConfirm(then func(p *fakePage)) func(p *fakePage) {
	return func(p *fakePage) {
		p.add(sel.ConfirmDialog, "confirm-dialog", "Redeem Invitation Code", nil)
		p.add(sel.ConfirmButton, "confirm", "Confirm", func(p *fakePage) {
			p.remove(sel.ConfirmDialog)
			p.remove(sel.ConfirmButton)
			if then != nil {
				then(p)
			}
		})
	}
}

func typedCodes(p *fakePage) string {
	var out []string
	for _, e := range p.events {
		if strings.HasPrefix(e, "type:") {
			out = append(out, strings.TrimPrefix(e, "type:"))
		}
	}
	return strings.Join(out, ",")
}
