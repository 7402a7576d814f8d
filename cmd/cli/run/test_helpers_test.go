package run_test

import (
	"context"
	"sync"
	"time"

	"github.com/temirov/pageaudit/internal/audit"
	"github.com/temirov/pageaudit/internal/model"
)

var onePixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

type fakePage struct {
	url string
}

func (page *fakePage) Evaluate(context.Context, string, bool) ([]byte, error) {
	return []byte("null"), nil
}

func (page *fakePage) Screenshot(context.Context, bool) ([]byte, error) {
	return onePixelPNG, nil
}

type fakeCloser struct {
	mutex  *sync.Mutex
	closes *int
}

func (closer fakeCloser) Close() error {
	closer.mutex.Lock()
	defer closer.mutex.Unlock()
	*closer.closes++
	return nil
}

type fakeSignals struct{}

func (fakeSignals) Snapshot() model.RuntimeSignals {
	return model.RuntimeSignals{RequestCount: 3}
}

type fakeBrowserLauncher struct {
	mutex       sync.Mutex
	openedURLs  []string
	closedCount int
}

func (launcher *fakeBrowserLauncher) Open(_ context.Context, targetURL string, _ audit.BrowserOptions) (audit.BrowserSession, error) {
	launcher.mutex.Lock()
	launcher.openedURLs = append(launcher.openedURLs, targetURL)
	launcher.mutex.Unlock()
	return audit.BrowserSession{
		Page:    &fakePage{url: targetURL},
		Closer:  fakeCloser{mutex: &launcher.mutex, closes: &launcher.closedCount},
		Signals: fakeSignals{},
	}, nil
}

type fakeAccessibilityScanner struct {
	violationsByURL map[string]int
}

func (scanner *fakeAccessibilityScanner) Scan(_ context.Context, page audit.PageHandle, _ string) (model.AccessibilityResult, error) {
	violations := scanner.violationsByURL[page.(*fakePage).url]
	counts := map[string]int{}
	if violations > 0 {
		counts["serious"] = violations
	}
	return model.AccessibilityResult{ViolationCount: violations, CountsBySeverity: counts}, nil
}

type steppingClock struct {
	mutex   sync.Mutex
	current time.Time
}

func (clock *steppingClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.current = clock.current.Add(10 * time.Millisecond)
	return clock.current
}
