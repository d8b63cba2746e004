package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockDriver is a deterministic in-memory Driver used by engine tests and
// by callers that want to exercise the engine without a real browser. It
// never touches a network or a renderer; navigate and waitForLoad mutate
// the recorded tab state, while click/type/scroll only check that the tab
// exists.
type MockDriver struct {
	mu   sync.Mutex
	tabs map[string]*mockTab
	dom  map[string]string // tabID -> html content, settable by tests
	seq  int
}

type mockTab struct {
	url, title, status string
}

// NewMockDriver builds an empty mock with no open tabs.
func NewMockDriver() *MockDriver {
	return &MockDriver{tabs: make(map[string]*mockTab), dom: make(map[string]string)}
}

// SetDOM lets a test seed the HTML content returned by GetDOM for a tab.
func (m *MockDriver) SetDOM(tabID, html string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dom[tabID] = html
}

func (m *MockDriver) OpenTab(_ context.Context, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.tabs[id] = &mockTab{url: url, title: "New Tab", status: "loading"}
	return id, nil
}

func (m *MockDriver) CloseTab(_ context.Context, tabID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tabs[tabID]; !ok {
		return ErrTabNotFound
	}
	delete(m.tabs, tabID)
	return nil
}

func (m *MockDriver) Navigate(_ context.Context, tabID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tabs[tabID]
	if !ok {
		return ErrTabNotFound
	}
	t.url = url
	t.status = "complete"
	t.title = url
	return nil
}

func (m *MockDriver) SwitchTab(_ context.Context, tabID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tabs[tabID]; !ok {
		return ErrTabNotFound
	}
	return nil
}

func (m *MockDriver) WaitForLoad(_ context.Context, tabID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tabs[tabID]
	if !ok {
		return ErrTabNotFound
	}
	t.status = "complete"
	return nil
}

func (m *MockDriver) WaitForSelector(_ context.Context, tabID, _ string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tabs[tabID]; !ok {
		return ErrTabNotFound
	}
	return nil
}

func (m *MockDriver) ListTabs(_ context.Context) ([]TabInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TabInfo, 0, len(m.tabs))
	for id, t := range m.tabs {
		out = append(out, TabInfo{ID: id, URL: t.url, Title: t.title, Status: t.status})
	}
	return out, nil
}

func (m *MockDriver) ActiveTabID(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.tabs {
		return id, nil
	}
	return "", ErrTabNotFound
}

func (m *MockDriver) Exec(_ context.Context, tabID, jsCode string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tabs[tabID]; !ok {
		return nil, ErrTabNotFound
	}
	return fmt.Sprintf("executed %d chars in %s", len(jsCode), tabID), nil
}

func (m *MockDriver) GetText(_ context.Context, tabID, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tabs[tabID]
	if !ok {
		return "", ErrTabNotFound
	}
	return t.title, nil
}

func (m *MockDriver) GetDOM(_ context.Context, tabID, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tabs[tabID]; !ok {
		return "", ErrTabNotFound
	}
	return m.dom[tabID], nil
}

func (m *MockDriver) Click(_ context.Context, tabID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tabs[tabID]; !ok {
		return ErrTabNotFound
	}
	return nil
}

func (m *MockDriver) Type(_ context.Context, tabID, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tabs[tabID]; !ok {
		return ErrTabNotFound
	}
	return nil
}

func (m *MockDriver) Scroll(_ context.Context, tabID, _ string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tabs[tabID]; !ok {
		return ErrTabNotFound
	}
	return nil
}

func (m *MockDriver) CaptureSnapshot(_ context.Context) (map[string]TabInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]TabInfo, len(m.tabs))
	for id, t := range m.tabs {
		out[id] = TabInfo{ID: id, URL: t.url, Title: t.title, Status: t.status}
	}
	return out, nil
}
