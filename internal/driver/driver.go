// Package driver defines the Browser Driver contract consumed by the REPL
// runtime (spec.md §6). No concrete browser implementation ships here —
// that is explicitly out of scope (spec.md §1) — but a deterministic
// in-memory MockDriver is provided so the engine can be built and tested
// standalone.
package driver

import (
	"context"
	"errors"
	"time"
)

// ErrTabNotFound is returned by any operation addressing an unknown tab id.
var ErrTabNotFound = errors.New("driver: tab not found")

// ErrTimeout is returned when a wait exceeds its deadline.
var ErrTimeout = errors.New("driver: timeout")

// TabInfo is the external, observer-facing view of a tab.
type TabInfo struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	Favicon string `json:"favicon"`
}

// PageChange is one changed field between two snapshots.
type PageChange struct {
	TabID string
	Field string // url|title|status
	Old   string
	New   string
}

// Driver is the contract the REPL runtime and Loop Controller consume to
// manipulate and inspect live browser tabs. Implementations own actual
// rendering; this engine only ever sees JSON-serializable results.
type Driver interface {
	Exec(ctx context.Context, tabID, jsCode string) (any, error)
	OpenTab(ctx context.Context, url string) (string, error)
	CloseTab(ctx context.Context, tabID string) error
	Navigate(ctx context.Context, tabID, url string) error
	SwitchTab(ctx context.Context, tabID string) error
	WaitForLoad(ctx context.Context, tabID string, timeout time.Duration) error
	WaitForSelector(ctx context.Context, tabID, selector string, timeout time.Duration) error
	ListTabs(ctx context.Context) ([]TabInfo, error)
	ActiveTabID(ctx context.Context) (string, error)
	GetText(ctx context.Context, tabID, selector string) (string, error)
	GetDOM(ctx context.Context, tabID, selector string) (string, error)
	Click(ctx context.Context, tabID, selector string) error
	Type(ctx context.Context, tabID, selector, text string) error
	Scroll(ctx context.Context, tabID, direction string, amount int) error

	// CaptureSnapshot records current {url,title,status} for every tab.
	CaptureSnapshot(ctx context.Context) (map[string]TabInfo, error)
}

// ConfirmationGate is the optional sensitive-action hook described in
// SPEC_FULL.md §9. Disabled by default; when enabled, the REPL asks it
// before click/type and blocks on confirmation_response.
type ConfirmationGate interface {
	RequireConfirmation(ctx context.Context, action string) bool
}
