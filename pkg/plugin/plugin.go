// Package plugin defines the public types and interfaces for taglift.
// External tools can import this package to plug in their own page drivers,
// notifiers, credential stores or message transports without forking the
// project.
package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ---------- Core Data Types ----------

// ProfileRecord is the aggregate extracted from one profile page visit.
type ProfileRecord struct {
	Name        string    `json:"name"`
	Bio         string    `json:"bio"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Location    string    `json:"location"`
	Connections string    `json:"connections"` // may carry qualifiers such as "500+"
	Followers   string    `json:"followers"`
	ProfileURL  string    `json:"profileUrl"`
	ExtractedAt time.Time `json:"extractedAt"`
	SessionID   string    `json:"sessionId"`
	Tags        []Tag     `json:"tags"`
}

// NewProfileRecord returns an empty record for the given page URL.
func NewProfileRecord(pageURL, sessionID string, now time.Time) *ProfileRecord {
	return &ProfileRecord{
		ProfileURL:  CleanURL(pageURL),
		ExtractedAt: now,
		SessionID:   sessionID,
		Tags:        []Tag{},
	}
}

// Valid reports whether the record carries enough data to be delivered:
// at least one of name, email or bio must be present.
func (r *ProfileRecord) Valid() bool {
	return r.Name != "" || r.Email != "" || r.Bio != ""
}

// CleanURL strips the query string and fragment from a page URL.
func CleanURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i != -1 {
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, '#'); i != -1 {
		raw = raw[:i]
	}
	return raw
}

// Tag is a caller-supplied label attached to a record. The core never
// inspects or rewrites tags: a tag decoded from JSON encodes back to the
// bytes it came from.
type Tag struct {
	Name  string `json:"name"`
	Color string `json:"color"`

	raw json.RawMessage
}

type tagFields struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (t *Tag) UnmarshalJSON(data []byte) error {
	var f tagFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	t.Name = f.Name
	t.Color = f.Color
	t.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (t Tag) MarshalJSON() ([]byte, error) {
	if len(t.raw) > 0 {
		return t.raw, nil
	}
	return json.Marshal(tagFields{Name: t.Name, Color: t.Color})
}

// Contact holds the fields only reachable through the contact info modal.
type Contact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Credentials identify the user on whose behalf a record is delivered.
type Credentials struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Complete reports whether both username and token are set.
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Token != ""
}

// ---------- Messages ----------

// Outbound message actions.
const (
	ActionRedirectToLogin = "redirectToLogin"
)

// OutboundMessage is a signal sent from the core to the host surface.
type OutboundMessage struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// Level is the severity of a user-facing notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// ---------- Errors ----------

var (
	// ErrNoCredentials is returned by a CredentialStore holding nothing.
	ErrNoCredentials = errors.New("no stored credentials")

	// ErrNotInteractive is returned by pages that cannot be clicked or typed into.
	ErrNotInteractive = errors.New("page is not interactive")

	// ErrElementNotFound is returned when a selector matches nothing.
	ErrElementNotFound = errors.New("element not found")
)

// ---------- Plugin Interfaces ----------

// Page is the profile page being extracted from.
type Page interface {
	// URL returns the current page URL.
	URL(ctx context.Context) (string, error)

	// Document returns a parsed snapshot of the current DOM.
	Document(ctx context.Context) (*goquery.Document, error)

	// Click activates the first element matching selector.
	Click(ctx context.Context, selector string) error

	// PressEscape dispatches an Escape key press to the page.
	PressEscape(ctx context.Context) error
}

// Notifier shows transient feedback to the user. Calls never block and
// return nothing.
type Notifier interface {
	Notify(message string, level Level, d time.Duration)
	PresentRecord(rec *ProfileRecord)
}

// Messenger carries outbound messages to the host surface.
type Messenger interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// CredentialStore persists the username and token between requests.
type CredentialStore interface {
	// Load returns the stored credentials or ErrNoCredentials.
	Load(ctx context.Context) (Credentials, error)

	// Save replaces the stored credentials.
	Save(ctx context.Context, creds Credentials) error

	// Clear removes any stored credentials.
	Clear(ctx context.Context) error
}
