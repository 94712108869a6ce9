package models

import "fmt"

const (
	// Categories color the day cell; the editor caps them so the legend
	// stays readable.
	MaxCategories = 5

	// Upper bound on activity icons attached to a single day entry.
	MaxIconsPerDay = 10
)

// ActivityIcon is a single icon reference attached to a day entry.
type ActivityIcon struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Color string `json:"color,omitempty"`
}

// DayEntry is the per-date record inside a calendar document. ColorID and
// the icon values are logical references into the document's key item list;
// a dangling reference is rendered as blank by the client, never rejected
// here.
type DayEntry struct {
	Day       int            `json:"day"`
	Month     string         `json:"month"`
	Year      int            `json:"year"`
	Locations string         `json:"locations"`
	Details   string         `json:"details"`
	ColorID   string         `json:"colorId"`
	Icons     []ActivityIcon `json:"icons"`

	// Content is the pre-rename field for Icons. Accepted on read so old
	// documents keep working, migrated to Icons by NormalizeLegacy and
	// never written back.
	Content []ActivityIcon `json:"content,omitempty"`
}

// KeyItem is a legend entry. IsColorKey distinguishes a day-coloring
// category from a selectable activity icon. Order in the document's list is
// display order and must survive round trips.
type KeyItem struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	IsColorKey bool   `json:"isColorKey"`
	ColorCode  string `json:"colorCode,omitempty"`
	Icon       string `json:"icon,omitempty"`
	IconColor  string `json:"iconColor,omitempty"`
	ShowCount  bool   `json:"showCount"`
}

// CalendarDocument is the full per-year record. All three top-level fields
// must be present in a write body; LastUpdatedText is a pointer so a body
// that omits the key entirely can be told apart from one carrying "".
type CalendarDocument struct {
	DayData         map[string]DayEntry `json:"dayData"`
	KeyItems        []KeyItem           `json:"keyItems"`
	LastUpdatedText *string             `json:"lastUpdatedText"`
}

// Configuration is the year-independent presentation document.
type Configuration struct {
	HeaderName *string `json:"headerName"`
	Timezone   string  `json:"timezone"`
	BannerHTML *string `json:"bannerHtml"`
}

// ErrInvalidDocument is returned when a document fails the write-shape gate.
type ErrInvalidDocument struct {
	Reason string
}

func (e *ErrInvalidDocument) Error() string {
	return fmt.Sprintf("invalid document: %s", e.Reason)
}

// EmptyCalendarDocument returns the skeleton served for a year that has
// never been written. It satisfies ValidateDocument so a client that reads
// it and saves it back is not rejected.
func EmptyCalendarDocument() *CalendarDocument {
	empty := ""
	return &CalendarDocument{
		DayData:         map[string]DayEntry{},
		KeyItems:        []KeyItem{},
		LastUpdatedText: &empty,
	}
}

// ValidateDocument enforces the write-shape contract: the day-entry mapping,
// key-item list and last-updated marker must all be present, and the
// capacity bounds on categories and per-day icons must hold. Read paths do
// not call this; legacy shapes are normalized instead.
func ValidateDocument(doc *CalendarDocument) error {
	if doc == nil {
		return &ErrInvalidDocument{Reason: "document body is empty"}
	}
	if doc.DayData == nil {
		return &ErrInvalidDocument{Reason: "dayData mapping is missing"}
	}
	if doc.KeyItems == nil {
		return &ErrInvalidDocument{Reason: "keyItems list is missing"}
	}
	if doc.LastUpdatedText == nil {
		return &ErrInvalidDocument{Reason: "lastUpdatedText is missing"}
	}

	categories := 0
	for _, item := range doc.KeyItems {
		if item.IsColorKey {
			categories++
		}
	}
	if categories > MaxCategories {
		return &ErrInvalidDocument{
			Reason: fmt.Sprintf("too many categories: %d (max %d)", categories, MaxCategories),
		}
	}

	for key, entry := range doc.DayData {
		if len(entry.Icons) > MaxIconsPerDay {
			return &ErrInvalidDocument{
				Reason: fmt.Sprintf("day %s has %d icons (max %d)", key, len(entry.Icons), MaxIconsPerDay),
			}
		}
	}
	return nil
}

// NormalizeLegacy migrates pre-rename day entries (icon list stored under
// "content") to the current shape. Applied on every read so old records
// stay serveable without rewriting them on disk.
func (d *CalendarDocument) NormalizeLegacy() {
	for key, entry := range d.DayData {
		if entry.Icons == nil && entry.Content != nil {
			entry.Icons = entry.Content
			entry.Content = nil
			d.DayData[key] = entry
		}
	}
}
