// Package model defines data structures shared by the EdTube client and
// the development backend.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Conversation is a chat thread tied to one user and one video source.
type Conversation struct {
	ID        string   `json:"_id" validate:"required"`
	UserID    string   `json:"user_id" validate:"required"`
	VideoURL  string   `json:"video_url"`
	Title     string   `json:"title,omitempty"`
	NotesURL  string   `json:"notes_url,omitempty"`
	Concepts  []string `json:"concepts,omitempty"`
	CreatedAt Time     `json:"created_at"`
	UpdatedAt Time     `json:"updated_at"`
}

// UnmarshalJSON accepts the identifier under either "_id" or "id".
func (c *Conversation) UnmarshalJSON(data []byte) error {
	type alias Conversation
	aux := struct {
		*alias
		PlainID string `json:"id"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = aux.PlainID
	}
	return nil
}

// DisplayTitle returns the title, or a label derived from the video id.
func (c *Conversation) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	if id := VideoID(c.VideoURL); id != "" {
		return "Video: " + id
	}
	return "Video"
}

// VideoID extracts the YouTube video id from a watch or short URL.
func VideoID(url string) string {
	if i := strings.Index(url, "v="); i >= 0 {
		id := url[i+2:]
		if j := strings.IndexByte(id, '&'); j >= 0 {
			id = id[:j]
		}
		return id
	}
	if i := strings.Index(url, "youtu.be/"); i >= 0 {
		id := url[i+len("youtu.be/"):]
		if j := strings.IndexAny(id, "?&"); j >= 0 {
			id = id[:j]
		}
		return id
	}
	return ""
}

// ConversationCreate is the request to create a new conversation.
type ConversationCreate struct {
	UserID   string `json:"user_id" validate:"required"`
	VideoURL string `json:"video_url" validate:"required"`
	Title    string `json:"title,omitempty" validate:"max=256"`
}

// VideoRequest starts processing of a video.
type VideoRequest struct {
	URL    string `json:"url" validate:"required"`
	UserID string `json:"user_id,omitempty"`
}

// Time is a timestamp that tolerates the zone-less ISO-8601 form the
// backend emits.
type Time struct {
	time.Time
}

// timeLayouts are tried in order by ParseTime.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTime parses s with the layouts the backend is known to produce.
// Zone-less values are interpreted as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// UnmarshalJSON implements json.Unmarshaler. Unparseable values decode to
// the zero time.
func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// null and non-string values are treated as absent
		t.Time = time.Time{}
		return nil
	}
	parsed, _ := ParseTime(s)
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Now returns the current time as a Time.
func Now() Time {
	return Time{Time: time.Now().UTC()}
}
