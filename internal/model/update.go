package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Identity keys accepted at the top level of an update, canonical first.
var identityAliases = map[string][]string{
	"video_id":   {"video_id", "record_id"},
	"session_id": {"session_id"},
	"video_name": {"video_name", "record_name", "name"},
}

// IdentityKey returns the canonical identity key for a raw top-level key,
// or "" if the key does not identify a video.
func IdentityKey(raw string) string {
	k := normalizeKey(raw)
	for canonical, keys := range identityAliases {
		for _, alias := range keys {
			if k == alias {
				return canonical
			}
		}
	}
	return ""
}

// RawUpdate is one untrusted bulk-update record.
type RawUpdate struct {
	VideoID   string         `json:"video_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	VideoName string         `json:"video_name,omitempty"`
	Fields    map[string]any `json:"fields"`
	// FieldsOK is false when "fields" was absent or not a key-value object.
	FieldsOK bool `json:"-"`
}

// NewRawUpdate builds a RawUpdate from a decoded key-value record. Identity
// aliases never overwrite a value already present under the canonical key.
func NewRawUpdate(obj map[string]any) RawUpdate {
	var u RawUpdate
	for canonical, keys := range identityAliases {
		for _, k := range keys {
			v, ok := obj[k]
			if !ok || v == nil {
				continue
			}
			s := stringify(v)
			if s == "" {
				continue
			}
			u.setIdentity(canonical, s)
			break
		}
	}
	if fields, ok := obj["fields"].(map[string]any); ok {
		u.Fields = fields
		u.FieldsOK = true
	}
	return u
}

func (u *RawUpdate) setIdentity(key, val string) {
	switch key {
	case "video_id":
		u.VideoID = val
	case "session_id":
		u.SessionID = val
	case "video_name":
		u.VideoName = val
	}
}

// UnmarshalJSON accepts any JSON value. Numbers inside fields are kept as
// json.Number so integer coercion sees the original text. A non-object
// element decodes to an update with FieldsOK false.
func (u *RawUpdate) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		*u = RawUpdate{}
		return nil
	}
	*u = NewRawUpdate(obj)
	return nil
}

// MarshalJSON writes the update in request form.
func (u RawUpdate) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 4)
	if u.VideoID != "" {
		out["video_id"] = u.VideoID
	}
	if u.SessionID != "" {
		out["session_id"] = u.SessionID
	}
	if u.VideoName != "" {
		out["video_name"] = u.VideoName
	}
	if u.FieldsOK {
		out["fields"] = u.Fields
	}
	return json.Marshal(out)
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return fmt.Sprintf("%v", s)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}
