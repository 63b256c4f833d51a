package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// StreamRecord is one live channel suggested for a searched streamer.
type StreamRecord struct {
	Name            string  `json:"name"`
	StreamTitle     string  `json:"stream_title"`
	StreamURL       string  `json:"stream_url,omitempty"`
	ViewerCount     int     `json:"viewer_count"`
	ThumbnailURL    string  `json:"thumbnail_url"`
	ProfileImageURL string  `json:"profile_image_url"`
	StreamDuration  string  `json:"stream_duration"`
	Lang            string  `json:"lang,omitempty"`
	SimScore        float64 `json:"sim_score,omitempty"`
}

// UserInfo is the validate endpoint body for a known streamer.
type UserInfo struct {
	UID             string `json:"uid"`
	Name            string `json:"name"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_img_url"`
	BroadcasterType string `json:"broadcaster_type"`
}

// Ranked is an ordered result list. On the wire it is an object keyed
// "1".."N" whose member order is the rank order.
type Ranked []StreamRecord

// MarshalJSON writes the records as {"1":{...},"2":{...}} in slice order.
func (r Ranked) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, rec := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(i + 1)))
		buf.WriteByte(':')
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON keeps members in document order; the keys themselves are
// not interpreted.
func (r *Ranked) UnmarshalJSON(data []byte) error {
	out, err := DecodeOrdered(bytes.NewReader(data), 0)
	if err != nil {
		return err
	}
	*r = out
	return nil
}

// ErrNotObject is returned when a ranked body is not a JSON object.
var ErrNotObject = errors.New("expected a JSON object")

// DecodeOrdered reads a JSON object of StreamRecords and returns its values
// in document order. A limit above zero stops after that many members.
func DecodeOrdered(r io.Reader, limit int) (Ranked, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrNotObject
	}
	out := Ranked{}
	for dec.More() {
		if limit > 0 && len(out) >= limit {
			break
		}
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		var rec StreamRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode entry %q: %w", key, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// CountMembers reports how many members a JSON object has without
// decoding their values. A body that is not an object reports zero.
func CountMembers(data []byte) int {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return 0
	}
	return len(members)
}
