package recording

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"
)

// RequestID identifies a request within one network log. Logs written by
// different drivers use either strings or numbers, so both decode.
type RequestID string

// UnmarshalJSON accepts a JSON string or number.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RequestID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("request id must be a string or number: %w", err)
	}
	*id = RequestID(n.String())
	return nil
}

// NetworkRecord is one completed request. StartTime and EndTime are in
// seconds on the same monotonic clock as the trace.
type NetworkRecord struct {
	RequestID    RequestID `json:"requestId"`
	URL          string    `json:"url"`
	ResourceType string    `json:"resourceType,omitempty"`
	TransferSize int64     `json:"transferSize"`
	ResourceSize int64     `json:"resourceSize,omitempty"`
	StartTime    float64   `json:"startTime,omitempty"`
	EndTime      float64   `json:"endTime,omitempty"`
	StatusCode   int       `json:"statusCode,omitempty"`
	// Initiator is the request id or URL of the request that caused this one.
	Initiator string `json:"initiator,omitempty"`
	// Body is the decoded response body, when the driver captured it.
	Body string `json:"body,omitempty"`
}

// Start returns StartTime as a duration.
func (r *NetworkRecord) Start() time.Duration { return seconds(r.StartTime) }

// End returns EndTime as a duration.
func (r *NetworkRecord) End() time.Duration { return seconds(r.EndTime) }

// Timed reports whether the record carries usable timing.
func (r *NetworkRecord) Timed() bool {
	return r.StartTime > 0 && r.EndTime >= r.StartTime
}

// Origin returns scheme://host[:port] of the record URL, or "" when the URL
// cannot be parsed.
func (r *NetworkRecord) Origin() string {
	u, err := url.Parse(r.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ParseNetworkLog decodes a JSON array of network records and checks that
// request ids are present and unique.
func ParseNetworkLog(r io.Reader) ([]*NetworkRecord, error) {
	var records []*NetworkRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode network log: %w", err)
	}

	seen := make(map[RequestID]bool, len(records))
	for i, rec := range records {
		if rec == nil {
			return nil, fmt.Errorf("network record %d is null", i)
		}
		if rec.RequestID == "" {
			rec.RequestID = RequestID(strconv.Itoa(i + 1))
		}
		if seen[rec.RequestID] {
			return nil, fmt.Errorf("duplicate request id in network log: %s", rec.RequestID)
		}
		seen[rec.RequestID] = true
		if rec.TransferSize < 0 || rec.ResourceSize < 0 {
			return nil, fmt.Errorf("network record %s has a negative size", rec.RequestID)
		}
	}
	return records, nil
}
