package recording

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Recording pairs a trace with the network log of the same page load.
// It is immutable once created.
type Recording struct {
	Trace   *Trace
	Records []*NetworkRecord

	fingerprint uint64
}

// New wraps a parsed trace and network log. The fingerprint is computed
// from their canonical JSON form, so the same content always yields the
// same fingerprint regardless of where it was loaded from.
func New(trace *Trace, records []*NetworkRecord) (*Recording, error) {
	if trace == nil {
		trace = &Trace{}
	}

	d := xxhash.New()
	enc := json.NewEncoder(d)
	if err := enc.Encode(trace); err != nil {
		return nil, fmt.Errorf("failed to fingerprint trace: %w", err)
	}
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("failed to fingerprint network log: %w", err)
	}

	return &Recording{
		Trace:       trace,
		Records:     records,
		fingerprint: d.Sum64(),
	}, nil
}

// Fingerprint identifies the recording's content.
func (r *Recording) Fingerprint() uint64 { return r.fingerprint }

// Record returns the record with the given request id.
func (r *Recording) Record(id RequestID) (*NetworkRecord, bool) {
	for _, rec := range r.Records {
		if rec.RequestID == id {
			return rec, true
		}
	}
	return nil, false
}

// RecordsByURL returns every record fetched from the URL, in log order.
func (r *Recording) RecordsByURL(url string) []*NetworkRecord {
	var out []*NetworkRecord
	for _, rec := range r.Records {
		if rec.URL == url {
			out = append(out, rec)
		}
	}
	return out
}
