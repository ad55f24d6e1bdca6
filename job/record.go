package job

import (
	"encoding/json"
	"fmt"
)

// Record is the durable unit of work described in the data model: an id,
// a status, an ordered list of human-readable errors, and an opaque
// payload of additional fields forwarded to the plugin and surfaced to
// the next stage. It is deliberately not a fixed Go struct for the
// payload portion — the plugin selector field name is configurable
// per-stage (plugin_key) and plugins are free to add arbitrary fields —
// so Record keeps named accessors for the fields the core cares about and
// an open map for everything else, flattening both into a single JSON
// object on the wire.
type Record struct {
	id      string
	status  Status
	errors  []string
	payload map[string]interface{}
}

// New creates a pending record with the given id and an empty payload.
func New(id string) *Record {
	return &Record{
		id:      id,
		status:  StatusPending,
		payload: make(map[string]interface{}),
	}
}

// ID returns the record's immutable identifier (data model invariant I2).
func (r *Record) ID() string { return r.id }

// Status returns the record's current status.
func (r *Record) Status() Status { return r.status }

// SetStatus transitions the record to a new status.
func (r *Record) SetStatus(s Status) { r.status = s }

// Errors returns the ordered sequence of error strings recorded so far.
func (r *Record) Errors() []string { return r.errors }

// AppendError appends a human-readable error message, as plugins and the
// engine do on each failure.
func (r *Record) AppendError(format string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

// Get returns a payload field by name.
func (r *Record) Get(key string) (interface{}, bool) {
	v, ok := r.payload[key]
	return v, ok
}

// GetString returns a payload field as a string, the empty string if the
// field is absent or not a string.
func (r *Record) GetString(key string) string {
	v, ok := r.payload[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Set assigns a payload field. Plugins use this to attach their results
// (e.g. wx_data) to the record.
func (r *Record) Set(key string, value interface{}) {
	if r.payload == nil {
		r.payload = make(map[string]interface{})
	}
	r.payload[key] = value
}

// Payload returns the record's additional fields, excluding id/status/errors.
// The returned map is the record's live backing store; callers that need
// isolation should copy it.
func (r *Record) Payload() map[string]interface{} {
	return r.payload
}

// Clone returns a deep-enough copy for handing a record to a plugin
// running on its own goroutine without sharing the engine's backing map.
func (r *Record) Clone() *Record {
	cp := &Record{
		id:      r.id,
		status:  r.status,
		errors:  append([]string(nil), r.errors...),
		payload: make(map[string]interface{}, len(r.payload)),
	}
	for k, v := range r.payload {
		cp.payload[k] = v
	}
	return cp
}

// MarshalJSON writes the flattened wire shape: id/status/errors alongside every
// payload field, as a single JSON object. encoding/json sorts map keys
// alphabetically on marshal, which is what gives the result message its
// stable key ordering (spec §6).
func (r *Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(r.payload)+3)
	for k, v := range r.payload {
		flat[k] = v
	}
	flat["id"] = r.id
	flat["status"] = int(r.status)
	if len(r.errors) > 0 {
		flat["errors"] = r.errors
	}
	return json.Marshal(flat)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var flat map[string]interface{}
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	if idVal, ok := flat["id"]; ok {
		id, _ := idVal.(string)
		r.id = id
		delete(flat, "id")
	}

	if statusVal, ok := flat["status"]; ok {
		switch v := statusVal.(type) {
		case float64:
			r.status = Status(int(v))
		case json.Number:
			n, _ := v.Int64()
			r.status = Status(n)
		}
		delete(flat, "status")
	}

	if errsVal, ok := flat["errors"]; ok {
		if list, ok := errsVal.([]interface{}); ok {
			r.errors = make([]string, 0, len(list))
			for _, e := range list {
				if s, ok := e.(string); ok {
					r.errors = append(r.errors, s)
				} else {
					r.errors = append(r.errors, fmt.Sprintf("%v", e))
				}
			}
		}
		delete(flat, "errors")
	}

	r.payload = flat
	return nil
}
