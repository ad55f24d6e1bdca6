package job

import (
	"encoding/json"

	"github.com/SUSE-Enceladus/mqsf/mqerr"
)

// ListenerKey returns the envelope key a delivery from prevService is
// wrapped in: "<previous_service>_result".
func ListenerKey(prevService string) string {
	return prevService + "_result"
}

// ResultKey returns the envelope key this stage wraps its own result in:
// "<service_name>_result".
func ResultKey(serviceName string) string {
	return serviceName + "_result"
}

// ParseListener extracts the inner Record from a delivery body shaped
// { "<previous_service>_result": { ... } }. It returns an error if the
// body is not valid JSON or the expected key is missing — callers treat
// this as an envelope parse error (spec §7): log, ack, drop.
func ParseListener(body []byte, prevService string) (*Record, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, mqerr.Envelope(err, "invalid listener message")
	}

	key := ListenerKey(prevService)
	raw, ok := envelope[key]
	if !ok {
		return nil, mqerr.Envelope(nil, "invalid listener message: missing key %q", key)
	}

	rec := &Record{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, mqerr.Envelope(err, "invalid listener message")
	}
	if rec.id == "" {
		return nil, mqerr.Envelope(nil, "invalid listener message: missing id")
	}

	NormalizePayload(rec)
	return rec, nil
}

// BuildResult wraps a Record in this stage's result envelope, pretty
// printed with sorted keys as spec §6 requires for the outbound body.
func BuildResult(serviceName string, rec *Record) ([]byte, error) {
	envelope := map[string]*Record{
		ResultKey(serviceName): rec,
	}
	return json.MarshalIndent(envelope, "", "  ")
}
