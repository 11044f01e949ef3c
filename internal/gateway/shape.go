package gateway

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Response keys accepted from the provider. Variants of the API name the
// checkout URL and transaction id differently, so each is a list tried in order.
var (
	checkoutURLKeys   = []string{"checkout_url", "link"}
	providerTxnIDKeys = []string{"id", "transaction_id"}
)

const statusKey = "status"

// successStatuses are the lowercase verify statuses that mean paid.
var successStatuses = map[string]struct{}{
	"success":   {},
	"completed": {},
}

func isSuccessStatus(status string) bool {
	_, ok := successStatuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

// shape is a loosely typed JSON object. Missing or mistyped keys read as zero values.
type shape map[string]any

// decodeObject parses raw, treating any valid non-object document as empty.
func decodeObject(raw json.RawMessage) (shape, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	obj, _ := v.(map[string]any)
	return shape(obj), nil
}

func (s shape) object(key string) shape {
	obj, _ := s[key].(map[string]any)
	return shape(obj)
}

// string returns key as text; JSON numbers are kept in their literal form.
func (s shape) string(key string) string {
	switch v := s[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func (s shape) firstString(keys []string) string {
	for _, key := range keys {
		if v := s.string(key); v != "" {
			return v
		}
	}
	return ""
}
