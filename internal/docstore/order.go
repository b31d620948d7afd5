package docstore

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/HarshGadhecha/SpendWise/internal/service"
)

// sortDocuments orders docs by field, keeping the existing order for ties.
// Missing values sort first in ascending order.
func sortDocuments(docs []service.Document, field string, desc bool) {
	if field == "" {
		return
	}
	slices.SortStableFunc(docs, func(a, b service.Document) int {
		c := compareValues(a[field], b[field])
		if desc {
			return -c
		}
		return c
	})
}

func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	if ta, ok, _ := AsTimestamp(a); ok {
		if tb, ok, _ := AsTimestamp(b); ok {
			return cmp.Or(cmp.Compare(ta.Seconds, tb.Seconds), cmp.Compare(ta.Nanos, tb.Nanos))
		}
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return cmp.Compare(fa, fb)
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return cmp.Compare(sa, sb)
		}
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// encodeDocument marshals a document for storage.
func encodeDocument(doc service.Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

// decodeDocument unmarshals a stored document keeping numbers exact.
func decodeDocument(data []byte) (service.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc service.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}
