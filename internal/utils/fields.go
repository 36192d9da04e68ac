package utils

import (
	"encoding/json"
	"fmt"
)

// SelectFields projects each item of a list onto fields (plus "id"), using the
// items' JSON names. With no fields the items are returned as they are.
func SelectFields[T any](items []T, fields []string) (any, error) {
	if len(fields) == 0 {
		return items, nil
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("select fields: %w", err)
	}
	var docs []map[string]any
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("select fields: %w", err)
	}

	keep := map[string]bool{"id": true}
	for _, f := range fields {
		keep[f] = true
	}
	for _, doc := range docs {
		for key := range doc {
			if !keep[key] {
				delete(doc, key)
			}
		}
	}
	return docs, nil
}
