package domain

import (
	"encoding/json"
	"fmt"
)

// App is the parent resource owning one or more datasets. Apps are
// identified by an opaque string id (sId) assigned by the core API.
type App struct {
	SID         string `json:"sId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// DatasetSummary identifies one dataset by name among the datasets
// belonging to an app.
type DatasetSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Dataset is a named, schema-less content blob belonging to an app.
// Data holds the rows verbatim as received from the core API or the editor.
type Dataset struct {
	Name string            `json:"name"`
	Data []json.RawMessage `json:"data"`
}

// ParseRows decodes an editor payload into dataset rows. The payload must
// be a JSON array whose elements are JSON objects; anything else is an
// invalid edit.
func ParseRows(payload string) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		return nil, fmt.Errorf("dataset payload is not a JSON array: %w", err)
	}
	for i, row := range rows {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(row, &obj); err != nil {
			return nil, fmt.Errorf("dataset row %d is not a JSON object: %w", i, err)
		}
	}
	return rows, nil
}
