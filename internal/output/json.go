package output

import (
	"encoding/json"
)

// JSONFormatter renders document values as JSON.
type JSONFormatter struct {
	Indent bool
}

// Format renders doc.Value as JSON.
func (f *JSONFormatter) Format(doc Document) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(doc.Value, "", "  ")
	} else {
		data, err = json.Marshal(doc.Value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
