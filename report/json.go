// ABOUTME: JSON report codec
// ABOUTME: Indented output; detected by the first key of the top-level object

package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// JSON reads and writes reports as JSON documents
type JSON struct{}

func (JSON) Name() string { return "json" }

// reportKeys are the top-level keys a report document may start with
var reportKeys = map[string]bool{
	"name": true, "strategy": true, "bytes": true, "objects": true, "skipped": true,
	"incomplete": true, "caveats": true, "roots": true, "nodes": true,
}

// CanDecode checks the input is an object whose first key is a report key
func (JSON) CanDecode(preview []byte) bool {
	dec := json.NewDecoder(bytes.NewReader(preview))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return false
	}
	tok, err = dec.Token()
	if err != nil {
		return false
	}
	key, ok := tok.(string)
	return ok && reportKeys[key]
}

// Decode reads one JSON report
func (JSON) Decode(r io.Reader) (*Report, error) {
	var rep Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	if err := rep.normalize(); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (JSON) Write(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func init() {
	Register(JSON{})
}
