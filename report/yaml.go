// ABOUTME: YAML report codec built on yaml.v3
// ABOUTME: Detected by a top-level report key at the start of a line

package report

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAML reads and writes reports as YAML documents
type YAML struct{}

func (YAML) Name() string { return "yaml" }

// CanDecode looks for a top-level report key before any JSON-looking input
func (YAML) CanDecode(preview []byte) bool {
	trimmed := bytes.TrimSpace(preview)
	if len(trimmed) == 0 || trimmed[0] == '{' || trimmed[0] == '[' {
		return false
	}
	sc := bufio.NewScanner(bytes.NewReader(preview))
	for sc.Scan() {
		line := sc.Text()
		if line == "---" || strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		key, _, found := strings.Cut(line, ":")
		return found && reportKeys[key]
	}
	return false
}

// Decode reads one YAML report
func (YAML) Decode(r io.Reader) (*Report, error) {
	var rep Report
	if err := yaml.NewDecoder(r).Decode(&rep); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode YAML: %w", io.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}
	if err := rep.normalize(); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (YAML) Write(w io.Writer, rep *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return enc.Close()
}

func init() {
	Register(YAML{})
}
