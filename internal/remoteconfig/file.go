package remoteconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// SaveTemplate writes a template document to path, pretty-printed and without
// HTML escaping so condition expressions stay readable
func SaveTemplate(path string, raw []byte) error {
	var doc interface{}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return fmt.Errorf("template is not valid JSON: %w", err)
	}

	pretty, err := encodePretty(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, pretty, 0o644); err != nil {
		return fmt.Errorf("failed to write template file: %w", err)
	}
	return nil
}

// LoadTemplate reads a template document from path and compacts it for upload
func LoadTemplate(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("template file %s is not valid JSON: %w", path, err)
	}
	return buf.Bytes(), nil
}

// EditTemplateFile loads the template at path, applies edit and writes it back
func EditTemplateFile(path string, edit func(*Template) error) error {
	raw, err := LoadTemplate(path)
	if err != nil {
		return err
	}
	template, err := ParseTemplate(raw)
	if err != nil {
		return err
	}
	if err := edit(template); err != nil {
		return err
	}
	updated, err := json.Marshal(template)
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}
	return SaveTemplate(path, updated)
}

// PrettyJSON re-indents a JSON document for printing
func PrettyJSON(raw []byte) (string, error) {
	var doc interface{}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return "", err
	}
	pretty, err := encodePretty(doc)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimRight(pretty, "\n")), nil
}

func encodePretty(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return buf.Bytes(), nil
}
