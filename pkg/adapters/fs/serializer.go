package fs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Serializer defines how to read and write a specific file format.
//
// Formats with frontmatter keep the record body (a note's content) outside
// the structured fields; the others embed it, so body is always empty.
type Serializer interface {
	// Serialize converts the record fields and body to bytes.
	Serialize(fields any, body string) ([]byte, error)
	// Parse fills fields from data and returns the body.
	Parse(data []byte, fields any) (body string, err error)
	// Frontmatter reports whether the body travels outside the fields.
	Frontmatter() bool
}

// DefaultSerializers returns the standard set of serializers.
func DefaultSerializers() map[string]Serializer {
	return map[string]Serializer{
		".json": JSONSerializer{},
		".yaml": YAMLSerializer{},
		".yml":  YAMLSerializer{},
		".md":   MarkdownSerializer{},
	}
}

// --- JSON Serializer ---

// JSONSerializer handles reading and writing JSON files.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(fields any, _ string) ([]byte, error) {
	data, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (JSONSerializer) Parse(data []byte, fields any) (string, error) {
	if err := json.Unmarshal(data, fields); err != nil {
		return "", fmt.Errorf("invalid json: %w", err)
	}
	return "", nil
}

func (JSONSerializer) Frontmatter() bool { return false }

// --- YAML Serializer ---

type YAMLSerializer struct{}

func (YAMLSerializer) Serialize(fields any, _ string) ([]byte, error) {
	return yaml.Marshal(fields)
}

func (YAMLSerializer) Parse(data []byte, fields any) (string, error) {
	if err := yaml.Unmarshal(data, fields); err != nil {
		return "", fmt.Errorf("invalid yaml: %w", err)
	}
	return "", nil
}

func (YAMLSerializer) Frontmatter() bool { return false }

// --- Markdown Serializer ---

// MarkdownSerializer writes the fields as YAML frontmatter followed by the body.
type MarkdownSerializer struct{}

func (MarkdownSerializer) Serialize(fields any, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(fields); err != nil {
		return nil, err
	}
	encoder.Close()
	buf.WriteString("---\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

func (MarkdownSerializer) Parse(data []byte, fields any) (string, error) {
	if !bytes.HasPrefix(data, []byte("---\n")) && !bytes.HasPrefix(data, []byte("---\r\n")) {
		return string(data), nil
	}

	rest := data[3:]
	parts := bytes.SplitN(rest, []byte("\n---"), 2)
	if len(parts) == 1 {
		return "", errors.New("frontmatter started but no closing delimiter found")
	}

	if err := yaml.Unmarshal(parts[0], fields); err != nil {
		return "", fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	body := strings.TrimPrefix(string(parts[1]), "\r")
	body = strings.TrimPrefix(body, "\n")
	return body, nil
}

func (MarkdownSerializer) Frontmatter() bool { return true }
