package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rendis/opfilter/internal/graph"
)

// readInput reads path, or stdin when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// toJSON returns data as JSON, converting YAML documents by extension.
func toJSON(path string, data []byte) ([]byte, error) {
	if !isYAML(path) {
		return data, nil
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert %s to JSON: %w", path, err)
	}
	return out, nil
}

// loadCondition reads a condition document as JSON.
func loadCondition(path string, stdin io.Reader) ([]byte, error) {
	data, err := readInput(path, stdin)
	if err != nil {
		return nil, fmt.Errorf("read condition: %w", err)
	}
	return toJSON(path, data)
}

// loadDocument reads a JSON or YAML data document. Numbers decode as
// json.Number; references are left unlinked.
func loadDocument(path string, stdin io.Reader) (any, error) {
	data, err := readInput(path, stdin)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if data, err = toJSON(path, data); err != nil {
		return nil, err
	}
	return graph.DecodeJSON(data)
}

// loadItems reads a document that must be a list.
func loadItems(path string, stdin io.Reader) ([]any, error) {
	doc, err := loadDocument(path, stdin)
	if err != nil {
		return nil, err
	}
	items, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: items must be a JSON array", path)
	}
	return items, nil
}
