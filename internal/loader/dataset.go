// Package loader reads Power BI dataset definitions from YAML files.
//
// A dataset file names the dataset, its M parameters, and the M expression
// of each table:
//
//	dataset: sales
//	parameters:
//	  ServerName: db.example.com
//	tables:
//	  - name: orders
//	    expression: |
//	      let Source = ... in Source
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dataset is one Power BI dataset.
type Dataset struct {
	Name       string
	Parameters map[string]string
	Tables     []Table
	// Path is the file the dataset was read from.
	Path string
}

// Table is a dataset table and its M expression.
type Table struct {
	Name       string
	Expression string
	// FullName is <dataset>.<table>.
	FullName string
}

type datasetYAML struct {
	Dataset    string            `yaml:"dataset"`
	Parameters map[string]string `yaml:"parameters"`
	Tables     []tableYAML       `yaml:"tables"`
}

type tableYAML struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
}

var (
	datasetFields = map[string]bool{"dataset": true, "parameters": true, "tables": true}
	tableFields   = map[string]bool{"name": true, "expression": true}
)

// LoadFile reads a single dataset file.
func LoadFile(path string) (*Dataset, error) {
	content, err := os.ReadFile(path) //nolint:gosec // path comes from the command line or a directory walk
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file %s: %w", path, err)
	}
	return Parse(path, content)
}

// Parse decodes dataset YAML. path is used for error messages and for the
// default dataset name.
func Parse(path string, content []byte) (*Dataset, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, &DatasetParseError{File: path, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if err := checkFields(path, raw, datasetFields); err != nil {
		return nil, err
	}
	if tables, ok := raw["tables"].([]any); ok {
		for _, t := range tables {
			if m, ok := t.(map[string]any); ok {
				if err := checkFields(path, m, tableFields); err != nil {
					return nil, err
				}
			}
		}
	}

	var doc datasetYAML
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, &DatasetParseError{File: path, Message: fmt.Sprintf("failed to parse dataset: %v", err)}
	}

	ds := &Dataset{
		Name:       doc.Dataset,
		Parameters: doc.Parameters,
		Path:       path,
	}
	if ds.Name == "" {
		ds.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if ds.Parameters == nil {
		ds.Parameters = map[string]string{}
	}

	seen := make(map[string]bool, len(doc.Tables))
	for i, t := range doc.Tables {
		if t.Name == "" {
			return nil, &DatasetParseError{File: path, Message: fmt.Sprintf("table %d has no name", i+1)}
		}
		if seen[t.Name] {
			return nil, &DatasetParseError{File: path, Message: fmt.Sprintf("duplicate table %q", t.Name)}
		}
		seen[t.Name] = true
		ds.Tables = append(ds.Tables, Table{
			Name:       t.Name,
			Expression: t.Expression,
			FullName:   ds.Name + "." + t.Name,
		})
	}
	return ds, nil
}

func checkFields(path string, raw map[string]any, known map[string]bool) error {
	for field := range raw {
		if !known[field] {
			return &UnknownFieldError{File: path, Field: field}
		}
	}
	return nil
}

// DatasetParseError represents a malformed dataset file.
type DatasetParseError struct {
	File    string
	Message string
}

func (e *DatasetParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownFieldError represents an unrecognized key in a dataset file.
type UnknownFieldError struct {
	File  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q in dataset", e.Field)
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}
