package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/buger/jsonparser"
)

// Source identifies where a snapshot's bytes came from.
type Source string

const (
	SourceNone Source = ""
	SourceURL  Source = "url"
	SourceFile Source = "file"
)

const (
	defaultSchema     = "default"
	defaultColumnType = "String"
)

// Column is one declared column of a model, in document order.
type Column struct {
	Name        string
	DataType    string
	Description string
}

// Columns decodes a manifest `columns` object while keeping the key order of
// the document. Several derivations pick the first matching column, so the
// order must survive decoding.
type Columns []Column

func (c *Columns) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = nil
		return nil
	}
	var out Columns
	err := jsonparser.ObjectEach(b, func(key []byte, value []byte, dt jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return err
		}
		col := Column{Name: name, DataType: defaultColumnType}
		if dt == jsonparser.Object {
			var meta struct {
				DataType    *string `json:"data_type"`
				Description string  `json:"description"`
			}
			if err := json.Unmarshal(value, &meta); err != nil {
				return fmt.Errorf("column %q: %w", name, err)
			}
			if meta.DataType != nil && *meta.DataType != "" {
				col.DataType = *meta.DataType
			}
			col.Description = meta.Description
		}
		out = append(out, col)
		return nil
	})
	if err != nil {
		return err
	}
	*c = out
	return nil
}

// ModelNode describes one table or view exposed by the manifest.
type ModelNode struct {
	UniqueID     string   `json:"unique_id"`
	Name         string   `json:"name"`
	ResourceType string   `json:"resource_type"`
	Schema       string   `json:"schema"`
	Alias        string   `json:"alias"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	Columns      Columns  `json:"columns"`
}

// TableName returns the fully qualified `schema.alias` name.
func (n *ModelNode) TableName() string {
	schema := n.Schema
	if schema == "" {
		schema = defaultSchema
	}
	alias := n.Alias
	if alias == "" {
		alias = n.Name
	}
	return schema + "." + alias
}

// document is the subset of the manifest we read.
type document struct {
	Nodes map[string]json.RawMessage `json:"nodes"`
}

// parseModels decodes raw manifest bytes and indexes the model nodes by name.
func parseModels(raw []byte) (map[string]*ModelNode, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	models := make(map[string]*ModelNode, len(doc.Nodes))
	for key, rawNode := range doc.Nodes {
		var head struct {
			ResourceType string `json:"resource_type"`
		}
		if err := json.Unmarshal(rawNode, &head); err != nil {
			return nil, fmt.Errorf("node %s: %w", key, err)
		}
		if head.ResourceType != "model" {
			continue
		}
		var node ModelNode
		if err := json.Unmarshal(rawNode, &node); err != nil {
			return nil, fmt.Errorf("node %s: %w", key, err)
		}
		models[node.Name] = &node
	}
	return models, nil
}

// Snapshot is an immutable view of the manifest at one point in time.
// Callers must not modify it.
type Snapshot struct {
	Models   map[string]*ModelNode
	Hash     string
	Source   Source
	LoadedAt time.Time
}

// Model returns the node for name, if indexed.
func (s *Snapshot) Model(name string) (*ModelNode, bool) {
	if s == nil {
		return nil, false
	}
	n, ok := s.Models[name]
	return n, ok
}

// Len returns the number of indexed models.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Models)
}
