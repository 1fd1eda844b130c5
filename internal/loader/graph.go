package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kforge/internal/ir"
)

// Graphs is a loaded kernel: the entry graph and its callees in file
// order.
type Graphs struct {
	Entry   *ir.Graph
	Callees []*ir.Graph
}

// LoadGraphs reads a YAML graph file.
func LoadGraphs(path string) (Graphs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := ErrCodeLoadFailed
		if errors.Is(err, os.ErrNotExist) {
			code = ErrCodeNotFound
		}
		return Graphs{}, &LoadError{Code: code, Path: path, Message: err.Error()}
	}
	gs, err := ParseGraphs(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return Graphs{}, err
	}
	return gs, nil
}

// ParseGraphs decodes a YAML stream of graph documents. The first
// document is the entry point.
func ParseGraphs(data []byte) (Graphs, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var gs Graphs
	for i := 0; ; i++ {
		var doc ir.Document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Graphs{}, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("document %d: %v", i, err)}
		}
		g, err := ir.FromDocument(doc)
		if err != nil {
			return Graphs{}, &LoadError{Code: ErrCodeBadGraph, Message: fmt.Sprintf("document %d (%s): %v", i, doc.Name, err)}
		}
		if gs.Entry == nil {
			gs.Entry = g
		} else {
			gs.Callees = append(gs.Callees, g)
		}
	}
	if gs.Entry == nil {
		return Graphs{}, &LoadError{Code: ErrCodeNoFiles, Message: "no graph documents"}
	}
	return gs, nil
}

// MarshalGraphs writes the entry and callees as a YAML stream that
// ParseGraphs reads back with the same node ids.
func MarshalGraphs(entry *ir.Graph, callees ...*ir.Graph) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, g := range append([]*ir.Graph{entry}, callees...) {
		if err := enc.Encode(ir.ToDocument(g)); err != nil {
			return nil, fmt.Errorf("encode %s: %w", g.Name, err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
