// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry is one column of a descriptor: the column name and its raw spec.
type Entry struct {
	Name string
	Spec map[string]any
}

// Descriptor is an ordered column descriptor. Unmarshalling keeps the key
// order of the JSON object.
type Descriptor []Entry

// UnmarshalJSON decodes {"col": {"type": ...}, ...} preserving key order.
func (d *Descriptor) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("column descriptor must be an object")
	}

	out := Descriptor{}
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		if seen[name] {
			return fmt.Errorf("column %q is described twice", name)
		}
		seen[name] = true

		var spec map[string]any
		if err := dec.Decode(&spec); err != nil {
			return fmt.Errorf("column %q: spec must be an object", name)
		}
		if spec == nil {
			return fmt.Errorf("column %q: spec must be an object", name)
		}
		out = append(out, Entry{Name: name, Spec: spec})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*d = out
	return nil
}

// MarshalJSON writes the descriptor back as an object in entry order.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Spec)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Names returns the column names in order.
func (d Descriptor) Names() []string {
	names := make([]string, len(d))
	for i, e := range d {
		names[i] = e.Name
	}
	return names
}
