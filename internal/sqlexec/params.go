// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	werrors "sqlworker/internal/errors"
	"sqlworker/internal/schema"
)

// Params holds the raw "parameters" object of a request. Fields are decoded
// on demand so each handler can report exactly which input is missing.
type Params map[string]json.RawMessage

// ParseParams decodes a parameters object. A null or absent object yields
// empty Params.
func ParseParams(raw json.RawMessage) (Params, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Params{}, nil
	}
	var p Params
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, werrors.Wrap(werrors.Validation, "Invalid parameters", err)
	}
	if p == nil {
		p = Params{}
	}
	return p, nil
}

// Has reports whether key is present and not null.
func (p Params) Has(key string) bool {
	raw, ok := p[key]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (p Params) decode(key string, v any) error {
	if !p.Has(key) {
		return werrors.MissingInput(key)
	}
	dec := json.NewDecoder(bytes.NewReader(p[key]))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return invalid(key, err)
	}
	return nil
}

func invalid(key string, err error) error {
	return werrors.Wrap(werrors.Validation, "Invalid input "+key, err)
}

// String returns a required, non-blank string field.
func (p Params) String(key string) (string, error) {
	var s string
	if err := p.decode(key, &s); err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", werrors.MissingInput(key)
	}
	return s, nil
}

// Descriptor returns a required column descriptor, in request order.
func (p Params) Descriptor(key string) (schema.Descriptor, error) {
	var d schema.Descriptor
	if err := p.decode(key, &d); err != nil {
		return nil, err
	}
	if len(d) == 0 {
		return nil, werrors.MissingInput(key)
	}
	return d, nil
}

// Names returns a required, non-empty list of column names.
func (p Params) Names(key string) ([]string, error) {
	var names []string
	if err := p.decode(key, &names); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, werrors.MissingInput(key)
	}
	for i, n := range names {
		if strings.TrimSpace(n) == "" {
			return nil, invalid(key, fmt.Errorf("entry %d is blank", i))
		}
	}
	return names, nil
}

// Rows returns a required, non-empty list of rows. Numbers are kept as
// json.Number until they are bound.
func (p Params) Rows(key string) ([]map[string]any, error) {
	var rows []map[string]any
	if err := p.decode(key, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, werrors.MissingInput(key)
	}
	for i, r := range rows {
		if len(r) == 0 {
			return nil, invalid(key, fmt.Errorf("row %d has no columns", i))
		}
	}
	return rows, nil
}

// Predicate returns a required equality predicate. An empty predicate is
// rejected so a request can never delete a whole table by omission.
func (p Params) Predicate(key string) (map[string]any, error) {
	var where map[string]any
	if err := p.decode(key, &where); err != nil {
		return nil, err
	}
	if len(where) == 0 {
		return nil, invalid(key, fmt.Errorf("predicate must name at least one column"))
	}
	return where, nil
}
