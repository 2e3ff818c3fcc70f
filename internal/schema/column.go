// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package schema

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	werrors "sqlworker/internal/errors"
)

// Column is a typed column definition ready for DDL rendering.
type Column struct {
	Name string
	Type TypeName

	// Length applies to string and binary types; 0 means engine default.
	Length int
	// Precision and Scale apply to Numeric and Float; 0 means engine default.
	Precision int
	Scale     int

	PrimaryKey bool
	// Nullable is nil when the descriptor left it out.
	Nullable *bool
	// Autoincrement is nil for "auto": a sole integer primary key increments.
	Autoincrement *bool
	Unique        bool
	Index         bool
	Timezone      bool
	// Default is a scalar server default, nil for none.
	Default any
}

// IsNullable resolves the effective nullability. Primary key columns are NOT
// NULL unless the descriptor says otherwise.
func (c Column) IsNullable() bool {
	if c.Nullable != nil {
		return *c.Nullable
	}
	return !c.PrimaryKey
}

// options mirrors the accepted descriptor keys besides "type".
type options struct {
	PrimaryKey    bool  `mapstructure:"primary_key"`
	Nullable      *bool `mapstructure:"nullable"`
	Autoincrement any   `mapstructure:"autoincrement"`
	Length        int   `mapstructure:"length"`
	Precision     int   `mapstructure:"precision"`
	Scale         int   `mapstructure:"scale"`
	Unique        bool  `mapstructure:"unique"`
	Index         bool  `mapstructure:"index"`
	Timezone      bool  `mapstructure:"timezone"`
	Default       any   `mapstructure:"default"`
}

// Translate converts a descriptor into columns, in descriptor order.
// Unknown type names and invalid options are translation errors.
func Translate(d Descriptor) ([]Column, error) {
	if len(d) == 0 {
		return nil, werrors.New(werrors.Translation, "No columns given")
	}
	cols := make([]Column, 0, len(d))
	for _, e := range d {
		col, err := translateEntry(e)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func translateEntry(e Entry) (Column, error) {
	if strings.TrimSpace(e.Name) == "" {
		return Column{}, werrors.New(werrors.Translation, "Column name must not be empty")
	}
	raw, ok := e.Spec["type"]
	if !ok {
		return Column{}, werrors.Newf(werrors.Translation, "Column %s has no type", e.Name)
	}
	typeName, _ := raw.(string)
	t, ok := Lookup(typeName)
	if !ok {
		return Column{}, werrors.Newf(werrors.Translation, "Unsupported column type %q for column %s", fmt.Sprint(raw), e.Name)
	}

	rest := make(map[string]any, len(e.Spec))
	for k, v := range e.Spec {
		if k != "type" {
			rest[k] = v
		}
	}

	var opts options
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return Column{}, werrors.Wrap(werrors.Translation, "Could not build option decoder", err)
	}
	if err := dec.Decode(rest); err != nil {
		return Column{}, werrors.Wrap(werrors.Translation, fmt.Sprintf("Invalid options for column %s", e.Name), err)
	}

	col := Column{
		Name:       e.Name,
		Type:       t,
		Length:     opts.Length,
		Precision:  opts.Precision,
		Scale:      opts.Scale,
		PrimaryKey: opts.PrimaryKey,
		Nullable:   opts.Nullable,
		Unique:     opts.Unique,
		Index:      opts.Index,
		Timezone:   opts.Timezone,
		Default:    opts.Default,
	}
	if col.Autoincrement, err = parseAutoincrement(opts.Autoincrement); err != nil {
		return Column{}, werrors.Wrap(werrors.Translation, fmt.Sprintf("Invalid options for column %s", e.Name), err)
	}
	if err := validate(col); err != nil {
		return Column{}, err
	}
	return col, nil
}

// parseAutoincrement accepts true, false, "auto" or absence.
func parseAutoincrement(v any) (*bool, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return &x, nil
	case string:
		switch strings.ToLower(x) {
		case "auto":
			return nil, nil
		case "true":
			b := true
			return &b, nil
		case "false":
			b := false
			return &b, nil
		}
	}
	return nil, fmt.Errorf("autoincrement must be true, false or \"auto\", got %v", v)
}

func validate(c Column) error {
	fail := func(format string, args ...any) error {
		return werrors.Newf(werrors.Translation, "Column %s: "+format, append([]any{c.Name}, args...)...)
	}
	if c.Length < 0 {
		return fail("length must be positive")
	}
	if c.Length > 0 && !c.Type.HasLength() {
		return fail("option length is not valid for type %s", c.Type)
	}
	if (c.Precision != 0 || c.Scale != 0) && !c.Type.HasPrecision() {
		return fail("options precision and scale are not valid for type %s", c.Type)
	}
	if c.Precision < 0 || c.Scale < 0 || (c.Scale > 0 && c.Scale > c.Precision) {
		return fail("scale must not exceed precision")
	}
	if c.Timezone && c.Type != DateTime {
		return fail("option timezone is only valid for DateTime")
	}
	if c.Autoincrement != nil && *c.Autoincrement && !c.Type.IsInteger() {
		return fail("autoincrement requires an integer type, got %s", c.Type)
	}
	switch c.Default.(type) {
	case nil, string, bool, float64, int, int64:
	default:
		return fail("default must be a scalar")
	}
	return nil
}

// ForAlter reduces columns to what an alteration applies: the bare type,
// nullability and autoincrement. Length, precision and the remaining options
// are dropped, so String alters to the engine's unbounded string type.
func ForAlter(cols []Column) []Column {
	out := make([]Column, len(cols))
	for i, c := range cols {
		nullable := c.IsNullable()
		out[i] = Column{
			Name:          c.Name,
			Type:          c.Type,
			Nullable:      &nullable,
			Autoincrement: c.Autoincrement,
		}
	}
	return out
}

// AutoIncrements resolves "auto": an explicit flag wins, otherwise a column
// increments when it is the table's only primary key and an integer.
func AutoIncrements(c Column, cols []Column) bool {
	if c.Autoincrement != nil {
		return *c.Autoincrement
	}
	if !c.PrimaryKey || !c.Type.IsInteger() {
		return false
	}
	pks := 0
	for _, o := range cols {
		if o.PrimaryKey {
			pks++
		}
	}
	return pks == 1
}
