// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package schema translates the generic column descriptors carried by requests
// into typed column definitions.
//
// A descriptor maps column names to {"type": <TypeName>, ...options}. The type
// name is looked up in a closed registry; anything outside it is rejected with
// a translation error rather than resolved dynamically. The remaining keys are
// decoded as column options. Descriptor order is preserved so CREATE TABLE
// emits columns in the order the requester wrote them.
package schema

import "strings"

// TypeName is a supported, engine-neutral column type.
type TypeName string

const (
	Integer      TypeName = "Integer"
	SmallInteger TypeName = "SmallInteger"
	BigInteger   TypeName = "BigInteger"
	Boolean      TypeName = "Boolean"
	Float        TypeName = "Float"
	Numeric      TypeName = "Numeric"
	String       TypeName = "String"
	Text         TypeName = "Text"
	Unicode      TypeName = "Unicode"
	UnicodeText  TypeName = "UnicodeText"
	Date         TypeName = "Date"
	DateTime     TypeName = "DateTime"
	Time         TypeName = "Time"
	LargeBinary  TypeName = "LargeBinary"
	JSON         TypeName = "JSON"
)

// registry maps lower-cased accepted spellings to their type.
var registry = map[string]TypeName{
	"integer":      Integer,
	"int":          Integer,
	"smallinteger": SmallInteger,
	"smallint":     SmallInteger,
	"biginteger":   BigInteger,
	"bigint":       BigInteger,
	"boolean":      Boolean,
	"bool":         Boolean,
	"float":        Float,
	"real":         Float,
	"numeric":      Numeric,
	"decimal":      Numeric,
	"string":       String,
	"varchar":      String,
	"text":         Text,
	"unicode":      Unicode,
	"nvarchar":     Unicode,
	"unicodetext":  UnicodeText,
	"date":         Date,
	"datetime":     DateTime,
	"timestamp":    DateTime,
	"time":         Time,
	"largebinary":  LargeBinary,
	"blob":         LargeBinary,
	"json":         JSON,
}

// Lookup resolves a requested type name. Matching is case-insensitive.
func Lookup(name string) (TypeName, bool) {
	t, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// IsInteger reports whether the type can carry an autoincrement.
func (t TypeName) IsInteger() bool {
	return t == Integer || t == SmallInteger || t == BigInteger
}

// HasLength reports whether the length option applies.
func (t TypeName) HasLength() bool {
	switch t {
	case String, Unicode, Text, UnicodeText, LargeBinary:
		return true
	}
	return false
}

// HasPrecision reports whether precision and scale apply.
func (t TypeName) HasPrecision() bool {
	return t == Numeric || t == Float
}
