// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

//go:build cgo

package dsn

import (
	_ "github.com/marcboeker/go-duckdb" // registers the "duckdb" database/sql driver
)
