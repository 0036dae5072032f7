package store

import _ "embed"

// Schema is the subsystem's slice of the platform schema. Integration tests
// load it into a fresh database; production migrations live with the wider
// platform.
//
//go:embed schema.sql
var Schema string
