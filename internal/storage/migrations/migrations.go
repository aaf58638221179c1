// Package migrations holds the user-data schema. SQL migrations are
// embedded; data migrations are Go functions registered with goose.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
