// Package migrations embeds the SQL schema files into the binary.
//
// Importing it for side effects registers the files with the database
// package, so pseudodevd can migrate without the files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/pseudodev/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
