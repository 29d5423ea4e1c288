package db

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// DevMode switches migration loading from the embedded copy to the working
// tree, so new SQL files can be applied without rebuilding the binary.
var DevMode = false

func getMigrationsFS() (fs.FS, error) {
	if DevMode {
		return os.DirFS("internal/db"), nil
	}
	return embeddedMigrations, nil
}
