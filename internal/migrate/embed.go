package migrate

import (
	"embed"
	"io/fs"
)

//go:embed sql/migrations/*.sql sql/seeds/*.sql
var embedded embed.FS

// Files returns the bundled schema: migrations/*.up.sql, migrations/*.down.sql
// and seeds/*.sql.
func Files() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}
