// Package all links every ledger backend and the database/sql drivers they
// need. Import it for side effects from commands.
package all

import (
	_ "github.com/microsoft/go-mssqldb"

	_ "recmerge/internal/ledger/mssql"
	_ "recmerge/internal/ledger/postgres"
	_ "recmerge/internal/ledger/sqlite"
)
