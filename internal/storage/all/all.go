// Package all registers every compiled-in storage backend. Blank-import it
// from a main package to make the kinds available to storage.New.
package all

import (
	_ "cresval/internal/storage/mssql"
	_ "cresval/internal/storage/postgres"
	_ "cresval/internal/storage/sqlite"
)
