// Package all registers every built-in storage backend with the factory.
// Blank-import it from binaries so config alone selects the backend.
package all

import (
	_ "countryetl/internal/storage/mssql"
	_ "countryetl/internal/storage/postgres"
	_ "countryetl/internal/storage/sqlite"
)
