// Package all registers every storage backend with the factory. Commands
// blank-import it so the configured kind is always available.
package all

import (
	_ "taxiload/internal/storage/clickhouse"
	_ "taxiload/internal/storage/postgres"
	_ "taxiload/internal/storage/sqlite"
)
