package postgres // import "github.com/creaproof/provenance-registrar/pkg/persistence/postgres"

import (
	"fmt"
)

// CronTableName is the name of the cron table
const CronTableName = "cron"

// CreateCronTableQuery returns the query to create the cron table
func CreateCronTableQuery() string {
	return CreateCronTableQueryString(CronTableName)
}

// CreateCronTableQueryString returns the query to create this table
// NOTE: This table only is allowed to ever have 1 row
func CreateCronTableQueryString(tableName string) string {
	queryString := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s(timestamp BIGINT NOT NULL);
        CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s((timestamp IS NOT NULL));
    `, tableName, tableName+"_one_row", tableName)
	return queryString
}

// CronData contains the bookkeeping for the reconciliation worker that
// needs to be persisted in the cron table.
type CronData struct {
	Timestamp int64 `db:"timestamp"`
}

// NewCron creates a CronData model for DB from a timestamp to save
func NewCron(timestamp int64) *CronData {
	return &CronData{Timestamp: timestamp}
}
