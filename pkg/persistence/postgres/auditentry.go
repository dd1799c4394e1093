package postgres // import "github.com/creaproof/provenance-registrar/pkg/persistence/postgres"

import (
	"fmt"

	"github.com/creaproof/provenance-registrar/pkg/model"
)

// AuditEntryTableName is the name of the audit entry table
const AuditEntryTableName = "audit_entry"

// CreateAuditEntryTableQuery returns the query to create the audit_entry table
func CreateAuditEntryTableQuery() string {
	return CreateAuditEntryTableQueryString(AuditEntryTableName)
}

// CreateAuditEntryTableQueryString returns the query to create this table
func CreateAuditEntryTableQueryString(tableName string) string {
	queryString := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s(
            id TEXT PRIMARY KEY,
            actor_id TEXT NOT NULL,
            action TEXT NOT NULL,
            payload JSONB,
            timestamp BIGINT
        );
    `, tableName)
	return queryString
}

// AuditEntryTableIndices returns the query to create indices for this table
func AuditEntryTableIndices() string {
	return CreateAuditEntryTableIndicesString(AuditEntryTableName)
}

// CreateAuditEntryTableIndicesString returns the query to create indices for this table
func CreateAuditEntryTableIndicesString(tableName string) string {
	queryString := fmt.Sprintf(`
        CREATE INDEX IF NOT EXISTS audit_actor_idx ON %s (actor_id);
        CREATE INDEX IF NOT EXISTS audit_work_idx ON %s ((payload->>'work_id'));
    `, tableName, tableName)
	return queryString
}

// AuditEntry is the model definition for the audit_entry table
type AuditEntry struct {
	ID string `db:"id"`

	ActorID string `db:"actor_id"`

	Action string `db:"action"`

	Payload JsonbPayload `db:"payload"`

	Timestamp int64 `db:"timestamp"`
}

// NewAuditEntry constructs an audit entry for DB from a model.AuditEntry
func NewAuditEntry(entry *model.AuditEntry) *AuditEntry {
	payload := make(JsonbPayload, len(entry.Payload()))
	for key, value := range entry.Payload() {
		payload[key] = value
	}
	return &AuditEntry{
		ID:        entry.ID(),
		ActorID:   entry.ActorID(),
		Action:    entry.Action(),
		Payload:   payload,
		Timestamp: entry.Ts(),
	}
}

// DbToAuditEntryData creates a model.AuditEntry from a postgres AuditEntry
func (a *AuditEntry) DbToAuditEntryData() *model.AuditEntry {
	payload := make(map[string]interface{}, len(a.Payload))
	for key, value := range a.Payload {
		payload[key] = value
	}
	return model.NewAuditEntry(&model.NewAuditEntryParams{
		ID:      a.ID,
		ActorID: a.ActorID,
		Action:  a.Action,
		Payload: payload,
		Ts:      a.Timestamp,
	})
}
