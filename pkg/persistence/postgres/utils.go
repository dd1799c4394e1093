package postgres // import "github.com/creaproof/provenance-registrar/pkg/persistence/postgres"

import (
	"encoding/json"

	"database/sql/driver"

	"github.com/pkg/errors"
)

// JsonbPayload is the jsonb payload type for payload columns
type JsonbPayload map[string]interface{}

// Value implements driver.Valuer for JsonbPayload
func (jp JsonbPayload) Value() (driver.Value, error) {
	return json.Marshal(jp)
}

// Scan implements sql.Scanner for JsonbPayload
func (jp *JsonbPayload) Scan(src interface{}) error {
	source, ok := src.([]byte)
	if !ok {
		return errors.New("expected []byte for jsonb payload")
	}
	return json.Unmarshal(source, jp)
}
