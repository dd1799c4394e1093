package postgres // import "github.com/creaproof/provenance-registrar/pkg/persistence/postgres"

import (
	"fmt"
)

// AuthNonceTableName is the name of the auth nonce table
const AuthNonceTableName = "auth_nonce"

// CreateAuthNonceTableQuery returns the query to create the auth_nonce table
func CreateAuthNonceTableQuery() string {
	return CreateAuthNonceTableQueryString(AuthNonceTableName)
}

// CreateAuthNonceTableQueryString returns the query to create this table
func CreateAuthNonceTableQueryString(tableName string) string {
	queryString := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s(
            wallet_address TEXT NOT NULL,
            nonce TEXT NOT NULL,
            expires_timestamp BIGINT NOT NULL
        );
        CREATE INDEX IF NOT EXISTS auth_nonce_wallet_idx ON %s (wallet_address);
    `, tableName, tableName)
	return queryString
}

// AuthNonce is the model definition for the auth_nonce table. Nonces are
// single use: consumption deletes the row.
type AuthNonce struct {
	WalletAddress string `db:"wallet_address"`

	Nonce string `db:"nonce"`

	ExpiresTimestamp int64 `db:"expires_timestamp"`
}
