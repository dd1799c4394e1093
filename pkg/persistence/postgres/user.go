package postgres // import "github.com/creaproof/provenance-registrar/pkg/persistence/postgres"

import (
	"fmt"

	"github.com/creaproof/provenance-registrar/pkg/model"
)

// UserTableName is the name of the registrar user table
const UserTableName = "registrar_user"

// CreateUserTableQuery returns the query to create the registrar_user table
func CreateUserTableQuery() string {
	return CreateUserTableQueryString(UserTableName)
}

// CreateUserTableQueryString returns the query to create this table
func CreateUserTableQueryString(tableName string) string {
	queryString := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s(
            id TEXT PRIMARY KEY,
            wallet_address TEXT NOT NULL,
            role TEXT NOT NULL,
            creation_timestamp BIGINT
        );
        CREATE UNIQUE INDEX IF NOT EXISTS user_wallet_idx ON %s (wallet_address);
    `, tableName, tableName)
	return queryString
}

// User is the model definition for the registrar_user table
type User struct {
	ID string `db:"id"`

	WalletAddress string `db:"wallet_address"`

	Role string `db:"role"`

	CreatedDateTs int64 `db:"creation_timestamp"`
}

// NewUser constructs a user for DB from a model.User
func NewUser(user *model.User) *User {
	return &User{
		ID:            user.ID(),
		WalletAddress: user.WalletAddress(),
		Role:          string(user.Role()),
		CreatedDateTs: user.CreatedTs(),
	}
}

// DbToUserData creates a model.User from a postgres User
func (u *User) DbToUserData() *model.User {
	return model.NewUser(&model.NewUserParams{
		ID:            u.ID,
		WalletAddress: u.WalletAddress,
		Role:          model.UserRole(u.Role),
		CreatedTs:     u.CreatedDateTs,
	})
}
