package model // import "github.com/creaproof/provenance-registrar/pkg/model"

import (
	"strings"
)

// UserRole is the stored role of a registrar user
type UserRole string

const (
	// UserRoleCreator can create draft works it owns
	UserRoleCreator UserRole = "creator"

	// UserRoleReviewer can approve, reject and verify works
	UserRoleReviewer UserRole = "reviewer"

	// UserRoleAdministrator has every reviewer capability
	UserRoleAdministrator UserRole = "administrator"
)

// NewUserParams are the params to the NewUser constructor
type NewUserParams struct {
	ID            string
	WalletAddress string
	Role          UserRole
	CreatedTs     int64
}

// NewUser is a convenience function to create a User. Wallet addresses are
// normalized to lowercase for storage and lookup.
func NewUser(params *NewUserParams) *User {
	return &User{
		id:            params.ID,
		walletAddress: strings.ToLower(params.WalletAddress),
		role:          params.Role,
		createdTs:     params.CreatedTs,
	}
}

// User maps a verified wallet identity to a registrar creator/reviewer id
type User struct {
	id string

	walletAddress string

	role UserRole

	createdTs int64
}

// ID returns the unique id of the user
func (u *User) ID() string {
	return u.id
}

// WalletAddress returns the lowercased wallet address of the user
func (u *User) WalletAddress() string {
	return u.walletAddress
}

// Role returns the stored role of the user
func (u *User) Role() UserRole {
	return u.role
}

// CreatedTs returns the creation timestamp of the user record
func (u *User) CreatedTs() int64 {
	return u.createdTs
}
