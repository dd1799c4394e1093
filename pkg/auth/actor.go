// Package auth contains the identity verification and authorization
// collaborators consumed by the publication state machine.
package auth // import "github.com/creaproof/provenance-registrar/pkg/auth"

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/creaproof/provenance-registrar/pkg/model"
)

// Capability is a permission held by a verified actor
type Capability int

const (
	// CapabilityCreator permits creating draft works owned by the actor
	CapabilityCreator Capability = iota

	// CapabilityReviewer permits approve, reject and verify operations
	CapabilityReviewer

	// CapabilityAdministrator implies every reviewer capability
	CapabilityAdministrator
)

// NewActorForUser derives the capability set for a stored user
func NewActorForUser(user *model.User) *Actor {
	capabilities := map[Capability]bool{
		CapabilityCreator: true,
	}
	switch user.Role() {
	case model.UserRoleReviewer:
		capabilities[CapabilityReviewer] = true
	case model.UserRoleAdministrator:
		capabilities[CapabilityReviewer] = true
		capabilities[CapabilityAdministrator] = true
	}
	return &Actor{
		userID:       user.ID(),
		wallet:       common.HexToAddress(user.WalletAddress()),
		capabilities: capabilities,
	}
}

// Actor is a verified identity together with its capability set
type Actor struct {
	userID string

	wallet common.Address

	capabilities map[Capability]bool
}

// ID returns the registrar user id of the actor
func (a *Actor) ID() string {
	return a.userID
}

// Wallet returns the verified wallet address of the actor
func (a *Actor) Wallet() common.Address {
	return a.wallet
}

// HasCapability returns true if the actor holds the given capability
func (a *Actor) HasCapability(capability Capability) bool {
	return a.capabilities[capability]
}

// NewAuthorizer creates an authorizer backed by the user persister
func NewAuthorizer(users model.UserPersister) *Authorizer {
	return &Authorizer{users: users}
}

// Authorizer maps verified identities to registrar actors
type Authorizer struct {
	users model.UserPersister
}

// ActorForWallet returns the actor for a verified wallet address, creating
// a creator-role user on first login.
func (a *Authorizer) ActorForWallet(walletAddress common.Address) (*Actor, error) {
	user, err := a.users.UpsertUserByWallet(walletAddress.Hex())
	if err != nil {
		return nil, err
	}
	return NewActorForUser(user), nil
}

// ActorForUser returns the actor for a stored user id
func (a *Authorizer) ActorForUser(userID string) (*Actor, error) {
	user, err := a.users.UserByID(userID)
	if err != nil {
		return nil, err
	}
	return NewActorForUser(user), nil
}
