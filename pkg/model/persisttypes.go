package model // import "github.com/creaproof/provenance-registrar/pkg/model"

import (
	"github.com/ethereum/go-ethereum/common"
)

// WorkCriteria contains the retrieval criteria for a WorksByCriteria query
type WorkCriteria struct {
	// State filters by publication state when StateSet is true
	State    WorkState
	StateSet bool

	// OnlyVerified restricts results to the public read surface
	OnlyVerified bool

	// ReceiptFailed restricts results to works whose last reconciliation failed
	ReceiptFailed bool

	// CreatorID filters by owning creator
	CreatorID string

	// TitleSearch is a case insensitive substring match on the title
	TitleSearch string

	// Offset and Count page through results ordered by last update, newest first
	Offset int
	Count  int
}

// ReconciliationOutcome is the result of a ledger receipt lookup as applied
// to a work record.
type ReconciliationOutcome struct {
	// Success is true when the registration transaction was mined successfully
	Success bool

	// BlockNumber of the including block, only set on success
	BlockNumber int64

	// BlockTimestamp of the including block, only set on success
	BlockTimestamp int64

	// ContractAddress of the registration contract, only set on success
	ContractAddress common.Address

	// DemoteToDraft selects the failure policy: when true a failed outcome
	// moves the work back to draft for resubmission, otherwise it stays
	// submitted with the failed marker for manual intervention.
	DemoteToDraft bool
}

// WorkTransitioner is a single-work transaction holding an exclusive row
// lock for the duration of a state transition. Each Apply enforces its own
// precondition and returns an invalid transition error when the current
// state does not permit it. The row update and any appended audit entries
// commit or roll back together.
type WorkTransitioner interface {
	// Work returns the work snapshot read under the lock
	Work() *Work

	// ApplyQueued transitions draft -> queued
	ApplyQueued() error

	// ApplySubmitted transitions queued -> submitted and stores the tx identity
	ApplySubmitted(network string, txHash string) error

	// ApplyReconciliation applies a receipt outcome to a submitted work
	ApplyReconciliation(outcome *ReconciliationOutcome) error

	// ApplyVerified transitions confirmed -> verified
	ApplyVerified(verifierID string) error

	// ApplyRejected transitions draft/queued -> rejected, or back to draft
	// when resetToDraft is set
	ApplyRejected(reason string, resetToDraft bool) error

	// AppendAudit appends an audit entry within the same transaction
	AppendAudit(entry *AuditEntry) error

	// Commit commits the transaction and releases the row lock
	Commit() error

	// Rollback aborts the transaction and releases the row lock
	Rollback() error
}

// WorkPersister is the interface to store the authoritative off-chain
// record of each work.
type WorkPersister interface {
	// CreateWork creates a new work record, always in state draft
	CreateWork(work *Work) error
	// WorkByID retrieves a work based on its id
	WorkByID(workID string) (*Work, error)
	// WorksByCriteria retrieves works based on WorkCriteria
	WorksByCriteria(criteria *WorkCriteria) ([]*Work, error)
	// LockWorkForTransition acquires an exclusive row lock for a transition
	LockWorkForTransition(workID string) (WorkTransitioner, error)
}

// AuditPersister is the interface to read back the append-only audit
// trail. Reads exist for operator tooling only; the state machine never
// consumes the trail.
type AuditPersister interface {
	// AuditEntriesByWork retrieves the audit entries touching a work
	AuditEntriesByWork(workID string) ([]*AuditEntry, error)
}

// UserPersister is the interface to store registrar users
type UserPersister interface {
	// CreateUser creates a new user
	CreateUser(user *User) error
	// UserByID retrieves a user based on id
	UserByID(userID string) (*User, error)
	// UserByWallet retrieves a user based on wallet address
	UserByWallet(walletAddress string) (*User, error)
	// UpsertUserByWallet retrieves the user for a wallet, creating a
	// creator-role user on first login
	UpsertUserByWallet(walletAddress string) (*User, error)
}

// NonceStore is the interface to store single-use login challenge nonces.
// Owned by the identity collaborator and injected as a dependency.
type NonceStore interface {
	// CreateNonce stores a nonce for a wallet with an absolute expiry time
	CreateNonce(walletAddress string, nonce string, expiresTs int64) error
	// ConsumeNonce validates a nonce for a wallet and deletes it. Returns
	// false when the nonce is unknown, already used or expired.
	ConsumeNonce(walletAddress string, nonce string, nowTs int64) (bool, error)
}

// CronPersister stores bookkeeping for the scheduled reconciliation worker
type CronPersister interface {
	// TimestampOfLastReconcileRun returns the timestamp of the last worker run
	TimestampOfLastReconcileRun() (int64, error)
	// UpdateTimestampForReconcile saves the timestamp of a worker run
	UpdateTimestampForReconcile(timestamp int64) error
}
