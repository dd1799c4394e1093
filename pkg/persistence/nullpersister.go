package persistence // import "github.com/creaproof/provenance-registrar/pkg/persistence"

import (
	"github.com/creaproof/provenance-registrar/pkg/model"
)

// NullPersister is a persister that does nothing but return default values
type NullPersister struct {
}

// CreateWork does nothing
func (n *NullPersister) CreateWork(work *model.Work) error {
	return nil
}

// WorkByID returns an empty work
func (n *NullPersister) WorkByID(workID string) (*model.Work, error) {
	return &model.Work{}, nil
}

// WorksByCriteria returns an empty slice of works
func (n *NullPersister) WorksByCriteria(criteria *model.WorkCriteria) ([]*model.Work, error) {
	return []*model.Work{}, nil
}

// LockWorkForTransition returns a transitioner over an empty work
func (n *NullPersister) LockWorkForTransition(workID string) (model.WorkTransitioner, error) {
	return &nullTransitioner{work: &model.Work{}}, nil
}

// AuditEntriesByWork returns an empty slice of audit entries
func (n *NullPersister) AuditEntriesByWork(workID string) ([]*model.AuditEntry, error) {
	return []*model.AuditEntry{}, nil
}

// CreateUser does nothing
func (n *NullPersister) CreateUser(user *model.User) error {
	return nil
}

// UserByID returns an empty user
func (n *NullPersister) UserByID(userID string) (*model.User, error) {
	return &model.User{}, nil
}

// UserByWallet returns an empty user
func (n *NullPersister) UserByWallet(walletAddress string) (*model.User, error) {
	return &model.User{}, nil
}

// UpsertUserByWallet returns an empty user
func (n *NullPersister) UpsertUserByWallet(walletAddress string) (*model.User, error) {
	return &model.User{}, nil
}

// CreateNonce does nothing
func (n *NullPersister) CreateNonce(walletAddress string, nonce string, expiresTs int64) error {
	return nil
}

// ConsumeNonce always reports an unknown nonce
func (n *NullPersister) ConsumeNonce(walletAddress string, nonce string, nowTs int64) (bool, error) {
	return false, nil
}

// TimestampOfLastReconcileRun returns a default timestamp
func (n *NullPersister) TimestampOfLastReconcileRun() (int64, error) {
	return 0, nil
}

// UpdateTimestampForReconcile does nothing
func (n *NullPersister) UpdateTimestampForReconcile(timestamp int64) error {
	return nil
}

type nullTransitioner struct {
	work *model.Work
}

func (t *nullTransitioner) Work() *model.Work {
	return t.work
}

func (t *nullTransitioner) ApplyQueued() error {
	return nil
}

func (t *nullTransitioner) ApplySubmitted(network string, txHash string) error {
	return nil
}

func (t *nullTransitioner) ApplyReconciliation(outcome *model.ReconciliationOutcome) error {
	return nil
}

func (t *nullTransitioner) ApplyVerified(verifierID string) error {
	return nil
}

func (t *nullTransitioner) ApplyRejected(reason string, resetToDraft bool) error {
	return nil
}

func (t *nullTransitioner) AppendAudit(entry *model.AuditEntry) error {
	return nil
}

func (t *nullTransitioner) Commit() error {
	return nil
}

func (t *nullTransitioner) Rollback() error {
	return nil
}
