package model // import "github.com/creaproof/provenance-registrar/pkg/model"

// Audit action tags written by the publication state machine
const (
	// AuditActionApprove is written when a draft work is approved into the queue
	AuditActionApprove = "APPROVE"

	// AuditActionReject is written when a work is rejected by a reviewer
	AuditActionReject = "REJECT"

	// AuditActionPublish is written when a registration transaction is relayed
	AuditActionPublish = "PUBLISH"

	// AuditActionConfirm is written when reconciliation applies a mined receipt
	AuditActionConfirm = "CONFIRM"

	// AuditActionVerify is written when a reviewer verifies a confirmed work
	AuditActionVerify = "VERIFY"
)

// NewAuditEntryParams are the params to the NewAuditEntry constructor
type NewAuditEntryParams struct {
	ID      string
	ActorID string
	Action  string
	Payload map[string]interface{}
	Ts      int64
}

// NewAuditEntry is a convenience function to create an AuditEntry
func NewAuditEntry(params *NewAuditEntryParams) *AuditEntry {
	payload := params.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &AuditEntry{
		id:      params.ID,
		actorID: params.ActorID,
		action:  params.Action,
		payload: payload,
		ts:      params.Ts,
	}
}

// AuditEntry is an immutable record of a state changing action. Entries are
// appended in the same transaction as the state change and never mutated
// or deleted.
type AuditEntry struct {
	id string

	actorID string

	action string

	payload map[string]interface{}

	ts int64
}

// ID returns the unique id of the audit entry
func (a *AuditEntry) ID() string {
	return a.id
}

// ActorID returns the id of the actor who performed the action
func (a *AuditEntry) ActorID() string {
	return a.actorID
}

// Action returns the action tag
func (a *AuditEntry) Action() string {
	return a.action
}

// Payload returns the structured payload, minimally containing the
// affected work id.
func (a *AuditEntry) Payload() map[string]interface{} {
	return a.payload
}

// Ts returns the timestamp of the action
func (a *AuditEntry) Ts() int64 {
	return a.ts
}
