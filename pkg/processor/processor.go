// Package processor contains the publication state machine governing the
// on-chain registration workflow of a work.
package processor // import "github.com/creaproof/provenance-registrar/pkg/processor"

import (
	"strings"
	"time"

	log "github.com/golang/glog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/creaproof/provenance-registrar/pkg/auth"
	"github.com/creaproof/provenance-registrar/pkg/ledger"
	"github.com/creaproof/provenance-registrar/pkg/model"
)

// systemActorID is recorded for transitions applied by the worker rather
// than a named operator.
const systemActorID = "system"

// ReconcileStatus classifies the outcome of a reconciliation attempt
type ReconcileStatus int

const (
	// ReconcileConfirmed means the receipt was applied and the work is confirmed
	ReconcileConfirmed ReconcileStatus = iota

	// ReconcilePending means the transaction is not yet included in a block
	ReconcilePending

	// ReconcileFailed means the transaction was mined but did not succeed
	ReconcileFailed

	// ReconcileNoop means the work was already reconciled; stored values returned
	ReconcileNoop
)

// ReconcileResult is the outcome of a reconciliation attempt for one work
type ReconcileResult struct {
	Status ReconcileStatus
	Work   *model.Work
}

// NewPublicationProcessorParams are the params to the NewPublicationProcessor
// constructor
type NewPublicationProcessorParams struct {
	Ledger              ledger.Client
	WorkPersister       model.WorkPersister
	UserPersister       model.UserPersister
	Publisher           Publisher
	DemoteFailedToDraft bool
}

// NewPublicationProcessor is a convenience function to init a PublicationProcessor
func NewPublicationProcessor(params *NewPublicationProcessorParams) *PublicationProcessor {
	return &PublicationProcessor{
		ledger:              params.Ledger,
		workPersister:       params.WorkPersister,
		userPersister:       params.UserPersister,
		publisher:           params.Publisher,
		demoteFailedToDraft: params.DemoteFailedToDraft,
	}
}

// PublicationProcessor governs the legal state transitions of works,
// validates preconditions before invoking the ledger client, and applies
// reconciliation outcomes to the record store.
type PublicationProcessor struct {
	ledger              ledger.Client
	workPersister       model.WorkPersister
	userPersister       model.UserPersister
	publisher           Publisher
	demoteFailedToDraft bool
}

// CreateDraftParams are the params to CreateDraft
type CreateDraftParams struct {
	Title           string
	Fingerprint     string
	Description     string
	PublicationYear int
}

// CreateDraft creates a new work record in state draft, owned by the actor
func (p *PublicationProcessor) CreateDraft(actor *auth.Actor, params *CreateDraftParams) (*model.Work, error) {
	if !actor.HasCapability(auth.CapabilityCreator) {
		return nil, model.NewError(model.ErrorKindAuthorizationDenied, "actor %v cannot create works", actor.ID())
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, model.NewValidationError("title must not be empty")
	}
	fingerprint, err := model.NormalizeFingerprint(params.Fingerprint)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	work := model.NewWork(&model.NewWorkParams{
		ID:              uuid.New().String(),
		CreatorID:       actor.ID(),
		Title:           params.Title,
		Description:     params.Description,
		PublicationYear: params.PublicationYear,
		Fingerprint:     fingerprint,
		State:           model.WorkStateDraft,
		CreatedTs:       now,
		LastUpdatedTs:   now,
	})
	err = p.workPersister.CreateWork(work)
	if err != nil {
		return nil, err
	}
	return work, nil
}

// Approve transitions a draft work into the submission queue
func (p *PublicationProcessor) Approve(actor *auth.Actor, workID string) (*model.Work, error) {
	err := requireReviewer(actor)
	if err != nil {
		return nil, err
	}
	transition, err := p.workPersister.LockWorkForTransition(workID)
	if err != nil {
		return nil, err
	}
	err = transition.ApplyQueued()
	if err != nil {
		return nil, rollbackWith(transition, err)
	}
	err = transition.AppendAudit(p.auditEntry(actor.ID(), model.AuditActionApprove, map[string]interface{}{
		"work_id": workID,
	}))
	if err != nil {
		return nil, rollbackWith(transition, err)
	}
	err = transition.Commit()
	if err != nil {
		return nil, err
	}
	return transition.Work(), nil
}

// Reject rejects a draft or queued work with a required reason. When
// resetToDraft is set the work returns to draft for resubmission instead of
// ending in the terminal rejected state.
func (p *PublicationProcessor) Reject(actor *auth.Actor, workID string, reason string,
	resetToDraft bool) (*model.Work, error) {
	err := requireReviewer(actor)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, model.NewValidationError("rejection reason must not be empty")
	}
	transition, err := p.workPersister.LockWorkForTransition(workID)
	if err != nil {
		return nil, err
	}
	err = transition.ApplyRejected(reason, resetToDraft)
	if err != nil {
		return nil, rollbackWith(transition, err)
	}
	err = transition.AppendAudit(p.auditEntry(actor.ID(), model.AuditActionReject, map[string]interface{}{
		"work_id":        workID,
		"reason":         reason,
		"reset_to_draft": resetToDraft,
	}))
	if err != nil {
		return nil, rollbackWith(transition, err)
	}
	err = transition.Commit()
	if err != nil {
		return nil, err
	}
	return transition.Work(), nil
}

// Publish submits a queued work's registration transaction to the ledger.
// The row lock is held for the duration of the outbound ledger call so a
// concurrent publish attempt on the same work observes the lock and fails
// fast instead of double-submitting.
func (p *PublicationProcessor) Publish(actor *auth.Actor, workID string) (*model.Work, error) {
	err := requireReviewer(actor)
	if err != nil {
		return nil, err
	}
	transition, err := p.workPersister.LockWorkForTransition(workID)
	if err != nil {
		return nil, err
	}
	work := transition.Work()
	if work.State() != model.WorkStateQueued {
		return nil, rollbackWith(transition, model.NewInvalidTransitionError(
			"cannot publish work %v: state is %v, requires queued", workID, work.State()))
	}

	// Re-validate before any ledger interaction; a malformed fingerprint or
	// wallet is surfaced to the caller, never retried automatically.
	_, err = model.NormalizeFingerprint(work.Fingerprint())
	if err != nil {
		return nil, rollbackWith(transition, err)
	}
	creatorAddress, err := p.creatorAddress(work.CreatorID())
	if err != nil {
		return nil, rollbackWith(transition, err)
	}

	txHash, err := p.ledger.SubmitRegistration(work.Fingerprint(), creatorAddress, work.Title())
	if err != nil {
		// No partial state: the work stays queued and the operator may retry
		return nil, rollbackWith(transition, err)
	}

	err = transition.ApplySubmitted(p.ledger.Network(), txHash)
	if err != nil {
		return nil, rollbackWith(transition, err)
	}
	err = transition.AppendAudit(p.auditEntry(actor.ID(), model.AuditActionPublish, map[string]interface{}{
		"work_id": workID,
		"tx_hash": txHash,
	}))
	if err != nil {
		return nil, rollbackWith(transition, err)
	}
	err = transition.Commit()
	if err != nil {
		return nil, err
	}
	return transition.Work(), nil
}

// Reconcile queries the ledger for the fate of a work's submitted
// transaction and applies the outcome. Invoking it for a work already
// confirmed is a no-op returning the stored values without a ledger call.
// The receipt lookup runs outside any row lock; the lock is re-acquired to
// apply the result and the state re-checked against lost-update races.
func (p *PublicationProcessor) Reconcile(actor *auth.Actor, workID string) (*ReconcileResult, error) {
	work, err := p.workPersister.WorkByID(workID)
	if err != nil {
		return nil, err
	}
	if work.State() == model.WorkStateConfirmed || work.State() == model.WorkStateVerified {
		return &ReconcileResult{Status: ReconcileNoop, Work: work}, nil
	}
	if work.State() != model.WorkStateSubmitted {
		return nil, model.NewInvalidTransitionError(
			"cannot reconcile work %v: state is %v, requires submitted", workID, work.State())
	}
	if work.TxHash() == "" {
		return nil, model.NewValidationError("work %v has no transaction hash to reconcile", workID)
	}

	receipt, err := p.ledger.ReceiptForTx(work.TxHash())
	if err != nil {
		return nil, err
	}
	switch receipt.Status {
	case ledger.ReceiptPending:
		return &ReconcileResult{Status: ReconcilePending, Work: work}, nil
	case ledger.ReceiptNotFound:
		return nil, model.NewNotFoundError("transaction %v not found, check the id", work.TxHash())
	}

	transition, err := p.workPersister.LockWorkForTransition(workID)
	if err != nil {
		return nil, err
	}
	if transition.Work().State() != model.WorkStateSubmitted {
		// Another reconciliation applied the outcome first
		err = transition.Rollback()
		if err != nil {
			return nil, err
		}
		return &ReconcileResult{Status: ReconcileNoop, Work: transition.Work()}, nil
	}

	err = transition.ApplyReconciliation(&model.ReconciliationOutcome{
		Success:         receipt.Success,
		BlockNumber:     receipt.BlockNumber,
		BlockTimestamp:  receipt.BlockTimestamp,
		ContractAddress: p.ledger.ContractAddress(),
		DemoteToDraft:   p.demoteFailedToDraft,
	})
	if err != nil {
		return nil, rollbackWith(transition, err)
	}

	actorID := systemActorID
	if actor != nil {
		actorID = actor.ID()
	}
	if receipt.Success {
		err = transition.AppendAudit(p.auditEntry(actorID, model.AuditActionConfirm, map[string]interface{}{
			"work_id":      workID,
			"tx_hash":      work.TxHash(),
			"block_number": receipt.BlockNumber,
		}))
		if err != nil {
			return nil, rollbackWith(transition, err)
		}
	}
	err = transition.Commit()
	if err != nil {
		return nil, err
	}

	if !receipt.Success {
		log.Errorf("Registration tx failed on chain: work: %v, tx: %v", workID, work.TxHash())
		return &ReconcileResult{Status: ReconcileFailed, Work: transition.Work()}, nil
	}

	err = p.pubSub(transition.Work())
	if err != nil {
		log.Errorf("Error publishing confirmation message: err: %v", err)
	}
	return &ReconcileResult{Status: ReconcileConfirmed, Work: transition.Work()}, nil
}

// Verify marks a confirmed work as verified by a reviewer. Confirmation
// alone never implies verification.
func (p *PublicationProcessor) Verify(actor *auth.Actor, workID string) (*model.Work, error) {
	err := requireReviewer(actor)
	if err != nil {
		return nil, err
	}
	transition, err := p.workPersister.LockWorkForTransition(workID)
	if err != nil {
		return nil, err
	}
	err = transition.ApplyVerified(actor.ID())
	if err != nil {
		return nil, rollbackWith(transition, err)
	}
	err = transition.AppendAudit(p.auditEntry(actor.ID(), model.AuditActionVerify, map[string]interface{}{
		"work_id": workID,
	}))
	if err != nil {
		return nil, rollbackWith(transition, err)
	}
	err = transition.Commit()
	if err != nil {
		return nil, err
	}

	err = p.pubSub(transition.Work())
	if err != nil {
		log.Errorf("Error publishing verification message: err: %v", err)
	}
	return transition.Work(), nil
}

// ReconcileAllSubmitted runs reconciliation over every submitted work.
// Returns the last error if one has occurred; individual failures do not
// stop the sweep.
func (p *PublicationProcessor) ReconcileAllSubmitted() error {
	works, err := p.workPersister.WorksByCriteria(&model.WorkCriteria{
		State:    model.WorkStateSubmitted,
		StateSet: true,
	})
	if err != nil {
		return err
	}
	var lastErr error
	for _, work := range works {
		result, err := p.Reconcile(nil, work.ID())
		if err != nil {
			log.Errorf("Error reconciling work: id: %v, err: %v", work.ID(), err)
			lastErr = err
			continue
		}
		if result.Status == ReconcilePending {
			log.Infof("Registration tx still pending: work: %v, tx: %v", work.ID(), work.TxHash())
		}
	}
	return lastErr
}

func (p *PublicationProcessor) creatorAddress(creatorID string) (common.Address, error) {
	creator, err := p.userPersister.UserByID(creatorID)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(creator.WalletAddress()) {
		return common.Address{}, model.NewValidationError("creator %v has no valid wallet address", creatorID)
	}
	return common.HexToAddress(creator.WalletAddress()), nil
}

func (p *PublicationProcessor) auditEntry(actorID string, action string,
	payload map[string]interface{}) *model.AuditEntry {
	return model.NewAuditEntry(&model.NewAuditEntryParams{
		ID:      uuid.New().String(),
		ActorID: actorID,
		Action:  action,
		Payload: payload,
		Ts:      time.Now().Unix(),
	})
}

func requireReviewer(actor *auth.Actor) error {
	if actor == nil {
		return model.NewError(model.ErrorKindAuthFailure, "no verified actor")
	}
	if !actor.HasCapability(auth.CapabilityReviewer) {
		return model.NewError(model.ErrorKindAuthorizationDenied,
			"actor %v requires reviewer or administrator capability", actor.ID())
	}
	return nil
}

func rollbackWith(transition model.WorkTransitioner, err error) error {
	rollbackErr := transition.Rollback()
	if rollbackErr != nil {
		log.Errorf("Error rolling back transition: err: %v", rollbackErr)
	}
	return err
}
