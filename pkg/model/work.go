package model // import "github.com/creaproof/provenance-registrar/pkg/model"

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// FingerprintLen is the number of hex characters in a stored content fingerprint
const FingerprintLen = 64

var txHashRegex = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

// explorerBases maps the recognized network names to their explorer base URLs.
// Networks not listed here produce no explorer URL.
var explorerBases = map[string]string{
	"mainnet": "https://etherscan.io",
	"sepolia": "https://sepolia.etherscan.io",
	"polygon": "https://polygonscan.com",
}

// WorkState specifies the current publication state of a work
type WorkState int

const (
	// WorkStateDraft is the initial state of a created work
	WorkStateDraft WorkState = iota

	// WorkStateQueued means the work was approved and is waiting for submission
	WorkStateQueued

	// WorkStateSubmitted means a registration transaction was relayed to the ledger
	WorkStateSubmitted

	// WorkStateConfirmed means the registration transaction was mined successfully
	WorkStateConfirmed

	// WorkStateVerified means a reviewer explicitly approved the confirmed work
	WorkStateVerified

	// WorkStateRejected means a reviewer rejected the work before submission
	WorkStateRejected
)

var workStateNames = map[WorkState]string{
	WorkStateDraft:     "draft",
	WorkStateQueued:    "queued",
	WorkStateSubmitted: "submitted",
	WorkStateConfirmed: "confirmed",
	WorkStateVerified:  "verified",
	WorkStateRejected:  "rejected",
}

func (s WorkState) String() string {
	name, ok := workStateNames[s]
	if !ok {
		return fmt.Sprintf("unknown(%d)", int(s))
	}
	return name
}

// NormalizeFingerprint validates a content fingerprint and returns its
// canonical stored form: exactly 64 lowercase hex characters. An optional
// 0x prefix is stripped and mixed case is accepted.
func NormalizeFingerprint(raw string) (string, error) {
	fp := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(fp, "0x") {
		fp = fp[2:]
	}
	if len(fp) != FingerprintLen {
		return "", NewValidationError("fingerprint must be %v hex characters, got %v", FingerprintLen, len(fp))
	}
	if _, err := hex.DecodeString(fp); err != nil {
		return "", NewValidationError("fingerprint contains non-hex characters")
	}
	return fp, nil
}

// FingerprintToBytes32 converts a normalized fingerprint to the 32 byte
// value passed to the registration contract.
func FingerprintToBytes32(fingerprint string) ([32]byte, error) {
	var out [32]byte
	decoded, err := hex.DecodeString(fingerprint)
	if err != nil || len(decoded) != 32 {
		return out, NewValidationError("fingerprint is not a valid 32 byte hex value")
	}
	copy(out[:], decoded)
	return out, nil
}

// ExplorerTxURL derives the network explorer URL for a transaction. Returns
// false when the network is not recognized or the hash is malformed, in
// which case the URL field is omitted from responses.
func ExplorerTxURL(network string, txHash string) (string, bool) {
	base, ok := explorerBases[network]
	if !ok {
		return "", false
	}
	hash := strings.ToLower(txHash)
	if !txHashRegex.MatchString(hash) {
		return "", false
	}
	return fmt.Sprintf("%v/tx/%v", base, hash), true
}

// NewWorkParams are the params to the NewWork constructor
type NewWorkParams struct {
	ID              string
	CreatorID       string
	Title           string
	Description     string
	PublicationYear int
	Fingerprint     string
	State           WorkState
	Network         string
	TxHash          string
	ContractAddress common.Address
	BlockNumber     int64
	BlockTimestamp  int64
	VerifierID      string
	VerifiedTs      int64
	RejectionReason string
	ReceiptFailed   bool
	CreatedTs       int64
	LastUpdatedTs   int64
}

// NewWork is a convenience function to create a Work
func NewWork(params *NewWorkParams) *Work {
	return &Work{
		id:              params.ID,
		creatorID:       params.CreatorID,
		title:           params.Title,
		description:     params.Description,
		publicationYear: params.PublicationYear,
		fingerprint:     params.Fingerprint,
		state:           params.State,
		network:         params.Network,
		txHash:          params.TxHash,
		contractAddress: params.ContractAddress,
		blockNumber:     params.BlockNumber,
		blockTimestamp:  params.BlockTimestamp,
		verifierID:      params.VerifierID,
		verifiedTs:      params.VerifiedTs,
		rejectionReason: params.RejectionReason,
		receiptFailed:   params.ReceiptFailed,
		createdTs:       params.CreatedTs,
		lastUpdatedTs:   params.LastUpdatedTs,
	}
}

// Work represents a unit of registered provenance and its ledger linkage
type Work struct {
	id string

	creatorID string

	title string

	description string

	publicationYear int

	fingerprint string

	state WorkState

	network string

	txHash string

	contractAddress common.Address

	blockNumber int64

	blockTimestamp int64

	verifierID string

	verifiedTs int64

	rejectionReason string

	receiptFailed bool

	createdTs int64

	lastUpdatedTs int64
}

// ID returns the unique id of the work
func (w *Work) ID() string {
	return w.id
}

// CreatorID returns the id of the owning creator
func (w *Work) CreatorID() string {
	return w.creatorID
}

// Title returns the work title
func (w *Work) Title() string {
	return w.title
}

// Description returns the optional free text description
func (w *Work) Description() string {
	return w.description
}

// PublicationYear returns the optional publication year, 0 when unset
func (w *Work) PublicationYear() int {
	return w.publicationYear
}

// Fingerprint returns the stored content fingerprint, 64 lowercase hex
// characters. Immutable after creation.
func (w *Work) Fingerprint() string {
	return w.fingerprint
}

// State returns the current publication state
func (w *Work) State() WorkState {
	return w.state
}

// SetState updates the publication state
func (w *Work) SetState(state WorkState) {
	w.state = state
}

// Network returns the name of the ledger network the work was submitted to
func (w *Work) Network() string {
	return w.network
}

// TxHash returns the registration transaction hash, empty before submission
func (w *Work) TxHash() string {
	return w.txHash
}

// SetLedgerSubmission records the pending transaction identity after a
// successful relay to the ledger.
func (w *Work) SetLedgerSubmission(network string, txHash string) {
	w.network = network
	w.txHash = txHash
	w.receiptFailed = false
}

// ContractAddress returns the anchoring contract address
func (w *Work) ContractAddress() common.Address {
	return w.contractAddress
}

// BlockNumber returns the number of the block including the registration
// transaction, 0 before confirmation.
func (w *Work) BlockNumber() int64 {
	return w.blockNumber
}

// BlockTimestamp returns the timestamp of the including block
func (w *Work) BlockTimestamp() int64 {
	return w.blockTimestamp
}

// SetReceiptResult records a successful ledger receipt
func (w *Work) SetReceiptResult(contractAddress common.Address, blockNumber int64, blockTimestamp int64) {
	w.contractAddress = contractAddress
	w.blockNumber = blockNumber
	w.blockTimestamp = blockTimestamp
	w.receiptFailed = false
}

// VerifierID returns the id of the reviewer who verified the work
func (w *Work) VerifierID() string {
	return w.verifierID
}

// VerifiedTs returns the verification timestamp
func (w *Work) VerifiedTs() int64 {
	return w.verifiedTs
}

// SetVerified records reviewer verification
func (w *Work) SetVerified(verifierID string, verifiedTs int64) {
	w.verifierID = verifierID
	w.verifiedTs = verifiedTs
}

// RejectionReason returns the reviewer supplied rejection reason
func (w *Work) RejectionReason() string {
	return w.rejectionReason
}

// SetRejectionReason stores the reviewer supplied rejection reason
func (w *Work) SetRejectionReason(reason string) {
	w.rejectionReason = reason
}

// ReceiptFailed returns true when the last reconciliation found a failed
// transaction. The record stays queryable for retry.
func (w *Work) ReceiptFailed() bool {
	return w.receiptFailed
}

// SetReceiptFailed marks the outcome of the last reconciliation as failed
func (w *Work) SetReceiptFailed(failed bool) {
	w.receiptFailed = failed
}

// CreatedTs returns the creation timestamp of the work record
func (w *Work) CreatedTs() int64 {
	return w.createdTs
}

// LastUpdatedTs returns the timestamp of the last update to the work record
func (w *Work) LastUpdatedTs() int64 {
	return w.lastUpdatedTs
}

// SetLastUpdatedTs updates the last updated timestamp. Timestamps are
// monotonically non-decreasing.
func (w *Work) SetLastUpdatedTs(ts int64) {
	if ts > w.lastUpdatedTs {
		w.lastUpdatedTs = ts
	}
}

// ExplorerURL returns the derived explorer URL for the work's registration
// transaction, false when it cannot be derived.
func (w *Work) ExplorerURL() (string, bool) {
	return ExplorerTxURL(w.network, w.txHash)
}
