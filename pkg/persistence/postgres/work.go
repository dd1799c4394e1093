package postgres // import "github.com/creaproof/provenance-registrar/pkg/persistence/postgres"

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/creaproof/provenance-registrar/pkg/model"
)

// WorkTableName is the name of the work table
const WorkTableName = "work"

// CreateWorkTableQuery returns the query to create the work table
func CreateWorkTableQuery() string {
	return CreateWorkTableQueryString(WorkTableName)
}

// CreateWorkTableQueryString returns the query to create this table
func CreateWorkTableQueryString(tableName string) string {
	queryString := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s(
            id TEXT PRIMARY KEY,
            creator_id TEXT NOT NULL,
            title TEXT NOT NULL,
            description TEXT,
            publication_year INT,
            fingerprint TEXT NOT NULL,
            state INT NOT NULL,
            network TEXT,
            tx_hash TEXT,
            contract_address TEXT,
            block_number BIGINT,
            block_timestamp BIGINT,
            verifier_id TEXT,
            verified_timestamp BIGINT,
            rejection_reason TEXT,
            receipt_failed BOOL,
            creation_timestamp BIGINT,
            last_updated_timestamp BIGINT
        );
    `, tableName)
	return queryString
}

// WorkTableIndices returns the query to create indices for this table
func WorkTableIndices() string {
	return CreateWorkTableIndicesString(WorkTableName)
}

// CreateWorkTableIndicesString returns the query to create indices for this table
func CreateWorkTableIndicesString(tableName string) string {
	queryString := fmt.Sprintf(`
        CREATE INDEX IF NOT EXISTS work_state_idx ON %s (state);
        CREATE INDEX IF NOT EXISTS work_creator_idx ON %s (creator_id);
    `, tableName, tableName)
	return queryString
}

// Work is the model definition for the work table
type Work struct {
	ID string `db:"id"`

	CreatorID string `db:"creator_id"`

	Title string `db:"title"`

	Description string `db:"description"`

	PublicationYear int `db:"publication_year"`

	Fingerprint string `db:"fingerprint"`

	State int `db:"state"`

	Network string `db:"network"`

	TxHash string `db:"tx_hash"`

	ContractAddress string `db:"contract_address"`

	BlockNumber int64 `db:"block_number"`

	BlockTimestamp int64 `db:"block_timestamp"`

	VerifierID string `db:"verifier_id"`

	VerifiedTimestamp int64 `db:"verified_timestamp"`

	RejectionReason string `db:"rejection_reason"`

	ReceiptFailed bool `db:"receipt_failed"`

	CreatedDateTs int64 `db:"creation_timestamp"`

	LastUpdatedDateTs int64 `db:"last_updated_timestamp"`
}

// NewWork constructs a work for DB from a model.Work
func NewWork(work *model.Work) *Work {
	contractAddress := ""
	if work.ContractAddress() != (common.Address{}) {
		contractAddress = work.ContractAddress().Hex()
	}
	return &Work{
		ID:                work.ID(),
		CreatorID:         work.CreatorID(),
		Title:             work.Title(),
		Description:       work.Description(),
		PublicationYear:   work.PublicationYear(),
		Fingerprint:       work.Fingerprint(),
		State:             int(work.State()),
		Network:           work.Network(),
		TxHash:            work.TxHash(),
		ContractAddress:   contractAddress,
		BlockNumber:       work.BlockNumber(),
		BlockTimestamp:    work.BlockTimestamp(),
		VerifierID:        work.VerifierID(),
		VerifiedTimestamp: work.VerifiedTs(),
		RejectionReason:   work.RejectionReason(),
		ReceiptFailed:     work.ReceiptFailed(),
		CreatedDateTs:     work.CreatedTs(),
		LastUpdatedDateTs: work.LastUpdatedTs(),
	}
}

// DbToWorkData creates a model.Work from a postgres Work
func (w *Work) DbToWorkData() *model.Work {
	contractAddress := common.Address{}
	if w.ContractAddress != "" {
		contractAddress = common.HexToAddress(w.ContractAddress)
	}
	return model.NewWork(&model.NewWorkParams{
		ID:              w.ID,
		CreatorID:       w.CreatorID,
		Title:           w.Title,
		Description:     w.Description,
		PublicationYear: w.PublicationYear,
		Fingerprint:     w.Fingerprint,
		State:           model.WorkState(w.State),
		Network:         w.Network,
		TxHash:          w.TxHash,
		ContractAddress: contractAddress,
		BlockNumber:     w.BlockNumber,
		BlockTimestamp:  w.BlockTimestamp,
		VerifierID:      w.VerifierID,
		VerifiedTs:      w.VerifiedTimestamp,
		RejectionReason: w.RejectionReason,
		ReceiptFailed:   w.ReceiptFailed,
		CreatedTs:       w.CreatedDateTs,
		LastUpdatedTs:   w.LastUpdatedDateTs,
	})
}
