// Package persistence contains components to interact with the DB
package persistence // import "github.com/creaproof/provenance-registrar/pkg/persistence"

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	// driver for postgresql
	_ "github.com/lib/pq"

	"github.com/google/uuid"

	"github.com/creaproof/provenance-registrar/pkg/model"
	"github.com/creaproof/provenance-registrar/pkg/persistence/postgres"
)

const (
	workFieldList = "id, creator_id, title, description, publication_year, fingerprint, state, " +
		"network, tx_hash, contract_address, block_number, block_timestamp, verifier_id, " +
		"verified_timestamp, rejection_reason, receipt_failed, creation_timestamp, last_updated_timestamp"

	workValueList = ":id, :creator_id, :title, :description, :publication_year, :fingerprint, :state, " +
		":network, :tx_hash, :contract_address, :block_number, :block_timestamp, :verifier_id, " +
		":verified_timestamp, :rejection_reason, :receipt_failed, :creation_timestamp, :last_updated_timestamp"
)

// NewPostgresPersister creates a new postgres persister
func NewPostgresPersister(host string, port int, user string, password string, dbname string) (*PostgresPersister, error) {
	pgPersister := &PostgresPersister{}
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
	db, err := sqlx.Connect("postgres", psqlInfo)
	if err != nil {
		return pgPersister, fmt.Errorf("Error connecting to sqlx: %v", err)
	}
	pgPersister.db = db
	return pgPersister, nil
}

// NewPostgresPersisterFromSqlx creates a new postgres persister from an
// initialized sqlx.DB
func NewPostgresPersisterFromSqlx(db *sqlx.DB) *PostgresPersister {
	return &PostgresPersister{db: db}
}

// PostgresPersister holds the DB connection and persistence
type PostgresPersister struct {
	db *sqlx.DB
}

// CreateTables creates the tables for the registrar if they don't exist
func (p *PostgresPersister) CreateTables() error {
	schemas := []string{
		postgres.CreateWorkTableQuery(),
		postgres.CreateAuditEntryTableQuery(),
		postgres.CreateUserTableQuery(),
		postgres.CreateAuthNonceTableQuery(),
		postgres.CreateCronTableQuery(),
	}
	for _, schema := range schemas {
		_, err := p.db.Exec(schema)
		if err != nil {
			return fmt.Errorf("Error creating table in postgres: %v", err)
		}
	}
	return nil
}

// CreateIndices creates the indices for the registrar tables
func (p *PostgresPersister) CreateIndices() error {
	indices := []string{
		postgres.WorkTableIndices(),
		postgres.AuditEntryTableIndices(),
	}
	for _, index := range indices {
		_, err := p.db.Exec(index)
		if err != nil {
			return fmt.Errorf("Error creating index in postgres: %v", err)
		}
	}
	return nil
}

// Close closes the DB connection
func (p *PostgresPersister) Close() error {
	return p.db.Close()
}

// CreateWork creates a new work record
func (p *PostgresPersister) CreateWork(work *model.Work) error {
	queryString := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);", postgres.WorkTableName,
		workFieldList, workValueList)
	dbWork := postgres.NewWork(work)
	_, err := p.db.NamedExec(queryString, dbWork)
	if err != nil {
		return fmt.Errorf("Error saving work to table: %v", err)
	}
	return nil
}

// WorkByID retrieves a work based on its id
func (p *PostgresPersister) WorkByID(workID string) (*model.Work, error) {
	dbWork := postgres.Work{}
	queryString := fmt.Sprintf("SELECT %s FROM %s WHERE id=$1;", workFieldList, postgres.WorkTableName)
	err := p.db.Get(&dbWork, queryString, workID)
	if err == sql.ErrNoRows {
		return nil, model.NewNotFoundError("work %v not found", workID)
	}
	if err != nil {
		return nil, fmt.Errorf("Error retrieving work from table: %v", err)
	}
	return dbWork.DbToWorkData(), nil
}

// WorksByCriteria retrieves works based on WorkCriteria
func (p *PostgresPersister) WorksByCriteria(criteria *model.WorkCriteria) ([]*model.Work, error) {
	queryString, params := worksByCriteriaQuery(postgres.WorkTableName, criteria)
	dbWorks := []postgres.Work{}
	err := p.db.Select(&dbWorks, queryString, params...)
	if err != nil {
		return nil, fmt.Errorf("Error retrieving works from table: %v", err)
	}
	works := make([]*model.Work, len(dbWorks))
	for index, dbWork := range dbWorks {
		work := dbWork
		works[index] = work.DbToWorkData()
	}
	return works, nil
}

// LockWorkForTransition acquires an exclusive row lock on a work for the
// duration of a transition transaction.
func (p *PostgresPersister) LockWorkForTransition(workID string) (model.WorkTransitioner, error) {
	tx, err := p.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("Error beginning transition tx: %v", err)
	}
	dbWork := postgres.Work{}
	queryString := fmt.Sprintf("SELECT %s FROM %s WHERE id=$1 FOR UPDATE;", workFieldList,
		postgres.WorkTableName)
	err = tx.Get(&dbWork, queryString, workID)
	if err == sql.ErrNoRows {
		_ = tx.Rollback() // nolint: gosec
		return nil, model.NewNotFoundError("work %v not found", workID)
	}
	if err != nil {
		_ = tx.Rollback() // nolint: gosec
		return nil, fmt.Errorf("Error locking work row: %v", err)
	}
	return &workTransitioner{tx: tx, work: dbWork.DbToWorkData()}, nil
}

// AuditEntriesByWork retrieves the audit entries touching a work
func (p *PostgresPersister) AuditEntriesByWork(workID string) ([]*model.AuditEntry, error) {
	queryString := fmt.Sprintf("SELECT id, actor_id, action, payload, timestamp FROM %s "+
		"WHERE payload->>'work_id'=$1 ORDER BY timestamp;", postgres.AuditEntryTableName)
	dbEntries := []postgres.AuditEntry{}
	err := p.db.Select(&dbEntries, queryString, workID)
	if err != nil {
		return nil, fmt.Errorf("Error retrieving audit entries from table: %v", err)
	}
	entries := make([]*model.AuditEntry, len(dbEntries))
	for index, dbEntry := range dbEntries {
		entry := dbEntry
		entries[index] = entry.DbToAuditEntryData()
	}
	return entries, nil
}

// CreateUser creates a new user
func (p *PostgresPersister) CreateUser(user *model.User) error {
	queryString := fmt.Sprintf("INSERT INTO %s (id, wallet_address, role, creation_timestamp) "+
		"VALUES (:id, :wallet_address, :role, :creation_timestamp);", postgres.UserTableName)
	_, err := p.db.NamedExec(queryString, postgres.NewUser(user))
	if err != nil {
		return fmt.Errorf("Error saving user to table: %v", err)
	}
	return nil
}

// UserByID retrieves a user based on id
func (p *PostgresPersister) UserByID(userID string) (*model.User, error) {
	dbUser := postgres.User{}
	queryString := fmt.Sprintf("SELECT id, wallet_address, role, creation_timestamp FROM %s "+
		"WHERE id=$1;", postgres.UserTableName)
	err := p.db.Get(&dbUser, queryString, userID)
	if err == sql.ErrNoRows {
		return nil, model.NewNotFoundError("user %v not found", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("Error retrieving user from table: %v", err)
	}
	return dbUser.DbToUserData(), nil
}

// UserByWallet retrieves a user based on wallet address
func (p *PostgresPersister) UserByWallet(walletAddress string) (*model.User, error) {
	dbUser := postgres.User{}
	queryString := fmt.Sprintf("SELECT id, wallet_address, role, creation_timestamp FROM %s "+
		"WHERE wallet_address=lower($1);", postgres.UserTableName)
	err := p.db.Get(&dbUser, queryString, walletAddress)
	if err == sql.ErrNoRows {
		return nil, model.NewNotFoundError("user with wallet %v not found", walletAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("Error retrieving user from table: %v", err)
	}
	return dbUser.DbToUserData(), nil
}

// UpsertUserByWallet retrieves the user for a wallet, creating a creator
// role user on first login.
func (p *PostgresPersister) UpsertUserByWallet(walletAddress string) (*model.User, error) {
	user, err := p.UserByWallet(walletAddress)
	if err == nil {
		return user, nil
	}
	if !model.IsErrorKind(err, model.ErrorKindNotFound) {
		return nil, err
	}
	user = model.NewUser(&model.NewUserParams{
		ID:            uuid.New().String(),
		WalletAddress: walletAddress,
		Role:          model.UserRoleCreator,
		CreatedTs:     time.Now().Unix(),
	})
	err = p.CreateUser(user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateNonce stores a login nonce for a wallet with an absolute expiry time
func (p *PostgresPersister) CreateNonce(walletAddress string, nonce string, expiresTs int64) error {
	queryString := fmt.Sprintf("INSERT INTO %s (wallet_address, nonce, expires_timestamp) "+
		"VALUES (lower($1), $2, $3);", postgres.AuthNonceTableName)
	_, err := p.db.Exec(queryString, walletAddress, nonce, expiresTs)
	if err != nil {
		return fmt.Errorf("Error saving auth nonce to table: %v", err)
	}
	return nil
}

// ConsumeNonce validates a nonce for a wallet and deletes it. Expired rows
// for the wallet are swept on every call.
func (p *PostgresPersister) ConsumeNonce(walletAddress string, nonce string, nowTs int64) (bool, error) {
	sweepQuery := fmt.Sprintf("DELETE FROM %s WHERE wallet_address=lower($1) AND expires_timestamp <= $2;",
		postgres.AuthNonceTableName)
	_, err := p.db.Exec(sweepQuery, walletAddress, nowTs)
	if err != nil {
		return false, fmt.Errorf("Error sweeping expired auth nonces: %v", err)
	}
	queryString := fmt.Sprintf("DELETE FROM %s WHERE wallet_address=lower($1) AND nonce=$2 "+
		"AND expires_timestamp > $3;", postgres.AuthNonceTableName)
	result, err := p.db.Exec(queryString, walletAddress, nonce, nowTs)
	if err != nil {
		return false, fmt.Errorf("Error consuming auth nonce: %v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Error checking consumed auth nonce: %v", err)
	}
	return affected > 0, nil
}

// TimestampOfLastReconcileRun returns the timestamp of the last worker run
func (p *PostgresPersister) TimestampOfLastReconcileRun() (int64, error) {
	cronData := postgres.CronData{}
	queryString := fmt.Sprintf("SELECT timestamp FROM %s;", postgres.CronTableName)
	err := p.db.Get(&cronData, queryString)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("Error retrieving cron timestamp: %v", err)
	}
	return cronData.Timestamp, nil
}

// UpdateTimestampForReconcile saves the timestamp of a worker run
func (p *PostgresPersister) UpdateTimestampForReconcile(timestamp int64) error {
	updateQuery := fmt.Sprintf("UPDATE %s SET timestamp=$1;", postgres.CronTableName)
	result, err := p.db.Exec(updateQuery, timestamp)
	if err != nil {
		return fmt.Errorf("Error updating cron timestamp: %v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Error updating cron timestamp: %v", err)
	}
	if affected == 0 {
		insertQuery := fmt.Sprintf("INSERT INTO %s (timestamp) VALUES ($1);", postgres.CronTableName)
		_, err = p.db.Exec(insertQuery, timestamp)
		if err != nil {
			return fmt.Errorf("Error inserting cron timestamp: %v", err)
		}
	}
	return nil
}

func worksByCriteriaQuery(tableName string, criteria *model.WorkCriteria) (string, []interface{}) {
	queryString := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1", workFieldList, tableName)
	params := []interface{}{}
	index := 0
	nextParam := func() string {
		index++
		return fmt.Sprintf("$%d", index)
	}
	if criteria.OnlyVerified {
		queryString += fmt.Sprintf(" AND state=%s", nextParam())
		params = append(params, int(model.WorkStateVerified))
	} else if criteria.StateSet {
		queryString += fmt.Sprintf(" AND state=%s", nextParam())
		params = append(params, int(criteria.State))
	}
	if criteria.ReceiptFailed {
		queryString += " AND receipt_failed=TRUE"
	}
	if criteria.CreatorID != "" {
		queryString += fmt.Sprintf(" AND creator_id=%s", nextParam())
		params = append(params, criteria.CreatorID)
	}
	if criteria.TitleSearch != "" {
		queryString += fmt.Sprintf(" AND title ILIKE %s", nextParam())
		params = append(params, "%"+criteria.TitleSearch+"%")
	}
	queryString += " ORDER BY last_updated_timestamp DESC"
	if criteria.Count > 0 {
		queryString += fmt.Sprintf(" LIMIT %s", nextParam())
		params = append(params, criteria.Count)
	}
	if criteria.Offset > 0 {
		queryString += fmt.Sprintf(" OFFSET %s", nextParam())
		params = append(params, criteria.Offset)
	}
	queryString += ";"
	return queryString, params
}

// workTransitioner applies state transitions to a single locked work row.
// All updates and audit appends run on the same tx as the FOR UPDATE lock.
type workTransitioner struct {
	tx   *sqlx.Tx
	work *model.Work
}

// Work returns the work snapshot read under the lock
func (t *workTransitioner) Work() *model.Work {
	return t.work
}

// ApplyQueued transitions draft -> queued
func (t *workTransitioner) ApplyQueued() error {
	if t.work.State() != model.WorkStateDraft {
		return model.NewInvalidTransitionError("cannot queue work %v: state is %v, requires draft",
			t.work.ID(), t.work.State())
	}
	now := time.Now().Unix()
	queryString := fmt.Sprintf("UPDATE %s SET state=$1, last_updated_timestamp=$2 WHERE id=$3;",
		postgres.WorkTableName)
	_, err := t.tx.Exec(queryString, int(model.WorkStateQueued), now, t.work.ID())
	if err != nil {
		return fmt.Errorf("Error queueing work: %v", err)
	}
	t.work.SetState(model.WorkStateQueued)
	t.work.SetLastUpdatedTs(now)
	return nil
}

// ApplySubmitted transitions queued -> submitted and stores the tx identity
func (t *workTransitioner) ApplySubmitted(network string, txHash string) error {
	if t.work.State() != model.WorkStateQueued {
		return model.NewInvalidTransitionError("cannot submit work %v: state is %v, requires queued",
			t.work.ID(), t.work.State())
	}
	now := time.Now().Unix()
	queryString := fmt.Sprintf("UPDATE %s SET state=$1, network=$2, tx_hash=$3, receipt_failed=FALSE, "+
		"last_updated_timestamp=$4 WHERE id=$5;", postgres.WorkTableName)
	_, err := t.tx.Exec(queryString, int(model.WorkStateSubmitted), network, txHash, now, t.work.ID())
	if err != nil {
		return fmt.Errorf("Error marking work submitted: %v", err)
	}
	t.work.SetState(model.WorkStateSubmitted)
	t.work.SetLedgerSubmission(network, txHash)
	t.work.SetLastUpdatedTs(now)
	return nil
}

// ApplyReconciliation applies a receipt outcome to a submitted work
func (t *workTransitioner) ApplyReconciliation(outcome *model.ReconciliationOutcome) error {
	if t.work.State() != model.WorkStateSubmitted {
		return model.NewInvalidTransitionError("cannot reconcile work %v: state is %v, requires submitted",
			t.work.ID(), t.work.State())
	}
	now := time.Now().Unix()
	if outcome.Success {
		queryString := fmt.Sprintf("UPDATE %s SET state=$1, contract_address=$2, block_number=$3, "+
			"block_timestamp=$4, receipt_failed=FALSE, last_updated_timestamp=$5 WHERE id=$6;",
			postgres.WorkTableName)
		_, err := t.tx.Exec(queryString, int(model.WorkStateConfirmed), outcome.ContractAddress.Hex(),
			outcome.BlockNumber, outcome.BlockTimestamp, now, t.work.ID())
		if err != nil {
			return fmt.Errorf("Error confirming work: %v", err)
		}
		t.work.SetState(model.WorkStateConfirmed)
		t.work.SetReceiptResult(outcome.ContractAddress, outcome.BlockNumber, outcome.BlockTimestamp)
		t.work.SetLastUpdatedTs(now)
		return nil
	}
	newState := t.work.State()
	if outcome.DemoteToDraft {
		newState = model.WorkStateDraft
	}
	queryString := fmt.Sprintf("UPDATE %s SET state=$1, receipt_failed=TRUE, last_updated_timestamp=$2 "+
		"WHERE id=$3;", postgres.WorkTableName)
	_, err := t.tx.Exec(queryString, int(newState), now, t.work.ID())
	if err != nil {
		return fmt.Errorf("Error marking work receipt failed: %v", err)
	}
	t.work.SetState(newState)
	t.work.SetReceiptFailed(true)
	t.work.SetLastUpdatedTs(now)
	return nil
}

// ApplyVerified transitions confirmed -> verified
func (t *workTransitioner) ApplyVerified(verifierID string) error {
	if t.work.State() != model.WorkStateConfirmed {
		return model.NewInvalidTransitionError("cannot verify work %v: state is %v, requires confirmed",
			t.work.ID(), t.work.State())
	}
	if t.work.BlockNumber() == 0 {
		return model.NewInvalidTransitionError("cannot verify work %v: no block number stored", t.work.ID())
	}
	now := time.Now().Unix()
	queryString := fmt.Sprintf("UPDATE %s SET state=$1, verifier_id=$2, verified_timestamp=$3, "+
		"last_updated_timestamp=$4 WHERE id=$5;", postgres.WorkTableName)
	_, err := t.tx.Exec(queryString, int(model.WorkStateVerified), verifierID, now, now, t.work.ID())
	if err != nil {
		return fmt.Errorf("Error verifying work: %v", err)
	}
	t.work.SetState(model.WorkStateVerified)
	t.work.SetVerified(verifierID, now)
	t.work.SetLastUpdatedTs(now)
	return nil
}

// ApplyRejected transitions draft/queued -> rejected, or back to draft when
// resetToDraft is set
func (t *workTransitioner) ApplyRejected(reason string, resetToDraft bool) error {
	state := t.work.State()
	if state != model.WorkStateDraft && state != model.WorkStateQueued {
		return model.NewInvalidTransitionError("cannot reject work %v: state is %v, requires draft or queued",
			t.work.ID(), state)
	}
	newState := model.WorkStateRejected
	if resetToDraft {
		newState = model.WorkStateDraft
	}
	now := time.Now().Unix()
	queryString := fmt.Sprintf("UPDATE %s SET state=$1, rejection_reason=$2, last_updated_timestamp=$3 "+
		"WHERE id=$4;", postgres.WorkTableName)
	_, err := t.tx.Exec(queryString, int(newState), reason, now, t.work.ID())
	if err != nil {
		return fmt.Errorf("Error rejecting work: %v", err)
	}
	t.work.SetState(newState)
	t.work.SetRejectionReason(reason)
	t.work.SetLastUpdatedTs(now)
	return nil
}

// AppendAudit appends an audit entry within the transition transaction
func (t *workTransitioner) AppendAudit(entry *model.AuditEntry) error {
	queryString := fmt.Sprintf("INSERT INTO %s (id, actor_id, action, payload, timestamp) "+
		"VALUES (:id, :actor_id, :action, :payload, :timestamp);", postgres.AuditEntryTableName)
	_, err := t.tx.NamedExec(queryString, postgres.NewAuditEntry(entry))
	if err != nil {
		return fmt.Errorf("Error saving audit entry to table: %v", err)
	}
	return nil
}

// Commit commits the transition transaction and releases the row lock
func (t *workTransitioner) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transition transaction and releases the row lock
func (t *workTransitioner) Rollback() error {
	return t.tx.Rollback()
}
