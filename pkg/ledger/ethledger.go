// Package ledger wraps the connection to the blockchain network behind the
// two operations the registrar core needs: submitting a registration call
// and fetching the receipt for a submitted transaction.
package ledger // import "github.com/creaproof/provenance-registrar/pkg/ledger"

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"net"
	"strings"
	"time"

	log "github.com/golang/glog"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/creaproof/provenance-registrar/pkg/model"
)

const (
	// registerGasLimit caps the gas for a registration call
	registerGasLimit = uint64(300000)

	defaultCallTimeout = 15 * time.Second
)

// ReceiptStatus classifies the outcome of a receipt lookup
type ReceiptStatus int

const (
	// ReceiptComplete means the transaction was included in a block
	ReceiptComplete ReceiptStatus = iota

	// ReceiptPending means the transaction is known but not yet included in a
	// block. Callers must not treat this as failure.
	ReceiptPending

	// ReceiptNotFound means the transaction is unknown to the node
	ReceiptNotFound
)

// ReceiptResult is the outcome of a receipt lookup for a submitted
// registration transaction.
type ReceiptResult struct {
	Status ReceiptStatus

	// Success, BlockNumber and BlockTimestamp are only meaningful when
	// Status is ReceiptComplete.
	Success        bool
	BlockNumber    int64
	BlockTimestamp int64
}

// Client is the boundary contract to the ledger network
type Client interface {
	// SubmitRegistration relays a registration call for a work and returns
	// the transaction hash. Inputs are validated before any network call.
	SubmitRegistration(fingerprint string, creatorAddress common.Address, title string) (string, error)
	// ReceiptForTx fetches the receipt and including block for a transaction
	ReceiptForTx(txHash string) (*ReceiptResult, error)
	// ContractAddress returns the anchoring registry contract address
	ContractAddress() common.Address
	// Network returns the configured network name
	Network() string
	// Close releases the underlying connection
	Close()
}

// NewEthClientParams are the params to the NewEthClient constructor
type NewEthClientParams struct {
	APIURL          string
	RegistrarKeyHex string
	ContractAddress common.Address
	ChainID         int64
	Network         string
	CallTimeout     time.Duration
}

// NewEthClient dials the configured RPC endpoint and creates the ledger
// client holding the registrar signing account. The client is constructed
// once at service start and injected; it is not ambient package state.
func NewEthClient(params *NewEthClientParams) (*EthClient, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(params.RegistrarKeyHex, "0x"))
	if err != nil {
		return nil, model.NewValidationError("invalid registrar signing key")
	}
	client, err := ethclient.Dial(params.APIURL)
	if err != nil {
		return nil, model.NewError(model.ErrorKindLedgerUnavailable, "error connecting to eth API: %v", err)
	}
	registryABI, err := RegistryABI()
	if err != nil {
		return nil, err
	}
	timeout := params.CallTimeout
	if timeout == 0 {
		timeout = defaultCallTimeout
	}
	return &EthClient{
		client:          client,
		key:             key,
		registrarAddr:   crypto.PubkeyToAddress(key.PublicKey),
		contractAddress: params.ContractAddress,
		chainID:         big.NewInt(params.ChainID),
		network:         params.Network,
		registryABI:     registryABI,
		callTimeout:     timeout,
	}, nil
}

// EthClient is the Ethereum implementation of the ledger Client
type EthClient struct {
	client          *ethclient.Client
	key             *ecdsa.PrivateKey
	registrarAddr   common.Address
	contractAddress common.Address
	chainID         *big.Int
	network         string
	registryABI     abi.ABI
	callTimeout     time.Duration
}

// SubmitRegistration builds, signs and relays a registerWork transaction.
// Fingerprint and creator address are validated before any network call so
// a failure leaves no partial submission.
func (e *EthClient) SubmitRegistration(fingerprint string, creatorAddress common.Address,
	title string) (string, error) {
	fileHash, err := ValidateRegistrationInputs(fingerprint, creatorAddress)
	if err != nil {
		return "", err
	}

	data, err := e.registryABI.Pack(registerWorkMethod, fileHash, creatorAddress, title)
	if err != nil {
		return "", model.NewValidationError("error packing registration call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.callTimeout)
	defer cancel()

	nonce, err := e.client.PendingNonceAt(ctx, e.registrarAddr)
	if err != nil {
		return "", model.NewError(model.ErrorKindLedgerUnavailable, "error resolving registrar nonce: %v", err)
	}
	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", model.NewError(model.ErrorKindLedgerUnavailable, "error resolving gas price: %v", err)
	}

	tx := types.NewTransaction(nonce, e.contractAddress, big.NewInt(0), registerGasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(e.chainID), e.key)
	if err != nil {
		return "", model.NewValidationError("error signing registration tx: %v", err)
	}

	err = e.client.SendTransaction(ctx, signedTx)
	if err != nil {
		return "", classifySendError(err)
	}

	txHash := signedTx.Hash().Hex()
	log.Infof("Relayed registration tx: hash: %v, nonce: %v", txHash, nonce)
	return txHash, nil
}

// ReceiptForTx fetches the receipt for a transaction and the timestamp of
// its including block. A known but unmined transaction reports pending.
func (e *EthClient) ReceiptForTx(txHash string) (*ReceiptResult, error) {
	hash := common.HexToHash(txHash)

	ctx, cancel := context.WithTimeout(context.Background(), e.callTimeout)
	defer cancel()

	receipt, err := e.client.TransactionReceipt(ctx, hash)
	if err == ethereum.NotFound {
		return e.pendingOrNotFound(ctx, hash)
	}
	if err != nil {
		return nil, model.NewError(model.ErrorKindLedgerUnavailable, "error fetching receipt: %v", err)
	}
	if receipt.BlockNumber == nil {
		return &ReceiptResult{Status: ReceiptPending}, nil
	}

	header, err := e.client.HeaderByNumber(ctx, receipt.BlockNumber)
	if err != nil {
		return nil, model.NewError(model.ErrorKindLedgerUnavailable, "error fetching block header: %v", err)
	}

	return &ReceiptResult{
		Status:         ReceiptComplete,
		Success:        receipt.Status == types.ReceiptStatusSuccessful,
		BlockNumber:    receipt.BlockNumber.Int64(),
		BlockTimestamp: int64(header.Time),
	}, nil
}

// ContractAddress returns the anchoring registry contract address
func (e *EthClient) ContractAddress() common.Address {
	return e.contractAddress
}

// Network returns the configured network name
func (e *EthClient) Network() string {
	return e.network
}

// Close releases the underlying RPC connection
func (e *EthClient) Close() {
	e.client.Close()
}

func (e *EthClient) pendingOrNotFound(ctx context.Context, hash common.Hash) (*ReceiptResult, error) {
	_, isPending, err := e.client.TransactionByHash(ctx, hash)
	if err == ethereum.NotFound {
		return &ReceiptResult{Status: ReceiptNotFound}, nil
	}
	if err != nil {
		return nil, model.NewError(model.ErrorKindLedgerUnavailable, "error fetching tx: %v", err)
	}
	if isPending {
		return &ReceiptResult{Status: ReceiptPending}, nil
	}
	// Mined between the two calls, receipt should be available on retry
	return &ReceiptResult{Status: ReceiptPending}, nil
}

// ValidateRegistrationInputs checks the registration call inputs and
// returns the 32 byte fingerprint value. Runs before any network call.
func ValidateRegistrationInputs(fingerprint string, creatorAddress common.Address) ([32]byte, error) {
	var fileHash [32]byte
	normalized, err := model.NormalizeFingerprint(fingerprint)
	if err != nil {
		return fileHash, err
	}
	fileHash, err = model.FingerprintToBytes32(normalized)
	if err != nil {
		return fileHash, err
	}
	if creatorAddress == (common.Address{}) {
		return fileHash, model.NewValidationError("creator address is empty")
	}
	return fileHash, nil
}

func classifySendError(err error) error {
	if isTransient(err) {
		return model.NewError(model.ErrorKindLedgerUnavailable, "error relaying registration tx: %v", err)
	}
	return model.NewError(model.ErrorKindLedgerRejected, "node rejected registration tx: %v", err)
}

func isTransient(err error) bool {
	if err == context.DeadlineExceeded || err == context.Canceled {
		return true
	}
	if _, ok := err.(net.Error); ok {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{"connection refused", "connection reset", "timeout",
		"context deadline exceeded", "EOF"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
