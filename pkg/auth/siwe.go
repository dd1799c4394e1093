package auth // import "github.com/creaproof/provenance-registrar/pkg/auth"

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/creaproof/provenance-registrar/pkg/model"
)

const (
	nonceLen         = 16
	challengeVersion = "1"
)

// Challenge is the parsed form of a signed login challenge message
type Challenge struct {
	Domain   string
	Address  string
	URI      string
	Version  string
	ChainID  int64
	Nonce    string
	IssuedAt string
}

// ParseChallenge parses a login challenge message. The expected shape is the
// sign-in-with-Ethereum message: domain on the first line, the wallet
// address on the second, then "Key: value" fields.
func ParseChallenge(message string) (*Challenge, error) {
	lines := []string{}
	for _, line := range strings.Split(message, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) < 2 {
		return nil, model.NewError(model.ErrorKindAuthFailure, "malformed challenge message")
	}
	challenge := &Challenge{
		Domain:  strings.Split(lines[0], " ")[0],
		Address: lines[1],
	}
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "URI: "):
			challenge.URI = strings.TrimSpace(line[len("URI: "):])
		case strings.HasPrefix(line, "Version: "):
			challenge.Version = strings.TrimSpace(line[len("Version: "):])
		case strings.HasPrefix(line, "Chain ID: "):
			chainID, err := strconv.ParseInt(strings.TrimSpace(line[len("Chain ID: "):]), 10, 64)
			if err != nil {
				return nil, model.NewError(model.ErrorKindAuthFailure, "malformed chain id in challenge")
			}
			challenge.ChainID = chainID
		case strings.HasPrefix(line, "Nonce: "):
			challenge.Nonce = strings.TrimSpace(line[len("Nonce: "):])
		case strings.HasPrefix(line, "Issued At: "):
			challenge.IssuedAt = strings.TrimSpace(line[len("Issued At: "):])
		}
	}
	return challenge, nil
}

// RecoverAddress recovers the signing address from a challenge message and
// a personal-sign signature.
func RecoverAddress(message string, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, model.NewError(model.ErrorKindAuthFailure, "signature must be 65 bytes")
	}
	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	pubKey, err := crypto.SigToPub(crypto.Keccak256([]byte(prefixed)), sig)
	if err != nil {
		return common.Address{}, model.NewError(model.ErrorKindAuthFailure, "error recovering signer: %v", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// NewVerifierParams are the params to the NewVerifier constructor
type NewVerifierParams struct {
	Domain   string
	URI      string
	ChainID  int64
	Nonces   model.NonceStore
	NonceTTL time.Duration
}

// NewVerifier creates the identity verification collaborator. The nonce
// store is injected so pending challenges are never ambient process state.
func NewVerifier(params *NewVerifierParams) *Verifier {
	return &Verifier{
		domain:   params.Domain,
		uri:      params.URI,
		chainID:  params.ChainID,
		nonces:   params.Nonces,
		nonceTTL: params.NonceTTL,
	}
}

// Verifier issues single-use login nonces and verifies signed challenges
type Verifier struct {
	domain   string
	uri      string
	chainID  int64
	nonces   model.NonceStore
	nonceTTL time.Duration
}

// IssueChallenge stores and returns a fresh single-use nonce for a wallet
func (v *Verifier) IssueChallenge(walletAddress string) (string, error) {
	if !common.IsHexAddress(walletAddress) {
		return "", model.NewError(model.ErrorKindAuthFailure, "invalid wallet address: %v", walletAddress)
	}
	buf := make([]byte, nonceLen/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	nonce := hex.EncodeToString(buf)
	expiresTs := time.Now().Add(v.nonceTTL).Unix()
	err := v.nonces.CreateNonce(strings.ToLower(walletAddress), nonce, expiresTs)
	if err != nil {
		return "", err
	}
	return nonce, nil
}

// VerifyChallenge checks a signed challenge for a claimed wallet and
// returns the verified address. The nonce is consumed on success or on a
// signature mismatch, never reusable.
func (v *Verifier) VerifyChallenge(walletAddress string, message string, signature []byte) (common.Address, error) {
	if !common.IsHexAddress(walletAddress) {
		return common.Address{}, model.NewError(model.ErrorKindAuthFailure, "invalid wallet address: %v", walletAddress)
	}
	claimed := common.HexToAddress(walletAddress)

	challenge, err := ParseChallenge(message)
	if err != nil {
		return common.Address{}, err
	}
	if challenge.Domain != v.domain {
		return common.Address{}, model.NewError(model.ErrorKindAuthFailure, "challenge domain mismatch")
	}
	if challenge.URI != v.uri {
		return common.Address{}, model.NewError(model.ErrorKindAuthFailure, "challenge uri mismatch")
	}
	if challenge.Version != challengeVersion {
		return common.Address{}, model.NewError(model.ErrorKindAuthFailure, "challenge version must be %v", challengeVersion)
	}
	if challenge.ChainID != v.chainID {
		return common.Address{}, model.NewError(model.ErrorKindAuthFailure, "challenge chain id mismatch")
	}
	if !common.IsHexAddress(challenge.Address) || common.HexToAddress(challenge.Address) != claimed {
		return common.Address{}, model.NewError(model.ErrorKindAuthFailure, "challenge address mismatch")
	}

	consumed, err := v.nonces.ConsumeNonce(strings.ToLower(walletAddress), challenge.Nonce, time.Now().Unix())
	if err != nil {
		return common.Address{}, err
	}
	if !consumed {
		return common.Address{}, model.NewError(model.ErrorKindAuthFailure, "challenge nonce unknown or expired")
	}

	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		return common.Address{}, err
	}
	if recovered != claimed {
		return common.Address{}, model.NewError(model.ErrorKindAuthFailure, "signature does not match claimed address")
	}
	return recovered, nil
}

// NewInMemoryNonceStore creates a nonce store backed by a process-local
// map. Intended for tests; production uses the persistence-backed store.
func NewInMemoryNonceStore() *InMemoryNonceStore {
	return &InMemoryNonceStore{nonces: map[string]int64{}}
}

// InMemoryNonceStore is a map-backed model.NonceStore
type InMemoryNonceStore struct {
	nonces map[string]int64
}

// CreateNonce stores a nonce with its expiry
func (s *InMemoryNonceStore) CreateNonce(walletAddress string, nonce string, expiresTs int64) error {
	s.nonces[strings.ToLower(walletAddress)+"/"+nonce] = expiresTs
	return nil
}

// ConsumeNonce validates and deletes a nonce
func (s *InMemoryNonceStore) ConsumeNonce(walletAddress string, nonce string, nowTs int64) (bool, error) {
	key := strings.ToLower(walletAddress) + "/" + nonce
	expiresTs, ok := s.nonces[key]
	if !ok {
		return false, nil
	}
	delete(s.nonces, key)
	return expiresTs > nowTs, nil
}
