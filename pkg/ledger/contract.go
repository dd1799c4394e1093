package ledger // import "github.com/creaproof/provenance-registrar/pkg/ledger"

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// registerWorkMethod is the fixed smart contract method invoked to anchor a
// registration. Argument order is (fileHash, creator, title).
const registerWorkMethod = "registerWork"

// registryABIJSON is the ABI fragment for the registry contract methods the
// registrar invokes.
const registryABIJSON = `[
    {
        "constant": false,
        "inputs": [
            {"name": "fileHash", "type": "bytes32"},
            {"name": "creator", "type": "address"},
            {"name": "title", "type": "string"}
        ],
        "name": "registerWork",
        "outputs": [],
        "payable": false,
        "stateMutability": "nonpayable",
        "type": "function"
    }
]`

// RegistryABI parses the registry contract ABI
func RegistryABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(registryABIJSON))
}
