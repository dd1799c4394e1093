package utils // import "github.com/creaproof/provenance-registrar/pkg/utils"

import (
	"net/url"
	"strings"
)

// IsValidEthAPIURL returns true if the given string is a usable endpoint
// for an Ethereum node API.
func IsValidEthAPIURL(rawurl string) bool {
	parsed, err := url.Parse(rawurl)
	if err != nil {
		return false
	}
	switch parsed.Scheme {
	case "http", "https", "ws", "wss":
		return parsed.Host != ""
	case "":
		// IPC endpoints are paths to a socket file
		return strings.HasSuffix(rawurl, ".ipc")
	}
	return false
}
