// Package utils contains various common utils separate by utility types
package utils // import "github.com/creaproof/provenance-registrar/pkg/utils"

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron"
)

// PersisterType is the type of persister to use.
type PersisterType int

const (
	// PersisterTypeInvalid is an invalid persister value
	PersisterTypeInvalid PersisterType = iota

	// PersisterTypeNone is a persister that does nothing but return default values
	PersisterTypeNone

	// PersisterTypePostgresql is a persister that uses PostgreSQL as the backend
	PersisterTypePostgresql
)

var (
	// PersisterNameToType maps valid persister names to the types above
	PersisterNameToType = map[string]PersisterType{
		"none":       PersisterTypeNone,
		"postgresql": PersisterTypePostgresql,
	}
)

const (
	envVarPrefix = "registrar"

	usageListFormat = `The registrar is configured via environment vars only. The following environment variables can be used:
{{range .}}
{{usage_key .}}
  description: {{usage_description .}}
  type:        {{usage_type .}}
  default:     {{usage_default .}}
  required:    {{usage_required .}}
{{end}}
`
)

// RegistrarConfig is the master config for the registrar derived from
// environment variables.
type RegistrarConfig struct {
	CronConfig string `envconfig:"cron_config" required:"true" desc:"Cron config string * * * * *"`

	EthAPIURL       string `envconfig:"eth_api_url" required:"true" desc:"Ethereum API address"`
	EthNetwork      string `split_words:"true" default:"sepolia" desc:"Name of the target ledger network"`
	EthChainID      int64  `envconfig:"eth_chain_id" required:"true" desc:"Numeric chain id of the target network"`
	EthTimeoutSecs  int    `split_words:"true" default:"15" desc:"Deadline in seconds for ledger RPC calls"`
	ContractAddress string `split_words:"true" required:"true" desc:"Address of the registry contract"`
	RegistrarKey    string `split_words:"true" required:"true" desc:"Hex private key of the registrar signing account"`

	DemoteFailedToDraft bool `split_words:"true" desc:"Demote works with failed receipts back to draft for resubmission"`

	ChallengeDomain string `split_words:"true" default:"localhost" desc:"Expected domain in login challenges"`
	ChallengeURI    string `split_words:"true" default:"http://localhost:3000" desc:"Expected URI in login challenges"`
	NonceExpirySecs int    `split_words:"true" default:"600" desc:"Lifetime in seconds of login challenge nonces"`

	PubSubProjectID string `split_words:"true" desc:"Sets the Google Cloud project ID for pubsub, disabled when empty"`
	PubSubTopicName string `split_words:"true" desc:"Sets the pubsub topic for lifecycle messages"`

	PersisterType            PersisterType `ignored:"true"`
	PersisterTypeName        string        `split_words:"true" required:"true" desc:"Sets the persister type to use"`
	PersisterPostgresAddress string        `split_words:"true" desc:"If persister type is Postgresql, sets the address"`
	PersisterPostgresPort    int           `split_words:"true" desc:"If persister type is Postgresql, sets the port"`
	PersisterPostgresDbname  string        `split_words:"true" desc:"If persister type is Postgresql, sets the database name"`
	PersisterPostgresUser    string        `split_words:"true" desc:"If persister type is Postgresql, sets the database user"`
	PersisterPostgresPw      string        `split_words:"true" desc:"If persister type is Postgresql, sets the database password"`
}

// OutputUsage prints the usage string to os.Stdout
func (c *RegistrarConfig) OutputUsage() {
	tabs := tabwriter.NewWriter(os.Stdout, 1, 0, 4, ' ', 0)
	_ = envconfig.Usagef(envVarPrefix, c, tabs, usageListFormat) // nolint: gosec
	_ = tabs.Flush()                                             // nolint: gosec
}

// PopulateFromEnv processes the environment vars, populates RegistrarConfig
// with the respective values, and validates the values.
func (c *RegistrarConfig) PopulateFromEnv() error {
	err := envconfig.Process(envVarPrefix, c)
	if err != nil {
		return err
	}

	err = c.validateCronConfig()
	if err != nil {
		return err
	}

	err = c.validateLedgerConfig()
	if err != nil {
		return err
	}

	err = c.populatePersisterType()
	if err != nil {
		return err
	}

	return c.validatePersister()
}

func (c *RegistrarConfig) validateCronConfig() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(c.CronConfig)
	if err != nil {
		return fmt.Errorf("Invalid cron config: '%v'", c.CronConfig)
	}
	return nil
}

func (c *RegistrarConfig) validateLedgerConfig() error {
	if c.EthAPIURL == "" || !IsValidEthAPIURL(c.EthAPIURL) {
		return fmt.Errorf("Invalid eth API URL: '%v'", c.EthAPIURL)
	}
	if c.EthChainID <= 0 {
		return fmt.Errorf("Invalid chain id: '%v'", c.EthChainID)
	}
	if !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("Invalid contract address: '%v'", c.ContractAddress)
	}
	_, err := crypto.HexToECDSA(strings.TrimPrefix(c.RegistrarKey, "0x"))
	if err != nil {
		return fmt.Errorf("Invalid registrar signing key")
	}
	return nil
}

func (c *RegistrarConfig) populatePersisterType() error {
	var err error
	c.PersisterType, err = PersisterTypeFromName(c.PersisterTypeName)
	return err
}

func (c *RegistrarConfig) validatePersister() error {
	if c.PersisterType == PersisterTypePostgresql {
		if c.PersisterPostgresAddress == "" {
			return fmt.Errorf("Postgresql address required")
		}
		if c.PersisterPostgresPort == 0 {
			return fmt.Errorf("Postgresql port required")
		}
		if c.PersisterPostgresDbname == "" {
			return fmt.Errorf("Postgresql db name required")
		}
	}
	return nil
}

// PersisterTypeFromName returns the correct persisterType from the string name
func PersisterTypeFromName(typeStr string) (PersisterType, error) {
	pType, ok := PersisterNameToType[typeStr]
	if !ok {
		validNames := make([]string, len(PersisterNameToType))
		index := 0
		for name := range PersisterNameToType {
			validNames[index] = name
			index++
		}
		return PersisterTypeInvalid,
			fmt.Errorf("Invalid persister value: %v; valid types %v", typeStr, validNames)
	}
	return pType, nil
}
