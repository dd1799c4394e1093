package main

// This script dumps a work record and its audit trail for operator
// inspection. Useful when investigating a stuck or failed submission
// before retrying a publish or reconcile.

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/kelseyhightower/envconfig"

	"github.com/creaproof/provenance-registrar/pkg/helpers"
	"github.com/creaproof/provenance-registrar/pkg/utils"
)

// Config configures this script
type Config struct {
	PersisterPostgresAddress string `split_words:"true" desc:"Sets the postgres address"`
	PersisterPostgresPort    int    `split_words:"true" desc:"Sets the postgres port"`
	PersisterPostgresDbname  string `split_words:"true" desc:"Sets the postgres database name"`
	PersisterPostgresUser    string `split_words:"true" desc:"Sets the postgres database user"`
	PersisterPostgresPw      string `split_words:"true" desc:"Sets the postgres database password"`
}

// PopulateFromEnv processes the environment vars, populates Config
func (c *Config) PopulateFromEnv() error {
	return envconfig.Process("recordcheck", c)
}

func checkRecord(config *Config, workID string) error {
	registrarConfig := &utils.RegistrarConfig{
		PersisterType:            utils.PersisterTypePostgresql,
		PersisterPostgresAddress: config.PersisterPostgresAddress,
		PersisterPostgresPort:    config.PersisterPostgresPort,
		PersisterPostgresDbname:  config.PersisterPostgresDbname,
		PersisterPostgresUser:    config.PersisterPostgresUser,
		PersisterPostgresPw:      config.PersisterPostgresPw,
	}

	workPersister, err := helpers.WorkPersister(registrarConfig)
	if err != nil {
		return err
	}
	auditPersister, err := helpers.AuditPersister(registrarConfig)
	if err != nil {
		return err
	}

	work, err := workPersister.WorkByID(workID)
	if err != nil {
		return err
	}
	entries, err := auditPersister.AuditEntriesByWork(workID)
	if err != nil {
		return err
	}

	spew.Dump(work)
	spew.Dump(entries)
	if url, ok := work.ExplorerURL(); ok {
		fmt.Printf("explorer: %v\n", url)
	}
	return nil
}

func main() {
	workID := flag.String("workid", "", "id of the work to dump")
	flag.Parse()

	config := &Config{}
	err := config.PopulateFromEnv()
	if err != nil {
		fmt.Printf("Error getting config: err: %v\n", err)
		os.Exit(1)
	}
	if *workID == "" {
		err = errors.New("need a work id, use -workid")
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}

	err = checkRecord(config, *workID)
	if err != nil {
		fmt.Printf("Error checking record: err: %v\n", err)
		os.Exit(1)
	}
}
