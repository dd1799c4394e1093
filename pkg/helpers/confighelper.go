// Package helpers contains various common helper functions.
// Normally they are shared functions used by the cmds.
package helpers // import "github.com/creaproof/provenance-registrar/pkg/helpers"

import (
	log "github.com/golang/glog"

	"github.com/jmoiron/sqlx"

	"github.com/creaproof/provenance-registrar/pkg/model"
	"github.com/creaproof/provenance-registrar/pkg/persistence"
	"github.com/creaproof/provenance-registrar/pkg/utils"
)

// Persister is a helper function to return an interface{} that is an
// initialized persister type
func Persister(config *utils.RegistrarConfig) (interface{}, error) {
	if config.PersisterType == utils.PersisterTypePostgresql {
		return postgresPersister(config)
	}
	// Default to the NullPersister
	return &persistence.NullPersister{}, nil
}

// PersisterFromSqlx is a helper function to return an initialized persister
// given an initialized sqlx.DB struct
func PersisterFromSqlx(db *sqlx.DB) (*persistence.PostgresPersister, error) {
	persister := persistence.NewPostgresPersisterFromSqlx(db)
	err := initTables(persister)
	if err != nil {
		return nil, err
	}
	return persister, nil
}

// WorkPersister is a helper function to return the correct work persister
// based on the given configuration
func WorkPersister(config *utils.RegistrarConfig) (model.WorkPersister, error) {
	p, err := Persister(config)
	if err != nil {
		return nil, err
	}
	return p.(model.WorkPersister), nil
}

// AuditPersister is a helper function to return the correct audit persister
// based on the given configuration
func AuditPersister(config *utils.RegistrarConfig) (model.AuditPersister, error) {
	p, err := Persister(config)
	if err != nil {
		return nil, err
	}
	return p.(model.AuditPersister), nil
}

// UserPersister is a helper function to return the correct user persister
// based on the given configuration
func UserPersister(config *utils.RegistrarConfig) (model.UserPersister, error) {
	p, err := Persister(config)
	if err != nil {
		return nil, err
	}
	return p.(model.UserPersister), nil
}

// NonceStore is a helper function to return the correct nonce store based
// on the given configuration
func NonceStore(config *utils.RegistrarConfig) (model.NonceStore, error) {
	p, err := Persister(config)
	if err != nil {
		return nil, err
	}
	return p.(model.NonceStore), nil
}

// CronPersister is a helper function to return the correct cron persister
// based on the given configuration
func CronPersister(config *utils.RegistrarConfig) (model.CronPersister, error) {
	p, err := Persister(config)
	if err != nil {
		return nil, err
	}
	return p.(model.CronPersister), nil
}

func postgresPersister(config *utils.RegistrarConfig) (*persistence.PostgresPersister, error) {
	persister, err := persistence.NewPostgresPersister(
		config.PersisterPostgresAddress,
		config.PersisterPostgresPort,
		config.PersisterPostgresUser,
		config.PersisterPostgresPw,
		config.PersisterPostgresDbname,
	)
	if err != nil {
		log.Errorf("Error connecting to Postgresql, stopping...; err: %v", err)
		return nil, err
	}
	err = initTables(persister)
	if err != nil {
		return nil, err
	}
	return persister, nil
}

func initTables(persister *persistence.PostgresPersister) error {
	err := persister.CreateTables()
	if err != nil {
		log.Errorf("Error creating tables, stopping...; err: %v", err)
		return err
	}
	err = persister.CreateIndices()
	if err != nil {
		log.Errorf("Error creating indices, stopping...; err: %v", err)
		return err
	}
	return nil
}
