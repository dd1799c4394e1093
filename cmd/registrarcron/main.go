package main

import (
	"flag"
	"os"

	log "github.com/golang/glog"

	"github.com/creaproof/provenance-registrar/pkg/registrarmain"
	"github.com/creaproof/provenance-registrar/pkg/utils"
)

func main() {
	config := &utils.RegistrarConfig{}
	flag.Usage = func() {
		config.OutputUsage()
		os.Exit(0)
	}
	flag.Parse()

	err := config.PopulateFromEnv()
	if err != nil {
		config.OutputUsage()
		log.Errorf("Invalid registrar config: err: %v\n", err)
		os.Exit(2)
	}

	persisters, err := registrarmain.InitPersisters(config)
	if err != nil {
		log.Errorf("Error initializing persister: err: %v", err)
		os.Exit(2)
	}

	registrarmain.SetupKillNotify()
	registrarmain.ReconcileCronMain(config, persisters)
}
