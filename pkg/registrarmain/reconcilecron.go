package registrarmain // import "github.com/creaproof/provenance-registrar/pkg/registrarmain"

import (
	"time"

	log "github.com/golang/glog"

	"github.com/robfig/cron"

	"github.com/creaproof/provenance-registrar/pkg/utils"
)

const (
	checkRunSecs = 5
)

func checkCron(cr *cron.Cron) {
	entries := cr.Entries()
	for _, entry := range entries {
		log.Infof("Reconcile run times: prev: %v, next: %v\n", entry.Prev, entry.Next)
	}
}

// ReconcileCronMain runs the reconciliation worker on the configured cron
// schedule. Blocks while the cron process runs.
func ReconcileCronMain(config *utils.RegistrarConfig, persisters *InitializedPersisters) {
	cr := cron.New()
	err := cr.AddFunc(config.CronConfig, func() { RunReconciliation(config, persisters) })
	if err != nil {
		log.Errorf("Error starting: err: %v", err)
		return
	}
	cr.Start()

	// Blocks here while the cron process runs
	for range time.After(checkRunSecs * time.Second) {
		checkCron(cr)
	}
}
