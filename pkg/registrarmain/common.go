// Package registrarmain contains the shared wiring for the registrar cmds
package registrarmain // import "github.com/creaproof/provenance-registrar/pkg/registrarmain"

import (
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	log "github.com/golang/glog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/creaproof/provenance-registrar/pkg/helpers"
	"github.com/creaproof/provenance-registrar/pkg/ledger"
	"github.com/creaproof/provenance-registrar/pkg/model"
	"github.com/creaproof/provenance-registrar/pkg/processor"
	"github.com/creaproof/provenance-registrar/pkg/utils"
)

// InitializedPersisters contains the initialized persisters for the registrar
type InitializedPersisters struct {
	Cron  model.CronPersister
	Work  model.WorkPersister
	Audit model.AuditPersister
	User  model.UserPersister
}

// InitPersisters initializes the persisters from the config
func InitPersisters(config *utils.RegistrarConfig) (*InitializedPersisters, error) {
	cronPersister, err := helpers.CronPersister(config)
	if err != nil {
		log.Errorf("Error getting the cron persister: %v", err)
		return nil, err
	}
	workPersister, err := helpers.WorkPersister(config)
	if err != nil {
		log.Errorf("Error w workPersister: err: %v", err)
		return nil, err
	}
	auditPersister, err := helpers.AuditPersister(config)
	if err != nil {
		log.Errorf("Error w auditPersister: err: %v", err)
		return nil, err
	}
	userPersister, err := helpers.UserPersister(config)
	if err != nil {
		log.Errorf("Error w userPersister: err: %v", err)
		return nil, err
	}
	return &InitializedPersisters{
		Cron:  cronPersister,
		Work:  workPersister,
		Audit: auditPersister,
		User:  userPersister,
	}, nil
}

// SetupKillNotify sets up the kill notification so the process exits cleanly
func SetupKillNotify() {
	channel := make(chan os.Signal, 1)
	signal.Notify(channel, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-channel
		log.Info("Received interrupt, exiting...")
		log.Flush()
		os.Exit(1)
	}()
}

func initPubSub(config *utils.RegistrarConfig) (processor.Publisher, error) {
	// If no project ID, disable
	if config.PubSubProjectID == "" {
		return nil, nil
	}
	return processor.NewGooglePubSub(config.PubSubProjectID, config.PubSubTopicName)
}

// RunReconciliation runs one reconciliation pass over the submitted works
func RunReconciliation(config *utils.RegistrarConfig, persisters *InitializedPersisters) {
	works, err := persisters.Work.WorksByCriteria(&model.WorkCriteria{
		State:    model.WorkStateSubmitted,
		StateSet: true,
	})
	if err != nil {
		log.Errorf("Error retrieving submitted works: err: %v", err)
		return
	}

	if len(works) > 0 {
		client, err := ledger.NewEthClient(&ledger.NewEthClientParams{
			APIURL:          config.EthAPIURL,
			RegistrarKeyHex: config.RegistrarKey,
			ContractAddress: common.HexToAddress(config.ContractAddress),
			ChainID:         config.EthChainID,
			Network:         config.EthNetwork,
			CallTimeout:     time.Duration(config.EthTimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Errorf("Error connecting to eth API: err: %v", err)
			return
		}
		defer client.Close()

		publisher, err := initPubSub(config)
		if err != nil {
			log.Errorf("Error initializing pubsub: err: %v", err)
			return
		}

		proc := processor.NewPublicationProcessor(&processor.NewPublicationProcessorParams{
			Ledger:              client,
			WorkPersister:       persisters.Work,
			UserPersister:       persisters.User,
			Publisher:           publisher,
			DemoteFailedToDraft: config.DemoteFailedToDraft,
		})
		err = proc.ReconcileAllSubmitted()
		if err != nil {
			log.Errorf("Error reconciling submitted works: err: %v", err)
		}
	}

	err = persisters.Cron.UpdateTimestampForReconcile(utils.CurrentEpochSecsInInt64())
	if err != nil {
		log.Errorf("Error saving reconcile run timestamp: err: %v", err)
		return
	}

	log.Infof("Done running reconciliation: %v", runtime.NumGoroutine())
}
