package assemblers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cloudevents/sdk-go/v2/event"
	cebuilder "github.com/leapcode/keymanager/backend/pkg/cryptoengines/builder"
	"github.com/leapcode/keymanager/backend/pkg/eventbus"
	"github.com/leapcode/keymanager/backend/pkg/jobs"
	"github.com/leapcode/keymanager/backend/pkg/middlewares/eventpub"
	"github.com/leapcode/keymanager/backend/pkg/middlewares/metrics"
	"github.com/leapcode/keymanager/backend/pkg/middlewares/otel"
	lservices "github.com/leapcode/keymanager/backend/pkg/services"
	"github.com/leapcode/keymanager/backend/pkg/storage/builder"
	"github.com/leapcode/keymanager/core/pkg/config"
	"github.com/leapcode/keymanager/core/pkg/engines/storage"
	"github.com/leapcode/keymanager/core/pkg/errs"
	"github.com/leapcode/keymanager/core/pkg/helpers"
	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/leapcode/keymanager/core/pkg/services"
	"github.com/leapcode/keymanager/sdk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
)

const serviceID = "Key Manager"

// KeyManagerInstance is an assembled key manager with its background workers.
// Service is the outermost middleware and the one callers should use.
type KeyManagerInstance struct {
	Service   services.KeyManager
	Backend   *lservices.KeyManagerBackend
	Refresher *jobs.RandomRefresher
	Auditor   *jobs.JobScheduler
	Metrics   *prometheus.Registry
	Publisher message.Publisher

	storage      storage.StorageEngine
	router       *message.Router
	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

func AssembleKeyManagerService(conf config.KeyManagerConfig) (*KeyManagerInstance, error) {
	lSvc := helpers.SetupLogger(conf.Logs.Level, serviceID, "Service")
	lStorage := helpers.SetupLogger(conf.Storage.LogLevel, serviceID, "Storage")
	lCryptoEng := helpers.SetupLogger(conf.CryptoEngine.LogLevel, serviceID, "CryptoEngine")
	lNicknym := helpers.SetupLogger(conf.Nicknym.LogLevel, serviceID, "SDK - Nicknym Client")

	if conf.Nicknym.URL == "" {
		return nil, fmt.Errorf("nicknym url is required")
	}

	otelShutdown, err := sdk.InitOtelSDK(context.Background(), serviceID, conf.OtelConfig)
	if err != nil {
		return nil, fmt.Errorf("could not initialize otel sdk: %s", err)
	}

	engine, keyStorage, err := createKeysStorageInstance(lStorage, conf.Storage)
	if err != nil {
		otelShutdown(context.Background())
		return nil, fmt.Errorf("could not create keys storage instance: %s", err)
	}

	cleanup := func() {
		engine.Close()
		otelShutdown(context.Background())
	}

	cryptoEngine, err := cebuilder.BuildCryptoEngine(lCryptoEng, conf.CryptoEngine)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("could not create crypto engine: %s", err)
	}
	log.Infof("loaded %s crypto engine", cryptoEngine.GetProvider())

	providerCli, err := sdk.BuildProviderHTTPClient(conf.Nicknym, lNicknym)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("could not build provider HTTP client: %s", err)
	}

	combinedCli, err := sdk.BuildCombinedHTTPClient(conf.Nicknym, lNicknym)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("could not build combined HTTP client: %s", err)
	}

	backend, err := lservices.NewKeyManagerService(lservices.KeyManagerBuilder{
		Logger:       lSvc,
		Session:      conf.Session,
		KeyStorage:   keyStorage,
		CryptoEngine: cryptoEngine,
		Directory:    sdk.NewHttpNicknymClient(providerCli, conf.Nicknym.URL, conf.Session),
		Fetcher:      sdk.NewHttpKeyFetcher(providerCli, combinedCli, providerDomain(conf.Session.Address)),
		KeyExpiry:    conf.CryptoEngine.KeyExpiry,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("could not create key manager service: %v", err)
	}

	instance := &KeyManagerInstance{
		Backend:      backend,
		storage:      engine,
		otelShutdown: otelShutdown,
	}

	var svc services.KeyManager = backend

	if conf.OtelConfig.Traces.Enabled {
		log.Infof("OTel tracing is enabled")
		svc = otel.NewKeyManagerOTelTracer()(svc)
	}

	if conf.Metrics.Enabled {
		instance.Metrics = prometheus.NewRegistry()
		instance.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		counter, latency, err := metrics.NewKeyManagerMetrics(instance.Metrics)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("could not register key manager metrics: %s", err)
		}
		svc = metrics.NewKeyManagerInstrumentingMiddleware(counter, latency)(svc)
	}

	var publisher eventpub.ICloudEventPublisher
	if conf.EventBus.Enabled {
		log.Infof("Event Bus is enabled")
		lMessage := helpers.SetupLogger(conf.EventBus.LogLevel, serviceID, "Event Bus")

		pub, sub := eventbus.NewGoChannelPubSub(lMessage)
		router, err := eventbus.NewEventBusRouter(lMessage)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("could not create event bus router: %s", err)
		}

		eventbus.Subscribe(router, sub, "event-log", eventLogHandler(lMessage))

		publisher = eventpub.NewEventPublisherWithSourceMiddleware(&eventpub.CloudEventPublisher{
			Publisher: pub,
			ServiceID: "keymanager",
			Logger:    lMessage,
		}, eventpub.KeyManagerSource)

		svc = eventpub.NewKeyManagerEventBusPublisher(publisher)(svc)
		instance.Publisher = pub
		instance.router = router
	}

	// middlewares are reachable from inside the backend through svc.service
	backend.SetService(svc)
	instance.Service = svc

	if conf.Refresher.Enabled {
		lRefresher := helpers.SetupLogger(conf.Logs.Level, serviceID, "Refresher")
		instance.Refresher = jobs.NewRandomRefresher(lRefresher, backend, conf.Refresher, publisher)
	}

	if conf.AuditJob.Enabled {
		lAudit := helpers.SetupLogger(conf.Logs.Level, serviceID, "Audit Job")
		instance.Auditor, err = jobs.NewJobScheduler(lAudit, conf.AuditJob.Frequency, jobs.NewKeyAuditJob(lAudit, backend, publisher))
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("could not create key audit job: %s", err)
		}
	}

	if conf.GenerateMissingKey {
		if err := ensureSessionKey(svc, conf.Session.Address); err != nil {
			cleanup()
			return nil, err
		}
	}

	return instance, nil
}

// Start launches the event router and the background jobs.
func (km *KeyManagerInstance) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	km.cancel = cancel

	if km.router != nil {
		go func() {
			if err := km.router.Run(ctx); err != nil {
				log.Errorf("event bus router stopped: %s", err)
			}
		}()
		<-km.router.Running()
	}

	if km.Refresher != nil {
		km.Refresher.Start()
	}

	if km.Auditor != nil {
		km.Auditor.Start()
	}
}

// Close stops the workers, drains the event bus and releases the storage engine.
func (km *KeyManagerInstance) Close() error {
	if km.Refresher != nil {
		km.Refresher.Stop()
	}

	if km.Auditor != nil {
		km.Auditor.Stop()
	}

	var err error
	if km.router != nil {
		err = km.router.Close()
	}

	if km.Publisher != nil {
		err = errors.Join(err, km.Publisher.Close())
	}

	if km.cancel != nil {
		km.cancel()
	}

	if km.otelShutdown != nil {
		err = errors.Join(err, km.otelShutdown(context.Background()))
	}

	return errors.Join(err, km.storage.Close())
}

func createKeysStorageInstance(logger *log.Entry, conf config.PluggableStorageEngine) (storage.StorageEngine, storage.KeysRepo, error) {
	engine, err := builder.BuildStorageEngine(logger, conf)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create storage engine: %s", err)
	}

	keyStorage, err := engine.GetKeysStorage()
	if err != nil {
		engine.Close()
		return nil, nil, fmt.Errorf("could not get keys storage: %s", err)
	}

	return engine, keyStorage, nil
}

func providerDomain(address string) string {
	_, domain, _ := strings.Cut(address, "@")
	return strings.ToLower(domain)
}

func ensureSessionKey(svc services.KeyManager, address string) error {
	ctx := helpers.InitContext("assembler")

	_, err := svc.GetKey(ctx, services.GetKeyInput{
		Address:   address,
		Private:   true,
		LocalOnly: true,
	})
	if err == nil {
		return nil
	}

	if !errors.Is(err, errs.ErrKeyNotFound) {
		return fmt.Errorf("could not look up key for %s: %s", address, err)
	}

	log.Infof("no key pair found for %s. Generating one", address)
	if _, err := svc.GenerateKey(ctx); err != nil {
		return fmt.Errorf("could not generate key for %s: %s", address, err)
	}

	return nil
}

func eventLogHandler(logger *log.Entry) eventbus.CloudEventHandler {
	logEvent := func(e *event.Event) error {
		logger.Debugf("event %s: type=%s subject=%s", e.ID(), e.Type(), e.Subject())
		return nil
	}

	dispatch := map[models.EventType]func(*event.Event) error{}
	for _, eventType := range []models.EventType{
		models.EventKeyFound,
		models.EventKeyNotFound,
		models.EventKeyImported,
		models.EventKeyFetched,
		models.EventKeySent,
		models.EventKeyGenerated,
		models.EventKeyRegenerated,
		models.EventKeyExtended,
		models.EventKeyRefreshed,
		models.EventKeyDeactivated,
		models.EventRefreshFingerprintMismatch,
		models.EventKeysAudited,
	} {
		dispatch[eventType] = logEvent
	}

	return eventbus.CloudEventHandler{
		Logger:      logger,
		DispatchMap: dispatch,
	}
}
