// Package di wires the engine's composition root, following the
// teacher's infrastructure/di/providers.go + wire.go split: plain
// constructor functions ("Provide*") composed by hand into a single
// Container. The teacher generates this wiring with google/wire; we
// build it by hand here since the wire binary has no place to run in
// this environment, but the shape — one Provide* per dependency,
// assembled into a flat Container struct — is the same.
package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"relevance-engine/application/commands"
	"relevance-engine/application/ports"
	"relevance-engine/application/queries"
	"relevance-engine/application/services/contextframe"
	"relevance-engine/application/services/features"
	"relevance-engine/application/services/loops"
	"relevance-engine/application/services/maintenance"
	"relevance-engine/application/services/recall"
	"relevance-engine/application/services/relationships"
	"relevance-engine/application/services/salience"
	"relevance-engine/application/services/temporal"
	"relevance-engine/application/services/tiermanager"
	domainconfig "relevance-engine/domain/config"
	"relevance-engine/infrastructure/cache"
	appconfig "relevance-engine/infrastructure/config"
	"relevance-engine/infrastructure/concurrency"
	"relevance-engine/infrastructure/llm"
	"relevance-engine/infrastructure/messaging/eventbridge"
	"relevance-engine/infrastructure/persistence/dynamodb"
	"relevance-engine/infrastructure/persistence/objectstore"
	"relevance-engine/infrastructure/persistence/vectorindex"
)

// Settings bundles the environment-specific knobs the Container needs
// beyond the engine's own tunables (spec §6 Config): which AWS
// resources back the document store, event bus, and cold tier, plus
// the local path for the embedded vector index.
type Settings struct {
	AWSRegion        string
	DynamoDBTable    string
	EventBusName     string
	ColdStorageBucket string
	VectorIndexPath  string
	VectorDimension  int
	LanguageBackendURL string
	// ConfigFilePath, when set in a "development" environment, is
	// watched for changes and hot-reloaded as a config.LoadWithFileOverlay
	// overlay (spec §6 ambient tooling, grounded on the teacher's
	// internal/config.ConfigWatcher). Empty disables hot reload.
	ConfigFilePath string
}

// DefaultSettings returns development-friendly defaults; production
// deployments override every field from their own environment loader.
func DefaultSettings() Settings {
	return Settings{
		AWSRegion:          "us-west-2",
		DynamoDBTable:      "relevance-engine",
		EventBusName:       "relevance-engine-events",
		ColdStorageBucket:  "relevance-engine-cold",
		VectorIndexPath:    "./data/vectors.db",
		VectorDimension:    0,
		LanguageBackendURL: "http://localhost:9090",
	}
}

// Container holds every wired collaborator the tool-contract adapter
// and background workers need. Mirrors the teacher's di.Container,
// minus the command/query bus indirection our simpler direct-handler
// style doesn't use.
type Container struct {
	Config       *appconfig.Config
	DomainConfig *domainconfig.DomainConfig
	Logger       *zap.Logger

	Store          *dynamodb.Store
	VectorIndex    *vectorindex.VectorIndex
	HotCache       *cache.InMemoryHotCache
	ObjectStore    *objectstore.S3ObjectStore
	EventBus       ports.EventBus
	LanguageBackend ports.LanguageBackend
	ConfigWatcher  *appconfig.Watcher
	SideEffectPool *concurrency.Pool

	MemoryRepo       ports.MemoryRepository
	EntityRepo       ports.EntityRepository
	RelationshipRepo ports.RelationshipRepository
	OpenLoopRepo     ports.OpenLoopRepository
	ContextFrameRepo ports.ContextFrameRepository
	PatternRepo      ports.TemporalPatternRepository
	RecallSessionRepo ports.RecallSessionRepository
	AccessLogRepo    ports.AccessLogRepository
	NotificationRepo ports.NotificationRepository

	Extractor   *features.Extractor
	Calculator  *salience.Calculator
	LoopTracker *loops.Tracker
	RelUpdater  *relationships.Updater
	Tiers       *tiermanager.Manager
	Frames      *contextframe.Store
	Detector    *temporal.Detector
	Prefetcher  *temporal.Prefetcher
	Sessions    *recall.Service
	Workers     *maintenance.Workers

	StoreMemory     *commands.StoreMemoryHandler
	CloseLoop       *commands.CloseLoopHandler
	Context         *commands.ContextHandler
	ForgetRestore   *commands.ForgetRestoreHandler
	Reassociate     *commands.ReassociateHandler
	RecallSession   *commands.RecallSessionHandler
	Anticipate      *commands.AnticipateHandler

	Recall        *queries.RecallHandler
	WhatsRelevant *queries.WhatsRelevantHandler
	GetBriefing   *queries.GetBriefingHandler
	GetPredictions *queries.GetPredictionsHandler
	ListLoops     *queries.ListLoopsHandler
	ExportMemories *queries.ExportMemoriesHandler
}

// Close stops the side-effect worker pool and the config watcher, then
// releases the embedded vector index's SQLite file handle; the AWS
// clients hold no local handle to release.
func (c *Container) Close() error {
	if c.SideEffectPool != nil {
		c.SideEffectPool.Stop()
	}
	if c.ConfigWatcher != nil {
		c.ConfigWatcher.Stop()
	}
	if c.VectorIndex != nil {
		return c.VectorIndex.Close()
	}
	return nil
}

// defaultEmotionLexicon seeds the salience calculator's lexical
// intensity boost (spec §4.2 "boosted by lexical hits in an emotion
// lexicon") from the feature extractor's own positive/negative word
// lists, so the two signals agree on what counts as emotionally loaded
// without maintaining a second hand-curated list.
func defaultEmotionLexicon() map[string]float64 {
	lex := features.DefaultLexicon()
	out := make(map[string]float64, len(lex.PositiveWords)+len(lex.NegativeWords))
	for _, w := range lex.PositiveWords {
		out[w] = 0.7
	}
	for _, w := range lex.NegativeWords {
		out[w] = 0.8
	}
	out["died"] = 1.0
	out["passed away"] = 1.0
	out["fired"] = 0.9
	out["breakup"] = 0.9
	return out
}

// ProvideLogger builds the process logger, production-structured or
// development-pretty depending on environment, matching the teacher's
// ProvideLogger.
func ProvideLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideAWSConfig loads the default AWS credential chain scoped to
// region.
func ProvideAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
}

// New builds a fully-wired Container from environment-derived Config,
// DomainConfig defaults, and the given Settings. environment selects the
// logger's mode ("production" | "development").
func New(ctx context.Context, environment string, settings Settings) (*Container, error) {
	cfg, err := appconfig.LoadWithFileOverlay(settings.ConfigFilePath)
	if err != nil {
		return nil, fmt.Errorf("loading engine config: %w", err)
	}
	domainCfg := domainconfig.DefaultDomainConfig()

	logger, err := ProvideLogger(environment)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	awsCfg, err := ProvideAWSConfig(ctx, settings.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	store := dynamodb.NewStore(awsdynamodb.NewFromConfig(awsCfg), settings.DynamoDBTable, logger)
	bus := eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), settings.EventBusName, "relevance-engine", logger)
	cold := objectstore.NewS3ObjectStore(awss3.NewFromConfig(awsCfg), settings.ColdStorageBucket, logger)
	hot := cache.NewInMemoryHotCacheWithCapacity(cfg.HotCacheCapacity, logger)

	vectors, err := vectorindex.Open(ctx, settings.VectorIndexPath, settings.VectorDimension, logger)
	if err != nil {
		return nil, fmt.Errorf("opening vector index: %w", err)
	}

	backend := llm.NewHTTPBackend(settings.LanguageBackendURL, &http.Client{Timeout: cfg.LLMTimeout}, logger, 30*time.Second)

	memRx := dynamodb.NewMemoryRepository(store)
	entitiesRx := dynamodb.NewEntityRepository(store)
	relRx := dynamodb.NewRelationshipRepository(store)
	loopRx := dynamodb.NewOpenLoopRepository(store)
	frameRx := dynamodb.NewContextFrameRepository(store)
	patternRx := dynamodb.NewTemporalPatternRepository(store)
	sessionRx := dynamodb.NewRecallSessionRepository(store)
	accessLogRx := dynamodb.NewAccessLogRepository(store)
	notifyRx := dynamodb.NewNotificationRepository(store)

	extractor := features.NewExtractor(backend, cfg.FeatureTimeout, logger)
	calculator := salience.NewCalculator(salience.DefaultWeights(), defaultEmotionLexicon())
	loopTracker := loops.NewTracker(loopRx, entitiesRx, bus, logger)
	relUpdater := relationships.NewUpdater(relRx, entitiesRx, bus, domainCfg, logger)
	tiers := tiermanager.NewManager(hot, memRx, cold, tiermanager.Config{
		HotThresholdPerHour: cfg.HotThresholdPerHour,
		HotTTL:              cfg.HotTTL,
		WarmTTL:             cfg.WarmTTL,
		ColdTTL:             cfg.ColdTTL,
	}, logger)
	frames := contextframe.NewStore(frameRx, bus, 0, logger)
	detector := temporal.NewDetector(accessLogRx, patternRx, bus, temporal.Config{MinConfidence: cfg.PatternMinConfidence}, logger)
	prefetcher := temporal.NewPrefetcher(patternRx, memRx, tiers, logger)
	sessions := recall.NewService(sessionRx, memRx, vectors, backend, 0, logger)

	sideEffectPool := concurrency.NewPool(ctx, 4, 256, concurrency.DefaultRetryPolicy(), logger)

	storeMemory := commands.NewStoreMemoryHandler(memRx, entitiesRx, vectors, backend, accessLogRx, bus, sideEffectPool, extractor, calculator, loopTracker, relUpdater, tiers, cfg, domainCfg, logger)

	workers := maintenance.NewWorkers(loopTracker, tiers, detector, sessions, relRx, entitiesRx, notifyRx, patternRx, bus, storeMemory, domainCfg, logger)
	closeLoop := commands.NewCloseLoopHandler(loopTracker, logger)
	contextCmd := commands.NewContextHandler(frames, logger)
	forgetRestore := commands.NewForgetRestoreHandler(memRx, logger)
	reassociate := commands.NewReassociateHandler(memRx, domainCfg, logger)
	recallSession := commands.NewRecallSessionHandler(sessions, logger)
	anticipate := commands.NewAnticipateHandler(prefetcher, logger)

	fusionCfg := queries.DefaultFusionConfig()
	fusionCfg.OverfetchFactor = cfg.RetrievalOverfetchFactor
	fusionCfg.VectorTimeout = cfg.VectorTimeout
	fusionCfg.Gate.Threshold = cfg.GateThreshold
	fusionCfg.Gate.Min = cfg.GateMin
	frameLookup := queries.NewFrameLookup(frames)
	recallHandler := queries.NewRecallHandler(vectors, memRx, backend, frameLookup, fusionCfg, logger)
	whatsRelevant := queries.NewWhatsRelevantHandler(recallHandler, frames)
	getBriefing := queries.NewGetBriefingHandler(entitiesRx, relRx, loopRx, logger)
	getPredictions := queries.NewGetPredictionsHandler(patternRx, logger)
	listLoops := queries.NewListLoopsHandler(loopRx, logger)
	exportMemories := queries.NewExportMemoriesHandler(memRx, loopRx, logger)

	var watcher *appconfig.Watcher
	if environment == "development" && settings.ConfigFilePath != "" {
		watcher, err = appconfig.NewWatcher(settings.ConfigFilePath, cfg, logger)
		if err != nil {
			logger.Warn("config hot reload disabled, failed to start watcher",
				zap.String("path", settings.ConfigFilePath), zap.Error(err))
			watcher = nil
		} else {
			watcher.OnChange(func(reloaded *appconfig.Config) {
				logger.Info("config overlay changed; restart the process to pick up new values",
					zap.String("path", settings.ConfigFilePath))
			})
		}
	}

	return &Container{
		Config: cfg, DomainConfig: domainCfg, Logger: logger,
		Store: store, VectorIndex: vectors, HotCache: hot, ObjectStore: cold,
		EventBus: bus, LanguageBackend: backend,
		ConfigWatcher: watcher, SideEffectPool: sideEffectPool,
		MemoryRepo: memRx, EntityRepo: entitiesRx, RelationshipRepo: relRx,
		OpenLoopRepo: loopRx, ContextFrameRepo: frameRx, PatternRepo: patternRx,
		RecallSessionRepo: sessionRx, AccessLogRepo: accessLogRx, NotificationRepo: notifyRx,
		Extractor: extractor, Calculator: calculator, LoopTracker: loopTracker,
		RelUpdater: relUpdater, Tiers: tiers, Frames: frames, Detector: detector,
		Prefetcher: prefetcher, Sessions: sessions, Workers: workers,
		StoreMemory: storeMemory, CloseLoop: closeLoop, Context: contextCmd,
		ForgetRestore: forgetRestore, Reassociate: reassociate, RecallSession: recallSession,
		Anticipate: anticipate,
		Recall: recallHandler, WhatsRelevant: whatsRelevant, GetBriefing: getBriefing,
		GetPredictions: getPredictions, ListLoops: listLoops, ExportMemories: exportMemories,
	}, nil
}
