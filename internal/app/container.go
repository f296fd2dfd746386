package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/acme/engagement-compliance/internal/availability"
	"github.com/acme/engagement-compliance/internal/compliance"
	"github.com/acme/engagement-compliance/internal/config"
	"github.com/acme/engagement-compliance/internal/infra/db"
	"github.com/acme/engagement-compliance/internal/infra/redis"
	"github.com/acme/engagement-compliance/internal/queue"
	"github.com/acme/engagement-compliance/internal/repository"
	pgrepo "github.com/acme/engagement-compliance/internal/repository/postgres"
	scyllarepo "github.com/acme/engagement-compliance/internal/repository/scylla"
	"github.com/acme/engagement-compliance/internal/rules"
	"github.com/acme/engagement-compliance/internal/service/gate"
	"github.com/acme/engagement-compliance/internal/timezone"
	"github.com/acme/engagement-compliance/pkg/logger"
)

// CacheBackendRedis selects the shared Redis rules cache.
const CacheBackendRedis = "redis"

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	// Redis is nil unless the rules cache backend is redis.
	Redis *redis.Client
	Kafka *queue.Kafka

	// lazily initialised components
	components struct {
		once         sync.Once
		repositories *repositories
		services     *services
		publishers   *publishers
	}
}

type repositories struct {
	Rules          repository.ExecutionRulesRepository
	Availability   repository.AvailabilityRepository
	CalendarEvents repository.CalendarEventRepository
	EventTypes     repository.EventTypeRepository
	Directory      repository.DirectoryRepository
	Decisions      *scyllarepo.DecisionStore
}

type services struct {
	Timezone   *timezone.Resolver
	Rules      *rules.Store
	Compliance *compliance.ActionResolver
	Slots      *availability.Generator
	Gate       *gate.Service
}

type publishers struct {
	Decisions   *queue.DecisionPublisher
	Reschedules *queue.ReschedulePublisher
	Releases    *queue.ReleasePublisher
	// DeadLetters is nil when no dead letter topic is configured.
	DeadLetters *queue.ReschedulePublisher
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		return nil, err
	}

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	scylla, err := db.NewScylla(cfg.Scylla)
	if err != nil {
		return nil, fmt.Errorf("bootstrap scylla: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Rules.CacheBackend == CacheBackendRedis {
		redisClient, err = redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
	}

	kafka, err := queue.NewKafka(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("bootstrap kafka: %w", err)
	}

	container := &Container{
		Config:   cfg,
		Logger:   lg,
		Postgres: pg,
		Scylla:   scylla,
		Redis:    redisClient,
		Kafka:    kafka,
	}

	return container, nil
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		cfg := c.Config
		sqlDB := c.Postgres.DB()

		repos := &repositories{
			Rules:          pgrepo.NewExecutionRulesRepository(sqlDB),
			Availability:   pgrepo.NewAvailabilityRepository(sqlDB),
			CalendarEvents: pgrepo.NewCalendarEventRepository(sqlDB),
			EventTypes:     pgrepo.NewEventTypeRepository(sqlDB),
			Directory:      pgrepo.NewDirectoryRepository(sqlDB),
			Decisions:      scyllarepo.NewDecisionStore(c.Scylla.Session(), cfg.Compliance.DecisionTTL, c.Logger.Named("decisions")),
		}

		pubs := &publishers{
			Decisions:   queue.NewDecisionPublisher(c.Kafka, cfg.Kafka.DecisionTopic),
			Reschedules: queue.NewReschedulePublisher(c.Kafka, cfg.Kafka.RescheduleTopic),
			Releases:    queue.NewReleasePublisher(c.Kafka, cfg.Kafka.ReleaseTopic),
		}
		if cfg.Kafka.DeadLetterTopic != "" {
			pubs.DeadLetters = queue.NewReschedulePublisher(c.Kafka, cfg.Kafka.DeadLetterTopic)
		}

		var cache rules.Cache
		if c.Redis != nil {
			cache = rules.NewRedisCache(c.Redis.Inner(), cfg.Rules.CacheKeyPrefix)
		} else {
			cache = rules.NewMemoryCache(nil)
		}

		tz := timezone.NewResolver(c.Logger.Named("timezone"), nil)
		afterHours := compliance.NewAfterHours(tz, cfg.Compliance.DefaultTimezone, c.Logger.Named("after_hours"))
		resolver := compliance.NewActionResolver(afterHours, tz)
		rulesStore := rules.NewStore(repos.Rules, cache, cfg.Rules.CacheTTL, c.Logger.Named("rules"))

		svcs := &services{
			Timezone:   tz,
			Rules:      rulesStore,
			Compliance: resolver,
			Slots: availability.NewGenerator(
				repos.Availability,
				repos.CalendarEvents,
				repos.EventTypes,
				repos.Directory,
				tz,
				c.Logger.Named("slots"),
			),
			Gate: gate.NewService(
				rulesStore,
				resolver,
				repos.Decisions,
				pubs.Decisions,
				pubs.Reschedules,
				c.Logger.Named("gate"),
			),
		}

		c.components.repositories = repos
		c.components.publishers = pubs
		c.components.services = svcs
	})
}

// Repositories exposes initialized repositories.
func (c *Container) Repositories() *repositories {
	c.initComponents()
	return c.components.repositories
}

// Services exposes initialized services.
func (c *Container) Services() *services {
	c.initComponents()
	return c.components.services
}

// Publishers exposes Kafka publishers.
func (c *Container) Publishers() *publishers {
	c.initComponents()
	return c.components.publishers
}

// HealthChecks returns a probe per backing store.
func (c *Container) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"postgres": c.Postgres.HealthCheck,
		"scylla":   c.Scylla.HealthCheck,
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis.HealthCheck
	}
	return checks
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if p := c.components.publishers; p != nil {
		closers := map[string]interface{ Close() error }{
			"decision publisher":   p.Decisions,
			"reschedule publisher": p.Reschedules,
			"release publisher":    p.Releases,
		}
		if p.DeadLetters != nil {
			closers["dead letter publisher"] = p.DeadLetters
		}
		for name, closer := range closers {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s close: %w", name, err))
			}
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		if err := c.Scylla.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scylla close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	return errors.Join(errs...)
}

// EnsureSchema creates the decision audit table unless disabled.
func (c *Container) EnsureSchema(ctx context.Context) error {
	if c.Config.Scylla.DisableInitSchema {
		return nil
	}
	return c.Repositories().Decisions.EnsureSchema(ctx)
}

// EnsureTopics ensures required Kafka topics exist.
func (c *Container) EnsureTopics(ctx context.Context) error {
	cfg := c.Config.Kafka
	topics := []string{cfg.DecisionTopic, cfg.RescheduleTopic, cfg.ReleaseTopic}
	if err := c.Kafka.EnsureTopics(ctx, topics, cfg.Partitions, cfg.ReplicationFactor); err != nil {
		return err
	}

	if cfg.DeadLetterTopic != "" {
		if err := c.Kafka.EnsureTopics(ctx, []string{cfg.DeadLetterTopic}, 1, cfg.ReplicationFactor); err != nil {
			return err
		}
	}

	return nil
}
