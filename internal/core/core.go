package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/labstack/gommon/log"
	"github.com/udovin/gosql"

	"github.com/udovin/duel/internal/config"
	"github.com/udovin/duel/internal/db"
	"github.com/udovin/duel/internal/events"
	"github.com/udovin/duel/internal/judge"
	"github.com/udovin/duel/internal/models"
	"github.com/udovin/duel/internal/pkg/logs"
	"github.com/udovin/duel/internal/pkg/random"
	"github.com/udovin/duel/internal/storage"
)

// Core manages all available resources.
type Core struct {
	// Config contains config.
	Config config.Config
	// Sessions contains session store.
	Sessions *models.SessionStore
	// SessionProblems contains session problem store.
	SessionProblems *models.SessionProblemStore
	// Participations contains participation store.
	Participations *models.ParticipationStore
	// Submissions contains submission store.
	Submissions *models.SubmissionStore
	// Accepts contains store of first accepts.
	Accepts *models.AcceptStore
	// Profiles contains profile store.
	Profiles *models.ProfileStore
	// Problems contains problem store.
	Problems *models.ProblemStore
	// Tournaments contains tournament store.
	Tournaments *models.TournamentStore
	// TournamentParticipants contains tournament participant store.
	TournamentParticipants *models.TournamentParticipantStore
	// TournamentProblems contains tournament problem store.
	TournamentProblems *models.TournamentProblemStore
	// Matches contains match store.
	Matches *models.MatchStore
	// Events contains notification bus.
	Events *events.Bus
	// Random contains source of randomness for problem selection and seeding.
	Random random.Source
	// Judge contains client of judge service.
	Judge *judge.Client
	// CodeStorage contains archive of submitted code.
	CodeStorage storage.CodeStorage
	// Now returns current time.
	Now func() time.Time
	//
	context   context.Context
	cancel    context.CancelFunc
	waiter    sync.WaitGroup
	scheduler gocron.Scheduler
	// DB stores database connection.
	DB *db.DB
	// logger contains logger.
	logger *logs.Logger
}

// NewCore creates core instance from config.
func NewCore(cfg config.Config) (*Core, error) {
	conn, err := cfg.DB.Create()
	if err != nil {
		return nil, err
	}
	source, err := random.NewCryptoSeededSource()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	logger := logs.NewLogger()
	logger.SetHeader(`{"time":"${time_rfc3339_nano}","level":"${level}"}`)
	logger.SetLevel(log.Lvl(cfg.LogLevel))
	c := Core{
		Config: cfg,
		DB:     conn,
		Events: events.NewBus(0),
		Random: source,
		Now:    time.Now,
		logger: logger,
	}
	if cfg.Judge != nil {
		c.Judge = judge.NewClient(
			cfg.Judge.URL,
			judge.WithTimeout(cfg.Judge.GetTimeout()),
			judge.WithBatchSize(cfg.Judge.BatchSize),
		)
	}
	if cfg.Storage != nil {
		codeStorage, err := storage.NewCodeStorage(*cfg.Storage)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		c.CodeStorage = codeStorage
	}
	return &c, nil
}

// Logger returns logger instance.
func (c *Core) Logger() *logs.Logger {
	return c.logger
}

// SetupAllStores prepares all stores.
func (c *Core) SetupAllStores() {
	c.Sessions = models.NewSessionStore(c.DB, "duel_session")
	c.SessionProblems = models.NewSessionProblemStore(c.DB, "duel_session_problem")
	c.Participations = models.NewParticipationStore(c.DB, "duel_participation")
	c.Submissions = models.NewSubmissionStore(c.DB, "duel_submission")
	c.Accepts = models.NewAcceptStore(c.DB, "duel_accept")
	c.Profiles = models.NewProfileStore(c.DB, "duel_profile")
	c.Problems = models.NewProblemStore(c.DB, "duel_problem")
	c.Tournaments = models.NewTournamentStore(c.DB, "duel_tournament")
	c.TournamentParticipants = models.NewTournamentParticipantStore(c.DB, "duel_tournament_participant")
	c.TournamentProblems = models.NewTournamentProblemStore(c.DB, "duel_tournament_problem")
	c.Matches = models.NewMatchStore(c.DB, "duel_match")
}

// Start starts application and periodic jobs.
func (c *Core) Start() error {
	if c.cancel != nil {
		return fmt.Errorf("core already started")
	}
	c.Logger().Debug("Starting core")
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	c.context, c.cancel = context.WithCancel(context.Background())
	c.scheduler = scheduler
	c.scheduler.Start()
	c.Logger().Debug("Core started")
	return nil
}

// Stop stops periodic jobs and waits for running tasks.
func (c *Core) Stop() {
	if c.cancel == nil {
		return
	}
	c.Logger().Debug("Stopping core")
	defer c.Logger().Debug("Core stopped")
	if err := c.scheduler.Shutdown(); err != nil {
		c.Logger().Warn("Cannot shutdown scheduler", err)
	}
	c.cancel()
	c.waiter.Wait()
	c.context, c.cancel, c.scheduler = nil, nil, nil
}

// Close closes database connection.
func (c *Core) Close() error {
	c.Stop()
	return c.DB.Close()
}

func (c *Core) Context() context.Context {
	return c.context
}

// WrapTx runs function with transaction.
//
// Nested calls join transaction of outer call.
func (c *Core) WrapTx(
	ctx context.Context, fn func(ctx context.Context) error,
	options ...gosql.BeginTxOption,
) error {
	return c.DB.WrapTx(ctx, fn, options...)
}

// StartTask starts task in new goroutine.
func (c *Core) StartTask(name string, task func(ctx context.Context)) {
	c.Logger().Info("Start task", logs.Any("task", name))
	c.waiter.Add(1)
	go func() {
		defer c.waiter.Done()
		defer c.Logger().Info("Task finished", logs.Any("task", name))
		task(c.context)
	}()
}

// AddJob registers task that runs periodically while core is started.
//
// Next run of job is skipped when previous run is still in progress.
func (c *Core) AddJob(name string, interval time.Duration, task func(ctx context.Context) error) error {
	if c.scheduler == nil {
		return fmt.Errorf("core is not started")
	}
	ctx := c.context
	_, err := c.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			c.waiter.Add(1)
			defer c.waiter.Done()
			if err := task(ctx); err != nil && ctx.Err() == nil {
				c.Logger().Warn("Job failed", logs.Any("job", name), err)
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	c.Logger().Info("Job registered", logs.Any("job", name), logs.Any("interval", interval.String()))
	return nil
}
