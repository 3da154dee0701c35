package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledger-analytics/cmd/ledgerctl/cli"
	"github.com/odyssey-erp/ledger-analytics/internal/analytics"
	"github.com/odyssey-erp/ledger-analytics/internal/app"
	"github.com/odyssey-erp/ledger-analytics/internal/cohort"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
	"github.com/odyssey-erp/ledger-analytics/internal/platform/cache"
	"github.com/odyssey-erp/ledger-analytics/internal/platform/db"
)

// Version is set via ldflags when building.
var Version = "dev"

// Globals are shared by every command.
type Globals struct {
	Timeout time.Duration `help:"Abort the command after this long." default:"5m"`
}

type session struct {
	cfg      *app.Config
	logger   *slog.Logger
	pool     *pgxpool.Pool
	redis    *redis.Client
	services *app.Services
}

func (g *Globals) signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// open connects to PostgreSQL and, when reachable, Redis.
func (g *Globals) open(ctx context.Context) (*session, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg)
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 4, StatementTimeout: cfg.PGStmtTimeout, ApplicationName: "ledgerctl"})
	if err != nil {
		return nil, err
	}
	client, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis unavailable, running uncached", slog.Any("error", err))
		client = nil
	}
	return &session{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		redis:    client,
		services: app.NewServices(cfg, logger, pool, client, nil),
	}, nil
}

func (s *session) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	s.pool.Close()
}

func (s *session) redisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: s.cfg.RedisAddr, Password: s.cfg.RedisPassword, DB: s.cfg.RedisDB}
}

// PeriodFlags select an accounting period; both default to the current year.
type PeriodFlags struct {
	From string `help:"Period start (YYYY-MM-DD)."`
	To   string `help:"Period end (YYYY-MM-DD)."`
}

func (f PeriodFlags) period() (ledger.Period, error) {
	if f.From == "" && f.To == "" {
		return ledger.YearPeriod(time.Now().Year()), nil
	}
	if f.From == "" || f.To == "" {
		return ledger.Period{}, errors.New("--from and --to must be given together")
	}
	return ledger.ParsePeriod(f.From, f.To)
}

type MigrateCmd struct{}

func (cmd *MigrateCmd) Run(g *Globals) error {
	ctx, cancel := g.signalContext()
	defer cancel()
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 1, ApplicationName: "ledgerctl"})
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	fmt.Println("schema applied")
	return nil
}

type ImportCmd struct {
	File   string `help:"Journal CSV export." arg:"" type:"existingfile"`
	Source string `help:"Label recorded with the batch." default:"cli"`
	DryRun bool   `help:"Validate and classify without storing."`
	Notify bool   `help:"Ask the workers to re-warm the reports after storing." default:"true" negatable:""`
}

func (cmd *ImportCmd) Run(g *Globals) error {
	ctx, cancel := g.signalContext()
	defer cancel()
	s, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := os.Open(cmd.File)
	if err != nil {
		return err
	}
	defer f.Close()

	company, err := s.services.Company.Company(ctx, s.services.Tenant)
	if err != nil {
		return err
	}
	opts := cli.ImportOptions{
		Source:      cmd.Source,
		Reader:      f,
		Classifier:  company.Classifier(),
		Importer:    s.services.Store,
		Invalidator: s.services.Aggregator,
		DryRun:      cmd.DryRun,
	}
	if cmd.Notify && !cmd.DryRun {
		jobsCLI := cli.NewJobsCLI(s.redisOpts())
		defer jobsCLI.Close()
		opts.Notifier = jobsCLI
	}
	_, err = cli.Import(ctx, opts)
	return err
}

type DashboardCmd struct {
	PeriodFlags
}

func (cmd *DashboardCmd) Run(g *Globals) error {
	p, err := cmd.period()
	if err != nil {
		return err
	}
	ctx, cancel := g.signalContext()
	defer cancel()
	s, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	dashboard, err := s.services.Metrics.Dashboard(analytics.WithMemo(ctx), p)
	if err != nil {
		return err
	}
	return cli.WriteJSON(os.Stdout, dashboard)
}

type CustomersCmd struct {
	PeriodFlags
	Limit int `help:"Number of customers listed." default:"20"`
}

func (cmd *CustomersCmd) Run(g *Globals) error {
	p, err := cmd.period()
	if err != nil {
		return err
	}
	ctx, cancel := g.signalContext()
	defer cancel()
	s, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	limit := cmd.Limit
	if limit <= 0 {
		limit = cohort.DefaultLimit
	}
	prev := p.Previous()
	report := s.services.Cohorts.Customers(analytics.WithMemo(ctx), p, &prev, limit)
	if report.Error != "" {
		return errors.New(report.Error)
	}
	return cli.WriteJSON(os.Stdout, report)
}

type GrowthCmd struct {
	To     string `help:"Last day of the window (YYYY-MM-DD), today when empty."`
	Months int    `help:"Window length in months." default:"12"`
}

func (cmd *GrowthCmd) Run(g *Globals) error {
	end := ledger.Day(time.Now())
	if cmd.To != "" {
		t, err := time.Parse(ledger.DateLayout, cmd.To)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		end = t
	}
	ctx, cancel := g.signalContext()
	defer cancel()
	s, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	report := s.services.Growth.Indices(analytics.WithMemo(ctx), end, cmd.Months)
	if report.Error != "" {
		return errors.New(report.Error)
	}
	return cli.WriteJSON(os.Stdout, report)
}

type WarmupCmd struct {
	Year   int `help:"Year to warm, the current one when zero."`
	Months int `help:"Growth window in months." default:"12"`
}

func (cmd *WarmupCmd) Run(g *Globals) error {
	ctx, cancel := g.signalContext()
	defer cancel()
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	jobsCLI := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer jobsCLI.Close()
	info, err := jobsCLI.Trigger(ctx, "warmup", cmd.Year, cmd.Months)
	if err != nil {
		return err
	}
	fmt.Printf("enqueued %s as %s\n", info.Type, info.ID)
	return nil
}

type QueueCmd struct{}

func (cmd *QueueCmd) Run(g *Globals) error {
	ctx, cancel := g.signalContext()
	defer cancel()
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	jobsCLI := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer jobsCLI.Close()
	stats, err := jobsCLI.InspectQueue(ctx)
	if err != nil {
		return err
	}
	return cli.WriteJSON(os.Stdout, stats)
}

type HashTokenCmd struct {
	Token string `help:"Bearer token accepted by the import endpoint." arg:""`
	Cost  int    `help:"bcrypt cost." default:"12"`
}

func (cmd *HashTokenCmd) Run(g *Globals) error {
	hash, err := cli.HashToken(cmd.Token, cmd.Cost)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

var ledgerctl struct {
	Globals

	Version kong.VersionFlag `help:"Show version information."`

	Migrate   MigrateCmd   `cmd:"" help:"Apply the database schema."`
	Import    ImportCmd    `cmd:"" help:"Import a journal CSV export."`
	Dashboard DashboardCmd `cmd:"" help:"Print the dashboard metrics of a period."`
	Customers CustomersCmd `cmd:"" help:"Print the customer ranking of a period."`
	Growth    GrowthCmd    `cmd:"" help:"Print the growth indices of a window."`
	Warmup    WarmupCmd    `cmd:"" help:"Enqueue a report warm-up."`
	Queue     QueueCmd     `cmd:"" help:"Show the job queue state."`
	HashToken HashTokenCmd `cmd:"" name:"hash-token" help:"Hash an import token for IMPORT_TOKEN_HASH."`
}

func main() {
	ctx := kong.Parse(&ledgerctl,
		kong.Vars{"version": Version},
		kong.Name("ledgerctl"),
		kong.Description("Operational commands for the ledger analytics service."),
		kong.UsageOnError(),
		kong.Bind(&ledgerctl.Globals),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
