// cmd/tools/workout-loader/commands.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"workout-insights/internal/common/config"
	"workout-insights/internal/common/database"
	"workout-insights/internal/common/llm"
	"workout-insights/internal/common/logger"
	"workout-insights/internal/ingest"
)

// env is what every database-facing command needs.
type env struct {
	cfg *config.Config
	log logger.Logger
	ctx context.Context
}

func setup() (*env, context.CancelFunc, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.Config != "" {
		cfg, err = config.LoadFromFile(opts.Config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return &env{
		cfg: cfg,
		log: logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format),
		ctx: ctx,
	}, cancel, nil
}

func (e *env) postgres() (*database.PostgresClient, error) {
	pg, err := database.NewPostgres(e.cfg.Database.Postgres)
	if err != nil {
		return nil, err
	}
	if err := pg.Ping(e.ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}
	return pg, nil
}

func (e *env) elasticsearch() (*database.ElasticsearchClient, error) {
	es, err := database.NewElasticsearch(e.cfg.Database.Elasticsearch)
	if err != nil {
		return nil, err
	}
	if err := es.Ping(e.ctx); err != nil {
		return nil, fmt.Errorf("elasticsearch unreachable: %w", err)
	}
	return es, nil
}

func (e *env) usePGVector() bool {
	return e.cfg.Search.Backend == "pgvector"
}

func report(stats ingest.Stats) {
	fmt.Printf("succeeded: %d, failed: %d, skipped: %d\n", stats.Succeeded, stats.Failed, stats.Skipped)
}

type ConvertCmd struct {
	Input  string `short:"i" long:"input" required:"true" description:"CSV export path"`
	Output string `short:"o" long:"output" description:"JSON lines path (stdout when empty)"`
}

func (c *ConvertCmd) Execute(_ []string) error {
	in, err := os.Open(c.Input)
	if err != nil {
		return err
	}
	defer in.Close()

	var out io.Writer = os.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	n, err := ingest.ConvertCSV(in, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "converted %d records\n", n)
	return nil
}

type LoadCmd struct {
	Input string `short:"i" long:"input" required:"true" description:"JSON lines path"`
}

func (c *LoadCmd) Execute(_ []string) error {
	e, cancel, err := setup()
	if err != nil {
		return err
	}
	defer cancel()

	in, err := os.Open(c.Input)
	if err != nil {
		return err
	}
	defer in.Close()

	pg, err := e.postgres()
	if err != nil {
		return err
	}
	defer pg.Close()

	loader := ingest.NewLoader(pg.GetDB(), e.cfg.Workouts.Table, e.log)
	if err := loader.EnsureTable(e.ctx); err != nil {
		return err
	}
	stats, err := loader.Load(e.ctx, in)
	report(stats)
	return err
}

type CreateCmd struct{}

func (c *CreateCmd) Execute(_ []string) error {
	e, cancel, err := setup()
	if err != nil {
		return err
	}
	defer cancel()

	if e.usePGVector() {
		pg, err := e.postgres()
		if err != nil {
			return err
		}
		defer pg.Close()
		return ingest.NewPGVectorSink(pg.GetDB(), e.cfg.Search.Index, e.cfg.Search.Dimensions).EnsureTable(e.ctx)
	}

	es, err := e.elasticsearch()
	if err != nil {
		return err
	}
	manager := ingest.NewIndexManager(es.Client, e.cfg.Search.Index, e.cfg.Search.VectorField, e.cfg.Search.Dimensions, e.log)
	_, err = manager.Create(e.ctx)
	return err
}

type PopulateCmd struct {
	Input string `short:"i" long:"input" required:"true" description:"JSON lines path"`
}

func (c *PopulateCmd) Execute(_ []string) error {
	e, cancel, err := setup()
	if err != nil {
		return err
	}
	defer cancel()

	in, err := os.Open(c.Input)
	if err != nil {
		return err
	}
	defer in.Close()

	provider, err := llm.New(e.ctx, e.cfg.LLM, nil)
	if err != nil {
		return err
	}

	var sink ingest.Sink
	var refresh func(context.Context) error
	if e.usePGVector() {
		pg, err := e.postgres()
		if err != nil {
			return err
		}
		defer pg.Close()
		pgSink := ingest.NewPGVectorSink(pg.GetDB(), e.cfg.Search.Index, e.cfg.Search.Dimensions)
		if err := pgSink.EnsureTable(e.ctx); err != nil {
			return err
		}
		sink = pgSink
	} else {
		es, err := e.elasticsearch()
		if err != nil {
			return err
		}
		esSink := ingest.NewElasticsearchSink(es.Client, e.cfg.Search.Index, e.cfg.Search.VectorField, e.log)
		sink, refresh = esSink, esSink.Refresh
	}

	stats, err := ingest.NewPopulator(provider, sink, e.cfg.Search.BatchSize, e.log).Populate(e.ctx, in)
	report(stats)
	if err != nil {
		return err
	}
	if refresh != nil {
		return refresh(e.ctx)
	}
	return nil
}

type DeleteCmd struct{}

func (c *DeleteCmd) Execute(_ []string) error {
	e, cancel, err := setup()
	if err != nil {
		return err
	}
	defer cancel()

	if e.usePGVector() {
		pg, err := e.postgres()
		if err != nil {
			return err
		}
		defer pg.Close()
		return ingest.NewPGVectorSink(pg.GetDB(), e.cfg.Search.Index, e.cfg.Search.Dimensions).Drop(e.ctx)
	}

	es, err := e.elasticsearch()
	if err != nil {
		return err
	}
	manager := ingest.NewIndexManager(es.Client, e.cfg.Search.Index, e.cfg.Search.VectorField, e.cfg.Search.Dimensions, e.log)
	_, err = manager.Delete(e.ctx)
	return err
}
