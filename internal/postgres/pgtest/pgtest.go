// Package pgtest starts a migrated PostgreSQL container for integration suites.
package pgtest

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ariefcatur/go-eshop-orders/internal/postgres"
)

const image = "postgres:16"

type Instance struct {
	Container *tcpostgres.PostgresContainer
	DSN       string
	Pool      *pgxpool.Pool
}

func Start(ctx context.Context) (*Instance, error) {
	ctr, err := tcpostgres.Run(ctx, image,
		tcpostgres.WithDatabase("eshop"),
		tcpostgres.WithUsername("app"),
		tcpostgres.WithPassword("secret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tcpostgres.Run: %w", err)
	}

	inst := &Instance{Container: ctr}
	inst.DSN, err = ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		inst.Terminate(ctx)
		return nil, fmt.Errorf("ctr.ConnectionString: %w", err)
	}

	if err := postgres.Migrate(inst.DSN); err != nil {
		inst.Terminate(ctx)
		return nil, fmt.Errorf("postgres.Migrate: %w", err)
	}

	inst.Pool, err = postgres.Connect(ctx, inst.DSN, 16)
	if err != nil {
		inst.Terminate(ctx)
		return nil, fmt.Errorf("postgres.Connect: %w", err)
	}

	return inst, nil
}

// Reset empties every table between tests.
func (i *Instance) Reset(ctx context.Context) error {
	_, err := i.Pool.Exec(ctx, `TRUNCATE orders, products`)
	return err
}

func (i *Instance) Terminate(ctx context.Context) {
	if i.Pool != nil {
		i.Pool.Close()
	}
	if i.Container != nil {
		_ = i.Container.Terminate(ctx)
	}
}
