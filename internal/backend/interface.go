package backend

import (
	"context"
	"errors"

	"uangku/internal/amqp"
	"uangku/internal/config"
	"uangku/internal/repository"
	gsheet "uangku/internal/sheets/google"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the assembled repository and the cleanup for everything
// opened while building it.
type Result struct {
	Repository *repository.Layered
	Local      repository.Store
	// Remote is nil when no mirror is configured.
	Remote  repository.Store
	Cleanup CleanupFunc
}

// Factory builds stores and remote clients from configuration
type Factory interface {
	// CreateRepository builds the layered repository used by the ledger.
	CreateRepository(ctx context.Context, cfg *config.Config) (*Result, error)
	// CreateSheets builds the Sheets client the mirror worker writes to.
	CreateSheets(ctx context.Context, cfg *config.Config) (*gsheet.Client, error)
	// CreateAMQP connects to the broker carrying mirror messages.
	CreateAMQP(cfg *config.Config) (*amqp.Client, error)
}

type cleanups []CleanupFunc

func (c *cleanups) add(fn CleanupFunc) {
	if fn != nil {
		*c = append(*c, fn)
	}
}

// run closes resources in reverse order of creation.
func (c cleanups) run() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
