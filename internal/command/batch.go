package command

import (
	"context"
	"fmt"

	"uangku/internal/core"
	"uangku/internal/log"
)

// Batch groups sub-commands into one all-or-nothing history entry.
type Batch struct {
	cmds   []Command
	logger *log.Logger
}

func NewBatch(logger *log.Logger, cmds ...Command) *Batch {
	if logger == nil {
		logger = log.Discard()
	}
	return &Batch{cmds: cmds, logger: logger.WithComponent(log.ComponentHistory)}
}

// Apply runs sub-commands in order. On the first failure the applied ones
// are inverted in reverse order and the triggering error is returned.
// Rollback failures are logged only.
func (b *Batch) Apply(ctx context.Context) error {
	for i, cmd := range b.cmds {
		if err := core.Guard(cmd.Name(), func() error { return cmd.Apply(ctx) }); err != nil {
			for j := i - 1; j >= 0; j-- {
				prev := b.cmds[j]
				b.compensate(ctx, "rollback", prev, core.Guard(prev.Name(), func() error { return prev.Invert(ctx) }))
			}
			return err
		}
	}
	return nil
}

// Invert undoes every sub-command in reverse order. If one inverse fails,
// the already-inverted ones are re-applied so the batch stays applied.
func (b *Batch) Invert(ctx context.Context) error {
	for i := len(b.cmds) - 1; i >= 0; i-- {
		cmd := b.cmds[i]
		if err := core.Guard(cmd.Name(), func() error { return cmd.Invert(ctx) }); err != nil {
			for j := i + 1; j < len(b.cmds); j++ {
				next := b.cmds[j]
				b.compensate(ctx, "reapply", next, core.Guard(next.Name(), func() error { return next.Apply(ctx) }))
			}
			return err
		}
	}
	return nil
}

func (b *Batch) compensate(ctx context.Context, what string, cmd Command, err error) {
	if err == nil {
		return
	}
	b.logger.ErrorContext(ctx, "Batch compensation failed",
		log.FieldOperation, what,
		log.FieldCommand, cmd.Name(),
		log.FieldError, err.Error())
}

func (b *Batch) Name() string { return fmt.Sprintf("batch of %d", len(b.cmds)) }

// Len returns the number of sub-commands.
func (b *Batch) Len() int { return len(b.cmds) }
