// Package command implements reversible ledger mutations and the bounded
// undo/redo history that executes them.
package command

import (
	"context"
	"fmt"

	"uangku/internal/core"
	"uangku/internal/repository"
)

// Command is a reversible mutation. Invert undoes a successful Apply.
type Command interface {
	Apply(ctx context.Context) error
	Invert(ctx context.Context) error
	Name() string
}

// Notifier receives snapshot changes after successful repository writes.
type Notifier interface {
	AddTransaction(tx core.Transaction)
	UpdateTransaction(tx core.Transaction)
	RemoveTransaction(id string)
}

type nopNotifier struct{}

func (nopNotifier) AddTransaction(core.Transaction)    {}
func (nopNotifier) UpdateTransaction(core.Transaction) {}
func (nopNotifier) RemoveTransaction(string)           {}

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

// Add saves a transaction; its inverse deletes it by id.
type Add struct {
	repo     repository.Store
	notifier Notifier
	tx       core.Transaction
}

func NewAdd(repo repository.Store, notifier Notifier, tx core.Transaction) *Add {
	return &Add{repo: repo, notifier: orNop(notifier), tx: tx}
}

func (c *Add) Apply(ctx context.Context) error {
	if err := c.repo.Save(ctx, c.tx); err != nil {
		return err
	}
	c.notifier.AddTransaction(c.tx)
	return nil
}

func (c *Add) Invert(ctx context.Context) error {
	if err := c.repo.Delete(ctx, c.tx.ID); err != nil {
		return err
	}
	c.notifier.RemoveTransaction(c.tx.ID)
	return nil
}

func (c *Add) Name() string { return fmt.Sprintf("add %s %s", c.tx.Kind, c.tx.ID) }

// Update replaces old with updated; its inverse writes old back. Both
// directions go through Repository.Update.
type Update struct {
	repo     repository.Store
	notifier Notifier
	old      core.Transaction
	updated  core.Transaction
}

func NewUpdate(repo repository.Store, notifier Notifier, old, updated core.Transaction) *Update {
	return &Update{repo: repo, notifier: orNop(notifier), old: old, updated: updated}
}

func (c *Update) Apply(ctx context.Context) error {
	return c.write(ctx, c.updated)
}

func (c *Update) Invert(ctx context.Context) error {
	return c.write(ctx, c.old)
}

func (c *Update) write(ctx context.Context, tx core.Transaction) error {
	if err := c.repo.Update(ctx, tx.ID, tx); err != nil {
		return err
	}
	c.notifier.UpdateTransaction(tx)
	return nil
}

func (c *Update) Name() string { return fmt.Sprintf("update %s", c.updated.ID) }

// Delete removes a transaction; its inverse saves the removed payload again.
type Delete struct {
	repo     repository.Store
	notifier Notifier
	tx       core.Transaction
}

func NewDelete(repo repository.Store, notifier Notifier, tx core.Transaction) *Delete {
	return &Delete{repo: repo, notifier: orNop(notifier), tx: tx}
}

func (c *Delete) Apply(ctx context.Context) error {
	if err := c.repo.Delete(ctx, c.tx.ID); err != nil {
		return err
	}
	c.notifier.RemoveTransaction(c.tx.ID)
	return nil
}

func (c *Delete) Invert(ctx context.Context) error {
	if err := c.repo.Save(ctx, c.tx); err != nil {
		return err
	}
	c.notifier.AddTransaction(c.tx)
	return nil
}

func (c *Delete) Name() string { return fmt.Sprintf("delete %s", c.tx.ID) }
