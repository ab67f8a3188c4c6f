package command

import (
	"context"
	"sync"

	"uangku/internal/core"
	"uangku/internal/log"
)

// DefaultLimit is the number of entries kept before the oldest is evicted.
const DefaultLimit = 50

// History is a bounded undo/redo stack. position indexes the last applied
// entry; -1 means nothing to undo.
type History struct {
	mu       sync.Mutex
	entries  []Command
	position int
	limit    int
	logger   *log.Logger
}

func NewHistory(limit int, logger *log.Logger) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &History{
		position: -1,
		limit:    limit,
		logger:   logger.WithComponent(log.ComponentHistory),
	}
}

// Execute applies cmd and records it. Redo entries past the current
// position are discarded. A failed apply leaves the history untouched and
// returns the command's error.
func (h *History) Execute(ctx context.Context, cmd Command) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := core.Guard(cmd.Name(), func() error { return cmd.Apply(ctx) }); err != nil {
		return err
	}

	h.entries = append(h.entries[:h.position+1], cmd)
	h.position++
	if len(h.entries) > h.limit {
		h.entries[0] = nil
		h.entries = h.entries[1:]
		h.position--
	}

	h.logger.DebugContext(ctx, "Command executed",
		log.FieldCommand, cmd.Name(),
		log.FieldPosition, h.position,
		log.FieldHistorySize, len(h.entries))
	return nil
}

func (h *History) Undo(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.position < 0 {
		return core.ErrNoHistory
	}
	cmd := h.entries[h.position]
	if err := core.Guard(cmd.Name(), func() error { return cmd.Invert(ctx) }); err != nil {
		h.logger.WarnContext(ctx, "Undo failed", log.FieldCommand, cmd.Name(), log.FieldError, err.Error())
		return err
	}
	h.position--
	return nil
}

func (h *History) Redo(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.position == len(h.entries)-1 {
		return core.ErrNoHistory
	}
	h.position++
	cmd := h.entries[h.position]
	if err := core.Guard(cmd.Name(), func() error { return cmd.Apply(ctx) }); err != nil {
		h.position--
		h.logger.WarnContext(ctx, "Redo failed", log.FieldCommand, cmd.Name(), log.FieldError, err.Error())
		return err
	}
	return nil
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position >= 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position < len(h.entries)-1
}

func (h *History) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *History) Position() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

// Entries returns the command names, oldest first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, len(h.entries))
	for i, cmd := range h.entries {
		names[i] = cmd.Name()
	}
	return names
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.position = -1
}
