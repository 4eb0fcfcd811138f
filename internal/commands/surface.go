// Package commands wires the bot's slash commands, inline buttons and free
// text to the conversation flow and the definition store.
package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"schedbot/internal/schedule"
	"schedbot/internal/storage"
	logx "schedbot/pkg/logx"
)

const textDeleteUsage = "Please provide a valid message ID to delete. Example: /delete 1"

// Unregisterer stops the trigger of a deleted definition.
type Unregisterer interface {
	Unregister(id int64)
}

// Surface implements the owner-facing list and delete operations.
type Surface struct {
	store storage.Store
	timer Unregisterer
	log   logx.Logger
}

func NewSurface(store storage.Store, timer Unregisterer, log logx.Logger) *Surface {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Surface{store: store, timer: timer, log: log}
}

// List renders the caller's definitions.
func (s *Surface) List(ctx context.Context, ownerID int64) (string, error) {
	defs, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("list definitions: %w", err)
	}
	return schedule.FormatList(defs), nil
}

// Delete removes definition arg when ownerID owns it and stops its trigger
// before replying. Foreign and missing ids get the same answer.
func (s *Surface) Delete(ctx context.Context, ownerID int64, arg string) (string, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return textDeleteUsage, nil
	}
	ok, err := s.store.DeleteIfOwned(ctx, id, ownerID)
	if err != nil {
		return "", fmt.Errorf("delete definition %d: %w", id, err)
	}
	if !ok {
		return fmt.Sprintf("No message found with ID %d or you don't have permission to delete it.", id), nil
	}
	s.timer.Unregister(id)
	s.log.Info("message deleted", logx.Int64("id", id), logx.Int64("owner", ownerID))
	return fmt.Sprintf("Message with ID %d has been deleted.", id), nil
}
