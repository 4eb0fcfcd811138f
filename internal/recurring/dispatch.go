package recurring

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"schedbot/internal/eventbus"
	"schedbot/internal/schedule"
	"schedbot/internal/storage"
	"schedbot/internal/task/engine"
	logx "schedbot/pkg/logx"
)

// Dispatch delivers definition id. A deleted definition makes the firing a
// no-op. Delivery failures are reported to the owner and returned wrapped
// with engine.NoRetry; the trigger stays registered either way.
func (s *Service) Dispatch(ctx context.Context, id int64) error {
	def, err := s.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.Debug("dispatch skipped: definition gone", logx.Int64("id", id))
		return nil
	}
	if err != nil {
		return err
	}

	log := s.log.With(logx.Int64("id", id), logx.String("target", def.TargetID))
	sendErr := s.gateway.Send(ctx, def.TargetID, def.Body)

	ev := DispatchEvent{ID: id, TargetID: def.TargetID, OK: sendErr == nil}
	var notice string
	if sendErr != nil {
		ev.Error = schedule.ErrorDetail(sendErr)
		notice = fmt.Sprintf("❌ Failed to send your scheduled message (ID: %d): %s", id, ev.Error)
		log.Warn("scheduled message failed", logx.Err(sendErr))
	} else {
		notice = fmt.Sprintf("✅ Your scheduled message (ID: %d) has been sent to %s.", id, def.TargetLabel)
		log.Info("scheduled message sent")
	}
	if s.bus != nil {
		typ := "dispatch.sent"
		if !ev.OK {
			typ = "dispatch.failed"
		}
		s.bus.Publish(eventbus.Event{Type: typ, Data: ev})
	}

	if def.OriginChatID != 0 {
		if err := s.gateway.Send(ctx, strconv.FormatInt(def.OriginChatID, 10), notice); err != nil {
			log.Warn("owner notification failed", logx.Err(err))
		}
	}
	return engine.NoRetry(sendErr)
}
