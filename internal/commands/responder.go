package commands

import (
	"context"

	"schedbot/internal/conversation"
	kit "schedbot/internal/transport"
	logx "schedbot/pkg/logx"
	"schedbot/pkg/tgui"
)

// callbackScope prefixes every conversation button.
const callbackScope = "conv"

// chatResponder renders conversation responses into one chat. The first
// Replace response edits the message that carried the pressed button.
type chatResponder struct {
	adapter kit.Adapter
	chat    kit.ChatTarget
	origin  *kit.MessageRef
	log     logx.Logger
}

func (r *chatResponder) Respond(ctx context.Context, resp conversation.Response) error {
	opt := &kit.SendOptions{DisablePreview: true}
	if rm := keyboard(resp.Keyboard, r.log).Markup(); rm != nil {
		opt.ReplyMarkupAdapter = rm
	}
	if resp.Replace && r.origin != nil {
		ref := *r.origin
		r.origin = nil
		err := r.adapter.EditText(ctx, ref, resp.Text, opt)
		if err == nil {
			return nil
		}
		r.log.Debug("edit failed, sending instead", logx.Err(err))
	}
	_, err := r.adapter.SendText(ctx, r.chat, resp.Text, opt)
	return err
}

func keyboard(rows [][]conversation.Button, log logx.Logger) *tgui.Inline {
	kb := tgui.NewInline()
	for _, row := range rows {
		btns := make([]tgui.Button, 0, len(row))
		for _, b := range row {
			data, err := tgui.Data(callbackScope, b.Action, b.Value)
			if err != nil {
				log.Warn("button skipped", logx.String("label", b.Label), logx.Err(err))
				continue
			}
			btns = append(btns, tgui.Btn(b.Label, data))
		}
		kb.Row(btns...)
	}
	return kb
}
