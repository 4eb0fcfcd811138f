package conversation

import (
	"strconv"
	"strings"

	"schedbot/internal/schedule"
)

// TargetKind tags how a destination was recognized.
type TargetKind int

const (
	TargetUnrecognized TargetKind = iota
	TargetSelf
	TargetForwarded
	TargetLiteral
	TargetConfirm
)

// Target is the outcome of one AwaitingTarget turn.
type Target struct {
	Kind  TargetKind
	ID    string
	Label string
}

const confirmToken = "yes"

// ResolveTarget classifies a message in AwaitingTarget. A typed "yes" with a
// pending definition confirms it. Otherwise the precedence is self flag,
// forwarded origin, signed integer literal.
func ResolveTarget(sess Session, ownerID int64, in Input) Target {
	text := strings.TrimSpace(in.Text)
	if sess.PendingID != 0 && strings.TrimSpace(in.ForwardedFrom) == "" && strings.EqualFold(text, confirmToken) {
		return Target{Kind: TargetConfirm}
	}
	if sess.SelfTarget {
		return Target{Kind: TargetSelf, ID: strconv.FormatInt(ownerID, 10), Label: schedule.LabelSelf}
	}
	if origin := strings.TrimSpace(in.ForwardedFrom); origin != "" {
		return Target{Kind: TargetForwarded, ID: origin, Label: origin}
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return Target{Kind: TargetLiteral, ID: strconv.FormatInt(n, 10), Label: schedule.LabelCustom}
	}
	return Target{Kind: TargetUnrecognized}
}
