package events

import (
	"fmt"

	"github.com/mezonai/starnotary/exception"
	"github.com/mezonai/starnotary/logx"
)

// Describe renders an event as a single audit line.
func Describe(e NotaryEvent) string {
	line := fmt.Sprintf("%s address=%s at=%d", e.Type(), e.Address(), e.Timestamp().Unix())
	switch ev := e.(type) {
	case *ChallengeIssued:
		line += fmt.Sprintf(" message=%q", ev.Message())
	case *RequestExpired:
		line += fmt.Sprintf(" verified=%t", ev.Verified())
	case *BlockAppended:
		line += fmt.Sprintf(" height=%d hash=%s", ev.Height(), ev.BlockHash())
	}
	return line
}

// StartAuditLog writes every event published on bus to the log under the
// AUDIT category until the bus is closed or the subscription is dropped.
func StartAuditLog(bus *EventBus) SubscriberID {
	id, ch := bus.Subscribe()
	exception.SafeGo("event audit log", func() {
		for e := range ch {
			logx.Info("AUDIT", Describe(e))
		}
	})
	return id
}
