package preview

import (
	"context"

	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
)

// NextBatch splits off the events released in one tick: every leading
// non-message event plus the first message event. When no message follows,
// the trailing events go out in the same tick.
func NextBatch(queue []domain.Event) (batch, rest []domain.Event) {
	for i, ev := range queue {
		if !ev.Type.IsMessage() {
			continue
		}
		rest = queue[i+1:]
		if !containsMessage(rest) {
			return queue, nil
		}
		return queue[:i+1], rest
	}
	return queue, nil
}

func containsMessage(events []domain.Event) bool {
	for _, ev := range events {
		if ev.Type.IsMessage() {
			return true
		}
	}
	return false
}

// UpdateEvents releases queue into the timeline one batch per tick, waiting
// the engine's pace between batches, and calls done once the queue is empty.
// Message events are recorded in recent under the edge that produced them,
// and outbound messages carrying quick replies make those the active ones.
// An empty queue calls done without waiting. A cancelled ctx stops the drain
// without calling done.
func (e *Engine) UpdateEvents(ctx context.Context, queue []domain.Event, session *domain.Session, recent domain.RecentMessages, done func()) error {
	pending := append([]domain.Event(nil), queue...)

	for len(pending) > 0 {
		var batch []domain.Event
		batch, pending = NextBatch(pending)
		for _, ev := range batch {
			e.release(ev, session, recent)
		}
		if len(pending) == 0 {
			break
		}
		if err := e.wait(ctx, e.pace); err != nil {
			return err
		}
	}

	if done != nil {
		done()
	}
	return nil
}

func (e *Engine) release(ev domain.Event, session *domain.Session, recent domain.RecentMessages) {
	e.mu.Lock()
	e.state.Events = append(e.state.Events, ev)
	if ev.Type.IsMessage() && ev.Msg != nil {
		if key, ok := EdgeKey(session, ev.StepUUID); ok && recent != nil {
			recent[key] = append(recent[key], domain.RecentMessage{
				Text:      ev.Msg.Text,
				Sent:      ev.Type.IsMT(),
				CreatedOn: ev.CreatedOn,
			})
		}
		if ev.Type.IsMT() && len(ev.Msg.QuickReplies) > 0 {
			e.state.QuickReplies = append([]string{}, ev.Msg.QuickReplies...)
		}
	}
	e.mu.Unlock()

	e.emitEvent(ev)
}

// EdgeKey locates the path step stepUUID, searching runs and paths from the
// most recent, and returns "{exitUuid}:{nextNodeUuid}" for it, with "null"
// when the step is the last of its run.
func EdgeKey(session *domain.Session, stepUUID string) (string, bool) {
	if session == nil || stepUUID == "" {
		return "", false
	}
	for r := len(session.Runs) - 1; r >= 0; r-- {
		path := session.Runs[r].Path
		for i := len(path) - 1; i >= 0; i-- {
			if path[i].UUID != stepUUID {
				continue
			}
			return edgeKey(path, i), true
		}
	}
	return "", false
}

func edgeKey(path []domain.PathStep, i int) string {
	next := "null"
	if i+1 < len(path) && path[i+1].NodeUUID != "" {
		next = path[i+1].NodeUUID
	}
	return path[i].ExitUUID + ":" + next
}
