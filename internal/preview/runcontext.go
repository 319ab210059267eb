package preview

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/xiaot623/gogo/agentbuilder/internal/adapter/flows"
	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
)

// UpdateRunContext reconciles a simulator response into the preview state.
// msg is the user's message on the resume path; when the simulator echoes no
// events, a message event is synthesized for it so the timeline shows what the
// user said.
func (e *Engine) UpdateRunContext(ctx context.Context, rc *flows.RunContext, msg *domain.Msg) error {
	if rc == nil {
		rc = &flows.RunContext{}
	}

	e.mu.Lock()
	wasJustActive := e.state.Active || len(rc.Events) > 0
	e.state.QuickReplies = []string{}
	recent := e.recent
	e.mu.Unlock()

	events := rc.Events
	if len(events) == 0 && msg != nil {
		synthetic := domain.Event{
			Type:      domain.EventTypeMsgCreated,
			CreatedOn: e.timestamp(),
			Msg: &domain.Msg{
				UUID: uuid.New().String(),
				Text: msg.Text,
				URN:  msg.URN,
			},
		}
		if step, ok := rc.Session.LastStep(); ok {
			synthetic.StepUUID = step.UUID
		}
		events = []domain.Event{synthetic}
	}

	err := e.UpdateEvents(ctx, events, rc.Session, recent, func() {
		e.settle(rc, recent, wasJustActive)
	})
	if err != nil {
		e.mu.Lock()
		e.state.Sprinting = false
		e.state.Phase = domain.PreviewPhaseSettled
		e.mu.Unlock()
		return err
	}
	return nil
}

func (e *Engine) settle(rc *flows.RunContext, recent domain.RecentMessages, wasJustActive bool) {
	active := rc.Session.HasWaitingRun()

	var released []domain.Event

	e.mu.Lock()
	if wasJustActive && !active {
		info := domain.Event{Type: domain.EventTypeInfo, Text: ExitedFlowText, CreatedOn: e.timestamp()}
		e.state.Events = append(e.state.Events, info)
		released = append(released, info)
	}

	var hint *domain.Hint
	if rc.Session != nil && rc.Session.Wait != nil {
		hint = rc.Session.Wait.Hint
	}
	waitingForHint := hint != nil

	drawer := domain.DrawerTypeNone
	if waitingForHint {
		drawer = drawerForHint(*hint)
	}
	if drawer == domain.DrawerTypeNone && len(e.state.QuickReplies) > 0 {
		drawer = domain.DrawerTypeQuickReplies
	}

	e.state.Active = active
	e.state.Context = rc.Context
	e.state.Sprinting = false
	e.state.Session = rc.Session
	e.state.DrawerOpen = drawer != domain.DrawerTypeNone
	e.state.DrawerType = drawer
	e.state.WaitingForHint = waitingForHint
	e.state.Phase = domain.PreviewPhaseSettled
	activity := buildActivity(rc.Session, recent)
	e.state.Activity = &activity
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	for _, ev := range released {
		e.emitEvent(ev)
	}
	e.emitSettle(snapshot)
}

func drawerForHint(hint domain.Hint) domain.DrawerType {
	switch hint.Type {
	case domain.HintTypeAudio:
		return domain.DrawerTypeAudio
	case domain.HintTypeVideo:
		return domain.DrawerTypeVideos
	case domain.HintTypeImage:
		return domain.DrawerTypeImages
	case domain.HintTypeLocation:
		return domain.DrawerTypeLocation
	case domain.HintTypeDigits:
		if hint.Count == 1 {
			return domain.DrawerTypeDigit
		}
		return domain.DrawerTypeDigits
	default:
		log.Printf("WARN: unknown wait hint type %q", hint.Type)
		return domain.DrawerTypeNone
	}
}
