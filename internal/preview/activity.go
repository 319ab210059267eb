package preview

import "github.com/xiaot623/gogo/agentbuilder/internal/domain"

// UpdateActivity rebuilds the flow-graph annotation from the current session
// and recent, stores it in the state and returns it.
func (e *Engine) UpdateActivity(recent domain.RecentMessages) domain.Activity {
	e.mu.Lock()
	defer e.mu.Unlock()

	activity := buildActivity(e.state.Session, recent)
	e.state.Activity = &activity
	return activity
}

// RecentMessages returns a copy of the messages recorded per edge.
func (e *Engine) RecentMessages() domain.RecentMessages {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyRecent(e.recent)
}

func buildActivity(session *domain.Session, recent domain.RecentMessages) domain.Activity {
	activity := domain.Activity{
		Segments:       map[string]int{},
		Nodes:          map[string]int{},
		RecentMessages: domain.RecentMessages{},
	}
	if session == nil {
		return activity
	}

	for _, run := range session.Runs {
		for i, step := range run.Path {
			if step.ExitUUID == "" {
				continue
			}
			key := edgeKey(run.Path, i)
			activity.Segments[key]++
			if msgs, ok := recent[key]; ok {
				if _, seen := activity.RecentMessages[key]; !seen {
					activity.RecentMessages[key] = append([]domain.RecentMessage{}, msgs...)
				}
			}
		}
		if run.Status == domain.RunStatusWaiting && len(run.Path) > 0 {
			activity.Nodes[run.Path[len(run.Path)-1].NodeUUID]++
		}
	}
	return activity
}

func copyRecent(recent domain.RecentMessages) domain.RecentMessages {
	out := make(domain.RecentMessages, len(recent))
	for key, msgs := range recent {
		out[key] = append([]domain.RecentMessage{}, msgs...)
	}
	return out
}
