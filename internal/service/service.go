package service

import (
	"errors"
	"sync"

	"github.com/xiaot623/gogo/agentbuilder/internal/adapter/errortrack"
	"github.com/xiaot623/gogo/agentbuilder/internal/adapter/flows"
	"github.com/xiaot623/gogo/agentbuilder/internal/config"
	"github.com/xiaot623/gogo/agentbuilder/internal/preview"
	"github.com/xiaot623/gogo/agentbuilder/internal/repository"
	"github.com/xiaot623/gogo/agentbuilder/internal/supervisor"
	"github.com/xiaot623/gogo/agentbuilder/internal/trace"
)

var (
	// ErrPreviewNotFound is returned for an unknown preview id.
	ErrPreviewNotFound = errors.New("preview not found")
	// ErrUnknownProfile is returned for an unknown presentation profile.
	ErrUnknownProfile = errors.New("unknown trace profile")
	// ErrSupervisorDisabled is returned when no supervisor backend is configured.
	ErrSupervisorDisabled = errors.New("supervisor backend not configured")
)

// Publisher pushes typed messages to the subscribers of a preview.
type Publisher interface {
	Publish(previewID, msgType string, data interface{}) error
}

// session is the live part of a preview.
type session struct {
	engine *preview.Engine

	mu  sync.Mutex
	seq int
}

func (s *session) nextSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

type Service struct {
	store      store.Store
	simulator  flows.Simulator
	publisher  Publisher
	config     *config.Config
	profiles   trace.Profiles
	reporter   errortrack.Reporter
	supervisor *supervisor.Loader

	// engineOptions is applied to every new engine; tests override waits.
	engineOptions preview.Options

	mu       sync.Mutex
	sessions map[string]*session
	threads  map[string]*trace.Thread
}

func New(store store.Store, simulator flows.Simulator, publisher Publisher, cfg *config.Config, profiles trace.Profiles, reporter errortrack.Reporter, loader *supervisor.Loader) *Service {
	if profiles == nil {
		profiles = trace.DefaultProfiles()
	}
	if reporter == nil {
		reporter = errortrack.LogReporter{}
	}
	return &Service{
		store:      store,
		simulator:  simulator,
		publisher:  publisher,
		config:     cfg,
		profiles:   profiles,
		reporter:   reporter,
		supervisor: loader,
		engineOptions: preview.Options{
			Simulator: simulator,
			Environment: flows.Environment{
				DateFormat: cfg.PreviewDateFormat,
				TimeFormat: cfg.PreviewTimeFormat,
				Timezone:   cfg.PreviewTimezone,
			},
			Pace: cfg.PreviewPace,
		},
		sessions: make(map[string]*session),
		threads:  make(map[string]*trace.Thread),
	}
}

// WithWaiter replaces the pacing waiter of engines created afterwards.
func (s *Service) WithWaiter(w preview.Waiter) *Service {
	s.engineOptions.Wait = w
	return s
}

func (s *Service) session(previewID string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[previewID]
	return sess, ok
}

// thread returns the classification thread of a preview, creating it on
// first use.
func (s *Service) thread(previewID string) (*trace.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if th, ok := s.threads[previewID]; ok {
		return th, nil
	}
	profile, ok := s.profiles.Get(trace.ProfilePreview)
	if !ok {
		return nil, ErrUnknownProfile
	}
	th := trace.NewThread(trace.NewClassifier(profile, s.reporter))
	s.threads[previewID] = th
	return th, nil
}
