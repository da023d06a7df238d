package session

import (
	"strconv"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/elva/plugin/ai/approval"
	"github.com/hrygo/elva/plugin/ai/chat"
	"github.com/hrygo/elva/plugin/ai/link"
	"github.com/hrygo/elva/plugin/ai/transcript"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID returns a fresh session id: session_<unix-millis>_<9 random chars>.
func NewID() string {
	return "session_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + shortuuid.NewWithAlphabet(idAlphabet)[:9]
}

// State is the owned application state of one browser session.
// Controllers reach it only through their own reducers.
type State struct {
	Transcript *transcript.Store
	Link       *link.Controller
	Approval   *approval.Controller
	Chat       *chat.Pipeline

	mu       sync.RWMutex
	id       string
	lastSeen time.Time
	mounted  bool
}

func newState(id string, deps Deps) *State {
	s := &State{
		Transcript: transcript.NewStore(),
		id:         id,
		lastSeen:   time.Now(),
	}
	s.Link = link.NewController(link.Config{
		Gateway:   deps.Gateway,
		Store:     s.Transcript,
		SessionID: s.ID,
		Service:   deps.LinkService,
		Profiles:  deps.Profiles,
	})
	s.Approval = approval.NewController(approval.Config{
		Gateway:   deps.Gateway,
		Store:     s.Transcript,
		SessionID: s.ID,
	})
	cfg := chat.Config{
		Gateway:   deps.Gateway,
		Store:     s.Transcript,
		Approval:  s.Approval,
		Link:      s.Link,
		Keywords:  deps.Keywords,
		SessionID: s.ID,
		UserID:    deps.UserID,
	}
	if deps.Automations != nil {
		cfg.Automations = deps.Automations
	}
	s.Chat = chat.NewPipeline(cfg)
	return s
}

// ID returns the current session id.
func (s *State) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Touch records activity.
func (s *State) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// LastSeen returns the time of the last activity.
func (s *State) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

// BeginMount reports true exactly once per session id, for the caller that
// should run the mount sequence.
func (s *State) BeginMount() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mounted {
		return false
	}
	s.mounted = true
	return true
}

// reset starts a new conversation under newID. The link status belongs to
// the browser and is kept.
func (s *State) reset(newID string) {
	s.mu.Lock()
	s.id = newID
	s.lastSeen = time.Now()
	s.mounted = false
	s.mu.Unlock()

	s.Chat.Reset()
	s.Approval.Supersede()
	s.Transcript.Clear()
	s.Transcript.SeedWelcome(transcript.WelcomeMessage(s.Link.Linked()))
}
