package chat

import "sync"

// ticket orders one send within an epoch.
type ticket struct {
	n     uint64
	epoch uint64
}

// sequencer commits responses in the order their requests were issued,
// whatever order the backend answers in. Reset starts a new epoch and
// abandons every outstanding ticket.
type sequencer struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint64
	serving uint64
	epoch   uint64
}

func newSequencer() *sequencer {
	s := &sequencer{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// issue hands out the next ticket. onIssue runs under the sequencer lock so
// whatever it appends is ordered like the tickets.
func (s *sequencer) issue(onIssue func()) ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := ticket{n: s.next, epoch: s.epoch}
	s.next++
	if onIssue != nil {
		onIssue()
	}
	return t
}

// commit waits for every earlier ticket, then runs fn. Tickets from an
// abandoned epoch return without running fn. fn runs under the sequencer
// lock, so a reset waits for it and never interleaves. fn must not call
// back into the sequencer. Every issued ticket must be committed exactly
// once.
func (s *sequencer) commit(t ticket, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.epoch == t.epoch && s.serving != t.n {
		s.cond.Wait()
	}
	if s.epoch != t.epoch {
		return false
	}
	fn()
	s.serving++
	s.cond.Broadcast()
	return true
}

// pending reports how many issued tickets have not committed.
func (s *sequencer) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.next - s.serving)
}

func (s *sequencer) reset() {
	s.mu.Lock()
	s.epoch++
	s.next = 0
	s.serving = 0
	s.cond.Broadcast()
	s.mu.Unlock()
}
