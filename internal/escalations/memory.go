package escalations

import (
	"sync"

	"github.com/yungbote/helpdesk-backend/internal/types"
)

// memoryBackend holds escalations in-process, keyed by escalation number.
// The mutex only guards map and slice integrity. Two concurrent updates to
// the same escalation still race at the read-modify-write level, same as the
// Redis backend; callers live with last-write-wins.
type memoryBackend struct {
	mu   sync.Mutex
	byNo map[string]*types.Escalation
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{byNo: make(map[string]*types.Escalation)}
}

func (m *memoryBackend) save(esc *types.Escalation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *esc
	m.byNo[esc.EscalationNumber] = &cp
}

// get resolves either an escalation ID or an escalation number.
func (m *memoryBackend) get(key string) (*types.Escalation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if esc, ok := m.byNo[key]; ok {
		cp := *esc
		return &cp, true
	}
	for _, esc := range m.byNo {
		if esc.ID == key {
			cp := *esc
			return &cp, true
		}
	}
	return nil, false
}

func (m *memoryBackend) all() []*types.Escalation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.Escalation, 0, len(m.byNo))
	for _, esc := range m.byNo {
		cp := *esc
		out = append(out, &cp)
	}
	return out
}

func (m *memoryBackend) delete(number string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byNo[number]; !ok {
		return false
	}
	delete(m.byNo, number)
	return true
}
