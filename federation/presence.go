package federation

import "sync"

// presence is the ephemeral set of logged-in user ids. Nothing here is
// persisted; a restart starts everyone logged out.
type presence struct {
	mu     sync.Mutex
	online map[string]bool
}

func newPresence() *presence {
	return &presence{online: make(map[string]bool)}
}

// Login marks id online and reports whether the state changed.
func (p *presence) Login(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online[id] {
		return false
	}
	p.online[id] = true
	return true
}

// Logout marks id offline; false if the user was not online.
func (p *presence) Logout(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.online[id] {
		return false
	}
	delete(p.online, id)
	return true
}

func (p *presence) IsOnline(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[id]
}

func (p *presence) Online() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.online))
	for id := range p.online {
		out = append(out, id)
	}
	return out
}

func (p *presence) Forget(id string) {
	p.mu.Lock()
	delete(p.online, id)
	p.mu.Unlock()
}
