package guild

import "sync"

// Online counts the connected members of each guild on a game server. A
// guild is loaded while at least one member is online.
type Online struct {
	mu      sync.RWMutex
	members map[int]int
}

func NewOnline() *Online {
	return &Online{members: make(map[int]int)}
}

// Join records an online member. Zero means no guild and is ignored.
func (o *Online) Join(id int) {
	if id == 0 {
		return
	}
	o.mu.Lock()
	o.members[id]++
	o.mu.Unlock()
}

// Leave undoes one Join.
func (o *Online) Leave(id int) {
	if id == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if n := o.members[id]; n <= 1 {
		delete(o.members, id)
	} else {
		o.members[id] = n - 1
	}
}

// ContainsGuild reports whether any member of the guild is online.
func (o *Online) ContainsGuild(id int) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.members[id] > 0
}
