package sync

// UnreadPolicy reconciles the locally counted unread notifications with
// the last count reported by the server. The published value never drops
// below either while the server count is known; any local mutation makes
// the server count stale and it is forgotten until the next refresh.
type UnreadPolicy struct {
	server *int
}

// Observe records a fresh server count.
func (p *UnreadPolicy) Observe(n int) {
	p.server = &n
}

// Invalidate forgets the server count.
func (p *UnreadPolicy) Invalidate() {
	p.server = nil
}

// Server returns the last known server count and whether it is known.
func (p UnreadPolicy) Server() (int, bool) {
	if p.server == nil {
		return 0, false
	}
	return *p.server, true
}

// Published returns the count shown to users given the local count.
func (p UnreadPolicy) Published(local int) int {
	if p.server == nil {
		return local
	}
	return max(local, *p.server)
}
