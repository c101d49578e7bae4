package httpserver

import (
	"sync"
	"sync/atomic"
)

// limitReason describes why a live connection was rejected.
type limitReason string

const (
	limitReasonGlobal limitReason = "global_limit"
	limitReasonPerIP  limitReason = "per_ip_limit"
)

// connLimits caps concurrent live connections per instance and per client
// IP. A zero maximum disables that limit.
type connLimits struct {
	current   atomic.Int64
	maxGlobal int64

	mu     sync.Mutex
	perIP  map[string]int
	maxPer int
}

func newConnLimits(maxGlobal, maxPerIP int) *connLimits {
	return &connLimits{
		maxGlobal: int64(maxGlobal),
		perIP:     make(map[string]int),
		maxPer:    maxPerIP,
	}
}

// acquire takes a slot for ip or reports which limit is exhausted.
func (l *connLimits) acquire(ip string) (bool, limitReason) {
	if !l.acquireGlobal() {
		return false, limitReasonGlobal
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.maxPer > 0 && l.perIP[ip] >= l.maxPer {
		l.current.Add(-1)
		return false, limitReasonPerIP
	}
	l.perIP[ip]++
	return true, ""
}

func (l *connLimits) acquireGlobal() bool {
	for {
		current := l.current.Load()
		if l.maxGlobal > 0 && current >= l.maxGlobal {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *connLimits) release(ip string) {
	l.mu.Lock()
	if count := l.perIP[ip]; count > 1 {
		l.perIP[ip] = count - 1
	} else {
		delete(l.perIP, ip)
	}
	l.mu.Unlock()
	l.current.Add(-1)
}

func (l *connLimits) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}
