package main

import (
	"fmt"
	"net"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
)

// connectionLimiter caps concurrent SSH sessions per remote IP. The limit is
// read on every connection so config reloads apply immediately.
type connectionLimiter struct {
	limit func() int

	mu     sync.Mutex
	counts map[string]int
}

func newConnectionLimiter(limit func() int) *connectionLimiter {
	return &connectionLimiter{limit: limit, counts: make(map[string]int)}
}

func getIP(s ssh.Session) string {
	if addr, ok := s.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP.String()
	}
	return s.RemoteAddr().String()
}

// acquire reserves a slot for ip and reports the count it would reach.
func (l *connectionLimiter) acquire(ip string) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.counts[ip]
	if current >= l.limit() {
		return current + 1, false
	}
	l.counts[ip] = current + 1
	return current + 1, true
}

func (l *connectionLimiter) release(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counts[ip]--
	if l.counts[ip] <= 0 {
		delete(l.counts, ip)
		return 0
	}
	return l.counts[ip]
}

func (l *connectionLimiter) Middleware(next ssh.Handler) ssh.Handler {
	return func(s ssh.Session) {
		ip := getIP(s)

		count, ok := l.acquire(ip)
		if !ok {
			log.Warn("Connection denied: IP limit exceeded", "ip", ip, "attempted_count", count, "current_limit", l.limit())
			errorMessage := fmt.Sprintf("Too many active connections from your IP (%d/%d). Please try again later.\r\n", count, l.limit())
			s.Write([]byte(errorMessage))
			s.Close()
			return
		}

		log.Info("Connection accepted", "ip", ip, "current_count", count, "limit", l.limit())
		defer func() {
			log.Info("Connection closed and counter decremented", "ip", ip, "count_after", l.release(ip))
		}()
		next(s)
	}
}
