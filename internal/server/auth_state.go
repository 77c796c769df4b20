package server

import (
	"sync"
	"time"
)

// pendingLogin is an authorization request waiting for its callback.
type pendingLogin struct {
	Verifier string
	Return   string
	ExpireAt time.Time
}

// loginStates holds pending logins by OAuth state parameter. Expired
// entries are pruned whenever a new login starts.
type loginStates struct {
	ttl time.Duration
	now func() time.Time
	mu  sync.Mutex
	m   map[string]pendingLogin
}

func newLoginStates(ttl time.Duration) *loginStates {
	return &loginStates{ttl: ttl, now: time.Now, m: make(map[string]pendingLogin)}
}

func (l *loginStates) Start(state, verifier, ret string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, v := range l.m {
		if now.After(v.ExpireAt) {
			delete(l.m, k)
		}
	}
	l.m[state] = pendingLogin{Verifier: verifier, Return: ret, ExpireAt: now.Add(l.ttl)}
}

// Take returns and forgets the login for state. Each state is usable once.
func (l *loginStates) Take(state string) (pendingLogin, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.m[state]
	if !ok {
		return pendingLogin{}, false
	}
	delete(l.m, state)
	if l.now().After(v.ExpireAt) || v.Verifier == "" {
		return pendingLogin{}, false
	}
	return v, true
}
