// Package presence tracks which connection currently speaks for which user.
package presence

import "sync"

// Registry is a bidirectional user <-> connection map.
// A user has at most one live connection: registering again replaces the old one,
// and the old connection going away later does not evict its successor.
type Registry struct {
	lock   sync.RWMutex
	byUser map[string]string // user id -> connection id
	byConn map[string]string // connection id -> user id
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// Register binds userID to connID. It returns the connection it replaced, if any.
func (r *Registry) Register(userID, connID string) (replaced string, ok bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if prev, found := r.byConn[connID]; found && prev != userID {
		// The connection changed identity; drop its old binding
		if r.byUser[prev] == connID {
			delete(r.byUser, prev)
		}
	}
	replaced, ok = r.byUser[userID]
	if ok && replaced != connID {
		delete(r.byConn, replaced)
	} else {
		ok = false
		replaced = ""
	}
	r.byUser[userID] = connID
	r.byConn[connID] = userID
	return replaced, ok
}

// Unregister removes connID. It reports the user the connection belonged to and
// whether that user is now offline (false if a newer connection took over).
func (r *Registry) Unregister(connID string) (userID string, offline bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	userID, found := r.byConn[connID]
	if !found {
		return "", false
	}
	delete(r.byConn, connID)
	if r.byUser[userID] == connID {
		delete(r.byUser, userID)
		return userID, true
	}
	return userID, false
}

func (r *Registry) Lookup(userID string) (string, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	conn, ok := r.byUser[userID]
	return conn, ok
}

func (r *Registry) UserOf(connID string) (string, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	user, ok := r.byConn[connID]
	return user, ok
}

func (r *Registry) Online() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	users := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		users = append(users, u)
	}
	return users
}

// Close forgets every binding.
func (r *Registry) Close() {
	r.lock.Lock()
	clear(r.byUser)
	clear(r.byConn)
	r.lock.Unlock()
}
