// Package runtime holds the in-memory state and the scheduling of the server.
// It orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"context"
	"courier/contract"
	"courier/domain/event"
	"courier/repositories"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const announceStripes = 64

var _ contract.IPresence = (*Presence)(nil)

type Set map[string]struct{}

// Presence is the registry of open connections. A user is online while at
// least one of their connections is registered, so several tabs or devices
// never make the user flap between online and offline.
type Presence struct {
	mu     sync.RWMutex
	log    *slog.Logger
	users  repositories.IUserRepository
	conns  map[string]contract.ConnectionSink // connection -> sink
	byUser map[string]Set                     // user -> connections
	rooms  map[string]Set                     // chat -> connections
	joined map[string]Set                     // connection -> chats
	now    func() time.Time

	// Online and offline transitions are numbered. Only a user's latest
	// transition is announced, one at a time per stripe.
	seq     uint64
	latest  map[string]uint64
	stripes [announceStripes]sync.Mutex
}

func NewPresence(log *slog.Logger, users repositories.IUserRepository) *Presence {
	return &Presence{
		log:    log,
		users:  users,
		conns:  make(map[string]contract.ConnectionSink),
		byUser: make(map[string]Set),
		rooms:  make(map[string]Set),
		joined: make(map[string]Set),
		latest: make(map[string]uint64),
		now:    time.Now,
	}
}

// Register adds a connection and reports whether it is the user's first.
// On the first connection the user is persisted online and every other
// online user receives user_online.
func (p *Presence) Register(ctx context.Context, sink contract.ConnectionSink) bool {
	p.mu.Lock()
	userID := sink.UserID()
	if _, ok := p.conns[sink.ID()]; ok {
		p.mu.Unlock()
		return false
	}
	p.conns[sink.ID()] = sink
	conns, ok := p.byUser[userID]
	if !ok {
		conns = make(Set)
		p.byUser[userID] = conns
	}
	conns[sink.ID()] = struct{}{}
	first := len(conns) == 1
	var others []contract.ConnectionSink
	var mark uint64
	if first {
		others = p.sinksExceptLocked(userID)
		mark = p.transitionLocked(userID)
	}
	p.mu.Unlock()

	p.log.Debug("Connection registered", "user_id", userID, "connection_id", sink.ID(), "first", first)
	if first {
		p.announce(userID, mark, true, others)
	}
	return first
}

// Unregister removes a connection and reports whether it was the user's
// last. The connection also leaves every room it joined.
func (p *Presence) Unregister(ctx context.Context, connectionID string) bool {
	p.mu.Lock()
	sink, ok := p.conns[connectionID]
	if !ok {
		p.mu.Unlock()
		return false
	}
	userID := sink.UserID()
	delete(p.conns, connectionID)
	for chatID := range p.joined[connectionID] {
		p.leaveLocked(connectionID, chatID)
	}
	delete(p.joined, connectionID)

	last := false
	if conns, ok := p.byUser[userID]; ok {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(p.byUser, userID)
			last = true
		}
	}
	var others []contract.ConnectionSink
	var mark uint64
	if last {
		others = p.sinksExceptLocked(userID)
		mark = p.transitionLocked(userID)
	}
	p.mu.Unlock()

	p.log.Debug("Connection unregistered", "user_id", userID, "connection_id", connectionID, "last", last)
	if last {
		p.announce(userID, mark, false, others)
	}
	return last
}

func (p *Presence) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser[userID]) > 0
}

// ListOnline is a sorted snapshot of online user IDs.
func (p *Presence) ListOnline() []string {
	p.mu.RLock()
	res := make([]string, 0, len(p.byUser))
	for userID := range p.byUser {
		res = append(res, userID)
	}
	p.mu.RUnlock()
	sort.Strings(res)
	return res
}

func (p *Presence) SinksForUser(userID string) []contract.ConnectionSink {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.resolveLocked(p.byUser[userID])
}

// JoinRoom attaches a connection to a chat room. Unknown connections are ignored.
func (p *Presence) JoinRoom(connectionID, chatID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.conns[connectionID]; !ok {
		return
	}
	if _, ok := p.rooms[chatID]; !ok {
		p.rooms[chatID] = make(Set)
	}
	p.rooms[chatID][connectionID] = struct{}{}
	if _, ok := p.joined[connectionID]; !ok {
		p.joined[connectionID] = make(Set)
	}
	p.joined[connectionID][chatID] = struct{}{}
}

func (p *Presence) LeaveRoom(connectionID, chatID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leaveLocked(connectionID, chatID)
	if chats, ok := p.joined[connectionID]; ok {
		delete(chats, chatID)
		if len(chats) == 0 {
			delete(p.joined, connectionID)
		}
	}
}

// SinksForRoom retrieves the connections that joined a chat room.
func (p *Presence) SinksForRoom(chatID string) []contract.ConnectionSink {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.resolveLocked(p.rooms[chatID])
}

// leaveLocked never leaves empty sets behind in the room map.
func (p *Presence) leaveLocked(connectionID, chatID string) {
	if members, ok := p.rooms[chatID]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(p.rooms, chatID)
		}
	}
}

func (p *Presence) resolveLocked(ids Set) []contract.ConnectionSink {
	var sinks []contract.ConnectionSink
	for id := range ids {
		if sink, ok := p.conns[id]; ok {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

func (p *Presence) sinksExceptLocked(userID string) []contract.ConnectionSink {
	var sinks []contract.ConnectionSink
	for _, sink := range p.conns {
		if sink.UserID() != userID {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

func (p *Presence) transitionLocked(userID string) uint64 {
	p.seq++
	p.latest[userID] = p.seq
	return p.seq
}

// announce persists and broadcasts one transition of userID. A transition
// superseded by a newer one of the same user is dropped, so the store and
// the other users never end on a stale state.
func (p *Presence) announce(userID string, mark uint64, online bool, sinks []contract.ConnectionSink) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	stripe := &p.stripes[h.Sum32()%announceStripes]
	stripe.Lock()
	defer stripe.Unlock()

	p.mu.Lock()
	current := p.latest[userID] == mark
	if current && !online {
		delete(p.latest, userID)
	}
	p.mu.Unlock()
	if !current {
		p.log.Debug("Superseded presence transition dropped", "user_id", userID, "online", online)
		return
	}

	p.persist(userID, online)
	if online {
		p.broadcast(sinks, event.UserOnlineEvent(userID))
	} else {
		p.broadcast(sinks, event.UserOfflineEvent(userID))
	}
}

func (p *Presence) broadcast(sinks []contract.ConnectionSink, evt event.Outbound) {
	for _, sink := range sinks {
		if err := sink.Send(evt); err != nil {
			p.log.Debug("Presence broadcast skipped", "connection_id", sink.ID(), "error", err)
		}
	}
}

// persist mirrors presence to the durable user record. Failures are logged
// and never block the connection.
func (p *Presence) persist(userID string, online bool) {
	if p.users == nil {
		return
	}
	if err := p.users.SetPresence(userID, online, p.now()); err != nil {
		p.log.Warn("Unable to persist presence", "user_id", userID, "online", online, "error", err)
	}
}
