package stream

import (
	"encoding/json"
	"hash/fnv"
	"log"
	"sync"

	"github.com/thisyearnofear/IMONMYWAY-sub003/internal/session"
	"github.com/thisyearnofear/IMONMYWAY-sub003/internal/shared/geo"
)

const sessionLockCount = 64

// Broadcaster terminates the location-sharing protocol: it maps each
// connection to at most one owned session, turns inbound messages into
// store operations, derives the ETA, and pushes the resulting record to
// the session's room.
//
// All mutate-then-push work for one session id runs under a keyed lock,
// so every subscriber observes records in a single per-session order.
type Broadcaster struct {
	store      *session.Store
	hub        *Hub
	sendBuffer int

	locks [sessionLockCount]sync.Mutex

	mu    sync.Mutex
	owned map[*Client]string
}

func NewBroadcaster(store *session.Store, hub *Hub, sendBuffer int) *Broadcaster {
	return &Broadcaster{
		store:      store,
		hub:        hub,
		sendBuffer: sendBuffer,
		owned:      map[*Client]string{},
	}
}

func (b *Broadcaster) sessionLock(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &b.locks[h.Sum32()%sessionLockCount]
}

// Connect registers a new connection with the hub.
func (b *Broadcaster) Connect() *Client {
	return b.hub.Register(b.sendBuffer)
}

// Disconnect tears a connection down: its owned session, if any, is
// deactivated and the deactivation pushed to remaining subscribers. Safe
// to call for connections that never owned or joined anything, and safe
// to call twice.
func (b *Broadcaster) Disconnect(client *Client) {
	b.mu.Lock()
	ownedID := b.owned[client]
	delete(b.owned, client)
	b.mu.Unlock()

	// Leave every room first so the closing connection does not receive
	// its own teardown push.
	b.hub.Unregister(client)

	if ownedID != "" {
		b.deactivateAndNotify(ownedID)
	}
}

// HandleMessage dispatches one inbound frame. Malformed frames and
// unknown types are dropped.
func (b *Broadcaster) HandleMessage(client *Client, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	switch msg.Type {
	case TypeStartSession:
		pace := 0.0
		if msg.Pace != nil {
			pace = *msg.Pace
		}
		b.reply(client, b.StartSession(client, pace))
	case TypeUpdateLocation:
		b.UpdateLocation(msg)
	case TypeSetDestination:
		b.SetDestination(msg)
	case TypeJoin:
		b.Join(client, msg.SharingID)
	}
}

// StartSession creates a fresh session owned by the connection. A
// previously owned session is deactivated, and its subscribers notified,
// before the new one exists.
func (b *Broadcaster) StartSession(client *Client, pace float64) StartReply {
	// Give up ownership before creating: if the create below fails the
	// connection must not keep pointing at the deactivated session.
	b.mu.Lock()
	prev := b.owned[client]
	delete(b.owned, client)
	b.mu.Unlock()
	if prev != "" {
		b.deactivateAndNotify(prev)
	}

	sess, err := b.store.Create(pace)
	if err != nil {
		log.Printf("start session: %v", err)
		return StartReply{Type: TypeStartSession, Success: false, Message: "could not start a sharing session"}
	}

	b.mu.Lock()
	b.owned[client] = sess.ID
	b.mu.Unlock()

	return StartReply{Type: TypeStartSession, Success: true, SharingID: sess.ID}
}

// UpdateLocation merges a position fix into the session, recomputes the
// ETA when a destination is set, and pushes the record to the room. An
// unknown id is dropped silently: the publisher may have raced a
// disconnect.
func (b *Broadcaster) UpdateLocation(msg Message) {
	active := true
	if msg.Active != nil {
		active = *msg.Active
	}

	mu := b.sessionLock(msg.SharingID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := b.store.Update(msg.SharingID, session.Fields{
		Latitude:  &msg.Latitude,
		Longitude: &msg.Longitude,
		Active:    &active,
	})
	if err != nil {
		return
	}

	if sess.Destination != nil {
		sess, err = b.storeETA(sess)
		if err != nil {
			return
		}
	}
	b.push(msg.SharingID, sess)
}

// SetDestination records the target and, when a fix is already known,
// the new ETA. No push happens here: watchers pick up the change on the
// next location update or join.
func (b *Broadcaster) SetDestination(msg Message) {
	if msg.Destination == nil {
		return
	}

	mu := b.sessionLock(msg.SharingID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := b.store.SetDestination(msg.SharingID, *msg.Destination)
	if err != nil {
		return
	}
	if sess.Latitude != 0 || sess.Longitude != 0 {
		_, _ = b.storeETA(sess)
	}
}

// Join subscribes the connection to a session's room and sends it the
// current record. Joining an id that does not exist yields membership
// but no snapshot.
func (b *Broadcaster) Join(client *Client, sharingID string) {
	mu := b.sessionLock(sharingID)
	mu.Lock()
	defer mu.Unlock()

	b.hub.Subscribe(client, sharingID)

	sess, err := b.store.Get(sharingID)
	if err != nil {
		return
	}
	payload, err := json.Marshal(WatchEvent{Type: TypeWatch, LocationData: sess})
	if err != nil {
		log.Printf("marshal watch event: %v", err)
		return
	}
	b.hub.SendTo(client, payload)
}

func (b *Broadcaster) storeETA(sess session.Session) (session.Session, error) {
	eta := geo.HaversineKm(sess.Latitude, sess.Longitude, sess.Destination.Lat, sess.Destination.Lng) * sess.Pace
	return b.store.Update(sess.ID, session.Fields{ETA: &eta})
}

func (b *Broadcaster) deactivateAndNotify(id string) {
	mu := b.sessionLock(id)
	mu.Lock()
	defer mu.Unlock()

	sess, err := b.store.Deactivate(id)
	if err != nil {
		return
	}
	b.push(id, sess)
}

func (b *Broadcaster) push(id string, sess session.Session) {
	payload, err := json.Marshal(WatchEvent{Type: TypeWatch, LocationData: sess})
	if err != nil {
		log.Printf("marshal watch event: %v", err)
		return
	}
	b.hub.Broadcast(id, payload)
}

func (b *Broadcaster) reply(client *Client, r StartReply) {
	payload, err := json.Marshal(r)
	if err != nil {
		log.Printf("marshal reply: %v", err)
		return
	}
	b.hub.SendTo(client, payload)
}
