package room

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/radixapp/radix/internal/domain"
)

type registryEntry struct {
	config  domain.RoomConfig
	mailbox *Mailbox
}

// Registry is the process-wide directory of live rooms. It enforces
// the two cross-room invariants: room names are unique, and a user is
// connected to at most one room at a time.
//
// Critical sections are straight-line map work; no I/O or channel
// operations happen under the lock.
type Registry struct {
	judge  JudgeFunc
	logger *slog.Logger

	mu             sync.Mutex
	rooms          map[string]registryEntry
	usersConnected map[uuid.UUID]struct{}
}

func NewRegistry(judgeFn JudgeFunc, logger *slog.Logger) *Registry {
	return &Registry{
		judge:          judgeFn,
		logger:         logger,
		rooms:          make(map[string]registryEntry),
		usersConnected: make(map[uuid.UUID]struct{}),
	}
}

// CreateRoom spawns a new room actor under the given name. The owner
// does not join here; they connect over the websocket like everyone
// else.
func (reg *Registry) CreateRoom(owner domain.User, name string, public bool, problems []domain.Problem) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, connected := reg.usersConnected[owner.ID]; connected {
		return domain.ErrAlreadyConnected
	}
	if _, taken := reg.rooms[name]; taken {
		return domain.ErrRoomNameTaken
	}

	config := domain.RoomConfig{Name: name, Public: public, Owner: owner}
	r := NewRoom(config, problems, reg.judge, reg.logger)
	r.onStop = func() { reg.removeRoom(name) }

	reg.rooms[name] = registryEntry{config: config, mailbox: r.Mailbox()}
	go r.Run()
	return nil
}

// Join reserves the user's single-room slot and hands back the room's
// mailbox. The caller must Leave when the connection ends.
func (reg *Registry) Join(userID uuid.UUID, name string) (*Mailbox, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, connected := reg.usersConnected[userID]; connected {
		return nil, domain.ErrAlreadyConnected
	}
	entry, ok := reg.rooms[name]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}

	reg.usersConnected[userID] = struct{}{}
	return entry.mailbox, nil
}

// Leave releases the user's slot. No-op if the user was not connected.
func (reg *Registry) Leave(userID uuid.UUID) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.usersConnected, userID)
}

// CanConnect is a best-effort advisory check; a later Join can still
// fail if the answer went stale.
func (reg *Registry) CanConnect(userID uuid.UUID, name string) (bool, string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, connected := reg.usersConnected[userID]; connected {
		return false, "already connected"
	}
	if _, ok := reg.rooms[name]; !ok {
		return false, "does not exist"
	}
	return true, ""
}

// List snapshots the public rooms.
func (reg *Registry) List() []domain.RoomListing {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	listings := make([]domain.RoomListing, 0, len(reg.rooms))
	for _, entry := range reg.rooms {
		if !entry.config.Public {
			continue
		}
		listings = append(listings, domain.RoomListing{
			Name:  entry.config.Name,
			Owner: entry.config.Owner.ToPublic(),
		})
	}
	return listings
}

func (reg *Registry) removeRoom(name string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, name)
}
