package hub

import (
	"sync"

	"github.com/chatmesh/server/pkg/log"
)

// Hub owns the process-local registry of connections and rooms. A room
// is the set of local clients subscribed to one broadcast group; cross-
// process delivery happens through the broker bridge, which the hub
// informs when a room gains its first or loses its last local member.
type Hub struct {
	clients    map[string]*Client            // client id -> client
	rooms      map[string]map[string]*Client // room -> client id -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *RoomMessage

	// Invoked outside the hub lock when a room gains its first local
	// member / loses its last one. Set before Run.
	OnRoomActive func(room string)
	OnRoomIdle   func(room string)

	mu sync.RWMutex
}

// RoomMessage is one payload fanned out to a room's local members.
type RoomMessage struct {
	Room    string
	Data    []byte
	Exclude string // client id to skip
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *RoomMessage, 256),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.L().Debug().Str(log.FieldClientID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// JoinRoom adds the client to a room. Reports whether the room went
// from empty to occupied on this process.
func (h *Hub) JoinRoom(client *Client, room string) bool {
	h.mu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	_, already := members[client.ID]
	members[client.ID] = client
	first := !ok
	h.mu.Unlock()

	if first && h.OnRoomActive != nil {
		h.OnRoomActive(room)
	}
	if !already {
		log.L().Debug().Str(log.FieldClientID, client.ID).Str(log.FieldRoom, room).Msg("client joined room")
	}
	return first
}

// LeaveRoom removes the client from a room. Safe if the client never
// joined. Reports whether the room became empty on this process.
func (h *Hub) LeaveRoom(client *Client, room string) bool {
	h.mu.Lock()
	last := h.dropFromRoom(client.ID, room)
	h.mu.Unlock()

	if last && h.OnRoomIdle != nil {
		h.OnRoomIdle(room)
	}
	return last
}

// InRoom reports whether the client currently belongs to the room.
func (h *Hub) InRoom(clientID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	_, in := members[clientID]
	return in
}

// RoomSize returns the local member count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast queues data for delivery to the room's local members.
func (h *Hub) Broadcast(room string, data []byte, exclude string) {
	h.broadcast <- &RoomMessage{Room: room, Data: data, Exclude: exclude}
}

func (h *Hub) deliver(msg *RoomMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[msg.Room]
	if !ok {
		return
	}
	for id, client := range members {
		if id == msg.Exclude {
			continue
		}
		select {
		case client.Send <- msg.Data:
		default:
			// Slow consumer: drop the connection rather than block
			// the whole room.
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, known := h.clients[client.ID]
	var idle []string
	if known {
		for room := range h.rooms {
			if h.dropFromRoom(client.ID, room) {
				idle = append(idle, room)
			}
		}
		delete(h.clients, client.ID)
		client.closeSend()
	}
	h.mu.Unlock()

	if h.OnRoomIdle != nil {
		for _, room := range idle {
			h.OnRoomIdle(room)
		}
	}
	if known {
		log.L().Debug().Str(log.FieldClientID, client.ID).Msg("client unregistered")
	}
}

// dropFromRoom removes the client id and reports whether the room
// became empty. Callers hold h.mu.
func (h *Hub) dropFromRoom(clientID, room string) bool {
	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	if _, in := members[clientID]; !in {
		return false
	}
	delete(members, clientID)
	if len(members) == 0 {
		delete(h.rooms, room)
		return true
	}
	return false
}
