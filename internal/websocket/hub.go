package websocket

import "github.com/rs/zerolog/log"

type userMessage struct {
	userID string
	data   []byte
}

type clientMessage struct {
	client *Client
	data   []byte
}

// Hub maintains the set of active clients and delivers messages to them. All
// state is owned by the Run goroutine.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Clients grouped by the user they authenticated as.
	byUser map[string]map[*Client]bool

	// Messages for every connected client.
	Broadcast chan []byte

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	direct chan userMessage
	reply  chan clientMessage
	done   chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		byUser:     make(map[string]map[*Client]bool),
		Broadcast:  make(chan []byte),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		direct:     make(chan userMessage),
		reply:      make(chan clientMessage),
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.Register:
			h.clients[client] = true
			if h.byUser[client.UserID] == nil {
				h.byUser[client.UserID] = make(map[*Client]bool)
			}
			h.byUser[client.UserID][client] = true
			log.Info().Str("user_id", client.UserID).Int("total_clients", len(h.clients)).Msg("Client connected")
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Str("user_id", client.UserID).Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case message := <-h.Broadcast:
			for client := range h.clients {
				h.send(client, message)
			}
		case m := <-h.direct:
			for client := range h.byUser[m.userID] {
				h.send(client, m.data)
			}
		case m := <-h.reply:
			if h.clients[m.client] {
				h.send(m.client, m.data)
			}
		}
	}
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	close(h.done)
}

// BroadcastTo sends a message to every connection of one user.
func (h *Hub) BroadcastTo(userID string, message []byte) {
	select {
	case h.direct <- userMessage{userID: userID, data: message}:
	case <-h.done:
	}
}

// BroadcastAll sends a message to every connected client.
func (h *Hub) BroadcastAll(message []byte) {
	select {
	case h.Broadcast <- message:
	case <-h.done:
	}
}

// Reply sends a message to a single client if it is still registered.
func (h *Hub) Reply(client *Client, message []byte) {
	select {
	case h.reply <- clientMessage{client: client, data: message}:
	case <-h.done:
	}
}

// Add registers a client. It reports false once the hub has stopped, in which
// case the caller owns the connection and should close it.
func (h *Hub) Add(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// NotesChanged tells the user's clients, or every client when userID is
// empty, that notes changed.
func (h *Hub) NotesChanged(userID string, ids []string, serverTime int64) {
	msg := NewNotesChangedMessage(ids, serverTime)
	if userID == "" {
		h.BroadcastAll(msg)
		return
	}
	h.BroadcastTo(userID, msg)
}

// send drops clients whose buffer is full.
func (h *Hub) send(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		log.Warn().Str("user_id", client.UserID).Msg("Dropping slow websocket client")
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	if subs, ok := h.byUser[client.UserID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.byUser, client.UserID)
		}
	}
	close(client.Send)
}
