// Package live рассылает подключённым клиентам события об изменениях
// игр, событий и оплат. Одна общая комната: клуб небольшой, фильтрация
// по сущностям делается на клиенте.
package live

import (
	"encoding/json"
	"log/slog"
	"sync"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	clients map[*Client]bool
	mu      sync.RWMutex
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
		clients:    make(map[*Client]bool),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.logger.Info("Live client connected", slog.Int("total", len(h.clients)))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.mu.Lock()
				if !client.closed {
					close(client.send)
					client.closed = true
				}
				client.mu.Unlock()
				h.logger.Info("Live client disconnected", slog.Int("total", len(h.clients)))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				client.mu.Lock()
				if client.closed {
					client.mu.Unlock()
					continue
				}
				select {
				case client.send <- message:
				default:
					// Медленный клиент: сообщение пропускаем, соединение
					// закроет read/write pump по таймауту.
				}
				client.mu.Unlock()
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast сериализует событие и раскладывает его по клиентским каналам.
// Безопасен для вызова из любых горутин.
func (h *Hub) Broadcast(eventType string, payload interface{}) {
	data, err := json.Marshal(Message{Type: eventType, Payload: payload})
	if err != nil {
		h.logger.Error("Failed to marshal live message", slog.String("type", eventType), slog.Any("error", err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Live broadcast channel full, dropping message", slog.String("type", eventType))
	}
}
