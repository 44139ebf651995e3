package chat

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ambience-chat/internal/realtime"
)

func (s *Service) onMessage(payload json.RawMessage) {
	msg, err := realtime.Decode[realtime.ChatMessage](payload)
	if err != nil {
		s.logger.Warn("Dropping malformed message event", zap.Error(err))
		return
	}
	if msg.RoomID == "" {
		s.logger.Warn("Dropping message event without room")
		return
	}
	msg.Content = s.sanitizer.Message(msg.Content)
	s.appendMessage(msg)
}

// appendMessage adds msg to its room feed. A message whose id or client id
// is already present replaces it; deleted messages are removed.
func (s *Service) appendMessage(msg realtime.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed := s.feeds[msg.RoomID]
	for i, existing := range feed {
		if !sameMessage(existing, msg) {
			continue
		}
		if msg.Deleted {
			s.feeds[msg.RoomID] = append(feed[:i:i], feed[i+1:]...)
			return
		}
		if msg.ID == "" {
			msg.ID = existing.ID
		}
		if msg.ClientID == "" {
			msg.ClientID = existing.ClientID
		}
		feed[i] = msg
		return
	}
	if msg.Deleted {
		return
	}

	feed = append(feed, msg)
	if over := len(feed) - s.feedSize; over > 0 {
		feed = append(feed[:0:0], feed[over:]...)
	}
	s.feeds[msg.RoomID] = feed
}

func sameMessage(a, b realtime.ChatMessage) bool {
	return (a.ID != "" && a.ID == b.ID) || (a.ClientID != "" && a.ClientID == b.ClientID)
}

func (s *Service) onPresence(payload json.RawMessage) {
	p, err := realtime.Decode[realtime.Presence](payload)
	if err != nil || p.Address == "" {
		s.logger.Warn("Dropping malformed presence event", zap.Error(err))
		return
	}
	s.setPresence(p)
}

func (s *Service) setPresence(p realtime.Presence) {
	if p.LastSeen == 0 {
		p.LastSeen = s.now().UnixMilli()
	}
	s.mu.Lock()
	s.presence[strings.ToLower(p.Address)] = p
	s.mu.Unlock()
}

func (s *Service) onRoomUpdate(payload json.RawMessage) {
	room, err := realtime.Decode[realtime.RoomUpdate](payload)
	if err != nil || room.ID == "" {
		s.logger.Warn("Dropping malformed room update", zap.Error(err))
		return
	}
	room.Name = s.sanitizer.StripAll(room.Name)
	room.Description = s.sanitizer.StripAll(room.Description)
	room.Topic = s.sanitizer.StripAll(room.Topic)

	s.mu.Lock()
	s.roomTable[room.ID] = room
	s.mu.Unlock()
}

// onError turns a server or connection error into a notification that
// stays until dismissed
func (s *Service) onError(payload json.RawMessage) {
	e, err := realtime.Decode[realtime.ErrorPayload](payload)
	if err != nil || e.Message == "" {
		e.Message = "Realtime connection error"
	}
	message := s.sanitizer.StripAll(e.Message)
	s.logger.Error("Realtime error", zap.String("message", message))
	s.notifier.Error("", message, "", 0)
}
