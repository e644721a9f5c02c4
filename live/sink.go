package live

import "context"

// Sink adapts the hub to the services.EventSink interface. Emit never
// blocks: marshalling errors and slow clients are logged and dropped
// inside the hub.
type Sink struct {
	hub *Hub
}

func NewSink(hub *Hub) *Sink {
	return &Sink{hub: hub}
}

func (s *Sink) Emit(_ context.Context, event string, tournamentID int, payload interface{}) {
	roomID := RoomForTournament(tournamentID)
	s.hub.BroadcastToRoom(roomID, Message{
		Type:    event,
		Payload: payload,
		RoomID:  roomID,
	})
}
