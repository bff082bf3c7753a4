package service

// Broadcaster pushes server-originated events to a family group's realtime
// room. Implemented by realtime.Hub.
type Broadcaster interface {
	Broadcast(groupID, event string, data any)

	// Evict removes userID's connections from the group's room.
	Evict(groupID, userID string)

	// CloseRoom empties the group's room.
	CloseRoom(groupID string)
}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(string, string, any) {}
func (noopBroadcaster) Evict(string, string)          {}
func (noopBroadcaster) CloseRoom(string)              {}

func orNoop(b Broadcaster) Broadcaster {
	if b == nil {
		return noopBroadcaster{}
	}
	return b
}
