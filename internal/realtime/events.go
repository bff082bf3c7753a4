// Package realtime relays family-group events to connected websocket clients.
//
// Connections authenticate once, at upgrade time. A connection joins rooms
// keyed by family group ("family_<groupID>") and receives every event
// published to those rooms, including events it sent itself. Nothing is
// persisted or retried: a client that misses events re-fetches over REST.
//
// Room state lives in one process. Running several server instances needs an
// external pub/sub fan-out in front of Hub.Broadcast.
package realtime

import (
	"encoding/json"
	"strings"
)

// Client-originated events.
const (
	EventJoinFamilyGroup     = "join_family_group"
	EventLeaveFamilyGroup    = "leave_family_group"
	EventCreateSharedExpense = "create_shared_expense"
	EventInviteMember        = "invite_member"
	EventUpdateSplit         = "update_shared_expense_split"
)

// Server-originated events.
const (
	EventJoinedFamilyGroup         = "joined_family_group"
	EventSharedExpenseCreated      = "shared_expense_created"
	EventSharedExpenseSplitUpdated = "shared_expense_split_updated"
	EventSharedExpenseDeleted      = "shared_expense_deleted"
	EventMemberInvited             = "member_invited"
	EventMemberJoined              = "member_joined"
	EventMemberRemoved             = "member_removed"
	EventGoalUpdated               = "goal_updated"
	EventFamilyDeleted             = "family_deleted"
	EventError                     = "error"
)

// relays maps a client event to the event re-broadcast to its room.
var relays = map[string]string{
	EventCreateSharedExpense: EventSharedExpenseCreated,
	EventInviteMember:        EventMemberInvited,
	EventUpdateSplit:         EventSharedExpenseSplitUpdated,
}

// Message is the JSON frame exchanged in both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomName returns the room key for a family group.
func RoomName(groupID string) string {
	return "family_" + groupID
}

// groupIDFrom accepts either a bare JSON string, a "family_<id>" room name,
// or an object carrying familyGroupId.
func groupIDFrom(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return strings.TrimPrefix(strings.TrimSpace(id), "family_")
	}
	var obj struct {
		FamilyGroupID string `json:"familyGroupId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return strings.TrimSpace(obj.FamilyGroupID)
	}
	return ""
}

func encode(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	switch v := data.(type) {
	case nil:
	case json.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Message{Event: event, Data: raw})
}
