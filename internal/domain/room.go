package domain

// RoomID is caller supplied: a chat id or a video-room id.
type RoomID string

type RoomInfo struct {
	ID          RoomID `json:"id"`
	MemberCount int    `json:"member_count"`
}
