package app

import "fmt"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what happens to a recipient whose send buffer is full.
type Policy interface {
	OnBackPressure(conn Connection) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(Connection) BackpressureAction {
	return KickMember
}

// EmptyRoomPolicy is applied when the last member leaves a room.
type EmptyRoomPolicy string

const (
	// DissolveEmpty removes the room immediately.
	DissolveEmpty EmptyRoomPolicy = "dissolve"
	// RetainEmpty keeps the room until Reap finds it empty past its TTL.
	RetainEmpty EmptyRoomPolicy = "retain"
)

func ParseEmptyRoomPolicy(s string) (EmptyRoomPolicy, error) {
	switch EmptyRoomPolicy(s) {
	case DissolveEmpty, "":
		return DissolveEmpty, nil
	case RetainEmpty:
		return RetainEmpty, nil
	}
	return "", fmt.Errorf("unknown empty room policy %q", s)
}
