package models

import "strings"

// RoomKeyFor derives the canonical room key for a conversation between two
// participants about one incident. The participants are sorted before
// joining, so the key is identical no matter which side initiates:
// RoomKeyFor(i, a, b) == RoomKeyFor(i, b, a). Equal participants are allowed;
// rejecting self-chat is the caller's concern.
func RoomKeyFor(incidentID, participantA, participantB string) string {
	lo, hi := participantA, participantB
	if strings.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	return incidentID + "_" + lo + "_" + hi
}
