package realtime

// roomIndex maps room names to member session handles.
// It is not safe for concurrent use; the Registry guards it with its own lock.
type roomIndex map[string]map[SessionID]struct{}

func (ri roomIndex) add(room string, id SessionID) {
	members, ok := ri[room]
	if !ok {
		members = make(map[SessionID]struct{})
		ri[room] = members
	}
	members[id] = struct{}{}
}

// remove drops id from room and deletes the room once empty.
func (ri roomIndex) remove(room string, id SessionID) {
	members, ok := ri[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(ri, room)
	}
}

func (ri roomIndex) members(room string) []SessionID {
	members := ri[room]
	out := make([]SessionID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}
