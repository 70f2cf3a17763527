package engine

// Store owns the code -> Room table for one server process. It is a plain
// service value, not a global, so tests can run isolated instances. All
// access happens on the dispatcher goroutine.
type Store struct {
	rooms map[string]*Room
}

func NewStore() *Store {
	return &Store{rooms: make(map[string]*Room)}
}

// Get returns the live room for code, or nil.
func (s *Store) Get(code string) *Room {
	return s.rooms[code]
}

func (s *Store) Put(room *Room) {
	s.rooms[room.Code] = room
}

func (s *Store) Delete(code string) {
	delete(s.rooms, code)
}

func (s *Store) Len() int {
	return len(s.rooms)
}
