package engine

import (
	"time"

	"github.com/caseclosed/backend/pkg/types"
)

type Phase string

const (
	PhaseLobby             Phase = "lobby"
	PhaseSubmissions       Phase = "submissions"
	PhaseSubmissionsClosed Phase = "submissions_closed"
	PhaseVoting            Phase = "voting"
	PhaseBattle            Phase = "battle"
)

const (
	VotesPerPlayer     = 10
	BracketSize        = 16
	SubmissionDuration = 60 * time.Second

	// ByeItem is the sentinel opponent meaning automatic advancement.
	ByeItem = "BYE"
)

type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// Session is what the registry knows about one live connection. Rooms hold
// only the ConnID, never the transport, so a closed connection is just a
// dangling ID that the disconnect path prunes.
type Session struct {
	ConnID   string
	Role     Role
	RoomCode string
	Name     string
}

type Player struct {
	ConnID string
	Name   string
}

// Battle is the single in-flight matchup with its own tally and voter set.
type Battle struct {
	Item1  string
	Item2  string
	Votes  map[string]int
	Voters map[string]struct{}
}

// Room is one isolated game session. All fields are owned by the dispatcher
// goroutine; nothing here is safe for concurrent use.
type Room struct {
	Code      string
	HostID    string // empty while the host is disconnected
	HostToken string // never sent to players
	Players   []Player

	Phase            Phase
	Category         string
	SubmissionEndsAt *int64 // epoch millis, advisory deadline

	Submissions []string // raw trimmed items, duplicates and casing kept
	VotingItems []string // deduped snapshot, frozen at voting start

	VoteCounts map[string]int
	voteOrder  []string            // key insertion order, the stable-sort tiebreak
	Voted      map[string]struct{} // conn IDs that submitted this round

	Bracket          []types.Match
	CompletedBattles map[string]struct{}
	BattleWinners    map[string]string
	CurrentBattle    *Battle
}

func NewRoom(code, hostID, hostToken string) *Room {
	r := &Room{
		Code:      code,
		HostID:    hostID,
		HostToken: hostToken,
		Phase:     PhaseLobby,
	}
	r.resetRound("")
	return r
}

// resetRound clears everything a fresh submissions phase starts from.
func (r *Room) resetRound(category string) {
	r.Category = category
	r.Submissions = []string{}
	r.VotingItems = []string{}
	r.VoteCounts = map[string]int{}
	r.voteOrder = nil
	r.Voted = map[string]struct{}{}
	r.Bracket = []types.Match{}
	r.CompletedBattles = map[string]struct{}{}
	r.BattleWinners = map[string]string{}
	r.CurrentBattle = nil
	r.SubmissionEndsAt = nil
}

func (r *Room) playerIndex(connID string) int {
	for i, p := range r.Players {
		if p.ConnID == connID {
			return i
		}
	}
	return -1
}

// PlayerNames returns the display names of current players, skipping blanks.
func (r *Room) PlayerNames() []string {
	names := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		if p.Name != "" {
			names = append(names, p.Name)
		}
	}
	return names
}

// playerIDs is a snapshot of player conn IDs, safe to hand to a fan-out.
func (r *Room) playerIDs() []string {
	ids := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		ids = append(ids, p.ConnID)
	}
	return ids
}

// everyone is the fan-out snapshot of players plus the host, if connected.
func (r *Room) everyone() []string {
	ids := r.playerIDs()
	if r.HostID != "" {
		ids = append(ids, r.HostID)
	}
	return ids
}

// addVote accumulates one item's votes, recording first-seen key order so
// equal tallies later sort by insertion.
func (r *Room) addVote(item string, count int) {
	if _, ok := r.VoteCounts[item]; !ok {
		r.voteOrder = append(r.voteOrder, item)
	}
	r.VoteCounts[item] += count
}
