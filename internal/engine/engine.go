package engine

import (
	"errors"
	"math"
	"slices"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/caseclosed/backend/pkg/types"
)

// Error text doubles as the wire contract: the dispatcher sends err.Error()
// verbatim in the error payload and clients display it.
var (
	ErrRoomExists            = errors.New("Room already exists.")
	ErrRoomNotFound          = errors.New("Room not found.")
	ErrInvalidHostToken      = errors.New("Invalid host token.")
	ErrNameRequired          = errors.New("Player name required.")
	ErrCategoryRequired      = errors.New("Category required.")
	ErrNoPlayers             = errors.New("At least one player is required.")
	ErrNotInRoom             = errors.New("Not in a room.")
	ErrCannotSubmit          = errors.New("Not in a room or host cannot submit.")
	ErrSubmissionsNotOpen    = errors.New("Submissions are not open.")
	ErrSubmissionsClosed     = errors.New("Submission time has ended.")
	ErrVotingNotOpen         = errors.New("Voting is not open.")
	ErrVotesAlreadySubmitted = errors.New("Votes already submitted.")
	ErrInvalidVoteItem       = errors.New("Invalid vote item.")
	ErrInvalidVoteCount      = errors.New("Invalid vote count.")
	ErrTooManyVotes          = errors.New("Too many votes.")
)

// Effect is one outbound send the dispatcher must perform. To is a snapshot
// of recipient conn IDs taken when the effect was built, so fan-out never
// iterates a list that a disconnect could mutate. Close tears the
// connections down after the send.
type Effect struct {
	To      []string
	Payload any
	Close   bool
}

// Outcome is the explicit result of one action: effects to deliver (Ok), an
// error to report to the sender, or neither (the silent ignore). Which
// invalid actions answer with an error and which are dropped is part of the
// protocol and is decided here, per action, never by the dispatcher.
type Outcome struct {
	Effects []Effect
	Err     error
}

func fail(err error) Outcome {
	return Outcome{Err: err}
}

func ignore() Outcome {
	return Outcome{}
}

func send(to []string, payload any) Effect {
	return Effect{To: to, Payload: payload}
}

// Engine is the room/phase state machine. Handlers are pure with respect to
// I/O: they mutate room and session state and describe sends as effects.
// The dispatcher calls them one message at a time; no room is ever touched
// from two goroutines.
type Engine struct {
	store *Store
	clock clockwork.Clock
}

func New(store *Store, clock clockwork.Clock) *Engine {
	return &Engine{store: store, clock: clock}
}

// roomOf resolves the session's room, tolerating stale codes.
func (e *Engine) roomOf(sess *Session) *Room {
	if sess.RoomCode == "" {
		return nil
	}
	return e.store.Get(sess.RoomCode)
}

func (e *Engine) isHost(sess *Session, room *Room) bool {
	return room != nil && room.HostID == sess.ConnID
}

func (e *Engine) nowMillis() int64 {
	return e.clock.Now().UnixMilli()
}

func (e *Engine) CreateRoom(sess *Session, code string) Outcome {
	if e.store.Get(code) != nil {
		return fail(ErrRoomExists)
	}

	token, err := newHostToken()
	if err != nil {
		return ignore()
	}

	room := NewRoom(code, sess.ConnID, token)
	e.store.Put(room)

	sess.Role = RoleHost
	sess.RoomCode = code

	return Outcome{Effects: []Effect{
		send([]string{sess.ConnID}, types.RoomCreated{
			Action:      "room_created",
			RoomCode:    code,
			HostToken:   token,
			PlayerCount: 0,
		}),
	}}
}

func (e *Engine) JoinRoom(sess *Session, code, name string) Outcome {
	room := e.store.Get(code)
	if room == nil {
		return fail(ErrRoomNotFound)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return fail(ErrNameRequired)
	}

	// Re-joining with the same connection must not duplicate the entry.
	if room.playerIndex(sess.ConnID) < 0 {
		room.Players = append(room.Players, Player{ConnID: sess.ConnID, Name: name})
	}

	sess.Role = RolePlayer
	sess.RoomCode = code
	sess.Name = name

	effects := []Effect{
		send([]string{sess.ConnID}, types.JoinOK{
			Action:           "join_ok",
			RoomCode:         code,
			Phase:            string(room.Phase),
			Category:         room.Category,
			SubmissionEndsAt: room.SubmissionEndsAt,
		}),
	}
	if room.HostID != "" {
		host := []string{room.HostID}
		effects = append(effects,
			send(host, types.PlayerCount{Action: "player_count", Count: len(room.Players)}),
			send(host, types.PlayerList{Action: "player_list", Players: room.PlayerNames()}),
		)
	}
	return Outcome{Effects: effects}
}

func (e *Engine) HostReconnect(sess *Session, code, token string) Outcome {
	room := e.store.Get(code)
	if room == nil {
		return fail(ErrRoomNotFound)
	}
	if token == "" || token != room.HostToken {
		return fail(ErrInvalidHostToken)
	}

	room.HostID = sess.ConnID
	sess.Role = RoleHost
	sess.RoomCode = code

	self := []string{sess.ConnID}
	return Outcome{Effects: []Effect{
		send(self, types.PlayerList{Action: "player_list", Players: room.PlayerNames()}),
		send(self, types.HostState{
			Action:           "host_state",
			RoomCode:         code,
			Phase:            string(room.Phase),
			Category:         room.Category,
			Submissions:      room.Submissions,
			Bracket:          room.Bracket,
			BattleWinners:    room.BattleWinners,
			SubmissionEndsAt: room.SubmissionEndsAt,
			PlayerCount:      len(room.Players),
		}),
	}}
}

func (e *Engine) GetPlayers(sess *Session, code string) Outcome {
	room := e.store.Get(code)
	if room == nil {
		return fail(ErrRoomNotFound)
	}
	if !e.isHost(sess, room) {
		return ignore()
	}
	return Outcome{Effects: []Effect{
		send([]string{sess.ConnID}, types.PlayerList{Action: "player_list", Players: room.PlayerNames()}),
	}}
}

func (e *Engine) StartSubmissions(sess *Session, category string) Outcome {
	room := e.roomOf(sess)
	if !e.isHost(sess, room) {
		return ignore()
	}
	if room.Phase != PhaseLobby {
		return ignore()
	}

	category = strings.TrimSpace(category)
	if category == "" {
		return fail(ErrCategoryRequired)
	}
	if len(room.Players) == 0 {
		return fail(ErrNoPlayers)
	}

	room.resetRound(category)
	room.Phase = PhaseSubmissions
	ends := e.nowMillis() + SubmissionDuration.Milliseconds()
	room.SubmissionEndsAt = &ends

	return Outcome{Effects: []Effect{
		send(room.everyone(), types.StartSubmissions{
			Action:           "start_submissions",
			Category:         category,
			SubmissionEndsAt: room.SubmissionEndsAt,
		}),
	}}
}

func (e *Engine) EndSubmissions(sess *Session) Outcome {
	room := e.roomOf(sess)
	if !e.isHost(sess, room) {
		return ignore()
	}

	room.Phase = PhaseSubmissionsClosed
	now := e.nowMillis()
	room.SubmissionEndsAt = &now

	return Outcome{Effects: []Effect{
		send(room.everyone(), types.SubmissionsEnded{
			Action:           "submissions_ended",
			SubmissionEndsAt: room.SubmissionEndsAt,
		}),
	}}
}

func (e *Engine) SubmitItem(sess *Session, item string) Outcome {
	room := e.roomOf(sess)
	if room == nil || sess.Role != RolePlayer {
		return fail(ErrCannotSubmit)
	}
	if room.Phase != PhaseSubmissions {
		return fail(ErrSubmissionsNotOpen)
	}
	if room.SubmissionEndsAt != nil && e.nowMillis() > *room.SubmissionEndsAt {
		return fail(ErrSubmissionsClosed)
	}

	item = strings.TrimSpace(item)
	if item == "" {
		return ignore()
	}

	room.Submissions = append(room.Submissions, item)

	if room.HostID == "" {
		return Outcome{}
	}
	return Outcome{Effects: []Effect{
		send([]string{room.HostID}, types.NewSubmission{Action: "new_submission", Item: item}),
	}}
}

func (e *Engine) GetSubmissions(sess *Session, code string) Outcome {
	room := e.store.Get(code)
	if room == nil {
		return fail(ErrRoomNotFound)
	}
	return Outcome{Effects: []Effect{
		send([]string{sess.ConnID}, types.SubmissionsList{
			Action:      "submissions_list",
			Submissions: room.Submissions,
		}),
	}}
}

func (e *Engine) StartVoting(sess *Session) Outcome {
	room := e.roomOf(sess)
	if !e.isHost(sess, room) {
		return ignore()
	}

	room.Phase = PhaseVoting
	room.Voted = map[string]struct{}{}
	room.VoteCounts = map[string]int{}
	room.voteOrder = nil
	room.VotingItems = dedupeItems(room.Submissions)

	return Outcome{Effects: []Effect{
		send(room.everyone(), types.StartVoting{
			Action:         "start_voting",
			Submissions:    room.VotingItems,
			VotesPerPlayer: VotesPerPlayer,
		}),
	}}
}

// SubmitVotes validates a player's whole allocation before applying any of
// it: one bad entry rejects the submission with no partial tally. Counts
// arrive as JSON numbers, so integer-ness is checked here rather than left
// to decoding.
func (e *Engine) SubmitVotes(sess *Session, votes map[string]float64) Outcome {
	room := e.roomOf(sess)
	if room == nil || sess.Role != RolePlayer {
		return fail(ErrNotInRoom)
	}
	if room.Phase != PhaseVoting {
		return fail(ErrVotingNotOpen)
	}
	if _, ok := room.Voted[sess.ConnID]; ok {
		return fail(ErrVotesAlreadySubmitted)
	}

	// The budget math stays in float64: converting an absurd but integral
	// count to int first could wrap and slip past the comparison.
	total := 0.0
	for item, count := range votes {
		if !slices.Contains(room.VotingItems, item) {
			return fail(ErrInvalidVoteItem)
		}
		if count < 0 || count != math.Trunc(count) {
			return fail(ErrInvalidVoteCount)
		}
		total += count
	}
	if total > VotesPerPlayer {
		return fail(ErrTooManyVotes)
	}

	// Apply in voting-item order so the tally's key insertion order, and
	// with it the tie ranking, is deterministic.
	for _, item := range room.VotingItems {
		if count, ok := votes[item]; ok {
			room.addVote(item, int(count))
		}
	}
	room.Voted[sess.ConnID] = struct{}{}

	if len(room.Players) == 0 || len(room.Voted) != len(room.Players) {
		return Outcome{}
	}
	return e.completeVoting(room)
}

// completeVoting seeds the bracket from the accumulated tallies once the
// last player's votes arrive.
func (e *Engine) completeVoting(room *Room) Outcome {
	bracket := BuildBracket(rankItems(room.voteOrder, room.VoteCounts))
	if bracket == nil {
		return ignore()
	}

	room.Bracket = bracket
	room.Phase = PhaseBattle

	return Outcome{Effects: []Effect{
		send(room.everyone(), types.VotingComplete{Action: "voting_complete", Bracket: bracket}),
	}}
}

func (e *Engine) StartBattle(sess *Session, item1, item2 string) Outcome {
	room := e.roomOf(sess)
	if !e.isHost(sess, room) {
		return ignore()
	}
	if room.Phase != PhaseBattle {
		return ignore()
	}

	key := MatchKey(item1, item2)
	if _, done := room.CompletedBattles[key]; done {
		return ignore()
	}

	room.CurrentBattle = &Battle{
		Item1:  item1,
		Item2:  item2,
		Votes:  map[string]int{item1: 0, item2: 0},
		Voters: map[string]struct{}{},
	}

	return Outcome{Effects: []Effect{
		send(room.everyone(), types.BattleStart{
			Action: "battle_start",
			Battle: types.BattlePair{Item1: item1, Item2: item2},
		}),
	}}
}

// SubmitBattleVote is silent on every failure mode: no open battle, unknown
// choice, duplicate vote, wrong role. That asymmetry with SubmitVotes is
// part of the protocol.
func (e *Engine) SubmitBattleVote(sess *Session, choice string) Outcome {
	room := e.roomOf(sess)
	if room == nil || sess.Role != RolePlayer {
		return ignore()
	}
	if room.Phase != PhaseBattle || room.CurrentBattle == nil {
		return ignore()
	}

	battle := room.CurrentBattle
	if _, ok := battle.Votes[choice]; !ok {
		return ignore()
	}
	if _, voted := battle.Voters[sess.ConnID]; voted {
		return ignore()
	}

	battle.Votes[choice]++
	battle.Voters[sess.ConnID] = struct{}{}

	if len(room.Players) == 0 || len(battle.Voters) != len(room.Players) {
		return Outcome{}
	}

	// Ties favor item1.
	winner := battle.Item2
	if battle.Votes[battle.Item1] >= battle.Votes[battle.Item2] {
		winner = battle.Item1
	}

	key := MatchKey(battle.Item1, battle.Item2)
	room.BattleWinners[key] = winner
	room.CompletedBattles[key] = struct{}{}
	room.CurrentBattle = nil

	return Outcome{Effects: []Effect{
		send(room.everyone(), types.BattleResult{
			Action: "battle_result",
			Winner: winner,
			Battle: types.BattlePair{Item1: battle.Item1, Item2: battle.Item2},
		}),
	}}
}

func (e *Engine) EndGame(sess *Session) Outcome {
	room := e.roomOf(sess)
	if !e.isHost(sess, room) {
		return ignore()
	}

	recipients := room.everyone()
	e.store.Delete(room.Code)

	return Outcome{Effects: []Effect{
		{To: recipients, Payload: types.GameOver{Action: "game_over"}, Close: true},
	}}
}

// Disconnect is the close-driven cleanup path. A departing host leaves the
// room alive for a token reconnect; a departing player is pruned from the
// roster and any voter sets; an empty, hostless room is deleted.
func (e *Engine) Disconnect(sess *Session) Outcome {
	room := e.roomOf(sess)
	if room == nil {
		return ignore()
	}

	if sess.Role == RoleHost {
		// Only the currently bound host clears the slot; a stale host
		// connection closing after a reconnect must not unbind the new one.
		if room.HostID == sess.ConnID {
			room.HostID = ""
		}
		return ignore()
	}

	idx := room.playerIndex(sess.ConnID)
	if idx >= 0 {
		room.Players = append(room.Players[:idx], room.Players[idx+1:]...)
	}
	delete(room.Voted, sess.ConnID)
	if room.CurrentBattle != nil {
		delete(room.CurrentBattle.Voters, sess.ConnID)
	}

	var effects []Effect
	if room.HostID != "" {
		host := []string{room.HostID}
		effects = append(effects,
			send(host, types.PlayerCount{Action: "player_count", Count: len(room.Players)}),
			send(host, types.PlayerList{Action: "player_list", Players: room.PlayerNames()}),
		)
	}

	if room.HostID == "" && len(room.Players) == 0 {
		e.store.Delete(room.Code)
	}

	return Outcome{Effects: effects}
}
