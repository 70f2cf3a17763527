package types

// Wire contract for the party-game protocol. Every frame is a JSON object
// with an "action" discriminator. Field names here are load-bearing: the
// frontend reads them verbatim.

// ClientMessage is the single inbound envelope. Which fields matter depends
// on Action; the rest are simply absent.
type ClientMessage struct {
	Action    string             `json:"action"`
	RoomCode  string             `json:"roomCode,omitempty"`
	Name      string             `json:"name,omitempty"`
	HostToken string             `json:"hostToken,omitempty"`
	Category  string             `json:"category,omitempty"`
	Item      string             `json:"item,omitempty"`
	Votes     map[string]float64 `json:"votes,omitempty"`
	Battle    *BattlePair        `json:"battle,omitempty"`
	Vote      string             `json:"vote,omitempty"`
}

// BattlePair identifies one head-to-head matchup, in the order the battle
// was started. That order is part of the match key.
type BattlePair struct {
	Item1 string `json:"item1"`
	Item2 string `json:"item2"`
}

// Match is one bracket cell. Seed2 is null in the odd-leftover auto-advance
// case; Winner is null until the pair is resolved. Item2 may be "BYE".
type Match struct {
	Seed1  int     `json:"seed1"`
	Item1  string  `json:"item1"`
	Seed2  *int    `json:"seed2"`
	Item2  string  `json:"item2"`
	Winner *string `json:"winner"`
}

// Server -> client payloads, one struct per action.

type ErrorMessage struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

type RoomCreated struct {
	Action      string `json:"action"`
	RoomCode    string `json:"roomCode"`
	HostToken   string `json:"hostToken"`
	PlayerCount int    `json:"playerCount"`
}

type JoinOK struct {
	Action           string `json:"action"`
	RoomCode         string `json:"roomCode"`
	Phase            string `json:"phase"`
	Category         string `json:"category"`
	SubmissionEndsAt *int64 `json:"submissionEndsAt"`
}

type PlayerCount struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

type PlayerList struct {
	Action  string   `json:"action"`
	Players []string `json:"players"`
}

type HostState struct {
	Action           string            `json:"action"`
	RoomCode         string            `json:"roomCode"`
	Phase            string            `json:"phase"`
	Category         string            `json:"category"`
	Submissions      []string          `json:"submissions"`
	Bracket          []Match           `json:"bracket"`
	BattleWinners    map[string]string `json:"battleWinners"`
	SubmissionEndsAt *int64            `json:"submissionEndsAt"`
	PlayerCount      int               `json:"playerCount"`
}

type StartSubmissions struct {
	Action           string `json:"action"`
	Category         string `json:"category"`
	SubmissionEndsAt *int64 `json:"submissionEndsAt"`
}

type SubmissionsEnded struct {
	Action           string `json:"action"`
	SubmissionEndsAt *int64 `json:"submissionEndsAt"`
}

type NewSubmission struct {
	Action string `json:"action"`
	Item   string `json:"item"`
}

type SubmissionsList struct {
	Action      string   `json:"action"`
	Submissions []string `json:"submissions"`
}

type StartVoting struct {
	Action         string   `json:"action"`
	Submissions    []string `json:"submissions"`
	VotesPerPlayer int      `json:"votesPerPlayer"`
}

type VotingComplete struct {
	Action  string  `json:"action"`
	Bracket []Match `json:"bracket"`
}

type BattleStart struct {
	Action string     `json:"action"`
	Battle BattlePair `json:"battle"`
}

type BattleResult struct {
	Action string     `json:"action"`
	Winner string     `json:"winner"`
	Battle BattlePair `json:"battle"`
}

type GameOver struct {
	Action string `json:"action"`
}
