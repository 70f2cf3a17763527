package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caseclosed/backend/pkg/types"
)

func winner(m types.Match) string {
	if m.Winner == nil {
		return ""
	}
	return *m.Winner
}

func TestRankItems_StableOnTies(t *testing.T) {
	order := []string{"A", "B", "C", "D"}
	counts := map[string]int{"A": 2, "B": 5, "C": 2, "D": 5}

	ranked := rankItems(order, counts)
	require.Equal(t, []string{"B", "D", "A", "C"}, ranked)
	// Input order untouched.
	require.Equal(t, []string{"A", "B", "C", "D"}, order)
}

func TestBuildBracket(t *testing.T) {
	cases := []struct {
		name    string
		ranked  []string
		matches int
		byes    int
	}{
		{"empty", nil, 0, 0},
		{"single item", []string{"A"}, 1, 1},
		{"two items", []string{"A", "B"}, 1, 0},
		{"five items pads to eight", []string{"A", "B", "C", "D", "E"}, 4, 3},
		{"full sixteen", []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M", "N", "O", "P"}, 8, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bracket := BuildBracket(tc.ranked)
			require.Len(t, bracket, tc.matches)

			byes := 0
			for _, m := range bracket {
				if m.Item2 == ByeItem {
					byes++
				}
			}
			require.Equal(t, tc.byes, byes)
		})
	}
}

func TestBuildBracket_MirroredSeeding(t *testing.T) {
	bracket := BuildBracket([]string{"A", "B", "C", "D", "E"})
	require.Len(t, bracket, 4)

	// 1v8, 2v7, 3v6 are all against BYEs and auto-resolve; 4v5 awaits a battle.
	require.Equal(t, 1, bracket[0].Seed1)
	require.Equal(t, "A", bracket[0].Item1)
	require.Equal(t, 8, *bracket[0].Seed2)
	require.Equal(t, ByeItem, bracket[0].Item2)
	require.Equal(t, "A", winner(bracket[0]))

	require.Equal(t, "B", winner(bracket[1]))
	require.Equal(t, "C", winner(bracket[2]))

	require.Equal(t, 4, bracket[3].Seed1)
	require.Equal(t, "D", bracket[3].Item1)
	require.Equal(t, 5, *bracket[3].Seed2)
	require.Equal(t, "E", bracket[3].Item2)
	require.Nil(t, bracket[3].Winner)
}

func TestBuildBracket_TruncatesToBracketSize(t *testing.T) {
	ranked := make([]string, BracketSize+4)
	for i := range ranked {
		ranked[i] = string(rune('a' + i))
	}
	bracket := BuildBracket(ranked)
	require.Len(t, bracket, BracketSize/2)
}

func TestRoundsFrom(t *testing.T) {
	bracket := BuildBracket([]string{"A", "B", "C", "D"})
	winners := map[string]string{}

	rounds := RoundsFrom(bracket, winners)
	require.Len(t, rounds, 2)
	require.Nil(t, rounds[1][0].Winner) // final inputs unknown

	_, done := ChampionFrom(bracket, winners)
	require.False(t, done)

	// First round resolves: A beats D, C beats B.
	winners[MatchKey("A", "D")] = "A"
	winners[MatchKey("B", "C")] = "C"

	rounds = RoundsFrom(bracket, winners)
	final := rounds[1][0]
	require.Equal(t, "A", final.Item1)
	require.Equal(t, "C", final.Item2)
	require.Nil(t, final.Winner)

	winners[MatchKey("A", "C")] = "C"
	champion, done := ChampionFrom(bracket, winners)
	require.True(t, done)
	require.Equal(t, "C", champion)
}

func TestRoundsFrom_ByesAdvanceWithoutBattles(t *testing.T) {
	// Five items: three auto-wins plus one real first-round match.
	bracket := BuildBracket([]string{"A", "B", "C", "D", "E"})
	winners := map[string]string{
		MatchKey("D", "E"): "E",
		MatchKey("A", "B"): "A",
		MatchKey("C", "E"): "E",
		MatchKey("A", "E"): "E",
	}

	rounds := RoundsFrom(bracket, winners)
	require.Len(t, rounds, 3)

	champion, done := ChampionFrom(bracket, winners)
	require.True(t, done)
	require.Equal(t, "E", champion)
}

func TestRoundsFrom_FoughtResultBeatsSeededWinner(t *testing.T) {
	seeded := "A"
	seed2 := 2
	bracket := []types.Match{
		{Seed1: 1, Item1: "A", Seed2: &seed2, Item2: "B", Winner: &seeded},
	}
	winners := map[string]string{MatchKey("A", "B"): "B"}

	rounds := RoundsFrom(bracket, winners)
	require.Equal(t, "B", winner(rounds[0][0]))

	champion, done := ChampionFrom(bracket, winners)
	require.True(t, done)
	require.Equal(t, "B", champion)
}

func TestDedupeItems(t *testing.T) {
	cases := []struct {
		name  string
		items []string
		want  []string
	}{
		{"first casing wins", []string{"Pizza", "pizza ", "Sushi"}, []string{"Pizza", "Sushi"}},
		{"blanks dropped", []string{" ", "", "Taco"}, []string{"Taco"}},
		{"order preserved", []string{"b", "a", "B", "c"}, []string{"b", "a", "c"}},
		{"empty", nil, []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, dedupeItems(tc.items))
		})
	}
}
