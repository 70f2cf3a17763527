package engine

import (
	"sort"

	"github.com/caseclosed/backend/pkg/types"
)

// MatchKey is the canonical battle key, order-sensitive as produced when the
// battle was started.
func MatchKey(item1, item2 string) string {
	return item1 + "||" + item2
}

// rankItems orders vote-count keys by tally, descending. The sort is stable
// over key insertion order, so ties keep the order items first received a
// vote. There is deliberately no secondary tiebreak.
func rankItems(order []string, counts map[string]int) []string {
	ranked := make([]string, len(order))
	copy(ranked, order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})
	return ranked
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// BuildBracket seeds a single-elimination bracket from ranked items: pad to
// the next power of two with BYEs, then mirror-pair first against last and
// inward. A pair with exactly one BYE resolves immediately.
func BuildBracket(ranked []string) []types.Match {
	top := ranked
	if len(top) > BracketSize {
		top = top[:BracketSize]
	}
	if len(top) == 0 {
		return nil
	}

	padded := make([]string, len(top), nextPowerOfTwo(len(top)))
	copy(padded, top)
	for len(padded) < cap(padded) {
		padded = append(padded, ByeItem)
	}

	bracket := make([]types.Match, 0, (len(padded)+1)/2)
	left, right := 0, len(padded)-1
	for left < right {
		item1, item2 := padded[left], padded[right]
		var winner *string
		if item2 == ByeItem && item1 != ByeItem {
			winner = &item1
		} else if item1 == ByeItem && item2 != ByeItem {
			winner = &item2
		}
		seed2 := right + 1
		bracket = append(bracket, types.Match{
			Seed1:  left + 1,
			Item1:  item1,
			Seed2:  &seed2,
			Item2:  item2,
			Winner: winner,
		})
		left++
		right--
	}

	// Padding guarantees an even count down to a single seed, which lands
	// here: it advances as its own winner.
	if left == right {
		item := padded[left]
		bracket = append(bracket, types.Match{
			Seed1:  left + 1,
			Item1:  item,
			Seed2:  nil,
			Item2:  ByeItem,
			Winner: &item,
		})
	}

	return bracket
}

// RoundsFrom derives every round of the bracket from the first round plus
// the recorded per-pair winners. Round one is hydrated from winners and BYE
// auto-advances; each later round pairs adjacent slots of the previous one,
// resolving a pair by its ordered key, or automatically when it has no
// second slot. Both the server and any presentation layer share this.
func RoundsFrom(bracket []types.Match, winners map[string]string) [][]types.Match {
	if len(bracket) == 0 {
		return nil
	}

	first := make([]types.Match, len(bracket))
	for i, m := range bracket {
		first[i] = m
		first[i].Winner = resolveWinner(m.Item1, m.Item2, m.Winner, winners)
	}

	rounds := [][]types.Match{first}
	current := first
	for len(current) > 1 {
		next := make([]types.Match, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			m := types.Match{Seed1: left.Seed1, Item1: deref(left.Winner)}
			if i+1 < len(current) {
				right := current[i+1]
				seed2 := right.Seed1
				m.Seed2 = &seed2
				m.Item2 = deref(right.Winner)
				if m.Item1 != "" && m.Item2 != "" {
					m.Winner = resolveWinner(m.Item1, m.Item2, nil, winners)
				}
			} else {
				// No opponent slot at all: auto-advance.
				m.Item2 = ByeItem
				if m.Item1 != "" {
					w := m.Item1
					m.Winner = &w
				}
			}
			next = append(next, m)
		}
		rounds = append(rounds, next)
		current = next
	}
	return rounds
}

// ChampionFrom reports the tournament winner once the final slot's inputs
// are decided, derived purely from the bracket and recorded winners.
func ChampionFrom(bracket []types.Match, winners map[string]string) (string, bool) {
	rounds := RoundsFrom(bracket, winners)
	if len(rounds) == 0 {
		return "", false
	}
	final := rounds[len(rounds)-1][0]
	if final.Winner == nil {
		return "", false
	}
	return *final.Winner, true
}

func resolveWinner(item1, item2 string, recorded *string, winners map[string]string) *string {
	// A fought-out result takes precedence over the winner seeded into the
	// bracket cell.
	if w, ok := winners[MatchKey(item1, item2)]; ok {
		return &w
	}
	if recorded != nil {
		return recorded
	}
	if item2 == ByeItem && item1 != "" && item1 != ByeItem {
		return &item1
	}
	if item1 == ByeItem && item2 != "" && item2 != ByeItem {
		return &item2
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
