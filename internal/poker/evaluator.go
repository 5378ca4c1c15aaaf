package poker

import (
	"fmt"
	"sort"

	appErr "holdem-service/pkg/errors"

	ph "github.com/paulhankin/poker"
)

type Category uint8

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

var categoryNames = [...]string{
	"high card",
	"pair",
	"two pair",
	"three of a kind",
	"straight",
	"flush",
	"full house",
	"four of a kind",
	"straight flush",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// Score orders hands: a greater score wins, equal scores split.
// Bits 20-23 hold the category, bits 0-19 five rank nibbles
// ordered by (group size desc, rank desc).
type Score uint32

func (s Score) Category() Category {
	return Category(s >> 20)
}

// Evaluate returns the best score over the 21 five-card subsets of
// hole plus a complete board.
func Evaluate(hole Hole, board Board) (Score, error) {
	if board.Len() != 5 {
		return 0, fmt.Errorf("%w: evaluate has %d board cards", appErr.ErrBoardIncomplete, board.Len())
	}
	var all [7]Card
	all[0], all[1] = hole[0], hole[1]
	copy(all[2:], board.cards[:5])
	for _, c := range all {
		if !c.Valid() {
			return 0, fmt.Errorf("invalid card in hand: %v", c)
		}
	}
	return Best7(all), nil
}

// Best7 brute-forces every 5 of 7 combination.
func Best7(all [7]Card) Score {
	var best Score
	var hand [5]Card
	for a := 0; a < 3; a++ {
		for b := a + 1; b < 4; b++ {
			for c := b + 1; c < 5; c++ {
				for d := c + 1; d < 6; d++ {
					for e := d + 1; e < 7; e++ {
						hand[0], hand[1], hand[2], hand[3], hand[4] = all[a], all[b], all[c], all[d], all[e]
						if s := Eval5(hand); s > best {
							best = s
						}
					}
				}
			}
		}
	}
	return best
}

type rankGroup struct {
	rank  Rank
	count int
}

// Eval5 scores exactly five cards.
func Eval5(hand [5]Card) Score {
	var counts [Ace + 1]int
	flush := true
	for i, c := range hand {
		counts[c.Rank]++
		if i > 0 && c.Suit != hand[0].Suit {
			flush = false
		}
	}

	groups := make([]rankGroup, 0, 5)
	for r := Ace; r >= Two; r-- {
		if counts[r] > 0 {
			groups = append(groups, rankGroup{rank: r, count: counts[r]})
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].count > groups[j].count
	})

	var cat Category
	switch {
	case groups[0].count == 4:
		cat = FourOfAKind
	case groups[0].count == 3 && groups[1].count == 2:
		cat = FullHouse
	case groups[0].count == 3:
		cat = ThreeOfAKind
	case groups[0].count == 2 && groups[1].count == 2:
		cat = TwoPair
	case groups[0].count == 2:
		cat = OnePair
	default:
		high, straight := straightHigh(groups)
		switch {
		case straight && flush:
			return pack(StraightFlush, high)
		case flush:
			cat = Flush
		case straight:
			return pack(Straight, high)
		default:
			cat = HighCard
		}
	}

	ranks := make([]Rank, len(groups))
	for i, g := range groups {
		ranks[i] = g.rank
	}
	return pack(cat, ranks...)
}

// straightHigh expects five distinct ranks sorted descending.
func straightHigh(groups []rankGroup) (Rank, bool) {
	if len(groups) != 5 {
		return 0, false
	}
	if groups[0].rank-groups[4].rank == 4 {
		return groups[0].rank, true
	}
	// wheel: A-5-4-3-2 plays as five high
	if groups[0].rank == Ace && groups[1].rank == Five && groups[4].rank == Two {
		return Five, true
	}
	return 0, false
}

func pack(cat Category, ranks ...Rank) Score {
	s := Score(cat) << 20
	for i, r := range ranks {
		s |= Score(r) << (16 - 4*uint(i))
	}
	return s
}

// Describe names the best hand, e.g. "ace-high flush".
func Describe(hole Hole, board Board) (string, error) {
	if board.Len() != 5 {
		return "", fmt.Errorf("%w: describe has %d board cards", appErr.ErrBoardIncomplete, board.Len())
	}
	cards := make([]ph.Card, 0, 7)
	for _, c := range append(Cards(hole[:]), board.Cards()...) {
		pc, err := toExternal(c)
		if err != nil {
			return "", err
		}
		cards = append(cards, pc)
	}
	return ph.Describe(cards)
}

func toExternal(c Card) (ph.Card, error) {
	r := ph.Rank(c.Rank)
	if c.Rank == Ace {
		r = 1
	}
	card, err := ph.MakeCard(ph.Suit(c.Suit), r)
	if err != nil {
		var zero ph.Card
		return zero, fmt.Errorf("convert card %s: %w", c, err)
	}
	return card, nil
}
