package poker

import "math/rand"

const DeckSize = 52

// NewOrderedDeck returns the 52 cards grouped by suit, ranks ascending.
func NewOrderedDeck() Deck {
	d := make(Deck, 0, DeckSize)
	for s := Clubs; s <= Spades; s++ {
		for r := Two; r <= Ace; r++ {
			d = append(d, Card{Rank: r, Suit: s})
		}
	}
	return d
}

// NewShuffledDeck returns a uniformly permuted deck (Fisher-Yates).
func NewShuffledDeck(rng *rand.Rand) Deck {
	d := NewOrderedDeck()
	for i := len(d) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		d[i], d[j] = d[j], d[i]
	}
	return d
}
