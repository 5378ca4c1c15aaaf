package poker

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	appErr "holdem-service/pkg/errors"
)

type Suit uint8

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

type Rank uint8

const (
	Two   Rank = 2
	Three Rank = 3
	Four  Rank = 4
	Five  Rank = 5
	Six   Rank = 6
	Seven Rank = 7
	Eight Rank = 8
	Nine  Rank = 9
	Ten   Rank = 10
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
	Ace   Rank = 14
)

const (
	rankChars = "23456789TJQKA"
	suitChars = "cdhs"
)

// Card is a single playing card. The zero value is not a valid card.
type Card struct {
	Rank Rank
	Suit Suit
}

func NewCard(r Rank, s Suit) Card {
	return Card{Rank: r, Suit: s}
}

func (c Card) Valid() bool {
	return c.Rank >= Two && c.Rank <= Ace && c.Suit <= Spades
}

func (c Card) String() string {
	if !c.Valid() {
		return "??"
	}
	return string([]byte{rankChars[c.Rank-Two], suitChars[c.Suit]})
}

func (c Card) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid card %d/%d", c.Rank, c.Suit)
	}
	return []byte(c.String()), nil
}

func (c *Card) UnmarshalText(text []byte) error {
	parsed, err := ParseCard(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCard reads the two character form, e.g. "As" or "Td".
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	r := strings.IndexByte(rankChars, strings.ToUpper(s[:1])[0])
	u := strings.IndexByte(suitChars, strings.ToLower(s[1:])[0])
	if r < 0 || u < 0 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	return Card{Rank: Two + Rank(r), Suit: Suit(u)}, nil
}

// Cards is an ordered list of cards stored as space separated text.
type Cards []Card

func (cs Cards) String() string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

func ParseCards(s string) (Cards, error) {
	fields := strings.Fields(s)
	cards := make(Cards, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

func (Cards) GormDataType() string { return "text" }

func (cs Cards) Value() (driver.Value, error) {
	return cs.String(), nil
}

func (cs *Cards) Scan(src interface{}) error {
	raw, err := scanText(src)
	if err != nil {
		return err
	}
	parsed, err := ParseCards(raw)
	if err != nil {
		return err
	}
	*cs = parsed
	return nil
}

// Hole is a seat's two private cards.
type Hole [2]Card

func (h Hole) String() string {
	return Cards(h[:]).String()
}

func (Hole) GormDataType() string { return "text" }

func (h Hole) Value() (driver.Value, error) {
	if !h[0].Valid() {
		return "", nil
	}
	return h.String(), nil
}

func (h *Hole) Scan(src interface{}) error {
	raw, err := scanText(src)
	if err != nil {
		return err
	}
	cards, err := ParseCards(raw)
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		*h = Hole{}
		return nil
	}
	if len(cards) != 2 {
		return fmt.Errorf("hole needs 2 cards, got %d", len(cards))
	}
	*h = Hole{cards[0], cards[1]}
	return nil
}

// Board holds the community cards: 0, 3, 4 or 5 of them.
type Board struct {
	cards [5]Card
	n     int
}

func NewBoard(cards ...Card) (Board, error) {
	var b Board
	if err := b.Add(cards...); err != nil {
		return Board{}, err
	}
	return b, nil
}

func (b Board) Len() int { return b.n }

func (b Board) Cards() Cards {
	out := make(Cards, b.n)
	copy(out, b.cards[:b.n])
	return out
}

func (b *Board) Add(cards ...Card) error {
	if b.n+len(cards) > len(b.cards) {
		return fmt.Errorf("board overflow: have %d, adding %d", b.n, len(cards))
	}
	for _, c := range cards {
		b.cards[b.n] = c
		b.n++
	}
	return nil
}

func (b Board) String() string { return b.Cards().String() }

func (Board) GormDataType() string { return "text" }

func (b Board) Value() (driver.Value, error) {
	return b.String(), nil
}

func (b *Board) Scan(src interface{}) error {
	raw, err := scanText(src)
	if err != nil {
		return err
	}
	cards, err := ParseCards(raw)
	if err != nil {
		return err
	}
	*b = Board{}
	return b.Add(cards...)
}

func (b Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Cards())
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var cards Cards
	if err := json.Unmarshal(data, &cards); err != nil {
		return err
	}
	*b = Board{}
	return b.Add(cards...)
}

// Deck is the undealt remainder of a shuffled deck.
type Deck Cards

// Draw removes and returns the top n cards.
func (d *Deck) Draw(n int) (Cards, error) {
	if n > len(*d) {
		return nil, fmt.Errorf("%w: want %d, have %d", appErr.ErrDeckExhausted, n, len(*d))
	}
	out := make(Cards, n)
	copy(out, (*d)[:n])
	*d = (*d)[n:]
	return out, nil
}

// Burn discards the top card.
func (d *Deck) Burn() error {
	_, err := d.Draw(1)
	return err
}

func (Deck) GormDataType() string { return "text" }

func (d Deck) Value() (driver.Value, error) {
	return Cards(d).String(), nil
}

func (d *Deck) Scan(src interface{}) error {
	var cs Cards
	if err := cs.Scan(src); err != nil {
		return err
	}
	*d = Deck(cs)
	return nil
}

func scanText(src interface{}) (string, error) {
	switch v := src.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported card column type %T", src)
	}
}
