package game

import (
	"errors"
	"fmt"
	"time"

	"holdem-service/internal/model"
	appErr "holdem-service/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// handBook is one locked hand loaded for a read-modify-write: the hand
// row, its players by seat index and the live stacks of their seats.
type handBook struct {
	tx      *gorm.DB
	seats   SeatDirectory
	hand    *model.Hand
	players []*model.HandPlayer
	stacks  map[int]int64
	now     time.Time
	timeout time.Duration
}

func (s *Service) openHand(tx *gorm.DB, handID int64) (*handBook, error) {
	var hand model.Hand
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&hand, handID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrHandNotFound
		}
		return nil, err
	}

	var players []*model.HandPlayer
	if err := tx.Where("hand_id = ?", hand.ID).
		Order("seat_index ASC").
		Find(&players).Error; err != nil {
		return nil, err
	}

	stacks, err := s.seats.Stacks(tx, hand.TableID)
	if err != nil {
		return nil, err
	}

	return &handBook{
		tx:      tx,
		seats:   s.seats,
		hand:    &hand,
		players: players,
		stacks:  stacks,
		now:     s.now(),
		timeout: s.cfg.TurnTimeout,
	}, nil
}

func (b *handBook) player(seat int) *model.HandPlayer {
	for _, p := range b.players {
		if p.SeatIndex == seat {
			return p
		}
	}
	return nil
}

func (b *handBook) stack(seat int) int64 {
	return b.stacks[seat]
}

func (b *handBook) maxBet() int64 {
	var max int64
	for _, p := range b.players {
		if p.BetStreet > max {
			max = p.BetStreet
		}
	}
	return max
}

func (b *handBook) toCall(p *model.HandPlayer) int64 {
	if owed := b.maxBet() - p.BetStreet; owed > 0 {
		return owed
	}
	return 0
}

func (b *handBook) minRaise() int64 {
	if b.hand.LastRaiseSize > 0 {
		return b.hand.LastRaiseSize
	}
	return b.hand.BigBlind
}

func (b *handBook) live() []*model.HandPlayer {
	out := make([]*model.HandPlayer, 0, len(b.players))
	for _, p := range b.players {
		if !p.Folded {
			out = append(out, p)
		}
	}
	return out
}

func (b *handBook) canAct(p *model.HandPlayer) bool {
	return !p.Folded && !p.AllIn && b.stack(p.SeatIndex) > 0
}

// roundSettled: nobody who can still act owes chips or has yet to act.
// A lone seat that can act and owes nothing has no one to bet against.
func (b *handBook) roundSettled() bool {
	if len(b.live()) == 0 {
		return true
	}
	max := b.maxBet()
	able := make([]*model.HandPlayer, 0, len(b.players))
	for _, p := range b.players {
		if b.canAct(p) {
			able = append(able, p)
		}
	}
	switch len(able) {
	case 0:
		return true
	case 1:
		if able[0].BetStreet >= max {
			return true
		}
	}
	for _, p := range able {
		if !p.ActedStreet || p.BetStreet != max {
			return false
		}
	}
	return true
}

// orderAfter lists players in seat order starting after seat, wrapping,
// with seat itself (if present) last.
func (b *handBook) orderAfter(seat int) []*model.HandPlayer {
	out := make([]*model.HandPlayer, 0, len(b.players))
	for _, p := range b.players {
		if p.SeatIndex > seat {
			out = append(out, p)
		}
	}
	for _, p := range b.players {
		if p.SeatIndex <= seat {
			out = append(out, p)
		}
	}
	return out
}

// nextActor is the first seat after the given one that can still act.
func (b *handBook) nextActor(after int) (int, bool) {
	for _, p := range b.orderAfter(after) {
		if b.canAct(p) {
			return p.SeatIndex, true
		}
	}
	return 0, false
}

func (b *handBook) setTurn(seat int) {
	deadline := b.now.Add(b.timeout)
	b.hand.CurrentTurn = &seat
	b.hand.TurnDeadline = &deadline
}

func (b *handBook) clearTurn() {
	b.hand.CurrentTurn = nil
	b.hand.TurnDeadline = nil
}

// commit moves chips from the seat's stack into its street bet.
func (b *handBook) commit(p *model.HandPlayer, amount int64) error {
	if amount <= 0 {
		return nil
	}
	if err := b.seats.Debit(b.tx, b.hand.TableID, p.SeatIndex, amount); err != nil {
		return err
	}
	b.stacks[p.SeatIndex] -= amount
	p.BetStreet += amount
	if b.stacks[p.SeatIndex] == 0 {
		p.AllIn = true
	}
	return nil
}

func (b *handBook) award(p *model.HandPlayer, amount int64) error {
	if amount <= 0 {
		return nil
	}
	if err := b.seats.Credit(b.tx, b.hand.TableID, p.SeatIndex, amount); err != nil {
		return err
	}
	b.stacks[p.SeatIndex] += amount
	p.WinAmount += amount
	return nil
}

func (b *handBook) logAction(seat int, kind string, amount int64, token string) (*model.Action, error) {
	action := &model.Action{
		HandID:    b.hand.ID,
		SeatIndex: seat,
		Kind:      kind,
		Amount:    amount,
		Stage:     b.hand.Stage,
		CreatedAt: b.now,
	}
	if token != "" {
		action.DedupToken = &token
	}
	if err := b.tx.Create(action).Error; err != nil {
		return nil, fmt.Errorf("log action: %w", err)
	}
	return action, nil
}

// save writes every player and bumps the hand's sequence number.
func (b *handBook) save() error {
	for _, p := range b.players {
		if err := b.tx.Save(p).Error; err != nil {
			return err
		}
	}
	b.hand.Seq++
	return b.tx.Save(b.hand).Error
}
