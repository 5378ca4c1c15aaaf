package game

import (
	"context"
	"errors"

	"holdem-service/internal/model"
	"holdem-service/internal/poker"
	appErr "holdem-service/pkg/errors"
	"holdem-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	ActionFold       = "fold"
	ActionCheck      = "check"
	ActionCall       = "call"
	ActionBet        = "bet"
	ActionRaise      = "raise"
	ActionAllIn      = "all_in"
	ActionAutoCheck  = "auto_check"
	ActionAutoFold   = "auto_fold"
	ActionSmallBlind = "small_blind"
	ActionBigBlind   = "big_blind"
)

type StartResult struct {
	HandID     int64 `json:"handId"`
	HandNo     int64 `json:"handNo"`
	DealerSeat int   `json:"dealerSeat"`
	SBSeat     int   `json:"sbSeat"`
	BBSeat     int   `json:"bbSeat"`
	SmallBlind int64 `json:"smallBlind"`
	BigBlind   int64 `json:"bigBlind"`
	// Existing is set when a hand was already running on the table.
	Existing bool `json:"existing"`
}

func startResult(h *model.Hand, existing bool) *StartResult {
	return &StartResult{
		HandID:     h.ID,
		HandNo:     h.HandNo,
		DealerSeat: h.DealerSeat,
		SBSeat:     h.SBSeat,
		BBSeat:     h.BBSeat,
		SmallBlind: h.SmallBlind,
		BigBlind:   h.BigBlind,
		Existing:   existing,
	}
}

// StartHand deals a new hand at the table: moves the button, deals hole
// cards, posts blinds and hands the turn to the first seat after the big
// blind. If a hand is already running, its identity is returned instead.
func (s *Service) StartHand(ctx context.Context, tableID int64) (*StartResult, error) {
	unlock := s.locks.Lock(tableKey(tableID))
	defer unlock()

	var out *StartResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var table model.Table
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&table, tableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErr.ErrTableNotFound
			}
			return err
		}

		var active model.Hand
		if err := tx.Where("table_id = ? AND stage <> ?", table.ID, model.StageHandEnd).
			Order("id DESC").
			Limit(1).
			Find(&active).Error; err != nil {
			return err
		}
		if active.ID != 0 {
			out = startResult(&active, true)
			return nil
		}

		seats, err := s.seats.SolventSeats(tx, table.ID)
		if err != nil {
			return err
		}
		if len(seats) < 2 {
			return appErr.ErrNeedMorePlayers
		}

		hand, err := s.dealLocked(tx, &table, seats)
		if err != nil {
			return err
		}
		out = startResult(hand, false)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !out.Existing {
		s.publish(ctx, Event{HandID: out.HandID, TableID: tableID, Kind: EventStart, Stage: model.StagePreflop})
		logger.Log.Info("hand started",
			zap.Int64("tableID", tableID),
			zap.Int64("handID", out.HandID),
			zap.Int64("handNo", out.HandNo),
			zap.Int("dealer", out.DealerSeat),
		)
	}
	return out, nil
}

func (s *Service) dealLocked(tx *gorm.DB, table *model.Table, seats []model.Seat) (*model.Hand, error) {
	order := rotateAfter(seats, table.DealerSeat)
	// order[0] is the new button
	dealer := order[0]
	sb, bb := order[1], order[2%len(order)]
	if len(order) == 2 {
		// heads-up: the button posts the small blind
		sb, bb = order[0], order[1]
	}

	deck := poker.NewShuffledDeck(s.newRand())
	hand := &model.Hand{
		TableID:    table.ID,
		HandNo:     table.HandCount + 1,
		Stage:      model.StagePreflop,
		DealerSeat: dealer.SeatIndex,
		SBSeat:     sb.SeatIndex,
		BBSeat:     bb.SeatIndex,
		SmallBlind: table.SmallBlind,
		BigBlind:   table.BigBlind,
		Deck:       deck,
	}
	if err := tx.Create(hand).Error; err != nil {
		return nil, err
	}

	// deal one card at a time starting left of the button
	dealOrder := append(append([]model.Seat{}, order[1:]...), order[0])
	holes := make(map[int]*poker.Hole, len(seats))
	for _, seat := range dealOrder {
		holes[seat.SeatIndex] = &poker.Hole{}
	}
	for round := 0; round < 2; round++ {
		for _, seat := range dealOrder {
			cards, err := hand.Deck.Draw(1)
			if err != nil {
				return nil, err
			}
			holes[seat.SeatIndex][round] = cards[0]
		}
	}

	players := make([]*model.HandPlayer, 0, len(seats))
	stacks := make(map[int]int64, len(seats))
	for _, seat := range seats {
		players = append(players, &model.HandPlayer{
			HandID:     hand.ID,
			SeatIndex:  seat.SeatIndex,
			PlayerName: seat.PlayerName,
			Hole:       *holes[seat.SeatIndex],
			StartStack: seat.StackLive,
		})
		stacks[seat.SeatIndex] = seat.StackLive
	}
	if err := tx.Create(&players).Error; err != nil {
		return nil, err
	}

	book := &handBook{
		tx:      tx,
		seats:   s.seats,
		hand:    hand,
		players: players,
		stacks:  stacks,
		now:     s.now(),
		timeout: s.cfg.TurnTimeout,
	}
	if err := postBlind(book, sb.SeatIndex, table.SmallBlind, ActionSmallBlind); err != nil {
		return nil, err
	}
	if err := postBlind(book, bb.SeatIndex, table.BigBlind, ActionBigBlind); err != nil {
		return nil, err
	}
	hand.LastRaiseTo = table.BigBlind
	hand.LastRaiseSize = table.BigBlind

	if seat, ok := book.nextActor(bb.SeatIndex); ok && !book.roundSettled() {
		book.setTurn(seat)
	}
	if err := book.save(); err != nil {
		return nil, err
	}

	table.DealerSeat = dealer.SeatIndex
	table.HandCount = hand.HandNo
	if err := tx.Save(table).Error; err != nil {
		return nil, err
	}
	return hand, nil
}

// postBlind posts up to the blind; a short stack goes all-in.
func postBlind(book *handBook, seat int, blind int64, kind string) error {
	p := book.player(seat)
	amount := blind
	if stack := book.stack(seat); stack < amount {
		amount = stack
	}
	if err := book.commit(p, amount); err != nil {
		return err
	}
	_, err := book.logAction(seat, kind, amount, "")
	return err
}

// rotateAfter orders seats starting with the first one after prev,
// wrapping. prev < 0 starts from the lowest seat.
func rotateAfter(seats []model.Seat, prev int) []model.Seat {
	start := 0
	for i, seat := range seats {
		if seat.SeatIndex > prev {
			start = i
			break
		}
	}
	out := make([]model.Seat, 0, len(seats))
	out = append(out, seats[start:]...)
	return append(out, seats[:start]...)
}
