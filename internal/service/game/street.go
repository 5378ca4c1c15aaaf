package game

import (
	"context"
	"fmt"

	"holdem-service/internal/model"
	"holdem-service/internal/poker"
	appErr "holdem-service/pkg/errors"
	"holdem-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AdvanceResult struct {
	HandID      int64        `json:"handId"`
	Stage       model.Stage  `json:"stage"`
	Board       poker.Board  `json:"board"`
	CurrentTurn *int         `json:"currentTurn"`
	Winners     []WinnerView `json:"winners,omitempty"`
	Pots        []PotView    `json:"pots,omitempty"`
}

// AdvanceStreet moves a settled round to the next stage: deals the flop,
// turn or river, or runs the showdown after the river.
func (s *Service) AdvanceStreet(ctx context.Context, handID int64) (*AdvanceResult, error) {
	unlock := s.locks.Lock(handKey(handID))
	defer unlock()

	var out *AdvanceResult
	var tableID int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, err := s.openHand(tx, handID)
		if err != nil {
			return err
		}
		tableID = book.hand.TableID
		if book.hand.Ended() {
			return appErr.ErrHandEnded
		}
		if book.hand.CurrentTurn != nil || !book.roundSettled() {
			return appErr.ErrRoundNotSettled
		}

		out, err = s.advanceLocked(book)
		if err != nil {
			return err
		}
		return book.save()
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, Event{HandID: handID, TableID: tableID, Kind: EventStreet, Stage: out.Stage})
	return out, nil
}

func (s *Service) advanceLocked(book *handBook) (*AdvanceResult, error) {
	hand := book.hand
	closeStreet(book)

	var next model.Stage
	var deal int
	switch hand.Stage {
	case model.StagePreflop:
		next, deal = model.StageFlop, 3
	case model.StageFlop:
		next, deal = model.StageTurn, 1
	case model.StageTurn:
		next, deal = model.StageRiver, 1
	case model.StageRiver:
		info, err := s.showdownLocked(book)
		if err != nil {
			return nil, err
		}
		return &AdvanceResult{
			HandID:  hand.ID,
			Stage:   hand.Stage,
			Board:   hand.Board,
			Winners: info.Winners,
			Pots:    info.Pots,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown stage %q", appErr.ErrInvalidAction, hand.Stage)
	}

	if err := dealBoard(hand, deal); err != nil {
		logger.Log.Error("deck invariant violated",
			zap.Int64("handID", hand.ID),
			zap.String("stage", string(hand.Stage)),
			zap.Error(err),
		)
		return nil, err
	}
	hand.Stage = next

	// first live seat after the button that can still act
	if seat, ok := book.nextActor(hand.DealerSeat); ok && !book.roundSettled() {
		book.setTurn(seat)
	} else {
		book.clearTurn()
	}

	logger.Log.Debug("street dealt",
		zap.Int64("handID", hand.ID),
		zap.String("stage", string(hand.Stage)),
		zap.String("board", hand.Board.String()),
	)
	return &AdvanceResult{
		HandID:      hand.ID,
		Stage:       hand.Stage,
		Board:       hand.Board,
		CurrentTurn: hand.CurrentTurn,
	}, nil
}

// closeStreet sweeps street bets into the pot and resets per-street state.
func closeStreet(book *handBook) {
	for _, p := range book.players {
		p.ContribTotal += p.BetStreet
		book.hand.PotTotal += p.BetStreet
		p.BetStreet = 0
		p.ActedStreet = false
	}
	book.hand.LastRaiseTo = 0
	book.hand.LastRaiseSize = 0
}

// dealBoard burns one card and turns n.
func dealBoard(hand *model.Hand, n int) error {
	if err := hand.Deck.Burn(); err != nil {
		return fmt.Errorf("hand %d burn: %w", hand.ID, err)
	}
	cards, err := hand.Deck.Draw(n)
	if err != nil {
		return fmt.Errorf("hand %d deal: %w", hand.ID, err)
	}
	return hand.Board.Add(cards...)
}

func handKey(handID int64) string {
	return fmt.Sprintf("hand:%d", handID)
}

func tableKey(tableID int64) string {
	return fmt.Sprintf("table:%d", tableID)
}
