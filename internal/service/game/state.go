package game

import (
	"context"
	"errors"
	"time"

	"holdem-service/internal/model"
	"holdem-service/internal/poker"
	appErr "holdem-service/pkg/errors"

	"gorm.io/gorm"
)

type SeatView struct {
	SeatIndex    int         `json:"seatIndex"`
	PlayerName   string      `json:"playerName"`
	Stack        int64       `json:"stack"`
	StartStack   int64       `json:"startStack"`
	BetStreet    int64       `json:"betStreet"`
	ContribTotal int64       `json:"contribTotal"`
	Folded       bool        `json:"folded"`
	AllIn        bool        `json:"allIn"`
	ToCall       int64       `json:"toCall"`
	WinAmount    int64       `json:"winAmount"`
	Hole         poker.Cards `json:"hole,omitempty"`
	HandName     string      `json:"handName,omitempty"`
}

type ActionView struct {
	SeatIndex int         `json:"seatIndex"`
	Kind      string      `json:"kind"`
	Amount    int64       `json:"amount"`
	Stage     model.Stage `json:"stage"`
	At        int64       `json:"at"`
}

type HandState struct {
	HandID        int64        `json:"handId"`
	TableID       int64        `json:"tableId"`
	HandNo        int64        `json:"handNo"`
	Stage         model.Stage  `json:"stage"`
	Board         poker.Board  `json:"board"`
	PotTotal      int64        `json:"potTotal"`
	DealerSeat    int          `json:"dealerSeat"`
	SBSeat        int          `json:"sbSeat"`
	BBSeat        int          `json:"bbSeat"`
	SmallBlind    int64        `json:"smallBlind"`
	BigBlind      int64        `json:"bigBlind"`
	CurrentTurn   *int         `json:"currentTurn"`
	TurnDeadline  *time.Time   `json:"turnDeadline"`
	Countdown     int64        `json:"countdown"` // ms until the deadline
	MaxBet        int64        `json:"maxBet"`
	MinRaise      int64        `json:"minRaise"`
	LastRaiseTo   int64        `json:"lastRaiseTo"`
	Seats         []SeatView   `json:"seats"`
	Actions       []ActionView `json:"actions"`
	Pots          []PotView    `json:"pots,omitempty"`
	Seq           int64        `json:"seq"`
}

// GetState reads a hand without locking it. Hole cards are shown to the
// viewing seat, and for every live seat once a showdown has happened.
func (s *Service) GetState(ctx context.Context, handID int64, viewer *int) (*HandState, error) {
	db := s.db.WithContext(ctx)

	var hand model.Hand
	if err := db.First(&hand, handID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrHandNotFound
		}
		return nil, err
	}
	var players []*model.HandPlayer
	if err := db.Where("hand_id = ?", hand.ID).Order("seat_index ASC").Find(&players).Error; err != nil {
		return nil, err
	}
	stacks, err := s.seats.Stacks(db, hand.TableID)
	if err != nil {
		return nil, err
	}
	var actions []model.Action
	if err := db.Where("hand_id = ?", hand.ID).Order("id ASC").Find(&actions).Error; err != nil {
		return nil, err
	}

	book := &handBook{hand: &hand, players: players, stacks: stacks}
	state := &HandState{
		HandID:       hand.ID,
		TableID:      hand.TableID,
		HandNo:       hand.HandNo,
		Stage:        hand.Stage,
		Board:        hand.Board,
		PotTotal:     hand.PotTotal,
		DealerSeat:   hand.DealerSeat,
		SBSeat:       hand.SBSeat,
		BBSeat:       hand.BBSeat,
		SmallBlind:   hand.SmallBlind,
		BigBlind:     hand.BigBlind,
		CurrentTurn:  hand.CurrentTurn,
		TurnDeadline: hand.TurnDeadline,
		MaxBet:       book.maxBet(),
		MinRaise:     book.minRaise(),
		LastRaiseTo:  hand.LastRaiseTo,
		Seats:        make([]SeatView, 0, len(players)),
		Actions:      make([]ActionView, 0, len(actions)),
		Seq:          hand.Seq,
	}
	if hand.TurnDeadline != nil {
		if left := hand.TurnDeadline.Sub(s.now()); left > 0 {
			state.Countdown = left.Milliseconds()
		}
	}

	for _, p := range players {
		view := SeatView{
			SeatIndex:    p.SeatIndex,
			PlayerName:   p.PlayerName,
			Stack:        stacks[p.SeatIndex],
			StartStack:   p.StartStack,
			BetStreet:    p.BetStreet,
			ContribTotal: p.ContribTotal,
			Folded:       p.Folded,
			AllIn:        p.AllIn,
			WinAmount:    p.WinAmount,
			HandName:     p.HandName,
		}
		if !p.Folded && !hand.Ended() {
			view.ToCall = book.toCall(p)
		}
		shown := viewer != nil && *viewer == p.SeatIndex
		if hand.Ended() && !p.Folded && p.HandName != "" {
			shown = true
		}
		if shown && p.Hole[0].Valid() {
			view.Hole = poker.Cards(p.Hole[:])
		}
		state.Seats = append(state.Seats, view)
	}

	for _, a := range actions {
		state.Actions = append(state.Actions, ActionView{
			SeatIndex: a.SeatIndex,
			Kind:      a.Kind,
			Amount:    a.Amount,
			Stage:     a.Stage,
			At:        a.CreatedAt.UnixMilli(),
		})
	}

	if hand.Ended() {
		pots, err := s.loadPots(db, hand.ID)
		if err != nil {
			return nil, err
		}
		state.Pots = pots
	}
	return state, nil
}

func (s *Service) loadPots(db *gorm.DB, handID int64) ([]PotView, error) {
	var pots []model.Pot
	if err := db.Where("hand_id = ?", handID).Order("side_idx ASC").Find(&pots).Error; err != nil {
		return nil, err
	}
	var members []model.PotMember
	if err := db.Where("hand_id = ?", handID).Order("id ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	byPot := make(map[int64][]model.PotMember, len(pots))
	for _, m := range members {
		byPot[m.PotID] = append(byPot[m.PotID], m)
	}

	views := make([]PotView, 0, len(pots))
	for _, pot := range pots {
		view := PotView{
			SideIdx:  pot.SideIdx,
			Amount:   pot.Amount,
			Eligible: make([]int, 0),
			Winners:  make([]int, 0),
			Shares:   make([]int64, 0),
		}
		for _, m := range byPot[pot.ID] {
			view.Eligible = append(view.Eligible, m.SeatIndex)
			if m.Winner {
				view.Winners = append(view.Winners, m.SeatIndex)
				view.Shares = append(view.Shares, m.Share)
			}
		}
		views = append(views, view)
	}
	return views, nil
}

type HandSummary struct {
	HandID     int64       `json:"handId"`
	HandNo     int64       `json:"handNo"`
	Stage      model.Stage `json:"stage"`
	PotTotal   int64       `json:"potTotal"`
	DealerSeat int         `json:"dealerSeat"`
	EndedAt    *time.Time  `json:"endedAt,omitempty"`
}

// ListHands returns a table's most recent hands, newest first.
func (s *Service) ListHands(ctx context.Context, tableID int64, limit int) ([]HandSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var hands []model.Hand
	if err := s.db.WithContext(ctx).
		Select("id", "hand_no", "stage", "pot_total", "dealer_seat", "ended_at").
		Where("table_id = ?", tableID).
		Order("hand_no DESC").
		Limit(limit).
		Find(&hands).Error; err != nil {
		return nil, err
	}
	out := make([]HandSummary, 0, len(hands))
	for _, h := range hands {
		out = append(out, HandSummary{
			HandID:     h.ID,
			HandNo:     h.HandNo,
			Stage:      h.Stage,
			PotTotal:   h.PotTotal,
			DealerSeat: h.DealerSeat,
			EndedAt:    h.EndedAt,
		})
	}
	return out, nil
}
