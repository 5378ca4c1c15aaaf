package table

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"holdem-service/internal/model"
	appErr "holdem-service/pkg/errors"
	"holdem-service/pkg/logger"
	"holdem-service/pkg/utils/random"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MinSeats = 2
	MaxSeats = 10
)

// Service is the seat directory: who sits where with how many chips.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type CreateTableParams struct {
	Name       string
	SeatCount  int
	SmallBlind int64
	BigBlind   int64
}

type TableView struct {
	Table model.Table  `json:"table"`
	Seats []model.Seat `json:"seats"`
}

func (s *Service) CreateTable(ctx context.Context, params CreateTableParams) (*TableView, error) {
	if params.SeatCount < MinSeats || params.SeatCount > MaxSeats {
		return nil, fmt.Errorf("%w: seat count must be %d-%d", appErr.ErrInvalidTableConfig, MinSeats, MaxSeats)
	}
	if params.SmallBlind <= 0 || params.BigBlind < params.SmallBlind {
		return nil, fmt.Errorf("%w: blinds must satisfy 0 < small <= big", appErr.ErrInvalidTableConfig)
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = "T-" + random.Code(6)
	}

	view := &TableView{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		view.Table = model.Table{
			Name:       name,
			SeatCount:  params.SeatCount,
			SmallBlind: params.SmallBlind,
			BigBlind:   params.BigBlind,
			DealerSeat: -1,
			Status:     "open",
		}
		if err := tx.Create(&view.Table).Error; err != nil {
			return err
		}
		view.Seats = make([]model.Seat, params.SeatCount)
		for i := range view.Seats {
			view.Seats[i] = model.Seat{TableID: view.Table.ID, SeatIndex: i}
		}
		return tx.Create(&view.Seats).Error
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("table created",
		zap.Int64("tableID", view.Table.ID),
		zap.String("name", name),
		zap.Int("seats", params.SeatCount),
	)
	return view, nil
}

func (s *Service) ListTables(ctx context.Context) ([]model.Table, error) {
	var tables []model.Table
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&tables).Error; err != nil {
		return nil, err
	}
	return tables, nil
}

func (s *Service) GetTable(ctx context.Context, id int64) (*TableView, error) {
	var view TableView
	if err := s.db.WithContext(ctx).First(&view.Table, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrTableNotFound
		}
		return nil, err
	}
	if err := s.db.WithContext(ctx).
		Where("table_id = ?", id).
		Order("seat_index ASC").
		Find(&view.Seats).Error; err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *Service) SitDown(ctx context.Context, tableID int64, seatIndex int, playerName string, buyIn int64) (*model.Seat, error) {
	playerName = strings.TrimSpace(playerName)
	if playerName == "" || buyIn <= 0 {
		return nil, fmt.Errorf("%w: player name and positive buy-in required", appErr.ErrInvalidAmount)
	}

	var seat model.Seat
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockSeat(tx, tableID, seatIndex, &seat); err != nil {
			return err
		}
		if seat.Occupied() {
			return appErr.ErrSeatOccupied
		}
		seat.PlayerName = playerName
		seat.StackLive = buyIn
		seat.SatOut = false
		return tx.Save(&seat).Error
	})
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

// StandUp vacates a seat and returns the chips it held.
func (s *Service) StandUp(ctx context.Context, tableID int64, seatIndex int) (int64, error) {
	var cashOut int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seat model.Seat
		if err := lockSeat(tx, tableID, seatIndex, &seat); err != nil {
			return err
		}
		if !seat.Occupied() {
			return appErr.ErrSeatEmpty
		}
		busy, err := inActiveHand(tx, tableID, seatIndex)
		if err != nil {
			return err
		}
		if busy {
			return appErr.ErrHandInProgress
		}
		cashOut = seat.StackLive
		seat.PlayerName = ""
		seat.StackLive = 0
		seat.SatOut = false
		return tx.Save(&seat).Error
	})
	return cashOut, err
}

func (s *Service) SetSatOut(ctx context.Context, tableID int64, seatIndex int, satOut bool) error {
	result := s.db.WithContext(ctx).
		Model(&model.Seat{}).
		Where("table_id = ? AND seat_index = ? AND player_name <> ''", tableID, seatIndex).
		Update("sat_out", satOut)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return appErr.ErrSeatNotFound
	}
	return nil
}

// SolventSeats lists occupied, playing seats with chips, by seat index.
func (s *Service) SolventSeats(tx *gorm.DB, tableID int64) ([]model.Seat, error) {
	var seats []model.Seat
	err := tx.Where("table_id = ? AND player_name <> '' AND sat_out = ? AND stack_live > 0", tableID, false).
		Order("seat_index ASC").
		Find(&seats).Error
	return seats, err
}

func (s *Service) Stacks(tx *gorm.DB, tableID int64) (map[int]int64, error) {
	var seats []model.Seat
	if err := tx.Select("seat_index", "stack_live").
		Where("table_id = ?", tableID).
		Find(&seats).Error; err != nil {
		return nil, err
	}
	stacks := make(map[int]int64, len(seats))
	for _, seat := range seats {
		stacks[seat.SeatIndex] = seat.StackLive
	}
	return stacks, nil
}

// Debit never takes a stack below zero.
func (s *Service) Debit(tx *gorm.DB, tableID int64, seatIndex int, amount int64) error {
	if amount < 0 {
		return appErr.ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}
	result := tx.Model(&model.Seat{}).
		Where("table_id = ? AND seat_index = ? AND stack_live >= ?", tableID, seatIndex, amount).
		UpdateColumn("stack_live", gorm.Expr("stack_live - ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: seat %d cannot cover %d", appErr.ErrInsufficientStack, seatIndex, amount)
	}
	return nil
}

func (s *Service) Credit(tx *gorm.DB, tableID int64, seatIndex int, amount int64) error {
	if amount < 0 {
		return appErr.ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}
	result := tx.Model(&model.Seat{}).
		Where("table_id = ? AND seat_index = ?", tableID, seatIndex).
		UpdateColumn("stack_live", gorm.Expr("stack_live + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return appErr.ErrSeatNotFound
	}
	return nil
}

func lockSeat(tx *gorm.DB, tableID int64, seatIndex int, seat *model.Seat) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("table_id = ? AND seat_index = ?", tableID, seatIndex).
		First(seat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var count int64
		if cErr := tx.Model(&model.Table{}).Where("id = ?", tableID).Count(&count).Error; cErr != nil {
			return cErr
		}
		if count == 0 {
			return appErr.ErrTableNotFound
		}
		return appErr.ErrSeatNotFound
	}
	return err
}

func inActiveHand(tx *gorm.DB, tableID int64, seatIndex int) (bool, error) {
	var count int64
	err := tx.Model(&model.HandPlayer{}).
		Joins("JOIN hands ON hands.id = hand_players.hand_id").
		Where("hands.table_id = ? AND hands.stage <> ? AND hand_players.seat_index = ?", tableID, model.StageHandEnd, seatIndex).
		Count(&count).Error
	return count > 0, err
}
