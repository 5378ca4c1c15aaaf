package game

import (
	"math/rand"
	"sync"
	"time"

	"holdem-service/internal/model"
	"holdem-service/pkg/utils/random"

	"gorm.io/gorm"
)

// SeatDirectory is the chip-holding side of a table. Every call runs
// inside the caller's transaction.
type SeatDirectory interface {
	SolventSeats(tx *gorm.DB, tableID int64) ([]model.Seat, error)
	Stacks(tx *gorm.DB, tableID int64) (map[int]int64, error)
	Debit(tx *gorm.DB, tableID int64, seatIndex int, amount int64) error
	Credit(tx *gorm.DB, tableID int64, seatIndex int, amount int64) error
}

type Config struct {
	TurnTimeout time.Duration
}

func defaultConfig() Config {
	return Config{
		TurnTimeout: 30 * time.Second,
	}
}

type Option func(*Service)

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		if cfg.TurnTimeout > 0 {
			s.cfg.TurnTimeout = cfg.TurnTimeout
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand replaces the per-hand shuffle source.
func WithRand(newRand func() *rand.Rand) Option {
	return func(s *Service) { s.newRand = newRand }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// Service runs hands: start, act, advance, tick, read.
type Service struct {
	db       *gorm.DB
	seats    SeatDirectory
	notifier Notifier
	cfg      Config
	now      func() time.Time
	newRand  func() *rand.Rand
	locks    *keyedMutex
}

func NewService(db *gorm.DB, seats SeatDirectory, opts ...Option) *Service {
	s := &Service{
		db:       db,
		seats:    seats,
		notifier: NewLocalNotifier(),
		cfg:      defaultConfig(),
		now:      func() time.Time { return time.Now().UTC() },
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(random.Seed()))
		},
		locks: newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Notifier() Notifier {
	return s.notifier
}

// keyedMutex serialises callers in this process per key. The row lock
// taken inside each transaction covers other processes.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
