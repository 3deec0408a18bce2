package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rcrowley/go-metrics"
	"github.com/shopspring/decimal"

	"github.com/Starzy87/stake-mines-backend/internal/engine"
	"github.com/Starzy87/stake-mines-backend/internal/fairness"
	"github.com/Starzy87/stake-mines-backend/internal/fault"
	"github.com/Starzy87/stake-mines-backend/internal/games"
)

// MaxClientSeedLength bounds the player supplied seed.
const MaxClientSeedLength = 128

// Config holds the game limits.
type Config struct {
	HouseEdge         decimal.Decimal
	MaxPayoutMultiple int64
	InitialBalance    int64
	MinBet            int64
	MaxBet            int64
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		HouseEdge:         games.DefaultHouseEdge,
		MaxPayoutMultiple: 10000,
		InitialBalance:    100000,
		MinBet:            1,
		MaxBet:            1000000,
	}
}

// BetRequest opens a round. Amount is in money units.
type BetRequest struct {
	Amount     int64
	Mines      int
	ClientSeed string
	Mode       string
}

// BetResult is returned by Open. ServerSeedHash commits to this round's
// seed; NextHash commits to the following one.
type BetResult struct {
	SessionID      string       `json:"session_id"`
	Balance        int64        `json:"balance"`
	Stake          int64        `json:"stake"`
	ServerSeedHash string       `json:"server_seed_hash"`
	NextHash       string       `json:"next_hash"`
	Nonce          uint64       `json:"nonce"`
	Mode           string       `json:"mode"`
	Ladder         games.Ladder `json:"ladder"`
}

// CashoutResult is returned by Cashout.
type CashoutResult struct {
	WinAmount       int64      `json:"win_amount"`
	FinalMultiplier int64      `json:"final_multiplier"`
	Balance         int64      `json:"balance"`
	Disclosure      Disclosure `json:"disclosure"`
}

// ActiveView is the client-safe view of a round in progress.
type ActiveView struct {
	SessionID      string       `json:"session_id"`
	Mode           string       `json:"mode"`
	Amount         int64        `json:"amount"`
	Stake          int64        `json:"stake"`
	Mines          int          `json:"mines"`
	Revealed       []int        `json:"revealed"`
	CurrentWin     int64        `json:"current_win"`
	Ladder         games.Ladder `json:"ladder"`
	Nonce          uint64       `json:"nonce"`
	ServerSeedHash string       `json:"server_seed_hash"`
	ClientSeed     string       `json:"client_seed"`
}

// Snapshot is the page-reload state of a player.
type Snapshot struct {
	Balance  int64       `json:"balance"`
	NextHash string      `json:"next_hash"`
	Nonce    uint64      `json:"nonce"`
	Active   *ActiveView `json:"active_game,omitempty"`
}

// Service runs rounds for many players. Work for one player is
// serialized; different players proceed in parallel.
type Service struct {
	cfg     Config
	store   Store
	modes   *Modes
	ladders map[int]games.Ladder
	locks   *keyedMutex

	archive Archive
	audit   Auditor
	entropy io.Reader
	logger  *log.Logger
	now     func() time.Time
	newID   func() string

	metrics serviceMetrics
}

type serviceMetrics struct {
	bets      metrics.Counter
	reveals   metrics.Counter
	busts     metrics.Counter
	cashouts  metrics.Counter
	wagered   metrics.Counter
	paid      metrics.Counter
	integrity metrics.Counter
	betTimer  metrics.Timer
}

func newServiceMetrics(r metrics.Registry) serviceMetrics {
	return serviceMetrics{
		bets:      metrics.GetOrRegisterCounter("mines.bets", r),
		reveals:   metrics.GetOrRegisterCounter("mines.reveals", r),
		busts:     metrics.GetOrRegisterCounter("mines.busts", r),
		cashouts:  metrics.GetOrRegisterCounter("mines.cashouts", r),
		wagered:   metrics.GetOrRegisterCounter("mines.wagered_units", r),
		paid:      metrics.GetOrRegisterCounter("mines.paid_units", r),
		integrity: metrics.GetOrRegisterCounter("mines.integrity_faults", r),
		betTimer:  metrics.GetOrRegisterTimer("mines.bet.latency", r),
	}
}

// Option configures a Service.
type Option func(*Service)

// WithArchive records finalized rounds in a.
func WithArchive(a Archive) Option { return func(s *Service) { s.archive = a } }

// WithAuditor sends finalized rounds and integrity faults to a.
func WithAuditor(a Auditor) Option { return func(s *Service) { s.audit = a } }

// WithEntropy replaces crypto/rand for seed generation.
func WithEntropy(r io.Reader) Option { return func(s *Service) { s.entropy = r } }

// WithLogger sets the operational logger.
func WithLogger(l *log.Logger) Option { return func(s *Service) { s.logger = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithRegistry registers the service metrics in r instead of the default
// registry.
func WithRegistry(r metrics.Registry) Option {
	return func(s *Service) { s.metrics = newServiceMetrics(r) }
}

// NewService builds a service over store and modes.
func NewService(store Store, modes *Modes, cfg Config, opts ...Option) (*Service, error) {
	if store == nil || modes == nil {
		return nil, errors.New("session: store and modes are required")
	}
	if cfg.MaxPayoutMultiple <= 0 {
		return nil, fmt.Errorf("session: max payout multiple must be positive, got %d", cfg.MaxPayoutMultiple)
	}
	if cfg.MinBet <= 0 || cfg.MaxBet < cfg.MinBet {
		return nil, fmt.Errorf("session: invalid bet limits [%d, %d]", cfg.MinBet, cfg.MaxBet)
	}

	ladders := make(map[int]games.Ladder, games.MaxMines)
	for m := games.MinMines; m <= games.MaxMines; m++ {
		l, err := games.ComputeLadder(m, cfg.HouseEdge)
		if err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
		ladders[m] = l
	}

	s := &Service{
		cfg:     cfg,
		store:   store,
		modes:   modes,
		ladders: ladders,
		locks:   newKeyedMutex(),
		logger:  log.New(io.Discard, "", 0),
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
		metrics: newServiceMetrics(metrics.DefaultRegistry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Modes returns the mode registry.
func (s *Service) Modes() *Modes { return s.modes }

// Ladder returns the ladder for mines.
func (s *Service) Ladder(mines int) (games.Ladder, error) {
	l, ok := s.ladders[mines]
	if !ok {
		return nil, fault.Validation("session.Ladder", fault.ErrMineCount)
	}
	return l, nil
}

func (s *Service) ensure(p *Player) error {
	if p.Initialized() {
		return nil
	}
	c, err := fairness.NewCommitment(s.entropy)
	if err != nil {
		return fault.New(fault.KindInternal, "session.ensure", err)
	}
	p.Seeds = *c
	p.Balance = s.cfg.InitialBalance
	return nil
}

func (s *Service) validateBet(req BetRequest) (*Mode, int64, error) {
	const op = "session.Open"

	if req.Amount < s.cfg.MinBet || req.Amount > s.cfg.MaxBet {
		return nil, 0, fault.Validation(op, fmt.Errorf("%w: %d not in [%d, %d]", fault.ErrBetAmount, req.Amount, s.cfg.MinBet, s.cfg.MaxBet))
	}
	if req.Mines < games.MinMines || req.Mines > games.MaxMines {
		return nil, 0, fault.Validation(op, fault.ErrMineCount)
	}
	seed := strings.TrimSpace(req.ClientSeed)
	if seed == "" || len(seed) > MaxClientSeedLength {
		return nil, 0, fault.Validation(op, fault.ErrClientSeed)
	}
	mode, err := s.modes.Get(req.Mode)
	if err != nil {
		return nil, 0, err
	}
	if mode.Book != nil && mode.Book.MineCount() != req.Mines {
		return nil, 0, fault.Validation(op, fmt.Errorf("%w: mode %q plays %d mines", fault.ErrMineCount, mode.Name, mode.Book.MineCount()))
	}

	stake := decimal.NewFromInt(req.Amount).Mul(mode.Cost).Floor().IntPart()
	if stake <= 0 {
		return nil, 0, fault.Validation(op, fmt.Errorf("%w: stake rounds to zero", fault.ErrBetAmount))
	}
	return mode, stake, nil
}

// Open places a bet and starts a round.
func (s *Service) Open(ctx context.Context, playerID string, req BetRequest) (*BetResult, error) {
	const op = "session.Open"
	start := s.now()

	mode, stake, err := s.validateBet(req)
	if err != nil {
		return nil, err
	}
	req.ClientSeed = strings.TrimSpace(req.ClientSeed)

	unlock := s.locks.Lock(playerID)
	defer unlock()

	var result *BetResult
	_, err = s.store.Update(ctx, playerID, func(p *Player) error {
		if err := s.ensure(p); err != nil {
			return err
		}
		if p.Session.Active() {
			return fault.Conflict(op, fault.ErrSessionActive)
		}
		if stake > p.Balance {
			return fault.New(fault.KindInsufficientBalance, op, fault.ErrInsufficientBalance)
		}

		round, err := p.Seeds.Rotate(s.entropy)
		if err != nil {
			return fault.New(fault.KindInternal, op, err)
		}

		sess, err := s.deal(mode, req, round)
		if err != nil {
			return err
		}
		sess.ID = s.newID()
		sess.Stake = stake
		sess.MaxPayout = MaxPayout(stake, s.cfg.MaxPayoutMultiple)
		sess.CreatedAt = s.now().UTC()

		p.Balance -= stake
		p.Session = sess

		result = &BetResult{
			SessionID:      sess.ID,
			Balance:        p.Balance,
			Stake:          stake,
			ServerSeedHash: round.ServerSeedHash,
			NextHash:       round.NextHash,
			Nonce:          round.Nonce,
			Mode:           mode.Name,
			Ladder:         sess.Ladder,
		}
		return nil
	})
	if err != nil {
		s.fail(playerID, op, err)
		return nil, err
	}

	s.metrics.bets.Inc(1)
	s.metrics.wagered.Inc(stake)
	s.metrics.betTimer.UpdateSince(start)
	s.logger.Printf("bet player=%s session=%s mode=%s stake=%d mines=%d nonce=%d hash=%.16s",
		playerID, result.SessionID, mode.Name, stake, req.Mines, result.Nonce, result.ServerSeedHash)
	return result, nil
}

// deal derives the board for round from one continuous stream draw.
func (s *Service) deal(mode *Mode, req BetRequest, round fairness.Round) (*Session, error) {
	floats := engine.Floats(round.ServerSeed, req.ClientSeed, round.Nonce, games.StreamLength)

	sess := &Session{
		Mode:       mode.Name,
		Source:     mode.Source,
		Amount:     req.Amount,
		MineCount:  req.Mines,
		Ladder:     s.ladders[req.Mines],
		Revealed:   []int{},
		Status:     StatusActive,
		Round:      round,
		ClientSeed: req.ClientSeed,
	}

	switch mode.Source {
	case SourceBook:
		book, err := mode.Book.Select(floats[0])
		if err != nil {
			return nil, err
		}
		sess.BookID = book.ID
		sess.Board = games.Board{Mines: append([]int(nil), book.Mines...)}
	default:
		board, err := games.GenerateBoard(floats, req.Mines, mode.Bonus)
		if err != nil {
			return nil, fault.New(fault.KindInternal, "session.deal", err)
		}
		sess.Board = board
	}
	return sess, nil
}

// Reveal opens tile in the player's active round.
func (s *Service) Reveal(ctx context.Context, playerID string, tile int) (*RevealResult, error) {
	const op = "session.Reveal"

	if tile < 0 || tile >= games.GridSize {
		return nil, fault.Validation(op, fault.ErrTileOutOfRange)
	}

	unlock := s.locks.Lock(playerID)
	defer unlock()

	var (
		result   RevealResult
		finished *Record
	)
	_, err := s.store.Update(ctx, playerID, func(p *Player) error {
		if !p.Session.Active() {
			return fault.Conflict(op, fault.ErrNoActiveSession)
		}
		res, err := p.Session.Reveal(tile, s.now().UTC())
		if err != nil {
			return err
		}
		result = res
		if !p.Session.Active() {
			rec := NewRecord(playerID, p.Session)
			finished = &rec
			p.Session = nil
		}
		return nil
	})
	if err != nil {
		s.fail(playerID, op, err)
		return nil, err
	}

	s.metrics.reveals.Inc(1)
	if finished != nil {
		s.metrics.busts.Inc(1)
		s.finish(ctx, *finished)
	}
	return &result, nil
}

// Cashout ends the player's active round and credits its current win.
func (s *Service) Cashout(ctx context.Context, playerID string) (*CashoutResult, error) {
	const op = "session.Cashout"

	unlock := s.locks.Lock(playerID)
	defer unlock()

	var (
		result CashoutResult
		rec    Record
	)
	_, err := s.store.Update(ctx, playerID, func(p *Player) error {
		if !p.Session.Active() {
			return fault.Conflict(op, fault.ErrNoActiveSession)
		}
		d, err := p.Session.Cashout(s.now().UTC())
		if err != nil {
			return err
		}
		p.Balance += p.Session.CurrentWin

		result = CashoutResult{
			WinAmount:       p.Session.CurrentWin,
			FinalMultiplier: Multiplier(p.Session.CurrentWin, p.Session.Amount),
			Balance:         p.Balance,
			Disclosure:      d,
		}
		rec = NewRecord(playerID, p.Session)
		p.Session = nil
		return nil
	})
	if err != nil {
		s.fail(playerID, op, err)
		return nil, err
	}

	s.metrics.cashouts.Inc(1)
	s.metrics.paid.Inc(result.WinAmount)
	s.finish(ctx, rec)
	return &result, nil
}

// Snapshot returns the player's balance, the published hash for the next
// round and the round in progress, if any.
func (s *Service) Snapshot(ctx context.Context, playerID string) (*Snapshot, error) {
	p, err := s.store.Get(ctx, playerID)
	if errors.Is(err, ErrPlayerNotFound) {
		unlock := s.locks.Lock(playerID)
		p, err = s.store.Update(ctx, playerID, s.ensure)
		unlock()
	}
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Balance:  p.Balance,
		NextHash: p.Seeds.NextHash,
		Nonce:    p.Seeds.Nonce,
	}
	if sess := p.Session; sess.Active() {
		snap.Active = &ActiveView{
			SessionID:      sess.ID,
			Mode:           sess.Mode,
			Amount:         sess.Amount,
			Stake:          sess.Stake,
			Mines:          sess.MineCount,
			Revealed:       append([]int(nil), sess.Revealed...),
			CurrentWin:     sess.CurrentWin,
			Ladder:         sess.Ladder,
			Nonce:          sess.Round.Nonce,
			ServerSeedHash: sess.Round.ServerSeedHash,
			ClientSeed:     sess.ClientSeed,
		}
	}
	return snap, nil
}

// History lists the player's finalized rounds, newest first.
func (s *Service) History(ctx context.Context, playerID string, limit int) ([]Record, error) {
	if s.archive == nil {
		return []Record{}, nil
	}
	return s.archive.History(ctx, playerID, limit)
}

func (s *Service) finish(ctx context.Context, rec Record) {
	s.logger.Printf("round player=%s session=%s status=%s stake=%d payout=%d nonce=%d",
		rec.PlayerID, rec.ID, rec.Status, rec.Stake, rec.Payout, rec.Nonce)
	if s.audit != nil {
		s.audit.Round(rec)
	}
	if s.archive != nil {
		if err := s.archive.Record(ctx, rec); err != nil {
			s.logger.Printf("archive failed session=%s err=%v", rec.ID, err)
		}
	}
}

func (s *Service) fail(playerID, op string, err error) {
	if !fault.Is(err, fault.KindIntegrity) {
		return
	}
	s.metrics.integrity.Inc(1)
	s.logger.Printf("integrity fault player=%s op=%s err=%v", playerID, op, err)
	if s.audit != nil {
		s.audit.Integrity(playerID, op, err)
	}
}
