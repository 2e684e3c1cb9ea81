package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goddeus/caixa-premiada-sub004/internal/catalog"
	"github.com/goddeus/caixa-premiada-sub004/internal/draw"
	"github.com/goddeus/caixa-premiada-sub004/internal/logger"
	"github.com/goddeus/caixa-premiada-sub004/internal/metrics"
	"github.com/goddeus/caixa-premiada-sub004/internal/user"
	"github.com/goddeus/caixa-premiada-sub004/internal/wallet"

	"github.com/jmoiron/sqlx"
)

// CatalogService supplies authoritative box prices and prize pools.
// Prices are always re-read here, never taken from the client.
type CatalogService interface {
	GetBoxWithPrizes(ctx context.Context, boxID int) (*catalog.BoxWithPrizes, error)
}

// Notifier is told about completed purchases after commit. Failures
// are the notifier's problem; the purchase result is already durable.
type Notifier interface {
	PurchaseCompleted(ctx context.Context, u *user.User, res *Result)
}

type Config struct {
	MaxBasketLines int
	MaxQtyPerLine  int
	TxTimeout      time.Duration
}

type Service interface {
	ProcessPurchase(ctx context.Context, in Input) (*Result, error)
	GetAudit(ctx context.Context, purchaseID string) (*Audit, error)
	ListAudits(ctx context.Context, userID, limit, offset int) ([]Audit, error)
}

type service struct {
	db       *sqlx.DB
	audits   Repository
	wallets  wallet.Repository
	boxes    CatalogService
	policy   draw.PoolPolicy
	src      draw.Source
	notifier Notifier
	cfg      Config
}

func NewService(
	db *sqlx.DB,
	audits Repository,
	wallets wallet.Repository,
	boxes CatalogService,
	policy draw.PoolPolicy,
	src draw.Source,
	notifier Notifier,
	cfg Config,
) Service {
	if policy == nil {
		policy = draw.FixedOddsPolicy{}
	}
	if src == nil {
		src = draw.NewSource()
	}
	return &service{
		db:       db,
		audits:   audits,
		wallets:  wallets,
		boxes:    boxes,
		policy:   policy,
		src:      src,
		notifier: notifier,
		cfg:      cfg,
	}
}

// boxPool pairs a box with the weighted pool its draws select from.
type boxPool struct {
	box  *catalog.BoxWithPrizes
	pool []catalog.Prize
}

// ProcessPurchase turns a validated purchase request into one atomic
// unit of work: debit, one draw per unit, credit, ledger rows, audit
// row. Replays of a completed purchase id return the original result
// without re-executing anything.
func (s *service) ProcessPurchase(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()

	if err := s.validate(in); err != nil {
		return nil, err
	}

	// Idempotency fast path: a completed audit answers the request
	// verbatim. Error-status rows do not block a retry.
	if prior, err := s.audits.GetAuditByPurchaseID(ctx, in.PurchaseID); err == nil {
		if prior.Status == StatusCompleted {
			metrics.RecordIdempotentReplay()
			return resultFromAudit(prior)
		}
	} else if !errors.Is(err, ErrAuditNotFound) {
		return nil, fmt.Errorf("idempotency lookup failed: %w", err)
	}

	// Authoritative catalog read, outside the transaction: the catalog
	// is read-only during a purchase. Pool emptiness is checked here,
	// before any balance mutation.
	pools, totalCost, err := s.loadBaskets(ctx, in)
	if err != nil {
		return nil, err
	}

	// Bounded transaction duration; exceeding the ceiling aborts and
	// releases the row lock instead of holding it indefinitely.
	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	res, u, execErr := s.execute(txCtx, in, pools, totalCost)
	if execErr != nil {
		if errors.Is(execErr, wallet.ErrInsufficientFunds) {
			metrics.RecordInsufficientFunds()
		}
		s.writeErrorAudit(in, u, execErr)
		metrics.RecordPurchase(StatusError, modeOf(u), time.Since(start).Seconds())
		return nil, execErr
	}

	metrics.RecordPurchase(StatusCompleted, u.AccountMode, time.Since(start).Seconds())
	metrics.RecordMoneyFlow(res.TotalDebitedCents, res.TotalCreditedCents)
	for _, o := range res.Outcomes {
		metrics.RecordBoxOpened(strconv.Itoa(o.BoxID))
	}

	if s.notifier != nil {
		s.notifier.PurchaseCompleted(ctx, u, res)
	}

	return res, nil
}

func (s *service) validate(in Input) error {
	if in.PurchaseID == "" || len(in.PurchaseID) > 64 {
		return fmt.Errorf("%w: purchase id must be 1-64 characters", ErrInvalidRequest)
	}
	if len(in.Basket) == 0 {
		return fmt.Errorf("%w: basket is empty", ErrInvalidRequest)
	}
	if len(in.Basket) > s.cfg.MaxBasketLines {
		return fmt.Errorf("%w: basket exceeds %d lines", ErrInvalidRequest, s.cfg.MaxBasketLines)
	}
	for _, line := range in.Basket {
		if line.BoxID <= 0 {
			return fmt.Errorf("%w: invalid box id %d", ErrInvalidRequest, line.BoxID)
		}
		if line.Quantity <= 0 || line.Quantity > s.cfg.MaxQtyPerLine {
			return fmt.Errorf("%w: quantity must be 1-%d", ErrInvalidRequest, s.cfg.MaxQtyPerLine)
		}
	}
	return nil
}

func (s *service) loadBaskets(ctx context.Context, in Input) (map[int]boxPool, int64, error) {
	pools := make(map[int]boxPool)
	var totalCost int64

	for _, line := range in.Basket {
		bp, ok := pools[line.BoxID]
		if !ok {
			box, err := s.boxes.GetBoxWithPrizes(ctx, line.BoxID)
			if err != nil {
				if errors.Is(err, catalog.ErrBoxNotFound) {
					return nil, 0, fmt.Errorf("%w: box %d not found", ErrInvalidRequest, line.BoxID)
				}
				return nil, 0, fmt.Errorf("catalog read failed: %w", err)
			}
			if !box.Active {
				return nil, 0, fmt.Errorf("%w: box %d", ErrInactiveResource, line.BoxID)
			}

			pool := s.policy.Pool(in.UserID, box.Prizes)
			if len(pool) == 0 {
				return nil, 0, fmt.Errorf("box %d: %w", line.BoxID, draw.ErrNoEligiblePrizes)
			}

			bp = boxPool{box: box, pool: pool}
			pools[line.BoxID] = bp
		}

		totalCost += bp.box.PriceCents * int64(line.Quantity)
	}

	return pools, totalCost, nil
}

// execute runs steps 4-9: everything between BEGIN and COMMIT.
func (s *service) execute(ctx context.Context, in Input, pools map[int]boxPool, totalCost int64) (*Result, *user.User, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	u, err := s.wallets.LockUser(ctx, tx, in.UserID)
	if err != nil {
		return nil, nil, err
	}
	if !u.Active {
		return nil, u, fmt.Errorf("%w: user %d", ErrInactiveResource, u.ID)
	}

	balanceBefore := u.LiveBalanceCents()

	units := 0
	for _, line := range in.Basket {
		units += line.Quantity
	}

	debitEntry := wallet.Entry{
		Type:        wallet.TypeBoxOpen,
		Description: fmt.Sprintf("open %d box unit(s)", units),
	}
	if units > 1 {
		debitEntry.Type = wallet.TypeBoxOpenBulk
	}
	if len(in.Basket) == 1 {
		boxID := in.Basket[0].BoxID
		debitEntry.BoxID = &boxID
	}

	if _, err := s.wallets.DebitTx(ctx, tx, u, totalCost, debitEntry); err != nil {
		return nil, u, err
	}

	// One draw per unit. The pool was eligibility-filtered before the
	// transaction opened; illustrative prizes cannot be selected.
	outcomes := make([]Outcome, 0, units)
	var totalCredit int64
	for _, line := range in.Basket {
		bp := pools[line.BoxID]
		for q := 0; q < line.Quantity; q++ {
			prize, err := draw.Pick(bp.pool, s.src)
			if err != nil {
				return nil, u, err
			}

			outcomes = append(outcomes, Outcome{
				BoxID:        line.BoxID,
				PrizeID:      prize.ID,
				PrizeName:    prize.Name,
				ValueCents:   prize.ValueCents,
				Illustrative: prize.Illustrative,
				Category:     string(prize.Category),
			})
			if !prize.Illustrative {
				totalCredit += prize.ValueCents
			}
		}
	}

	// Single aggregated credit; a zero total writes no ledger row.
	finalBalance, err := s.wallets.CreditTx(ctx, tx, u, totalCredit, wallet.Entry{
		Type:        wallet.TypePrizeCredit,
		Description: fmt.Sprintf("prizes won (%d unit(s))", units),
	})
	if err != nil {
		return nil, u, err
	}

	audit, err := buildAudit(in, u.AccountMode, totalCost, totalCredit, balanceBefore, finalBalance, outcomes)
	if err != nil {
		return nil, u, err
	}

	if err := s.audits.InsertCompletedTx(ctx, tx, audit); err != nil {
		if IsUniqueConflict(err) {
			// Lost the purchase-id race. Roll back our work and answer
			// from whatever the winner committed.
			tx.Rollback()
			return s.replayAfterConflict(ctx, in.PurchaseID, u)
		}
		return nil, u, err
	}

	if err := tx.Commit(); err != nil {
		return nil, u, fmt.Errorf("failed to commit purchase: %w", err)
	}

	return &Result{
		PurchaseID:         in.PurchaseID,
		TotalDebitedCents:  totalCost,
		TotalCreditedCents: totalCredit,
		FinalBalanceCents:  finalBalance,
		Outcomes:           outcomes,
	}, u, nil
}

// replayAfterConflict re-reads the audit the competing request wrote.
// ErrConcurrencyConflict surfaces only when the competitor failed too.
func (s *service) replayAfterConflict(ctx context.Context, purchaseID string, u *user.User) (*Result, *user.User, error) {
	prior, err := s.audits.GetAuditByPurchaseID(ctx, purchaseID)
	if err != nil {
		return nil, u, ErrConcurrencyConflict
	}
	if prior.Status != StatusCompleted {
		return nil, u, ErrConcurrencyConflict
	}

	metrics.RecordIdempotentReplay()
	res, err := resultFromAudit(prior)
	return res, u, err
}

// writeErrorAudit records the failed attempt outside the rolled-back
// transaction. Best effort: its own failure is logged, never allowed
// to mask the original error.
func (s *service) writeErrorAudit(in Input, u *user.User, cause error) {
	if errors.Is(cause, ErrConcurrencyConflict) {
		// the competing attempt owns the audit row
		return
	}

	detail := cause.Error()
	audit := &Audit{
		PurchaseID:  in.PurchaseID,
		UserID:      in.UserID,
		AccountMode: modeOf(u),
		ErrorDetail: &detail,
	}
	if in.SessionID != "" {
		sid := in.SessionID
		audit.SessionID = &sid
	}
	if u != nil {
		audit.BalanceBeforeCents = u.LiveBalanceCents()
	}
	if basket, err := json.Marshal(in.Basket); err == nil {
		audit.Basket = basket
	} else {
		audit.Basket = []byte("[]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.audits.InsertErrorAudit(ctx, audit); err != nil {
		logger.Error("failed to write error audit",
			"purchase_id", in.PurchaseID, "user_id", in.UserID, "error", err)
	}
}

func (s *service) GetAudit(ctx context.Context, purchaseID string) (*Audit, error) {
	return s.audits.GetAuditByPurchaseID(ctx, purchaseID)
}

func (s *service) ListAudits(ctx context.Context, userID, limit, offset int) ([]Audit, error) {
	return s.audits.ListAuditsByUser(ctx, userID, limit, offset)
}

func buildAudit(in Input, accountMode string, debited, credited, before, after int64, outcomes []Outcome) (*Audit, error) {
	basketJSON, err := json.Marshal(in.Basket)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize basket: %w", err)
	}
	outcomesJSON, err := json.Marshal(outcomes)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize outcomes: %w", err)
	}

	audit := &Audit{
		PurchaseID:         in.PurchaseID,
		UserID:             in.UserID,
		Basket:             basketJSON,
		TotalDebitedCents:  debited,
		TotalCreditedCents: credited,
		BalanceBeforeCents: before,
		BalanceAfterCents:  after,
		Status:             StatusCompleted,
		AccountMode:        accountMode,
		Outcomes:           outcomesJSON,
	}
	if in.SessionID != "" {
		sid := in.SessionID
		audit.SessionID = &sid
	}
	return audit, nil
}

// resultFromAudit rebuilds the original Result verbatim from the
// stored audit record.
func resultFromAudit(audit *Audit) (*Result, error) {
	var outcomes []Outcome
	if err := json.Unmarshal(audit.Outcomes, &outcomes); err != nil {
		return nil, fmt.Errorf("failed to deserialize stored outcomes: %w", err)
	}
	if outcomes == nil {
		outcomes = []Outcome{}
	}

	return &Result{
		PurchaseID:         audit.PurchaseID,
		TotalDebitedCents:  audit.TotalDebitedCents,
		TotalCreditedCents: audit.TotalCreditedCents,
		FinalBalanceCents:  audit.BalanceAfterCents,
		Outcomes:           outcomes,
	}, nil
}

func modeOf(u *user.User) string {
	if u == nil {
		return "unknown"
	}
	return u.AccountMode
}
