package purchase

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/goddeus/caixa-premiada-sub004/internal/catalog"
	"github.com/goddeus/caixa-premiada-sub004/internal/draw"
	"github.com/goddeus/caixa-premiada-sub004/internal/user"
	"github.com/goddeus/caixa-premiada-sub004/internal/wallet"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	values []float64
	pos    int
}

func (s *scriptedSource) Float64() float64 {
	v := s.values[s.pos%len(s.values)]
	s.pos++
	return v
}

// fakeWallets tracks balance mutations in memory, enforcing the same
// insufficient-funds rule the SQL repository does.
type fakeWallets struct {
	wallet.Repository

	user    user.User
	balance int64
	debits  []int64
	credits []int64
	entries []wallet.Entry
	lockErr error
}

func (f *fakeWallets) LockUser(ctx context.Context, tx *sqlx.Tx, userID int) (*user.User, error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	u := f.user
	u.ID = userID
	if u.AccountMode == user.ModeDemo {
		u.DemoBalanceCents = f.balance
	} else {
		u.RealBalanceCents = f.balance
	}
	return &u, nil
}

func (f *fakeWallets) DebitTx(ctx context.Context, tx *sqlx.Tx, u *user.User, amountCents int64, entry wallet.Entry) (int64, error) {
	if amountCents > f.balance {
		return 0, wallet.ErrInsufficientFunds
	}
	f.balance -= amountCents
	f.debits = append(f.debits, amountCents)
	f.entries = append(f.entries, entry)
	return f.balance, nil
}

func (f *fakeWallets) CreditTx(ctx context.Context, tx *sqlx.Tx, u *user.User, amountCents int64, entry wallet.Entry) (int64, error) {
	if amountCents > 0 {
		f.balance += amountCents
		f.credits = append(f.credits, amountCents)
		f.entries = append(f.entries, entry)
	}
	return f.balance, nil
}

type fakeCatalog struct {
	boxes map[int]*catalog.BoxWithPrizes
	reads int
}

func (f *fakeCatalog) GetBoxWithPrizes(ctx context.Context, boxID int) (*catalog.BoxWithPrizes, error) {
	f.reads++
	box, ok := f.boxes[boxID]
	if !ok {
		return nil, catalog.ErrBoxNotFound
	}
	return box, nil
}

// fakeAudits mirrors the SQL repository's conflict behavior: a second
// completed insert for the same purchase id surfaces sql.ErrNoRows.
type fakeAudits struct {
	records map[string]*Audit
	// missOnce makes the next lookup for an id miss, simulating a
	// competitor that commits between our fast-path check and insert.
	missOnce map[string]bool
}

func newFakeAudits() *fakeAudits {
	return &fakeAudits{records: make(map[string]*Audit), missOnce: make(map[string]bool)}
}

func (f *fakeAudits) GetAuditByPurchaseID(ctx context.Context, purchaseID string) (*Audit, error) {
	if f.missOnce[purchaseID] {
		delete(f.missOnce, purchaseID)
		return nil, ErrAuditNotFound
	}
	a, ok := f.records[purchaseID]
	if !ok {
		return nil, ErrAuditNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAudits) ListAuditsByUser(ctx context.Context, userID, limit, offset int) ([]Audit, error) {
	var out []Audit
	for _, a := range f.records {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAudits) InsertCompletedTx(ctx context.Context, tx *sqlx.Tx, audit *Audit) error {
	if prior, ok := f.records[audit.PurchaseID]; ok && prior.Status != StatusError {
		return sql.ErrNoRows
	}
	cp := *audit
	cp.Status = StatusCompleted
	cp.CreatedAt = time.Now()
	f.records[audit.PurchaseID] = &cp
	return nil
}

func (f *fakeAudits) InsertErrorAudit(ctx context.Context, audit *Audit) error {
	if _, ok := f.records[audit.PurchaseID]; ok {
		return nil
	}
	cp := *audit
	cp.Status = StatusError
	f.records[audit.PurchaseID] = &cp
	return nil
}

type recordingNotifier struct {
	results []*Result
}

func (n *recordingNotifier) PurchaseCompleted(ctx context.Context, u *user.User, res *Result) {
	n.results = append(n.results, res)
}

func cashBox(id int, priceCents int64, prizes ...catalog.Prize) *catalog.BoxWithPrizes {
	return &catalog.BoxWithPrizes{
		Box:    catalog.Box{ID: id, Name: "Test Box", PriceCents: priceCents, Active: true},
		Prizes: prizes,
	}
}

func prize(id int, valueCents int64, weight float64) catalog.Prize {
	cat := catalog.CategoryCash
	if valueCents == 0 {
		cat = catalog.CategoryNoWin
	}
	return catalog.Prize{ID: id, Name: "Prize", ValueCents: valueCents, Weight: weight, Active: true, Category: cat}
}

type fixture struct {
	svc      Service
	wallets  *fakeWallets
	audits   *fakeAudits
	boxes    *fakeCatalog
	notifier *recordingNotifier
	mock     sqlmock.Sqlmock
}

func newFixture(t *testing.T, balance int64, src draw.Source, boxes map[int]*catalog.BoxWithPrizes) *fixture {
	t.Helper()

	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := sqlx.NewDb(rawDB, "sqlmock")

	f := &fixture{
		wallets: &fakeWallets{
			user:    user.User{Email: "player@example.com", AccountMode: user.ModeNormal, Active: true},
			balance: balance,
		},
		audits:   newFakeAudits(),
		boxes:    &fakeCatalog{boxes: boxes},
		notifier: &recordingNotifier{},
		mock:     mock,
	}
	f.svc = NewService(db, f.audits, f.wallets, f.boxes, nil, src, f.notifier, Config{
		MaxBasketLines: 20,
		MaxQtyPerLine:  50,
		TxTimeout:      30 * time.Second,
	})
	return f
}

// Two units of a 4.00 box against a 10.00 balance: one 5.00 win and
// one no-win leaves 7.00, all inside a single transaction.
func TestProcessPurchase_BulkDebitAndAggregatedCredit(t *testing.T) {
	pool := []catalog.Prize{prize(1, 500, 0.25), prize(2, 0, 0.75)}
	f := newFixture(t, 1000, &scriptedSource{values: []float64{0.1, 0.9}}, map[int]*catalog.BoxWithPrizes{
		7: cashBox(7, 400, pool...),
	})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.svc.ProcessPurchase(context.Background(), Input{
		UserID:     42,
		PurchaseID: "purchase-1",
		Basket:     []BasketLine{{BoxID: 7, Quantity: 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(800), res.TotalDebitedCents)
	assert.Equal(t, int64(500), res.TotalCreditedCents)
	assert.Equal(t, int64(700), res.FinalBalanceCents)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, 1, res.Outcomes[0].PrizeID)
	assert.Equal(t, 2, res.Outcomes[1].PrizeID)

	// one debit, one aggregated credit
	assert.Equal(t, []int64{800}, f.wallets.debits)
	assert.Equal(t, []int64{500}, f.wallets.credits)
	assert.Equal(t, wallet.TypeBoxOpenBulk, f.wallets.entries[0].Type)
	assert.Equal(t, wallet.TypePrizeCredit, f.wallets.entries[1].Type)

	audit, err := f.audits.GetAuditByPurchaseID(context.Background(), "purchase-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, audit.Status)
	assert.Equal(t, int64(1000), audit.BalanceBeforeCents)
	assert.Equal(t, int64(700), audit.BalanceAfterCents)

	require.Len(t, f.notifier.results, 1)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestProcessPurchase_SingleUnitUsesBoxOpenType(t *testing.T) {
	f := newFixture(t, 1000, &scriptedSource{values: []float64{0.5}}, map[int]*catalog.BoxWithPrizes{
		7: cashBox(7, 400, prize(1, 0, 1.0)),
	})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.svc.ProcessPurchase(context.Background(), Input{
		UserID:     42,
		PurchaseID: "purchase-single",
		Basket:     []BasketLine{{BoxID: 7, Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, wallet.TypeBoxOpen, f.wallets.entries[0].Type)
	require.NotNil(t, f.wallets.entries[0].BoxID)
	assert.Equal(t, 7, *f.wallets.entries[0].BoxID)

	// no-win credits nothing and writes no credit ledger row
	assert.Empty(t, f.wallets.credits)
	assert.Equal(t, int64(0), res.TotalCreditedCents)
	assert.Equal(t, int64(600), res.FinalBalanceCents)
}

func TestProcessPurchase_IdempotentReplay(t *testing.T) {
	f := newFixture(t, 1000, &scriptedSource{values: []float64{0.1}}, map[int]*catalog.BoxWithPrizes{
		7: cashBox(7, 400, prize(1, 500, 0.25), prize(2, 0, 0.75)),
	})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	in := Input{UserID: 42, PurchaseID: "purchase-replay", Basket: []BasketLine{{BoxID: 7, Quantity: 1}}}

	first, err := f.svc.ProcessPurchase(context.Background(), in)
	require.NoError(t, err)

	// No further tx expectations: the replay must not open one.
	second, err := f.svc.ProcessPurchase(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []int64{400}, f.wallets.debits, "replay must not debit again")
	assert.Equal(t, 1, f.boxes.reads, "replay must not re-read the catalog")
}

func TestProcessPurchase_InsufficientFunds(t *testing.T) {
	f := newFixture(t, 300, &scriptedSource{values: []float64{0.1}}, map[int]*catalog.BoxWithPrizes{
		7: cashBox(7, 400, prize(1, 500, 1.0)),
	})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.ProcessPurchase(context.Background(), Input{
		UserID:     42,
		PurchaseID: "purchase-poor",
		Basket:     []BasketLine{{BoxID: 7, Quantity: 1}},
	})
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)
	assert.Equal(t, int64(300), f.wallets.balance, "balance must be untouched")

	audit, err := f.audits.GetAuditByPurchaseID(context.Background(), "purchase-poor")
	require.NoError(t, err)
	assert.Equal(t, StatusError, audit.Status)
	require.NotNil(t, audit.ErrorDetail)
	assert.Contains(t, *audit.ErrorDetail, "insufficient")
}

func TestProcessPurchase_ErrorAuditDoesNotBlockRetry(t *testing.T) {
	f := newFixture(t, 300, &scriptedSource{values: []float64{0.1}}, map[int]*catalog.BoxWithPrizes{
		7: cashBox(7, 400, prize(1, 0, 1.0)),
	})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	in := Input{UserID: 42, PurchaseID: "purchase-retry", Basket: []BasketLine{{BoxID: 7, Quantity: 1}}}

	_, err := f.svc.ProcessPurchase(context.Background(), in)
	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	// funds arrive, same purchase id retried
	f.wallets.balance = 1000
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.svc.ProcessPurchase(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(400), res.TotalDebitedCents)

	audit, err := f.audits.GetAuditByPurchaseID(context.Background(), "purchase-retry")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, audit.Status)
}

func TestProcessPurchase_ValidationRejectsBeforeAnyWork(t *testing.T) {
	f := newFixture(t, 1000, &scriptedSource{values: []float64{0.1}}, map[int]*catalog.BoxWithPrizes{})

	cases := []struct {
		name string
		in   Input
	}{
		{"empty basket", Input{UserID: 1, PurchaseID: "p", Basket: nil}},
		{"missing purchase id", Input{UserID: 1, Basket: []BasketLine{{BoxID: 1, Quantity: 1}}}},
		{"zero quantity", Input{UserID: 1, PurchaseID: "p", Basket: []BasketLine{{BoxID: 1, Quantity: 0}}}},
		{"quantity over cap", Input{UserID: 1, PurchaseID: "p", Basket: []BasketLine{{BoxID: 1, Quantity: 51}}}},
		{"negative box id", Input{UserID: 1, PurchaseID: "p", Basket: []BasketLine{{BoxID: -1, Quantity: 1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.ProcessPurchase(context.Background(), tc.in)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	over := make([]BasketLine, 21)
	for i := range over {
		over[i] = BasketLine{BoxID: i + 1, Quantity: 1}
	}
	_, err := f.svc.ProcessPurchase(context.Background(), Input{UserID: 1, PurchaseID: "p", Basket: over})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	assert.Equal(t, 0, f.boxes.reads)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestProcessPurchase_UnknownBox(t *testing.T) {
	f := newFixture(t, 1000, &scriptedSource{values: []float64{0.1}}, map[int]*catalog.BoxWithPrizes{})

	_, err := f.svc.ProcessPurchase(context.Background(), Input{
		UserID:     42,
		PurchaseID: "purchase-nobox",
		Basket:     []BasketLine{{BoxID: 99, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestProcessPurchase_InactiveBox(t *testing.T) {
	box := cashBox(7, 400, prize(1, 0, 1.0))
	box.Active = false
	f := newFixture(t, 1000, &scriptedSource{values: []float64{0.1}}, map[int]*catalog.BoxWithPrizes{7: box})

	_, err := f.svc.ProcessPurchase(context.Background(), Input{
		UserID:     42,
		PurchaseID: "purchase-inactive",
		Basket:     []BasketLine{{BoxID: 7, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrInactiveResource)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

// A box whose pool is empty after eligibility filtering must abort
// before the transaction opens.
func TestProcessPurchase_EmptyPoolAbortsBeforeDebit(t *testing.T) {
	illustrative := prize(1, 100000, 0.5)
	illustrative.Illustrative = true
	inactive := prize(2, 500, 0.5)
	inactive.Active = false

	f := newFixture(t, 1000, &scriptedSource{values: []float64{0.1}}, map[int]*catalog.BoxWithPrizes{
		7: cashBox(7, 400, illustrative, inactive),
	})

	_, err := f.svc.ProcessPurchase(context.Background(), Input{
		UserID:     42,
		PurchaseID: "purchase-empty",
		Basket:     []BasketLine{{BoxID: 7, Quantity: 1}},
	})
	assert.ErrorIs(t, err, draw.ErrNoEligiblePrizes)
	assert.Empty(t, f.wallets.debits)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestProcessPurchase_InactiveUser(t *testing.T) {
	f := newFixture(t, 1000, &scriptedSource{values: []float64{0.1}}, map[int]*catalog.BoxWithPrizes{
		7: cashBox(7, 400, prize(1, 0, 1.0)),
	})
	f.wallets.user.Active = false
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.ProcessPurchase(context.Background(), Input{
		UserID:     42,
		PurchaseID: "purchase-deactivated",
		Basket:     []BasketLine{{BoxID: 7, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrInactiveResource)
	assert.Empty(t, f.wallets.debits)
}

func TestProcessPurchase_DemoModeDebitsDemoBalance(t *testing.T) {
	f := newFixture(t, 1000, &scriptedSource{values: []float64{0.1}}, map[int]*catalog.BoxWithPrizes{
		7: cashBox(7, 400, prize(1, 500, 1.0)),
	})
	f.wallets.user.AccountMode = user.ModeDemo
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.svc.ProcessPurchase(context.Background(), Input{
		UserID:     42,
		PurchaseID: "purchase-demo",
		Basket:     []BasketLine{{BoxID: 7, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1100), res.FinalBalanceCents)

	audit, err := f.audits.GetAuditByPurchaseID(context.Background(), "purchase-demo")
	require.NoError(t, err)
	assert.Equal(t, user.ModeDemo, audit.AccountMode)
}

// Losing the purchase-id insert race rolls back and answers from the
// winner's committed audit.
func TestProcessPurchase_ConflictReplaysWinner(t *testing.T) {
	f := newFixture(t, 1000, &scriptedSource{values: []float64{0.1}}, map[int]*catalog.BoxWithPrizes{
		7: cashBox(7, 400, prize(1, 500, 1.0)),
	})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	winner := &Result{
		PurchaseID:         "purchase-race",
		TotalDebitedCents:  400,
		TotalCreditedCents: 500,
		FinalBalanceCents:  1100,
		Outcomes:           []Outcome{{BoxID: 7, PrizeID: 1, PrizeName: "Prize", ValueCents: 500, Category: "cash"}},
	}
	outcomesJSON, err := json.Marshal(winner.Outcomes)
	require.NoError(t, err)
	f.audits.records["purchase-race"] = &Audit{
		PurchaseID:         "purchase-race",
		UserID:             42,
		Status:             StatusCompleted,
		TotalDebitedCents:  400,
		TotalCreditedCents: 500,
		BalanceBeforeCents: 1000,
		BalanceAfterCents:  1100,
		AccountMode:        user.ModeNormal,
		Outcomes:           outcomesJSON,
	}
	f.audits.missOnce["purchase-race"] = true

	res, err := f.svc.ProcessPurchase(context.Background(), Input{
		UserID:     42,
		PurchaseID: "purchase-race",
		Basket:     []BasketLine{{BoxID: 7, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, winner, res)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestProcessPurchase_FastPathReplaysCompletedAudit(t *testing.T) {
	f := newFixture(t, 1000, &scriptedSource{values: []float64{0.1}}, map[int]*catalog.BoxWithPrizes{
		7: cashBox(7, 400, prize(1, 500, 1.0)),
	})

	outcomesJSON, err := json.Marshal([]Outcome{{BoxID: 7, PrizeID: 1, PrizeName: "Prize", ValueCents: 500, Category: "cash"}})
	require.NoError(t, err)
	f.audits.records["purchase-done"] = &Audit{
		PurchaseID:         "purchase-done",
		UserID:             42,
		Status:             StatusCompleted,
		TotalDebitedCents:  400,
		TotalCreditedCents: 500,
		BalanceBeforeCents: 1000,
		BalanceAfterCents:  1100,
		AccountMode:        user.ModeNormal,
		Outcomes:           outcomesJSON,
	}

	res, err := f.svc.ProcessPurchase(context.Background(), Input{
		UserID:     42,
		PurchaseID: "purchase-done",
		Basket:     []BasketLine{{BoxID: 7, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1100), res.FinalBalanceCents)
	assert.Empty(t, f.wallets.debits, "fast path must not touch the wallet")
	assert.Equal(t, 0, f.boxes.reads, "fast path must not read the catalog")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestProcessPurchase_RepeatedBoxLinesLoadCatalogOnce(t *testing.T) {
	f := newFixture(t, 10000, &scriptedSource{values: []float64{0.5}}, map[int]*catalog.BoxWithPrizes{
		7: cashBox(7, 400, prize(1, 0, 1.0)),
	})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.svc.ProcessPurchase(context.Background(), Input{
		UserID:     42,
		PurchaseID: "purchase-lines",
		Basket:     []BasketLine{{BoxID: 7, Quantity: 2}, {BoxID: 7, Quantity: 3}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.boxes.reads)
	assert.Equal(t, int64(2000), res.TotalDebitedCents)
	assert.Len(t, res.Outcomes, 5)
}
