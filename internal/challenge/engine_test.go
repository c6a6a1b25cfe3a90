package challenge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStorage is an in-memory Storage for engine tests: no locking, no
// concurrency, a single challenge keyed by ID.
type fakeStorage struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
}

func newFakeStorage(c *Challenge) *fakeStorage {
	return &fakeStorage{challenges: map[string]*Challenge{c.ID: c}}
}

func (f *fakeStorage) LoadForUpdate(ctx context.Context, id string) (*Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok {
		return nil, NewNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStorage) Save(ctx context.Context, c *Challenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.challenges[c.ID] = &cp
	return nil
}

// recordingBus captures every published event for assertions.
type recordingBus struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Type    string
	Payload any
}

func (b *recordingBus) Publish(ctx context.Context, eventType string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{Type: eventType, Payload: payload})
}

func (b *recordingBus) statusChanges() []ChallengeStatusChanged {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []ChallengeStatusChanged
	for _, e := range b.events {
		if e.Type == EventChallengeStatusChanged {
			out = append(out, e.Payload.(ChallengeStatusChanged))
		}
	}
	return out
}

func newTestChallenge() *Challenge {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &Challenge{
		ID:                      "c1",
		InitialBalance:          decimal.NewFromInt(10000),
		MaxDailyDrawdownPercent: decimal.NewFromInt(5),
		MaxTotalDrawdownPercent: decimal.NewFromInt(10),
		ProfitTargetPercent:     decimal.NewFromInt(10),
		CurrentEquity:           decimal.NewFromInt(10000),
		MaxEquityEver:           decimal.NewFromInt(10000),
		DailyStartEquity:        decimal.NewFromInt(10000),
		DailyMaxEquity:          decimal.NewFromInt(10000),
		DailyMinEquity:          decimal.NewFromInt(10000),
		CurrentDate:             start,
		Status:                  StatusPending,
		CreatedAt:               start,
	}
}

func tradeAt(challengeID string, pnl int64, at time.Time) TradeExecuted {
	return TradeExecuted{
		ChallengeID: challengeID,
		TradeID:     "t-" + at.String(),
		Symbol:      "EURUSD",
		Side:        SideBuy,
		Quantity:    decimal.NewFromInt(1),
		Price:       decimal.NewFromInt(1),
		RealizedPnL: decimal.NewFromInt(pnl),
		ExecutedAt:  at,
	}
}

// S1 - quiet profit keeps ACTIVE and activates on first trade.
func TestHandleTradeExecuted_S1_QuietProfitActivates(t *testing.T) {
	c := newTestChallenge()
	storage := newFakeStorage(c)
	bus := &recordingBus{}
	engine := NewEngine(storage, bus, nil, nil)

	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, engine.HandleTradeExecuted(context.Background(), tradeAt("c1", 200, at)))

	got, _ := storage.LoadForUpdate(context.Background(), "c1")
	assert.Equal(t, StatusActive, got.Status)
	assert.True(t, got.CurrentEquity.Equal(decimal.NewFromInt(10200)))
	assert.True(t, got.MaxEquityEver.Equal(decimal.NewFromInt(10200)))

	changes := bus.statusChanges()
	require.Len(t, changes, 1)
	assert.Equal(t, StatusPending, changes[0].OldStatus)
	assert.Equal(t, StatusActive, changes[0].NewStatus)
}

// S2 - daily drawdown trips first.
func TestHandleTradeExecuted_S2_DailyDrawdownTrips(t *testing.T) {
	c := newTestChallenge()
	c.Status = StatusActive
	storage := newFakeStorage(c)
	bus := &recordingBus{}
	engine := NewEngine(storage, bus, nil, nil)

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, engine.HandleTradeExecuted(context.Background(), tradeAt("c1", -600, at)))

	got, _ := storage.LoadForUpdate(context.Background(), "c1")
	assert.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.FailureReason)
	assert.Equal(t, FailureMaxDailyDrawdown, *got.FailureReason)
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.EndedAt.Equal(at))
	assert.True(t, got.CurrentEquity.Equal(decimal.NewFromInt(9400)))
}

// S3 - total drawdown trips after a peak. The daily limit is raised to 10%
// here: with 5%, the 1,200 loss is 7% of the day's 10,000 start and the
// higher-priority daily rule would fire first.
func TestHandleTradeExecuted_S3_TotalDrawdownAfterPeak(t *testing.T) {
	c := newTestChallenge()
	c.Status = StatusActive
	c.MaxDailyDrawdownPercent = decimal.NewFromInt(10)
	storage := newFakeStorage(c)
	bus := &recordingBus{}
	engine := NewEngine(storage, bus, nil, nil)

	t1 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, engine.HandleTradeExecuted(context.Background(), tradeAt("c1", 500, t1)))
	require.NoError(t, engine.HandleTradeExecuted(context.Background(), tradeAt("c1", -1200, t2)))

	got, _ := storage.LoadForUpdate(context.Background(), "c1")
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, FailureMaxTotalDrawdown, *got.FailureReason)
	assert.True(t, got.MaxEquityEver.Equal(decimal.NewFromInt(10500)))
	assert.True(t, got.CurrentEquity.Equal(decimal.NewFromInt(9300)))
}

// S4 - profit target reached.
func TestHandleTradeExecuted_S4_ProfitTargetFunds(t *testing.T) {
	c := newTestChallenge()
	c.Status = StatusActive
	storage := newFakeStorage(c)
	bus := &recordingBus{}
	engine := NewEngine(storage, bus, nil, nil)

	at := time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC)
	require.NoError(t, engine.HandleTradeExecuted(context.Background(), tradeAt("c1", 1000, at)))

	got, _ := storage.LoadForUpdate(context.Background(), "c1")
	assert.Equal(t, StatusFunded, got.Status)
	require.NotNil(t, got.FundedAt)
	assert.True(t, got.FundedAt.Equal(at))
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.EndedAt.Equal(at))
	assert.True(t, got.CurrentEquity.Equal(decimal.NewFromInt(11000)))
}

// S5 - post-terminal rejection.
func TestHandleTradeExecuted_S5_PostTerminalRejection(t *testing.T) {
	c := newTestChallenge()
	c.Status = StatusFailed
	storage := newFakeStorage(c)
	bus := &recordingBus{}
	engine := NewEngine(storage, bus, nil, nil)

	at := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)
	err := engine.HandleTradeExecuted(context.Background(), tradeAt("c1", 100, at))

	require.Error(t, err)
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeTradeRejected, ee.Code)

	got, _ := storage.LoadForUpdate(context.Background(), "c1")
	assert.Equal(t, StatusFailed, got.Status)
	assert.True(t, got.CurrentEquity.Equal(decimal.NewFromInt(10000)))
}

// S6 - daily reset across UTC midnight.
func TestHandleTradeExecuted_S6_DailyResetAcrossMidnight(t *testing.T) {
	c := newTestChallenge()
	c.Status = StatusActive
	storage := newFakeStorage(c)
	bus := &recordingBus{}
	engine := NewEngine(storage, bus, nil, nil)

	t1 := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, engine.HandleTradeExecuted(context.Background(), tradeAt("c1", 100, t1)))
	require.NoError(t, engine.HandleTradeExecuted(context.Background(), tradeAt("c1", 50, t2)))

	got, _ := storage.LoadForUpdate(context.Background(), "c1")
	assert.True(t, got.CurrentDate.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.True(t, got.DailyStartEquity.Equal(decimal.NewFromInt(10100)))
	assert.True(t, got.CurrentEquity.Equal(decimal.NewFromInt(10150)))
}

// S7 - equity floor on extreme loss.
func TestHandleTradeExecuted_S7_EquityFloorsAtZero(t *testing.T) {
	c := newTestChallenge()
	c.Status = StatusActive
	storage := newFakeStorage(c)
	bus := &recordingBus{}
	engine := NewEngine(storage, bus, nil, nil)

	at := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	require.NoError(t, engine.HandleTradeExecuted(context.Background(), tradeAt("c1", -1000000, at)))

	got, _ := storage.LoadForUpdate(context.Background(), "c1")
	assert.True(t, got.CurrentEquity.Equal(decimal.Zero))
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, FailureMaxDailyDrawdown, *got.FailureReason)
}

// S8 - simultaneous-timestamp trades. The day's minimum includes the
// day's starting equity of 10,000, which both trades stay above.
func TestHandleTradeExecuted_S8_SameTimestampTrades(t *testing.T) {
	c := newTestChallenge()
	c.Status = StatusActive
	storage := newFakeStorage(c)
	bus := &recordingBus{}
	engine := NewEngine(storage, bus, nil, nil)

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, engine.HandleTradeExecuted(context.Background(), tradeAt("c1", 300, at)))
	require.NoError(t, engine.HandleTradeExecuted(context.Background(), tradeAt("c1", -100, at)))

	got, _ := storage.LoadForUpdate(context.Background(), "c1")
	assert.True(t, got.DailyMaxEquity.Equal(decimal.NewFromInt(10300)))
	assert.True(t, got.DailyMinEquity.Equal(decimal.NewFromInt(10000)))
	assert.True(t, got.CurrentEquity.Equal(decimal.NewFromInt(10200)))
	assert.Equal(t, int64(2), got.TotalTrades)
}

func TestValidateStatusTransition_TerminalStatesAreFinal(t *testing.T) {
	for _, terminal := range []Status{StatusFailed, StatusFunded} {
		err := validateStatusTransition(terminal, StatusActive)
		assert.Error(t, err)
	}
}

func TestValidateStatusTransition_AllowedTransitions(t *testing.T) {
	assert.NoError(t, validateStatusTransition(StatusPending, StatusActive))
	assert.NoError(t, validateStatusTransition(StatusActive, StatusFailed))
	assert.NoError(t, validateStatusTransition(StatusActive, StatusFunded))
}
