package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arenaquadra/bet-engine/internal/betting/market"
	"github.com/arenaquadra/bet-engine/internal/betting/pool"
	"github.com/arenaquadra/bet-engine/internal/betting/repo"
	"github.com/arenaquadra/bet-engine/pkg/contracts/events"
)

const testAdminToken = "supersecreto"

// fakeLedger implementa Ledger com campos de função; método sem stub devolve
// ErrNotFound pra pegar handler chamando operação inesperada.
type fakeLedger struct {
	createMarket       func(ctx context.Context, scheduleID, p1, p2 string, enabled bool, startsAt *time.Time) (*repo.Market, bool, error)
	getMarket          func(ctx context.Context, id string) (*repo.Market, error)
	getMarketBySched   func(ctx context.Context, scheduleID string) (*repo.Market, error)
	listMarkets        func(ctx context.Context) ([]repo.MarketSummary, error)
	poolSnapshot       func(ctx context.Context, id string) (*repo.MarketSummary, error)
	setBettingEnabled  func(ctx context.Context, id string, enabled bool) (*repo.Market, error)
	markLive           func(ctx context.Context, id string) (*repo.Market, error)
	placeBet           func(ctx context.Context, p repo.PlaceBetParams) (*repo.Bet, bool, error)
	getBet             func(ctx context.Context, betID string) (*repo.Bet, error)
	cancelBet          func(ctx context.Context, betID, userID string) (*repo.RefundOrder, error)
	betsByUser         func(ctx context.Context, userID string) ([]repo.UserBet, error)
	settleMarket       func(ctx context.Context, id, winner, score string) (*repo.SettlementResult, error)
	cancelMarket       func(ctx context.Context, id string) (*repo.Market, []repo.RefundOrder, error)
	report             func(ctx context.Context) (*repo.Report, error)
	matchReport        func(ctx context.Context, id string) (*repo.MatchReport, error)
	matchResult        func(ctx context.Context, id string) (*repo.MatchResult, error)
	retryFailedRefunds func(ctx context.Context, id string) (int64, error)
}

func (f *fakeLedger) CreateMarket(ctx context.Context, scheduleID, p1, p2 string, enabled bool, startsAt *time.Time) (*repo.Market, bool, error) {
	if f.createMarket == nil {
		return nil, false, market.ErrNotFound
	}
	return f.createMarket(ctx, scheduleID, p1, p2, enabled, startsAt)
}

func (f *fakeLedger) GetMarket(ctx context.Context, id string) (*repo.Market, error) {
	if f.getMarket == nil {
		return nil, market.ErrNotFound
	}
	return f.getMarket(ctx, id)
}

func (f *fakeLedger) GetMarketBySchedule(ctx context.Context, scheduleID string) (*repo.Market, error) {
	if f.getMarketBySched == nil {
		return nil, market.ErrNotFound
	}
	return f.getMarketBySched(ctx, scheduleID)
}

func (f *fakeLedger) ListMarkets(ctx context.Context) ([]repo.MarketSummary, error) {
	if f.listMarkets == nil {
		return nil, market.ErrNotFound
	}
	return f.listMarkets(ctx)
}

func (f *fakeLedger) PoolSnapshot(ctx context.Context, id string) (*repo.MarketSummary, error) {
	if f.poolSnapshot == nil {
		return nil, market.ErrNotFound
	}
	return f.poolSnapshot(ctx, id)
}

func (f *fakeLedger) SetBettingEnabled(ctx context.Context, id string, enabled bool) (*repo.Market, error) {
	if f.setBettingEnabled == nil {
		return nil, market.ErrNotFound
	}
	return f.setBettingEnabled(ctx, id, enabled)
}

func (f *fakeLedger) MarkLive(ctx context.Context, id string) (*repo.Market, error) {
	if f.markLive == nil {
		return nil, market.ErrNotFound
	}
	return f.markLive(ctx, id)
}

func (f *fakeLedger) PlaceBet(ctx context.Context, p repo.PlaceBetParams) (*repo.Bet, bool, error) {
	if f.placeBet == nil {
		return nil, false, market.ErrNotFound
	}
	return f.placeBet(ctx, p)
}

func (f *fakeLedger) GetBet(ctx context.Context, betID string) (*repo.Bet, error) {
	if f.getBet == nil {
		return nil, market.ErrNotFound
	}
	return f.getBet(ctx, betID)
}

func (f *fakeLedger) CancelBet(ctx context.Context, betID, userID string) (*repo.RefundOrder, error) {
	if f.cancelBet == nil {
		return nil, market.ErrNotFound
	}
	return f.cancelBet(ctx, betID, userID)
}

func (f *fakeLedger) BetsByUser(ctx context.Context, userID string) ([]repo.UserBet, error) {
	if f.betsByUser == nil {
		return nil, market.ErrNotFound
	}
	return f.betsByUser(ctx, userID)
}

func (f *fakeLedger) SettleMarket(ctx context.Context, id, winner, score string) (*repo.SettlementResult, error) {
	if f.settleMarket == nil {
		return nil, market.ErrNotFound
	}
	return f.settleMarket(ctx, id, winner, score)
}

func (f *fakeLedger) CancelMarket(ctx context.Context, id string) (*repo.Market, []repo.RefundOrder, error) {
	if f.cancelMarket == nil {
		return nil, nil, market.ErrNotFound
	}
	return f.cancelMarket(ctx, id)
}

func (f *fakeLedger) Report(ctx context.Context) (*repo.Report, error) {
	if f.report == nil {
		return nil, market.ErrNotFound
	}
	return f.report(ctx)
}

func (f *fakeLedger) MatchReport(ctx context.Context, id string) (*repo.MatchReport, error) {
	if f.matchReport == nil {
		return nil, market.ErrNotFound
	}
	return f.matchReport(ctx, id)
}

func (f *fakeLedger) MatchResult(ctx context.Context, id string) (*repo.MatchResult, error) {
	if f.matchResult == nil {
		return nil, market.ErrNotFound
	}
	return f.matchResult(ctx, id)
}

func (f *fakeLedger) RetryFailedRefunds(ctx context.Context, id string) (int64, error) {
	if f.retryFailedRefunds == nil {
		return 0, market.ErrNotFound
	}
	return f.retryFailedRefunds(ctx, id)
}

type fakeGateway struct {
	confirmed bool
	err       error
}

func (f *fakeGateway) ConfirmCapture(_ context.Context, _ string) (bool, error) {
	return f.confirmed, f.err
}

// fakePublisher acumula os eventos emitidos pelos handlers
type fakePublisher struct {
	betPlaced       []events.BetPlaced
	matchSettled    []events.MatchSettled
	matchCancelled  []events.MatchCancelled
	refundRequested []events.RefundRequested
}

func (f *fakePublisher) PublishBetPlaced(_ context.Context, e events.BetPlaced) error {
	f.betPlaced = append(f.betPlaced, e)
	return nil
}

func (f *fakePublisher) PublishMatchSettled(_ context.Context, e events.MatchSettled) error {
	f.matchSettled = append(f.matchSettled, e)
	return nil
}

func (f *fakePublisher) PublishMatchCancelled(_ context.Context, e events.MatchCancelled) error {
	f.matchCancelled = append(f.matchCancelled, e)
	return nil
}

func (f *fakePublisher) PublishRefundRequested(_ context.Context, e events.RefundRequested) error {
	f.refundRequested = append(f.refundRequested, e)
	return nil
}

func newTestServer(ledger *fakeLedger, gw *fakeGateway, publ *fakePublisher) http.Handler {
	if gw == nil {
		gw = &fakeGateway{confirmed: true}
	}
	if publ == nil {
		publ = &fakePublisher{}
	}
	s := NewServer(zap.NewNop(), ledger, gw, publ, nil, testAdminToken)
	return s.Router()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func testMarket() repo.Market {
	starts := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	return repo.Market{
		ID:             "mkt-1",
		ScheduleID:     "sched-42",
		Player1Name:    "Ana",
		Player2Name:    "Bia",
		Status:         market.StatusUpcoming,
		BettingEnabled: true,
		StartsAt:       &starts,
		CreatedAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestPlaceBetCreated(t *testing.T) {
	placed := repo.Bet{
		ID: "bet-1", MarketID: "mkt-1", UserID: "user-ana", PlayerName: "Ana",
		AmountCents: 10000, Status: market.BetActive, PotentialReturnCents: 16000,
		PaymentRef: "pi_abc", RefundStatus: market.RefundNone,
	}
	ledger := &fakeLedger{
		placeBet: func(_ context.Context, p repo.PlaceBetParams) (*repo.Bet, bool, error) {
			assert.Equal(t, "user-ana", p.UserID)
			assert.Equal(t, int64(10000), p.AmountCents)
			return &placed, true, nil
		},
	}
	publ := &fakePublisher{}
	h := newTestServer(ledger, nil, publ)

	rec := doJSON(t, h, http.MethodPost, "/api/betting/place-bet", PlaceBetRequest{
		MarketID: "mkt-1", PlayerName: "Ana", AmountCents: 10000, PaymentRef: "pi_abc",
	}, map[string]string{"X-User-ID": "user-ana"})

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp BetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bet-1", resp.BetID)
	assert.Equal(t, market.BetActive, resp.Status)
	assert.Empty(t, resp.RefundStatus) // "none" não aparece na resposta

	require.Len(t, publ.betPlaced, 1)
	assert.Equal(t, "bet-1", publ.betPlaced[0].BetID)
	assert.Equal(t, int64(16000), publ.betPlaced[0].PotentialReturnCents)
}

func TestPlaceBetIdempotentRetry(t *testing.T) {
	placed := repo.Bet{ID: "bet-1", MarketID: "mkt-1", UserID: "user-ana", Status: market.BetActive, RefundStatus: market.RefundNone}
	ledger := &fakeLedger{
		placeBet: func(_ context.Context, _ repo.PlaceBetParams) (*repo.Bet, bool, error) {
			return &placed, false, nil
		},
	}
	publ := &fakePublisher{}
	h := newTestServer(ledger, nil, publ)

	rec := doJSON(t, h, http.MethodPost, "/api/betting/place-bet", PlaceBetRequest{
		MarketID: "mkt-1", PlayerName: "Ana", AmountCents: 10000, PaymentRef: "pi_abc",
	}, map[string]string{"X-User-ID": "user-ana"})

	// retry devolve a aposta original sem novo evento
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, publ.betPlaced)
}

func TestPlaceBetByScheduleID(t *testing.T) {
	m := testMarket()
	placed := repo.Bet{ID: "bet-1", MarketID: "mkt-1", UserID: "user-ana", Status: market.BetActive, RefundStatus: market.RefundNone}
	ledger := &fakeLedger{
		getMarketBySched: func(_ context.Context, scheduleID string) (*repo.Market, error) {
			assert.Equal(t, "sched-42", scheduleID)
			return &m, nil
		},
		placeBet: func(_ context.Context, p repo.PlaceBetParams) (*repo.Bet, bool, error) {
			assert.Equal(t, "mkt-1", p.MarketID) // resolvido pela agenda
			return &placed, true, nil
		},
	}
	h := newTestServer(ledger, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/betting/place-bet", PlaceBetRequest{
		ScheduleID: "sched-42", PlayerName: "Ana", AmountCents: 10000, PaymentRef: "pi_abc",
	}, map[string]string{"X-User-ID": "user-ana"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestGetBetOwnership(t *testing.T) {
	ledger := &fakeLedger{
		getBet: func(_ context.Context, betID string) (*repo.Bet, error) {
			assert.Equal(t, "bet-1", betID)
			return &repo.Bet{ID: "bet-1", MarketID: "mkt-1", UserID: "user-ana", Status: market.BetActive, RefundStatus: market.RefundNone}, nil
		},
	}
	h := newTestServer(ledger, nil, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/betting/bets/bet-1", nil, map[string]string{"X-User-ID": "user-ana"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp BetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bet-1", resp.BetID)

	// aposta de outro usuário não existe pra quem pergunta
	rec = doJSON(t, h, http.MethodGet, "/api/betting/bets/bet-1", nil, map[string]string{"X-User-ID": "user-bia"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlaceBetRequiresUser(t *testing.T) {
	h := newTestServer(&fakeLedger{}, nil, nil)
	rec := doJSON(t, h, http.MethodPost, "/api/betting/place-bet", PlaceBetRequest{
		MarketID: "mkt-1", PlayerName: "Ana", AmountCents: 10000, PaymentRef: "pi_abc",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlaceBetInvalidPayload(t *testing.T) {
	h := newTestServer(&fakeLedger{}, nil, nil)
	rec := doJSON(t, h, http.MethodPost, "/api/betting/place-bet", PlaceBetRequest{
		MarketID: "mkt-1", PlayerName: "Ana", AmountCents: 0, PaymentRef: "pi_abc",
	}, map[string]string{"X-User-ID": "user-ana"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceBetPaymentNotConfirmed(t *testing.T) {
	h := newTestServer(&fakeLedger{}, &fakeGateway{confirmed: false}, nil)
	rec := doJSON(t, h, http.MethodPost, "/api/betting/place-bet", PlaceBetRequest{
		MarketID: "mkt-1", PlayerName: "Ana", AmountCents: 10000, PaymentRef: "pi_nope",
	}, map[string]string{"X-User-ID": "user-ana"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestPlaceBetGatewayUnavailable(t *testing.T) {
	h := newTestServer(&fakeLedger{}, &fakeGateway{err: errors.New("connection refused")}, nil)
	rec := doJSON(t, h, http.MethodPost, "/api/betting/place-bet", PlaceBetRequest{
		MarketID: "mkt-1", PlayerName: "Ana", AmountCents: 10000, PaymentRef: "pi_abc",
	}, map[string]string{"X-User-ID": "user-ana"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPlaceBetDomainConflicts(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"duplicada", fmt.Errorf("user already has an active bet: %w", market.ErrDuplicateBet), http.StatusConflict},
		{"mercado fechado", market.ErrMarketClosed, http.StatusConflict},
		{"mercado inexistente", market.ErrNotFound, http.StatusNotFound},
		{"lado invalido", market.ErrInvalidArgument, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger := &fakeLedger{
				placeBet: func(_ context.Context, _ repo.PlaceBetParams) (*repo.Bet, bool, error) {
					return nil, false, tc.err
				},
			}
			h := newTestServer(ledger, nil, nil)
			rec := doJSON(t, h, http.MethodPost, "/api/betting/place-bet", PlaceBetRequest{
				MarketID: "mkt-1", PlayerName: "Ana", AmountCents: 10000, PaymentRef: "pi_abc",
			}, map[string]string{"X-User-ID": "user-ana"})
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestCancelBetPublishesRefund(t *testing.T) {
	ledger := &fakeLedger{
		cancelBet: func(_ context.Context, betID, userID string) (*repo.RefundOrder, error) {
			assert.Equal(t, "bet-1", betID)
			assert.Equal(t, "user-ana", userID)
			return &repo.RefundOrder{BetID: "bet-1", MarketID: "mkt-1", UserID: "user-ana", PaymentRef: "pi_abc", AmountCents: 10000}, nil
		},
	}
	publ := &fakePublisher{}
	h := newTestServer(ledger, nil, publ)

	rec := doJSON(t, h, http.MethodDelete, "/api/betting/bets/bet-1", nil, map[string]string{"X-User-ID": "user-ana"})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp CancelBetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, market.BetRefunded, resp.Status)
	assert.Equal(t, market.RefundPending, resp.RefundStatus)

	require.Len(t, publ.refundRequested, 1)
	assert.Equal(t, int64(10000), publ.refundRequested[0].AmountCents)
}

func TestCancelBetAfterStartRejected(t *testing.T) {
	ledger := &fakeLedger{
		cancelBet: func(_ context.Context, _, _ string) (*repo.RefundOrder, error) {
			return nil, market.ErrInvalidState
		},
	}
	h := newTestServer(ledger, nil, nil)
	rec := doJSON(t, h, http.MethodDelete, "/api/betting/bets/bet-1", nil, map[string]string{"X-User-ID": "user-ana"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	h := newTestServer(&fakeLedger{}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/admin/matches/mkt-1/finish", FinishMatchRequest{WinnerName: "Ana"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/admin/matches/mkt-1/finish", FinishMatchRequest{WinnerName: "Ana"},
		map[string]string{"X-Admin-Token": "errado"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminDisabledWithoutConfiguredToken(t *testing.T) {
	s := NewServer(zap.NewNop(), &fakeLedger{}, &fakeGateway{confirmed: true}, &fakePublisher{}, nil, "")
	rec := doJSON(t, s.Router(), http.MethodPost, "/api/matches", CreateMarketRequest{ScheduleID: "sched-1"},
		map[string]string{"X-Admin-Token": ""})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateMarket(t *testing.T) {
	m := testMarket()
	created := true
	ledger := &fakeLedger{
		createMarket: func(_ context.Context, scheduleID, p1, p2 string, enabled bool, _ *time.Time) (*repo.Market, bool, error) {
			assert.Equal(t, "sched-42", scheduleID)
			assert.True(t, enabled)
			return &m, created, nil
		},
	}
	h := newTestServer(ledger, nil, nil)
	headers := map[string]string{"X-Admin-Token": testAdminToken}
	body := CreateMarketRequest{ScheduleID: "sched-42", Player1Name: "Ana", Player2Name: "Bia"}

	rec := doJSON(t, h, http.MethodPost, "/api/matches", body, headers)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp MarketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "mkt-1", resp.MarketID)

	// repetir o gatilho devolve o mercado existente
	created = false
	rec = doJSON(t, h, http.MethodPost, "/api/matches", body, headers)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetMarketOdds(t *testing.T) {
	// cenário base: 100 de cada lado -> odds 1.6 nos dois
	sum := repo.MarketSummary{
		Market: testMarket(),
		Totals: map[string]pool.SideTotals{
			"Ana": {BetCount: 1, AmountCents: 10000},
			"Bia": {BetCount: 1, AmountCents: 10000},
		},
	}
	ledger := &fakeLedger{
		poolSnapshot: func(_ context.Context, id string) (*repo.MarketSummary, error) {
			assert.Equal(t, "mkt-1", id)
			return &sum, nil
		},
	}
	h := newTestServer(ledger, nil, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/matches/mkt-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MarketWithPoolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(20000), resp.TotalPoolCents)
	assert.Equal(t, int64(16000), resp.PayoutPoolCents)
	assert.InDelta(t, 1.6, resp.Odds["Ana"], 0.0001)
	assert.InDelta(t, 1.6, resp.Odds["Bia"], 0.0001)
}

func TestGetMarketOddsUndefinedWithEmptySide(t *testing.T) {
	sum := repo.MarketSummary{
		Market: testMarket(),
		Totals: map[string]pool.SideTotals{
			"Ana": {BetCount: 2, AmountCents: 15000},
		},
	}
	ledger := &fakeLedger{
		poolSnapshot: func(_ context.Context, _ string) (*repo.MarketSummary, error) { return &sum, nil },
	}
	h := newTestServer(ledger, nil, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/matches/mkt-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MarketWithPoolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Odds)
	assert.Equal(t, int64(15000), resp.TotalPoolCents)
}

func TestFinishMatch(t *testing.T) {
	m := testMarket()
	m.Status = market.StatusFinished
	settledAt := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{
		settleMarket: func(_ context.Context, id, winner, score string) (*repo.SettlementResult, error) {
			assert.Equal(t, "mkt-1", id)
			assert.Equal(t, "Ana", winner)
			assert.Equal(t, "6-4 6-2", score)
			return &repo.SettlementResult{
				Market: m,
				Result: repo.MatchResult{
					MarketID: "mkt-1", WinnerName: "Ana", Score: "6-4 6-2",
					TotalPoolCents: 20000, PayoutPoolCents: 16000, HouseCutCents: 4000,
					WinningBets: 1, SettledAt: settledAt,
				},
				Outcomes: []pool.Outcome{
					{BetID: "bet-1", UserID: "user-ana", Won: true, ReturnCents: 16000},
					{BetID: "bet-2", UserID: "user-bia", Won: false},
				},
			}, nil
		},
	}
	publ := &fakePublisher{}
	h := newTestServer(ledger, nil, publ)

	rec := doJSON(t, h, http.MethodPost, "/api/admin/matches/mkt-1/finish",
		FinishMatchRequest{WinnerName: "Ana", Score: "6-4 6-2"},
		map[string]string{"X-Admin-Token": testAdminToken})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp FinishMatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Flagged)
	assert.Equal(t, int64(16000), resp.Result.PayoutPoolCents)
	require.Len(t, resp.Bets, 2)
	assert.Equal(t, market.BetWon, resp.Bets[0].Status)
	assert.Equal(t, int64(16000), resp.Bets[0].ReturnCents)
	assert.Equal(t, market.BetLost, resp.Bets[1].Status)

	require.Len(t, publ.matchSettled, 1)
	assert.Equal(t, 1, publ.matchSettled[0].WinningBets)
	assert.Equal(t, 1, publ.matchSettled[0].LosingBets)
}

func TestFinishMatchFlaggedNoWinningStake(t *testing.T) {
	m := testMarket()
	m.Status = market.StatusFinished
	ledger := &fakeLedger{
		settleMarket: func(_ context.Context, _, _, _ string) (*repo.SettlementResult, error) {
			return &repo.SettlementResult{
				Market: m,
				Result: repo.MatchResult{
					MarketID: "mkt-1", WinnerName: "Ana",
					TotalPoolCents: 10000, PayoutPoolCents: 0, HouseCutCents: 10000,
					Flagged: true, SettledAt: time.Now().UTC(),
				},
				Outcomes: []pool.Outcome{{BetID: "bet-2", UserID: "user-bia", Won: false}},
			}, fmt.Errorf("no stake on winner: %w", market.ErrSettlementInconsistency)
		},
	}
	h := newTestServer(ledger, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/admin/matches/mkt-1/finish",
		FinishMatchRequest{WinnerName: "Ana"},
		map[string]string{"X-Admin-Token": testAdminToken})

	// gravada mesmo assim, marcada pra revisão manual
	require.Equal(t, http.StatusOK, rec.Code)
	var resp FinishMatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Flagged)
	assert.Equal(t, int64(10000), resp.Result.HouseCutCents)
}

func TestFinishMatchAlreadyFinished(t *testing.T) {
	ledger := &fakeLedger{
		settleMarket: func(_ context.Context, _, _, _ string) (*repo.SettlementResult, error) {
			return nil, market.ErrInvalidState
		},
	}
	h := newTestServer(ledger, nil, nil)
	rec := doJSON(t, h, http.MethodPost, "/api/admin/matches/mkt-1/finish",
		FinishMatchRequest{WinnerName: "Ana"},
		map[string]string{"X-Admin-Token": testAdminToken})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelMatchRefundsAll(t *testing.T) {
	m := testMarket()
	m.Status = market.StatusCancelled
	ledger := &fakeLedger{
		cancelMarket: func(_ context.Context, _ string) (*repo.Market, []repo.RefundOrder, error) {
			return &m, []repo.RefundOrder{
				{BetID: "bet-1", MarketID: "mkt-1", UserID: "user-ana", PaymentRef: "pi_a", AmountCents: 10000},
				{BetID: "bet-2", MarketID: "mkt-1", UserID: "user-bia", PaymentRef: "pi_b", AmountCents: 5000},
			}, nil
		},
	}
	publ := &fakePublisher{}
	h := newTestServer(ledger, nil, publ)

	rec := doJSON(t, h, http.MethodPost, "/api/admin/matches/mkt-1/cancel", nil,
		map[string]string{"X-Admin-Token": testAdminToken})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp CancelMatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.RefundedBets)
	assert.Equal(t, string(market.StatusCancelled), resp.Market.Status)

	assert.Len(t, publ.refundRequested, 2)
	require.Len(t, publ.matchCancelled, 1)
	assert.Equal(t, 2, publ.matchCancelled[0].RefundedBets)
}

func TestRetryRefunds(t *testing.T) {
	ledger := &fakeLedger{
		retryFailedRefunds: func(_ context.Context, id string) (int64, error) {
			assert.Equal(t, "mkt-1", id)
			return 3, nil
		},
	}
	h := newTestServer(ledger, nil, nil)
	rec := doJSON(t, h, http.MethodPost, "/api/admin/matches/mkt-1/refunds/retry", nil,
		map[string]string{"X-Admin-Token": testAdminToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"requeued":3}`, rec.Body.String())
}

func TestMyBets(t *testing.T) {
	starts := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{
		betsByUser: func(_ context.Context, userID string) ([]repo.UserBet, error) {
			assert.Equal(t, "user-ana", userID)
			return []repo.UserBet{{
				Bet: repo.Bet{
					ID: "bet-1", MarketID: "mkt-1", UserID: "user-ana", PlayerName: "Ana",
					AmountCents: 10000, Status: market.BetRefunded, RefundStatus: market.RefundSucceeded,
				},
				Player1Name: "Ana", Player2Name: "Bia",
				MarketStatus: market.StatusCancelled, StartsAt: &starts,
			}}, nil
		},
	}
	h := newTestServer(ledger, nil, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/betting/my-bets", nil, map[string]string{"X-User-ID": "user-ana"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Bets []UserBetResponse `json:"bets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Bets, 1)
	assert.Equal(t, market.BetRefunded, resp.Bets[0].Status)
	assert.Equal(t, market.RefundSucceeded, resp.Bets[0].RefundStatus)
	assert.Equal(t, "Bia", resp.Bets[0].Match.Player2Name)
	assert.Equal(t, string(market.StatusCancelled), resp.Bets[0].Match.Status)
}

func TestMatchReport(t *testing.T) {
	rep := repo.MatchReport{
		Market: testMarket(),
		Bets: []repo.Bet{
			{ID: "bet-1", MarketID: "mkt-1", UserID: "user-ana", PlayerName: "Ana", AmountCents: 3000, Status: market.BetWon, PotentialReturnCents: 4800, RefundStatus: market.RefundNone},
			{ID: "bet-2", MarketID: "mkt-1", UserID: "user-bia", PlayerName: "Ana", AmountCents: 7000, Status: market.BetWon, PotentialReturnCents: 11200, RefundStatus: market.RefundNone},
			{ID: "bet-3", MarketID: "mkt-1", UserID: "user-caio", PlayerName: "Bia", AmountCents: 10000, Status: market.BetLost, RefundStatus: market.RefundNone},
		},
		Result: &repo.MatchResult{
			MarketID: "mkt-1", WinnerName: "Ana",
			TotalPoolCents: 20000, PayoutPoolCents: 16000, HouseCutCents: 4000,
			WinningBets: 2, SettledAt: time.Now().UTC(),
		},
		TotalPoolCents: 20000,
		TotalBettors:   3,
	}
	ledger := &fakeLedger{
		matchReport: func(_ context.Context, _ string) (*repo.MatchReport, error) { return &rep, nil },
	}
	h := newTestServer(ledger, nil, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/admin/matches/mkt-1/report", nil,
		map[string]string{"X-Admin-Token": testAdminToken})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MatchReportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.TotalBettors)
	assert.Equal(t, int64(20000), resp.TotalPoolCents)
	require.NotNil(t, resp.Result)
	assert.Equal(t, 2, resp.Result.WinningBets)
	require.Len(t, resp.Bets, 3)
}

func TestMatchResultNotSettled(t *testing.T) {
	h := newTestServer(&fakeLedger{}, nil, nil)
	rec := doJSON(t, h, http.MethodGet, "/api/admin/matches/mkt-1/result", nil,
		map[string]string{"X-Admin-Token": testAdminToken})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
