package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/arenaquadra/bet-engine/internal/betting/market"
	"github.com/arenaquadra/bet-engine/internal/betting/repo"
	"github.com/arenaquadra/bet-engine/pkg/contracts/events"
)

// Ledger define as operações de persistência usadas pelos handlers
type Ledger interface {
	CreateMarket(ctx context.Context, scheduleID, player1, player2 string, bettingEnabled bool, startsAt *time.Time) (*repo.Market, bool, error)
	GetMarket(ctx context.Context, marketID string) (*repo.Market, error)
	GetMarketBySchedule(ctx context.Context, scheduleID string) (*repo.Market, error)
	ListMarkets(ctx context.Context) ([]repo.MarketSummary, error)
	PoolSnapshot(ctx context.Context, marketID string) (*repo.MarketSummary, error)
	SetBettingEnabled(ctx context.Context, marketID string, enabled bool) (*repo.Market, error)
	MarkLive(ctx context.Context, marketID string) (*repo.Market, error)
	PlaceBet(ctx context.Context, params repo.PlaceBetParams) (*repo.Bet, bool, error)
	GetBet(ctx context.Context, betID string) (*repo.Bet, error)
	CancelBet(ctx context.Context, betID, userID string) (*repo.RefundOrder, error)
	BetsByUser(ctx context.Context, userID string) ([]repo.UserBet, error)
	SettleMarket(ctx context.Context, marketID, winnerName, score string) (*repo.SettlementResult, error)
	CancelMarket(ctx context.Context, marketID string) (*repo.Market, []repo.RefundOrder, error)
	Report(ctx context.Context) (*repo.Report, error)
	MatchReport(ctx context.Context, marketID string) (*repo.MatchReport, error)
	MatchResult(ctx context.Context, marketID string) (*repo.MatchResult, error)
	RetryFailedRefunds(ctx context.Context, marketID string) (int64, error)
}

// PaymentGateway é a capacidade externa de verificação de captura.
// Implementações mock e de produção satisfazem a mesma interface.
type PaymentGateway interface {
	ConfirmCapture(ctx context.Context, paymentRef string) (bool, error)
}

// Publisher emite os eventos do motor (Kafka em produção)
type Publisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
	PublishMatchSettled(ctx context.Context, e events.MatchSettled) error
	PublishMatchCancelled(ctx context.Context, e events.MatchCancelled) error
	PublishRefundRequested(ctx context.Context, e events.RefundRequested) error
}

// Snapshots é o cache de pool por mercado (Redis); pode ser nil
type Snapshots interface {
	Get(ctx context.Context, marketID string, dst any) (bool, error)
	Set(ctx context.Context, marketID string, v any) error
	Drop(ctx context.Context, marketID string) error
}

// Server expõe a API REST do motor de apostas
type Server struct {
	log        *zap.Logger
	repo       Ledger
	gw         PaymentGateway
	publ       Publisher
	snaps      Snapshots
	adminToken string
}

func NewServer(log *zap.Logger, ledger Ledger, gw PaymentGateway, publ Publisher, snaps Snapshots, adminToken string) *Server {
	return &Server{log: log, repo: ledger, gw: gw, publ: publ, snaps: snaps, adminToken: adminToken}
}

// Router retorna o roteador HTTP com os endpoints do motor
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/api/matches", func(r chi.Router) {
		r.Get("/", s.listMarkets) // mercados com pool/odds embutidos
		r.With(s.adminOnly).Post("/", s.createMarket)
		r.Get("/{id}", s.getMarket)
	})

	r.Route("/api/betting", func(r chi.Router) {
		r.Post("/place-bet", s.placeBet)
		r.Get("/my-bets", s.myBets)
		r.Get("/match/{id}/bets", s.matchStats)
		r.Get("/bets/{id}", s.getBet)
		r.Delete("/bets/{id}", s.cancelBet)
	})

	r.Route("/api/admin/matches", func(r chi.Router) {
		r.Use(s.adminOnly)
		r.Post("/{id}/finish", s.finishMatch)
		r.Post("/{id}/cancel", s.cancelMatch)
		r.Post("/{id}/live", s.markLive)
		r.Patch("/{id}/betting", s.setBettingEnabled)
		r.Post("/{id}/refunds/retry", s.retryRefunds)
		r.Get("/{id}/report", s.matchReport)
		r.Get("/{id}/result", s.matchResult)
		r.Get("/reports", s.reports)
	})

	return r
}

// adminOnly exige o token de administração por requisição. A identidade
// administrativa é contexto passado na chamada, nunca estado de sessão.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")
		if s.adminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// userID lê a identidade autenticada repassada pela camada de sessão
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError mapeia a taxonomia de erros do motor pra códigos HTTP
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, market.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, market.ErrPaymentNotConfirmed):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, market.ErrDuplicateBet),
		errors.Is(err, market.ErrMarketClosed),
		errors.Is(err, market.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
