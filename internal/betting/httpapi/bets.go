package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/arenaquadra/bet-engine/internal/betting/market"
	"github.com/arenaquadra/bet-engine/internal/betting/repo"
	"github.com/arenaquadra/bet-engine/pkg/contracts/events"
)

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// placeBet registra uma aposta com pagamento já capturado no gateway.
// A confirmação da captura é pré-condição externa: aqui só se verifica o
// veredito do gateway sobre a referência opaca antes de tocar o ledger.
func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "authenticated user required")
		return
	}

	var req PlaceBetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if (req.MarketID == "" && req.ScheduleID == "") || req.PlayerName == "" || req.PaymentRef == "" || req.AmountCents <= 0 {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	// O cliente pode apostar pela entrada da agenda sem conhecer o mercado
	if req.MarketID == "" {
		m, err := s.repo.GetMarketBySchedule(r.Context(), req.ScheduleID)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		req.MarketID = m.ID
	}

	confirmed, err := s.gw.ConfirmCapture(r.Context(), req.PaymentRef)
	if err != nil {
		s.log.Warn("gateway capture lookup failed", zap.String("payment_ref", req.PaymentRef), zap.Error(err))
		writeError(w, http.StatusBadGateway, "payment gateway unavailable")
		return
	}
	if !confirmed {
		s.writeDomainError(w, market.ErrPaymentNotConfirmed)
		return
	}

	bet, created, err := s.repo.PlaceBet(r.Context(), repo.PlaceBetParams{
		MarketID:    req.MarketID,
		UserID:      uid,
		PlayerName:  req.PlayerName,
		AmountCents: req.AmountCents,
		PaymentRef:  req.PaymentRef,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	status := http.StatusOK // retry idempotente devolve a aposta original
	if created {
		status = http.StatusCreated
		if s.snaps != nil {
			_ = s.snaps.Drop(r.Context(), bet.MarketID)
		}
		_ = s.publ.PublishBetPlaced(r.Context(), events.BetPlaced{
			BetID:                bet.ID,
			MarketID:             bet.MarketID,
			UserID:               bet.UserID,
			PlayerName:           bet.PlayerName,
			AmountCents:          bet.AmountCents,
			PotentialReturnCents: bet.PotentialReturnCents,
			PaymentRef:           bet.PaymentRef,
		})
		s.log.Info("bet placed",
			zap.String("bet_id", bet.ID),
			zap.String("market_id", bet.MarketID),
			zap.Int64("amount_cents", bet.AmountCents),
		)
	}
	writeJSON(w, status, toBetResponse(*bet))
}

// myBets retorna o histórico de apostas do usuário autenticado
func (s *Server) myBets(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "authenticated user required")
		return
	}

	bets, err := s.repo.BetsByUser(r.Context(), uid)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	out := make([]UserBetResponse, 0, len(bets))
	for _, ub := range bets {
		resp := UserBetResponse{BetResponse: toBetResponse(ub.Bet)}
		resp.Match.Player1Name = ub.Player1Name
		resp.Match.Player2Name = ub.Player2Name
		resp.Match.Status = string(ub.MarketStatus)
		resp.Match.StartsAt = ub.StartsAt
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"bets": out})
}

// matchStats retorna as estatísticas de aposta de uma partida: totais por
// lado, odds correntes e pool de pagamento
func (s *Server) matchStats(w http.ResponseWriter, r *http.Request) {
	sum, err := s.repo.PoolSnapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketWithPool(*sum))
}

// getBet retorna uma aposta do próprio usuário; aposta de terceiro é 404
func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "authenticated user required")
		return
	}

	bet, err := s.repo.GetBet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if bet.UserID != uid {
		s.writeDomainError(w, market.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toBetResponse(*bet))
}

// cancelBet desfaz uma aposta do próprio usuário enquanto a partida ainda
// está upcoming; a ordem de estorno segue pro refund-worker
func (s *Server) cancelBet(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "authenticated user required")
		return
	}

	order, err := s.repo.CancelBet(r.Context(), chi.URLParam(r, "id"), uid)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if s.snaps != nil {
		_ = s.snaps.Drop(r.Context(), order.MarketID)
	}
	_ = s.publ.PublishRefundRequested(r.Context(), events.RefundRequested{
		BetID:       order.BetID,
		MarketID:    order.MarketID,
		UserID:      order.UserID,
		AmountCents: order.AmountCents,
		PaymentRef:  order.PaymentRef,
	})
	s.log.Info("bet cancelled by user",
		zap.String("bet_id", order.BetID),
		zap.String("market_id", order.MarketID),
	)

	writeJSON(w, http.StatusOK, CancelBetResponse{
		BetID:        order.BetID,
		Status:       market.BetRefunded,
		RefundStatus: market.RefundPending,
	})
}
