package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/arenaquadra/bet-engine/internal/betting/market"
	"github.com/arenaquadra/bet-engine/pkg/contracts/events"
)

// finishMatch finaliza a partida e liquida todas as apostas de uma vez.
// Chamadas concorrentes no mesmo mercado: só a primeira liquida, as demais
// encontram o status terminal e recebem conflito.
func (s *Server) finishMatch(w http.ResponseWriter, r *http.Request) {
	var req FinishMatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.WinnerName == "" {
		writeError(w, http.StatusBadRequest, "winner_name required")
		return
	}

	id := chi.URLParam(r, "id")
	res, err := s.repo.SettleMarket(r.Context(), id, req.WinnerName, req.Score)
	flagged := errors.Is(err, market.ErrSettlementInconsistency)
	if err != nil && !flagged {
		s.writeDomainError(w, err)
		return
	}
	if flagged {
		// Liquidada sem aposta no vencedor: gravada, mas fica pro operador
		s.log.Warn("settlement flagged for manual review",
			zap.String("market_id", id),
			zap.String("winner", req.WinnerName),
			zap.Int64("total_pool_cents", res.Result.TotalPoolCents),
		)
	}

	if s.snaps != nil {
		_ = s.snaps.Drop(r.Context(), id)
	}
	_ = s.publ.PublishMatchSettled(r.Context(), events.MatchSettled{
		MarketID:        id,
		WinnerName:      req.WinnerName,
		Score:           req.Score,
		TotalPoolCents:  res.Result.TotalPoolCents,
		PayoutPoolCents: res.Result.PayoutPoolCents,
		HouseCutCents:   res.Result.HouseCutCents,
		WinningBets:     res.Result.WinningBets,
		LosingBets:      len(res.Outcomes) - res.Result.WinningBets,
	})
	s.log.Info("match settled",
		zap.String("market_id", id),
		zap.String("winner", req.WinnerName),
		zap.Int("bets", len(res.Outcomes)),
		zap.Int64("payout_pool_cents", res.Result.PayoutPoolCents),
	)

	resp := FinishMatchResponse{
		Market:  toMarketResponse(res.Market),
		Result:  toResultResponse(res.Result),
		Flagged: flagged,
		Bets:    make([]BetOutcome, 0, len(res.Outcomes)),
	}
	for _, o := range res.Outcomes {
		status := market.BetLost
		if o.Won {
			status = market.BetWon
		}
		resp.Bets = append(resp.Bets, BetOutcome{
			BetID:       o.BetID,
			UserID:      o.UserID,
			Status:      status,
			ReturnCents: o.ReturnCents,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// cancelMatch cancela a partida e estorna todas as apostas ativas
func (s *Server) cancelMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, orders, err := s.repo.CancelMarket(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if s.snaps != nil {
		_ = s.snaps.Drop(r.Context(), id)
	}
	for _, o := range orders {
		_ = s.publ.PublishRefundRequested(r.Context(), events.RefundRequested{
			BetID:       o.BetID,
			MarketID:    o.MarketID,
			UserID:      o.UserID,
			AmountCents: o.AmountCents,
			PaymentRef:  o.PaymentRef,
		})
	}
	_ = s.publ.PublishMatchCancelled(r.Context(), events.MatchCancelled{
		MarketID:     id,
		RefundedBets: len(orders),
	})
	s.log.Info("match cancelled",
		zap.String("market_id", id),
		zap.Int("refunded_bets", len(orders)),
	)

	writeJSON(w, http.StatusOK, CancelMatchResponse{
		Market:       toMarketResponse(*m),
		RefundedBets: len(orders),
	})
}

// retryRefunds devolve estornos failed de uma partida pra fila do worker
func (s *Server) retryRefunds(w http.ResponseWriter, r *http.Request) {
	n, err := s.repo.RetryFailedRefunds(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"requeued": n})
}

// matchReport retorna o relatório completo de apostas de uma partida
func (s *Server) matchReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.repo.MatchReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := MatchReportResponse{
		Market:         toMarketResponse(rep.Market),
		TotalPoolCents: rep.TotalPoolCents,
		TotalBettors:   rep.TotalBettors,
		Bets:           make([]BetResponse, 0, len(rep.Bets)),
	}
	for _, b := range rep.Bets {
		resp.Bets = append(resp.Bets, toBetResponse(b))
	}
	if rep.Result != nil {
		result := toResultResponse(*rep.Result)
		resp.Result = &result
	}
	writeJSON(w, http.StatusOK, resp)
}

// matchResult retorna vencedor e placar de uma partida finalizada
func (s *Server) matchResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.repo.MatchResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultResponse(*result))
}

// reports retorna os rollups por status de mercados e apostas
func (s *Server) reports(w http.ResponseWriter, r *http.Request) {
	rep, err := s.repo.Report(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
