package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// createMarket abre um mercado pra uma entrada da agenda de quadras.
// Idempotente por schedule_id: repetir o gatilho devolve o mercado existente.
func (s *Server) createMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.ScheduleID == "" {
		writeError(w, http.StatusBadRequest, "schedule_id required")
		return
	}

	enabled := true
	if req.BettingEnabled != nil {
		enabled = *req.BettingEnabled
	}

	m, created, err := s.repo.CreateMarket(r.Context(), req.ScheduleID, req.Player1Name, req.Player2Name, enabled, req.StartsAt)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		s.log.Info("market opened",
			zap.String("market_id", m.ID),
			zap.String("schedule_id", m.ScheduleID),
		)
	}
	writeJSON(w, status, toMarketResponse(*m))
}

// listMarkets retorna os mercados com snapshot de pool e odds embutidos
func (s *Server) listMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.repo.ListMarkets(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	out := make([]MarketWithPoolResponse, 0, len(markets))
	for _, m := range markets {
		out = append(out, toMarketWithPool(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": out})
}

// getMarket retorna um único mercado com o snapshot do pool.
// Leitura preferencialmente do cache; o banco é a fonte de verdade.
func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s.snaps != nil {
		var cached MarketWithPoolResponse
		if ok, _ := s.snaps.Get(r.Context(), id, &cached); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	sum, err := s.repo.PoolSnapshot(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	resp := toMarketWithPool(*sum)

	if s.snaps != nil {
		_ = s.snaps.Set(r.Context(), id, resp)
	}
	writeJSON(w, http.StatusOK, resp)
}

// markLive transiciona o mercado pra live; só informativo, sem liquidação
func (s *Server) markLive(w http.ResponseWriter, r *http.Request) {
	m, err := s.repo.MarkLive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketResponse(*m))
}

// setBettingEnabled liga/desliga apostas enquanto o mercado está upcoming
func (s *Server) setBettingEnabled(w http.ResponseWriter, r *http.Request) {
	var req BettingEnabledRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	id := chi.URLParam(r, "id")
	m, err := s.repo.SetBettingEnabled(r.Context(), id, req.Enabled)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if s.snaps != nil {
		_ = s.snaps.Drop(r.Context(), id)
	}
	writeJSON(w, http.StatusOK, toMarketResponse(*m))
}
