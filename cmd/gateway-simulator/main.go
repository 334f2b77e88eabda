package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arenaquadra/bet-engine/internal/shared/config"
	"github.com/arenaquadra/bet-engine/internal/shared/logger"
	"github.com/arenaquadra/bet-engine/internal/shared/metrics"
)

// Simulador do gateway de pagamento pra desenvolvimento local: captura,
// consulta e estorno com a mesma interface HTTP que o motor consome em
// produção. Estado em memória; não sobrevive a restart de propósito.

var (
	capturesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_sim_captures_total",
		Help: "capturas criadas",
	})
	refundsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_sim_refunds_total",
		Help: "estornos por desfecho",
	}, []string{"outcome"})
)

type capture struct {
	PaymentRef  string `json:"payment_ref"`
	UserID      string `json:"user_id,omitempty"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"` // "approved"
	RefundID    string `json:"refund_id,omitempty"`
}

type store struct {
	mu       sync.RWMutex
	captures map[string]*capture
}

func newStore() *store { return &store{captures: map[string]*capture{}} }

func (s *store) create(userID string, amountCents int64) *capture {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &capture{
		PaymentRef:  "sim_pi_" + uuid.NewString(),
		UserID:      userID,
		AmountCents: amountCents,
		Status:      "approved",
	}
	s.captures[c.PaymentRef] = c
	return c
}

func (s *store) get(ref string) (*capture, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.captures[ref]
	return c, ok
}

func (s *store) refund(ref string) (refundID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, exists := s.captures[ref]
	if !exists || c.RefundID != "" {
		return "", false
	}
	c.RefundID = "sim_re_" + uuid.NewString()
	return c.RefundID, true
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(capturesTotal, refundsTotal)

	st := newStore()
	r := chi.NewRouter()

	// Captura (rio acima do motor; aqui só pra fechar o fluxo local)
	r.Post("/payments", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			UserID      string `json:"user_id"`
			AmountCents int64  `json:"amount_cents"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.AmountCents <= 0 {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		c := st.create(body.UserID, body.AmountCents)
		capturesTotal.Inc()
		log.Info("capture approved", zap.String("payment_ref", c.PaymentRef), zap.Int64("amount_cents", c.AmountCents))
		writeJSON(w, http.StatusCreated, c)
	})

	// Consulta de captura. Referências "mock_" são aprovadas sem captura
	// prévia, como o bypass de pagamento do ambiente de teste.
	r.Get("/payments/{ref}", func(w http.ResponseWriter, req *http.Request) {
		ref := chi.URLParam(req, "ref")
		if c, ok := st.get(ref); ok {
			writeJSON(w, http.StatusOK, c)
			return
		}
		if strings.HasPrefix(ref, "mock_") {
			writeJSON(w, http.StatusOK, capture{PaymentRef: ref, Status: "approved"})
			return
		}
		http.Error(w, "not found", http.StatusNotFound)
	})

	// Estorno integral; segunda chamada pro mesmo ref é recusada.
	// Referências "mock_" sempre estornam; "fail_" sempre são recusadas
	// (pra exercitar o caminho refund_status=failed).
	r.Post("/payments/{ref}/refunds", func(w http.ResponseWriter, req *http.Request) {
		ref := chi.URLParam(req, "ref")
		if strings.HasPrefix(ref, "fail_") {
			refundsTotal.WithLabelValues("rejected").Inc()
			http.Error(w, "refund rejected", http.StatusUnprocessableEntity)
			return
		}
		if strings.HasPrefix(ref, "mock_") {
			refundsTotal.WithLabelValues("succeeded").Inc()
			writeJSON(w, http.StatusOK, map[string]string{"refund_id": "sim_re_" + uuid.NewString(), "status": "succeeded"})
			return
		}
		id, ok := st.refund(ref)
		if !ok {
			refundsTotal.WithLabelValues("rejected").Inc()
			http.Error(w, "unknown or already refunded", http.StatusConflict)
			return
		}
		refundsTotal.WithLabelValues("succeeded").Inc()
		log.Info("refund issued", zap.String("payment_ref", ref), zap.String("refund_id", id))
		writeJSON(w, http.StatusOK, map[string]string{"refund_id": id, "status": "succeeded"})
	})

	metrics.StartMetricsServer(cfg.MetricsPort, func(context.Context) error { return nil })

	addr := ":" + cfg.HTTPPort
	log.Info("gateway-simulator listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal("http", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
