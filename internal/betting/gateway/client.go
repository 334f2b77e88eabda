package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client fala com o gateway de pagamento (ou com o gateway-simulator em
// ambiente local — mesma interface HTTP). O motor nunca captura dinheiro:
// só confirma capturas feitas rio acima e emite pedidos de estorno.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type paymentStatus struct {
	PaymentRef string `json:"payment_ref"`
	Status     string `json:"status"` // "approved" | "pending" | "rejected"
}

type refundResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"` // "succeeded" | "rejected"
}

// ConfirmCapture verifica junto ao gateway se a captura do pagamento foi
// aprovada. A referência é opaca; o motor só confia no veredito do gateway.
func (c *Client) ConfirmCapture(ctx context.Context, paymentRef string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/payments/"+paymentRef, nil)
	if err != nil {
		return false, err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if res.StatusCode >= 300 {
		return false, fmt.Errorf("gateway payment lookup http %d", res.StatusCode)
	}

	var out paymentStatus
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Status == "approved", nil
}

// Refund pede o estorno integral de uma captura. Retorna o id do estorno no
// gateway quando aceito; ok=false quando o gateway recusa em definitivo.
// Erro de transporte não é recusa: o chamador tenta de novo depois.
func (c *Client) Refund(ctx context.Context, paymentRef string) (refundID string, ok bool, err error) {
	body, _ := json.Marshal(map[string]string{"payment_ref": paymentRef})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/payments/"+paymentRef+"/refunds", bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", false, err
	}
	defer res.Body.Close()

	// 4xx: recusa definitiva do gateway (captura inexistente, já estornada...)
	if res.StatusCode >= 400 && res.StatusCode < 500 {
		return "", false, nil
	}
	if res.StatusCode >= 300 {
		return "", false, fmt.Errorf("gateway refund http %d", res.StatusCode)
	}

	var out refundResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", false, err
	}
	if out.Status != "succeeded" {
		return "", false, nil
	}
	return out.RefundID, true, nil
}
