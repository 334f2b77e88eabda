package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arenaquadra/bet-engine/internal/betting/market"
	"github.com/arenaquadra/bet-engine/internal/betting/pool"
)

const betCols = `id, market_id, user_id, player_name, amount_cents, status, potential_return_cents, payment_ref, refund_status, COALESCE(refund_ref,''), created_at, updated_at`

func scanBet(row interface{ Scan(...any) error }) (*Bet, error) {
	var b Bet
	if err := row.Scan(&b.ID, &b.MarketID, &b.UserID, &b.PlayerName, &b.AmountCents,
		&b.Status, &b.PotentialReturnCents, &b.PaymentRef, &b.RefundStatus,
		&b.RefundRef, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// PlaceBetParams são os dados de uma nova aposta já com pagamento capturado.
type PlaceBetParams struct {
	MarketID    string
	UserID      string
	PlayerName  string
	AmountCents int64
	PaymentRef  string // id opaco da captura no gateway; chave de idempotência
}

// PlaceBet registra uma aposta numa única transação. A linha do mercado é
// travada antes de qualquer verificação, então uma aposta que chega durante
// uma liquidação em andamento enxerga o mercado já fora de upcoming.
// Idempotente por payment_ref: retry do cliente devolve a aposta existente
// (created=false) sem duplicar.
func (p *Postgres) PlaceBet(ctx context.Context, params PlaceBetParams) (bet *Bet, created bool, err error) {
	if params.AmountCents <= 0 {
		return nil, false, fmt.Errorf("%w: amount must be positive", market.ErrInvalidArgument)
	}
	if params.UserID == "" || params.PaymentRef == "" {
		return nil, false, fmt.Errorf("%w: user and payment reference are required", market.ErrInvalidArgument)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	// Idempotência antes de qualquer gate: um retry depois do timeout de
	// confirmação devolve a aposta original mesmo que o mercado já fechou.
	existing, err := scanBet(tx.QueryRowContext(ctx,
		`SELECT `+betCols+` FROM bets WHERE payment_ref=$1`, params.PaymentRef))
	if err == nil {
		return existing, false, tx.Commit()
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}

	m, err := lockMarket(ctx, tx, params.MarketID)
	if err != nil {
		return nil, false, err
	}

	if m.Status != market.StatusUpcoming || !m.BettingEnabled {
		return nil, false, fmt.Errorf("%w: status=%s betting_enabled=%t", market.ErrMarketClosed, m.Status, m.BettingEnabled)
	}
	if m.StartsAt != nil && time.Now().Add(p.bettingCutoff).After(*m.StartsAt) {
		return nil, false, fmt.Errorf("%w: betting window closed before match start", market.ErrMarketClosed)
	}
	if err := market.ValidateSide(m.Player1Name, m.Player2Name, params.PlayerName); err != nil {
		return nil, false, err
	}

	// Uma aposta ativa por usuário por mercado
	var dup int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM bets WHERE market_id=$1 AND user_id=$2 AND status='active'`,
		params.MarketID, params.UserID).Scan(&dup)
	if err == nil {
		return nil, false, market.ErrDuplicateBet
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}

	// Estimativa de retorno com o pool no instante da inserção (já contando
	// a própria aposta). É só estimativa: a liquidação recalcula no final.
	stakes, err := marketStakes(ctx, tx, params.MarketID)
	if err != nil {
		return nil, false, err
	}
	snap := pool.Build(m.Player1Name, m.Player2Name, stakes)
	estimate := snap.PotentialReturnCents(params.PlayerName, params.AmountCents)

	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bets (id, market_id, user_id, player_name, amount_cents, status, potential_return_cents, payment_ref)
		VALUES ($1,$2,$3,$4,$5,'active',$6,$7)`,
		id, params.MarketID, params.UserID, params.PlayerName, params.AmountCents, estimate, params.PaymentRef,
	); err != nil {
		return nil, false, err
	}

	bet, err = scanBet(tx.QueryRowContext(ctx, `SELECT `+betCols+` FROM bets WHERE id=$1`, id))
	if err != nil {
		return nil, false, err
	}
	return bet, true, tx.Commit()
}

// marketStakes carrega as apostas que compõem o pool dentro da transação
func marketStakes(ctx context.Context, tx *sql.Tx, marketID string) ([]pool.Stake, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, user_id, player_name, amount_cents
		FROM bets
		WHERE market_id=$1 AND status IN ('active','won','lost')`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pool.Stake
	for rows.Next() {
		var s pool.Stake
		if err := rows.Scan(&s.BetID, &s.UserID, &s.PlayerName, &s.AmountCents); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetBet carrega uma aposta pelo id
func (p *Postgres) GetBet(ctx context.Context, betID string) (*Bet, error) {
	b, err := scanBet(p.db.QueryRowContext(ctx, `SELECT `+betCols+` FROM bets WHERE id=$1`, betID))
	if err == sql.ErrNoRows {
		return nil, market.ErrNotFound
	}
	return b, err
}

// CancelBet desfaz uma aposta ativa do próprio usuário enquanto a partida
// ainda está upcoming. A aposta vira refunded/pending e a ordem de estorno
// vai pro refund-worker.
func (p *Postgres) CancelBet(ctx context.Context, betID, userID string) (*RefundOrder, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var order RefundOrder
	var betStatus, marketStatus string
	err = tx.QueryRowContext(ctx, `
		SELECT b.id, b.market_id, b.user_id, b.payment_ref, b.amount_cents, b.status, m.status
		FROM bets b
		JOIN markets m ON m.id = b.market_id
		WHERE b.id=$1 AND b.user_id=$2
		FOR UPDATE OF b, m`, betID, userID).
		Scan(&order.BetID, &order.MarketID, &order.UserID, &order.PaymentRef, &order.AmountCents, &betStatus, &marketStatus)
	if err == sql.ErrNoRows {
		return nil, market.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if betStatus != market.BetActive {
		return nil, fmt.Errorf("%w: bet is %s", market.ErrInvalidState, betStatus)
	}
	if marketStatus != string(market.StatusUpcoming) {
		return nil, fmt.Errorf("%w: match already %s", market.ErrInvalidState, marketStatus)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE bets SET status='refunded', refund_status='pending', potential_return_cents=0, updated_at=NOW()
		WHERE id=$1`, betID); err != nil {
		return nil, err
	}

	return &order, tx.Commit()
}

// BetsByUser retorna o histórico de apostas do usuário com dados da partida
func (p *Postgres) BetsByUser(ctx context.Context, userID string) ([]UserBet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT b.id, b.market_id, b.user_id, b.player_name, b.amount_cents, b.status,
		       b.potential_return_cents, b.payment_ref, b.refund_status, COALESCE(b.refund_ref,''),
		       b.created_at, b.updated_at,
		       m.player1_name, m.player2_name, m.status, m.starts_at
		FROM bets b
		JOIN markets m ON m.id = b.market_id
		WHERE b.user_id=$1
		ORDER BY b.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserBet
	for rows.Next() {
		var ub UserBet
		var mstatus string
		if err := rows.Scan(&ub.ID, &ub.MarketID, &ub.UserID, &ub.PlayerName, &ub.AmountCents,
			&ub.Status, &ub.PotentialReturnCents, &ub.PaymentRef, &ub.RefundStatus, &ub.RefundRef,
			&ub.CreatedAt, &ub.UpdatedAt,
			&ub.Player1Name, &ub.Player2Name, &mstatus, &ub.StartsAt); err != nil {
			return nil, err
		}
		st, err := market.ParseStatus(mstatus)
		if err != nil {
			return nil, err
		}
		ub.MarketStatus = st
		out = append(out, ub)
	}
	return out, rows.Err()
}

// BetsByMarket retorna todas as apostas de um mercado, agrupadas por lado
func (p *Postgres) BetsByMarket(ctx context.Context, marketID string) ([]Bet, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+betCols+` FROM bets WHERE market_id=$1 ORDER BY player_name, amount_cents DESC`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// PendingRefunds lista ordens de estorno aguardando emissão pro gateway.
// failed fica de fora: é terminal e tratado manualmente pelos operadores.
func (p *Postgres) PendingRefunds(ctx context.Context, limit int) ([]RefundOrder, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, market_id, user_id, payment_ref, amount_cents
		FROM bets
		WHERE status='refunded' AND refund_status='pending'
		ORDER BY updated_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RefundOrder
	for rows.Next() {
		var o RefundOrder
		if err := rows.Scan(&o.BetID, &o.MarketID, &o.UserID, &o.PaymentRef, &o.AmountCents); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkRefundOutcome grava o desfecho do estorno junto ao gateway.
// A aposta continua refunded em qualquer caso; só a movimentação de
// dinheiro é rastreada aqui.
func (p *Postgres) MarkRefundOutcome(ctx context.Context, betID, outcome, refundRef string) error {
	if outcome != market.RefundSucceeded && outcome != market.RefundFailed {
		return fmt.Errorf("%w: refund outcome %q", market.ErrInvalidArgument, outcome)
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET refund_status=$1, refund_ref=NULLIF($2,''), updated_at=NOW()
		WHERE id=$3 AND status='refunded' AND refund_status IN ('pending','failed')`,
		outcome, refundRef, betID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return market.ErrNotFound
	}
	return nil
}

// RetryFailedRefunds devolve estornos failed pra fila (ação de operador)
func (p *Postgres) RetryFailedRefunds(ctx context.Context, marketID string) (int64, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET refund_status='pending', updated_at=NOW()
		WHERE market_id=$1 AND status='refunded' AND refund_status='failed'`, marketID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
