package repo

import "context"

// Esquema do ledger. Aplicado pelos mains na subida; idempotente.
const schema = `
CREATE TABLE IF NOT EXISTS markets (
	id              UUID PRIMARY KEY,
	schedule_id     TEXT NOT NULL UNIQUE,
	player1_name    TEXT NOT NULL,
	player2_name    TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'upcoming',
	betting_enabled BOOLEAN NOT NULL DEFAULT TRUE,
	starts_at       TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bets (
	id                     UUID PRIMARY KEY,
	market_id              UUID NOT NULL REFERENCES markets(id),
	user_id                TEXT NOT NULL,
	player_name            TEXT NOT NULL,
	amount_cents           BIGINT NOT NULL CHECK (amount_cents > 0),
	status                 TEXT NOT NULL DEFAULT 'active',
	potential_return_cents BIGINT NOT NULL DEFAULT 0,
	payment_ref            TEXT NOT NULL UNIQUE,
	refund_status          TEXT NOT NULL DEFAULT 'none',
	refund_ref             TEXT,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_bets_market ON bets (market_id);
CREATE INDEX IF NOT EXISTS idx_bets_user ON bets (user_id);
CREATE INDEX IF NOT EXISTS idx_bets_refund_pending ON bets (refund_status)
	WHERE refund_status IN ('pending','failed');

CREATE TABLE IF NOT EXISTS match_results (
	market_id         UUID PRIMARY KEY REFERENCES markets(id),
	winner_name       TEXT NOT NULL,
	score             TEXT NOT NULL DEFAULT '',
	total_pool_cents  BIGINT NOT NULL,
	payout_pool_cents BIGINT NOT NULL,
	house_cut_cents   BIGINT NOT NULL,
	winning_bets      INT NOT NULL,
	flagged           BOOLEAN NOT NULL DEFAULT FALSE,
	settled_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema cria tabelas e índices do ledger se ainda não existirem.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}
