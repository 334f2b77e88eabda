package market

import (
	"errors"
	"fmt"
	"strings"
)

// Status de um mercado (partida apostável). Transições só andam pra frente:
// upcoming -> live -> finished|cancelled. finished e cancelled são terminais.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusLive      Status = "live"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
)

// Status de uma aposta dentro do ledger.
const (
	BetActive   = "active"
	BetWon      = "won"
	BetLost     = "lost"
	BetRefunded = "refunded"
)

// Estado do estorno junto ao gateway de pagamento. Só relevante quando a
// aposta está refunded; a obrigação de aposta é desfeita independente do
// resultado da movimentação de dinheiro.
const (
	RefundNone      = "none"
	RefundPending   = "pending"
	RefundSucceeded = "succeeded"
	RefundFailed    = "failed"
)

var (
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrInvalidState            = errors.New("operation not allowed in current market status")
	ErrMarketClosed            = errors.New("market closed for betting")
	ErrDuplicateBet            = errors.New("user already has an active bet on this market")
	ErrNotFound                = errors.New("not found")
	ErrPaymentNotConfirmed     = errors.New("payment not confirmed by gateway")
	ErrSettlementInconsistency = errors.New("winner side has no stake at settlement")
)

// ParseStatus valida uma string vinda de fora (banco, request) como Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusUpcoming, StatusLive, StatusFinished, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, s)
}

// Terminal informa se o status não admite mais nenhuma transição.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// CanTransition implementa a máquina de estados do mercado.
// upcoming -> live é só informativo (display); finished/cancelled liquidam.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusUpcoming:
		return to == StatusLive || to == StatusFinished || to == StatusCancelled
	case StatusLive:
		return to == StatusFinished || to == StatusCancelled
	}
	return false
}

// ValidatePlayers checa os nomes na abertura de um mercado.
func ValidatePlayers(player1, player2 string) error {
	p1 := strings.TrimSpace(player1)
	p2 := strings.TrimSpace(player2)
	if p1 == "" || p2 == "" {
		return fmt.Errorf("%w: player names must not be empty", ErrInvalidArgument)
	}
	if p1 == p2 {
		return fmt.Errorf("%w: players must be distinct", ErrInvalidArgument)
	}
	return nil
}

// ValidateSide checa se o lado apostado/vencedor é um dos dois jogadores.
func ValidateSide(player1, player2, side string) error {
	if side != player1 && side != player2 {
		return fmt.Errorf("%w: %q is not a player of this match", ErrInvalidArgument, side)
	}
	return nil
}
