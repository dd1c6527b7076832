// Package audit verifies the holdings ledger against the transfer history
// it was derived from. The ledger is a pure fold over ordered transfers, so
// replaying that fold from the stored transfer rows must land on the exact
// balances the holdings table carries; any difference means the ledger and
// its inputs have drifted apart.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/nadscan/tradeledger/internal/alert"
	"github.com/nadscan/tradeledger/internal/domain/model"
	"github.com/nadscan/tradeledger/internal/metrics"
	"github.com/nadscan/tradeledger/internal/store"
)

// Mismatch is one (wallet, token) pair whose stored balance disagrees with
// the balance recomputed from transfers.
type Mismatch struct {
	WalletAddress   string `json:"wallet_address"`
	TokenAddress    string `json:"token_address"`
	LedgerBalance   string `json:"ledger_balance"`
	ComputedBalance string `json:"computed_balance"`
}

// RunResult aggregates one audit sweep.
type RunResult struct {
	TokensChecked   int        `json:"tokens_checked"`
	HoldingsChecked int        `json:"holdings_checked"`
	Mismatches      []Mismatch `json:"mismatches"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      time.Time  `json:"finished_at"`
}

type Service struct {
	tokens    store.TokenRepository
	transfers store.TransferRepository
	holdings  store.HoldingRepository
	alerter   alert.Alerter
	logger    *slog.Logger
}

func NewService(
	tokens store.TokenRepository,
	transfers store.TransferRepository,
	holdings store.HoldingRepository,
	alerter alert.Alerter,
	logger *slog.Logger,
) *Service {
	return &Service{
		tokens:    tokens,
		transfers: transfers,
		holdings:  holdings,
		alerter:   alerter,
		logger:    logger.With("component", "audit"),
	}
}

// Run sweeps every tracked token and alerts on any drift found.
func (s *Service) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{StartedAt: time.Now()}

	tokens, err := s.tokens.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: list tokens: %w", err)
	}

	for _, token := range tokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mismatches, checked, err := s.AuditToken(ctx, token.Address)
		if err != nil {
			return nil, err
		}
		result.TokensChecked++
		result.HoldingsChecked += checked
		result.Mismatches = append(result.Mismatches, mismatches...)
	}
	result.FinishedAt = time.Now()

	metrics.AuditRuns.Inc()
	if len(result.Mismatches) > 0 {
		metrics.AuditMismatches.Add(float64(len(result.Mismatches)))
		s.logger.Error("audit found holdings drift",
			"tokens_checked", result.TokensChecked,
			"mismatches", len(result.Mismatches),
		)
		s.notify(ctx, result)
	} else {
		s.logger.Info("audit clean",
			"tokens_checked", result.TokensChecked,
			"holdings_checked", result.HoldingsChecked,
			"took", result.FinishedAt.Sub(result.StartedAt),
		)
	}
	return result, nil
}

// AuditToken recomputes every wallet balance for one token by folding its
// transfer history in chain order, then compares against the stored rows.
// checked is the number of holding rows examined.
func (s *Service) AuditToken(ctx context.Context, tokenAddress string) ([]Mismatch, int, error) {
	transfers, err := s.transfers.ListByToken(ctx, tokenAddress)
	if err != nil {
		return nil, 0, fmt.Errorf("audit %s: list transfers: %w", tokenAddress, err)
	}

	computed := replayBalances(transfers)

	stored, err := s.holdings.ListByToken(ctx, tokenAddress)
	if err != nil {
		return nil, 0, fmt.Errorf("audit %s: list holdings: %w", tokenAddress, err)
	}

	var mismatches []Mismatch
	seen := make(map[string]bool, len(stored))
	for _, h := range stored {
		seen[h.WalletAddress] = true
		want, ok := computed[h.WalletAddress]
		if !ok {
			mismatches = append(mismatches, Mismatch{
				WalletAddress:   h.WalletAddress,
				TokenAddress:    tokenAddress,
				LedgerBalance:   h.CurrentBalance,
				ComputedBalance: "<no row expected>",
			})
			continue
		}
		if want.String() != h.CurrentBalance {
			mismatches = append(mismatches, Mismatch{
				WalletAddress:   h.WalletAddress,
				TokenAddress:    tokenAddress,
				LedgerBalance:   h.CurrentBalance,
				ComputedBalance: want.String(),
			})
		}
	}
	for wallet, want := range computed {
		if !seen[wallet] {
			mismatches = append(mismatches, Mismatch{
				WalletAddress:   wallet,
				TokenAddress:    tokenAddress,
				LedgerBalance:   "<missing row>",
				ComputedBalance: want.String(),
			})
		}
	}
	return mismatches, len(stored), nil
}

// replayBalances reproduces the holdings fold: rows appear only once a
// wallet's delta leaves a positive balance, the zero address never gets one,
// and existing rows track every later delta including drawdown below zero.
func replayBalances(transfers []model.Transfer) map[string]*big.Int {
	balances := make(map[string]*big.Int)

	apply := func(wallet string, delta *big.Int) {
		if model.IsZeroAddress(wallet) {
			return
		}
		if bal, ok := balances[wallet]; ok {
			bal.Add(bal, delta)
			return
		}
		if delta.Sign() > 0 {
			balances[wallet] = new(big.Int).Set(delta)
		}
	}

	for _, t := range transfers {
		amount, ok := new(big.Int).SetString(t.Amount, 10)
		if !ok {
			continue
		}
		apply(t.FromAddress, new(big.Int).Neg(amount))
		apply(t.ToAddress, amount)
	}
	return balances
}

func (s *Service) notify(ctx context.Context, result *RunResult) {
	fields := make(map[string]string)
	for i, m := range result.Mismatches {
		if i >= 5 {
			fields["more"] = fmt.Sprintf("%d further mismatches omitted", len(result.Mismatches)-5)
			break
		}
		fields[m.WalletAddress+"/"+m.TokenAddress] = fmt.Sprintf(
			"ledger=%s computed=%s", m.LedgerBalance, m.ComputedBalance,
		)
	}
	if err := s.alerter.Send(ctx, alert.Alert{
		Type:    alert.AlertTypeAuditMismatch,
		Title:   "holdings ledger drift detected",
		Message: fmt.Sprintf("%d of %d holdings disagree with transfer history", len(result.Mismatches), result.HoldingsChecked),
		Fields:  fields,
	}); err != nil {
		s.logger.Warn("audit alert failed", "error", err)
	}
}

// RunPeriodic executes Run on a fixed interval until the context ends.
func (s *Service) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Error("audit run failed", "error", err)
			}
		}
	}
}
