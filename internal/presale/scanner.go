package presale

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pookie-sol/presale-api/internal/config"
	"github.com/pookie-sol/presale-api/internal/models"
	"github.com/pookie-sol/presale-api/internal/storage"
	"go.uber.org/zap"
)

// ChainReader is the slice of the RPC client the scanner needs.
type ChainReader interface {
	GetBalance(ctx context.Context, address string) (float64, error)
	GetSignaturesForAddress(ctx context.Context, address string, limit int, before string) ([]models.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*models.TransactionResult, error)
}

// Scanner walks the treasury wallet's transaction history, extracts presale
// contributions, and keeps the aggregate stats the site serves.
type Scanner struct {
	chain  ChainReader
	store  *storage.ContributionStore
	cfg    config.PresaleConfig
	logger *zap.Logger

	mu          sync.Mutex
	lastScanned time.Time
	scanning    bool
}

// NewScanner creates a scanner over the given chain reader and store.
func NewScanner(chain ChainReader, store *storage.ContributionStore, cfg config.PresaleConfig, logger *zap.Logger) *Scanner {
	return &Scanner{
		chain:  chain,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Scan pages backwards through the treasury's signatures, recording every
// valid contribution it has not seen before. Returns the number of new
// contributions found. Only one scan runs at a time; a second caller gets a
// clean error instead of a duplicate walk.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.scanning {
		s.mu.Unlock()
		return 0, fmt.Errorf("scan already in progress")
	}
	s.scanning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.scanning = false
		s.lastScanned = time.Now()
		s.mu.Unlock()
	}()

	found := 0
	before := ""

	for batch := 0; batch < s.cfg.MaxBatches; batch++ {
		sigs, err := s.chain.GetSignaturesForAddress(ctx, s.cfg.TreasuryWallet, s.cfg.BatchSize, before)
		if err != nil {
			return found, fmt.Errorf("failed to fetch signatures: %w", err)
		}
		if len(sigs) == 0 {
			break
		}

		before = sigs[len(sigs)-1].Signature

		for _, sig := range sigs {
			if ctx.Err() != nil {
				return found, ctx.Err()
			}
			if sig.Err != nil || s.store.Exists(sig.Signature) {
				continue
			}

			tx, err := s.chain.GetTransaction(ctx, sig.Signature)
			if err != nil {
				s.logger.Warn("Failed to fetch transaction",
					zap.String("signature", sig.Signature),
					zap.Error(err))
				continue
			}
			if tx == nil {
				continue
			}

			contribution := s.extractContribution(tx, sig.Signature)
			if contribution == nil {
				continue
			}

			if err := s.store.Save(contribution); err != nil {
				s.logger.Error("Failed to save contribution",
					zap.String("signature", sig.Signature),
					zap.Error(err))
				continue
			}

			found++
			s.logger.Info("Contribution recorded",
				zap.String("sender", contribution.Sender),
				zap.Float64("amount_sol", contribution.AmountSOL),
				zap.String("signature", sig.Signature))
		}

		// A short page means the history is exhausted.
		if len(sigs) < s.cfg.BatchSize {
			break
		}
	}

	return found, nil
}

// extractContribution decides whether tx is a presale deposit: the treasury's
// balance must have increased, and an instruction must be a parsed
// system-program transfer into the treasury for one of the valid amounts.
func (s *Scanner) extractContribution(tx *models.TransactionResult, signature string) *models.Contribution {
	if tx.Meta == nil {
		return nil
	}

	treasuryIndex := -1
	for i, key := range tx.Transaction.Message.AccountKeys {
		if key.Pubkey == s.cfg.TreasuryWallet {
			treasuryIndex = i
			break
		}
	}
	if treasuryIndex < 0 ||
		treasuryIndex >= len(tx.Meta.PreBalances) ||
		treasuryIndex >= len(tx.Meta.PostBalances) {
		return nil
	}

	// Not a deposit unless the treasury balance went up.
	if tx.Meta.PostBalances[treasuryIndex] <= tx.Meta.PreBalances[treasuryIndex] {
		return nil
	}

	for _, inst := range tx.Transaction.Message.Instructions {
		if len(inst.Parsed) == 0 {
			continue
		}

		var parsed models.ParsedTransfer
		if err := json.Unmarshal(inst.Parsed, &parsed); err != nil {
			// Parsed payloads of other programs take arbitrary shapes.
			continue
		}
		if parsed.Type != "transfer" || parsed.Info.Destination != s.cfg.TreasuryWallet {
			continue
		}

		amount := float64(parsed.Info.Lamports) / models.LamportsPerSOL
		if !s.validAmount(amount) {
			continue
		}

		return &models.Contribution{
			Signature: signature,
			Sender:    parsed.Info.Source,
			AmountSOL: amount,
			BlockTime: tx.BlockTime,
			Time:      time.Unix(tx.BlockTime, 0).UTC().Format("2006-01-02 15:04:05"),
		}
	}

	return nil
}

func (s *Scanner) validAmount(amount float64) bool {
	for _, valid := range s.cfg.ValidAmounts {
		if math.Abs(amount-valid) < 1e-9 {
			return true
		}
	}
	return false
}

// Stats aggregates the stored contributions into the landing-page view. The
// treasury balance is fetched live; a balance failure degrades to zero rather
// than failing the whole view.
func (s *Scanner) Stats(ctx context.Context) (*models.PresaleStats, error) {
	contributions, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}

	total := 0.0
	countByAmount := make(map[string]int)
	for _, c := range contributions {
		total += c.AmountSOL
		countByAmount[fmt.Sprintf("%g", c.AmountSOL)]++
	}

	progress := 0.0
	if s.cfg.TargetSOL > 0 {
		progress = total / s.cfg.TargetSOL
		if progress > 1 {
			progress = 1
		}
	}

	balance, err := s.chain.GetBalance(ctx, s.cfg.TreasuryWallet)
	if err != nil {
		s.logger.Warn("Failed to fetch treasury balance", zap.Error(err))
		balance = 0
	}

	recent := contributions
	if len(recent) > 10 {
		recent = recent[:10]
	}

	s.mu.Lock()
	lastScanned := int64(0)
	if !s.lastScanned.IsZero() {
		lastScanned = s.lastScanned.Unix()
	}
	s.mu.Unlock()

	return &models.PresaleStats{
		TotalSOL:          total,
		TargetSOL:         s.cfg.TargetSOL,
		Progress:          progress,
		ContributionCount: len(contributions),
		CountByAmount:     countByAmount,
		TreasuryBalance:   balance,
		LastScanned:       lastScanned,
		Recent:            recent,
	}, nil
}

// Run scans on the configured interval until ctx is canceled. The first scan
// fires immediately so the dashboard is populated right after boot.
func (s *Scanner) Run(ctx context.Context) {
	go func() {
		if _, err := s.Scan(ctx); err != nil {
			s.logger.Warn("Initial contribution scan failed", zap.Error(err))
		}

		ticker := time.NewTicker(s.cfg.ScanInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Scan(ctx); err != nil {
					s.logger.Warn("Contribution scan failed", zap.Error(err))
				}
			}
		}
	}()
}
