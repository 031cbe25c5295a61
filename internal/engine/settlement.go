package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cryptarena/arenad/internal/domain"
)

// settledArena loads an arena and checks it is open for settlement claims.
func settledArena(ctx context.Context, tx domain.LedgerTx, arenaID int64) (domain.Arena, error) {
	arena, err := tx.Arena(ctx, arenaID)
	if err != nil {
		return domain.Arena{}, err
	}
	if arena.Status != domain.ArenaEnded || arena.Cancelled {
		return domain.Arena{}, domain.ErrArenaNotEnded
	}
	return arena, nil
}

// ClaimOwnStake returns a winner's original stake from the winning slot's
// escrow. It moves only the caller's capital, never reward value, and is
// guarded by the entry's own-stake flag so repeats fail with AlreadyClaimed.
func (e *Engine) ClaimOwnStake(ctx context.Context, caller domain.Identity, arenaID int64) (int64, error) {
	var amount int64
	err := e.inTx(ctx, func(tx domain.LedgerTx) error {
		arena, err := settledArena(ctx, tx, arenaID)
		if err != nil {
			return fmt.Errorf("engine: claim own stake arena %d: %w", arenaID, err)
		}

		entry, err := tx.Entry(ctx, arenaID, caller)
		if err != nil {
			return fmt.Errorf("engine: claim own stake: %w", err)
		}
		if !entry.Winner || entry.SlotIndex != arena.WinningSlot {
			return fmt.Errorf("engine: claim own stake: %w", domain.ErrNotWinner)
		}
		if entry.OwnStakeClaimed {
			return fmt.Errorf("engine: claim own stake: %w", domain.ErrAlreadyClaimed)
		}

		amount = entry.StakeValue
		if _, err := tx.DebitEscrow(ctx, arenaID, entry.SlotIndex, caller, amount, domain.TransferOwnStake); err != nil {
			return fmt.Errorf("engine: claim own stake: %w", err)
		}
		entry.OwnStakeClaimed = true
		return tx.PutEntry(ctx, entry)
	})
	if err != nil {
		return 0, err
	}

	e.logger.InfoContext(ctx, "engine: own stake claimed",
		slog.Int64("arena", arenaID),
		slog.String("player", string(caller)),
		slog.Int64("amount", amount),
	)
	e.emit(domain.Event{Type: domain.EventClaimed, ArenaID: arenaID, Player: caller, Amount: amount})
	return amount, nil
}

// ClaimRewardFrom pays the calling winner their share of one losing entry's
// stake: floor(stake * 0.9 / N) for N co-winners. The per-loser bit in the
// winner's claim bitmap is checked and set in the same transaction as the
// escrow debit, so exactly one of any racing duplicate claims succeeds. The
// remaining tenth of the loser's stake stays in escrow for the treasury
// sweep.
func (e *Engine) ClaimRewardFrom(ctx context.Context, caller domain.Identity, arenaID int64, loserOrdinal int) (int64, error) {
	var reward int64
	err := e.inTx(ctx, func(tx domain.LedgerTx) error {
		arena, err := settledArena(ctx, tx, arenaID)
		if err != nil {
			return fmt.Errorf("engine: claim reward arena %d: %w", arenaID, err)
		}

		winner, err := tx.Entry(ctx, arenaID, caller)
		if err != nil {
			return fmt.Errorf("engine: claim reward: %w", err)
		}
		if !winner.Winner || winner.SlotIndex != arena.WinningSlot {
			return fmt.Errorf("engine: claim reward: %w", domain.ErrNotWinner)
		}

		loser, err := tx.EntryByOrdinal(ctx, arenaID, loserOrdinal)
		if err != nil {
			return fmt.Errorf("engine: claim reward: loser ordinal %d: %w", loserOrdinal, err)
		}
		if loser.SlotIndex == arena.WinningSlot {
			return fmt.Errorf("engine: claim reward: %w", domain.ErrNotLoser)
		}
		if winner.RewardsClaimed.Has(loser.Ordinal) {
			return fmt.Errorf("engine: claim reward: %w", domain.ErrAlreadyClaimed)
		}

		winAgg, err := tx.AssetAggregate(ctx, arenaID, arena.WinningSlot)
		if err != nil {
			return fmt.Errorf("engine: claim reward: %w", err)
		}

		reward = rewardShare(loser.StakeValue, winAgg.PlayerCount)
		if _, err := tx.DebitEscrow(ctx, arenaID, loser.SlotIndex, caller, reward, domain.TransferReward); err != nil {
			return fmt.Errorf("engine: claim reward: %w", err)
		}
		winner.RewardsClaimed = winner.RewardsClaimed.Set(loser.Ordinal)
		return tx.PutEntry(ctx, winner)
	})
	if err != nil {
		return 0, err
	}

	e.logger.InfoContext(ctx, "engine: reward claimed",
		slog.Int64("arena", arenaID),
		slog.String("player", string(caller)),
		slog.Int("loser_ordinal", loserOrdinal),
		slog.Int64("amount", reward),
	)
	e.emit(domain.Event{Type: domain.EventClaimed, ArenaID: arenaID, Player: caller, Amount: reward})
	return reward, nil
}

// CollectTreasuryFee sweeps the platform's cut of one losing stake,
// floor(stake * 0.1), to the treasury payee. The sweep is independent of
// winner activity and happens exactly once per losing entry, guarded by the
// entry's fee flag.
func (e *Engine) CollectTreasuryFee(ctx context.Context, caller domain.Identity, arenaID int64, loserOrdinal int) (int64, error) {
	var fee int64
	err := e.inTx(ctx, func(tx domain.LedgerTx) error {
		cfg, err := tx.GlobalConfig(ctx)
		if err != nil {
			return fmt.Errorf("engine: collect fee: %w", err)
		}
		if !e.auth.CanSweepFees(cfg, caller) {
			return fmt.Errorf("engine: collect fee: %w", domain.ErrUnauthorized)
		}

		arena, err := settledArena(ctx, tx, arenaID)
		if err != nil {
			return fmt.Errorf("engine: collect fee arena %d: %w", arenaID, err)
		}

		loser, err := tx.EntryByOrdinal(ctx, arenaID, loserOrdinal)
		if err != nil {
			return fmt.Errorf("engine: collect fee: loser ordinal %d: %w", loserOrdinal, err)
		}
		if loser.SlotIndex == arena.WinningSlot {
			return fmt.Errorf("engine: collect fee: %w", domain.ErrNotLoser)
		}
		if loser.FeeClaimed {
			return fmt.Errorf("engine: collect fee: %w", domain.ErrAlreadyClaimed)
		}

		fee = feeShare(loser.StakeValue)
		if _, err := tx.DebitEscrow(ctx, arenaID, loser.SlotIndex, cfg.Treasury, fee, domain.TransferFee); err != nil {
			return fmt.Errorf("engine: collect fee: %w", err)
		}
		loser.FeeClaimed = true
		return tx.PutEntry(ctx, loser)
	})
	if err != nil {
		return 0, err
	}

	e.logger.InfoContext(ctx, "engine: treasury fee collected",
		slog.Int64("arena", arenaID),
		slog.Int("loser_ordinal", loserOrdinal),
		slog.Int64("amount", fee),
	)
	e.emit(domain.Event{Type: domain.EventFeeSwept, ArenaID: arenaID, Amount: fee})
	return fee, nil
}

// ClaimRefund returns a participant's full stake from a cancelled arena. The
// own-stake flag doubles as the refund guard, so every entry is refunded at
// most once.
func (e *Engine) ClaimRefund(ctx context.Context, caller domain.Identity, arenaID int64) (int64, error) {
	var amount int64
	err := e.inTx(ctx, func(tx domain.LedgerTx) error {
		arena, err := tx.Arena(ctx, arenaID)
		if err != nil {
			return fmt.Errorf("engine: claim refund arena %d: %w", arenaID, err)
		}
		if arena.Status != domain.ArenaCancelled {
			return fmt.Errorf("engine: claim refund arena %d: %w", arenaID, domain.ErrArenaNotCancelled)
		}

		entry, err := tx.Entry(ctx, arenaID, caller)
		if err != nil {
			return fmt.Errorf("engine: claim refund: %w", err)
		}
		if entry.OwnStakeClaimed {
			return fmt.Errorf("engine: claim refund: %w", domain.ErrAlreadyClaimed)
		}

		amount = entry.StakeValue
		if _, err := tx.DebitEscrow(ctx, arenaID, entry.SlotIndex, caller, amount, domain.TransferRefund); err != nil {
			return fmt.Errorf("engine: claim refund: %w", err)
		}
		entry.OwnStakeClaimed = true
		return tx.PutEntry(ctx, entry)
	})
	if err != nil {
		return 0, err
	}

	e.logger.InfoContext(ctx, "engine: refund claimed",
		slog.Int64("arena", arenaID),
		slog.String("player", string(caller)),
		slog.Int64("amount", amount),
	)
	e.emit(domain.Event{Type: domain.EventRefunded, ArenaID: arenaID, Player: caller, Amount: amount})
	return amount, nil
}

// SweepResidue moves integer-rounding dust left in a fully settled arena's
// escrows to the treasury. It is legal only after every winner has reclaimed
// their stake and drained every loser, and every loser's fee is swept, so the
// residue is provably unclaimable by participants.
func (e *Engine) SweepResidue(ctx context.Context, caller domain.Identity, arenaID int64) (int64, error) {
	var total int64
	err := e.inTx(ctx, func(tx domain.LedgerTx) error {
		cfg, err := tx.GlobalConfig(ctx)
		if err != nil {
			return fmt.Errorf("engine: sweep residue: %w", err)
		}
		if !e.auth.CanAdminister(cfg, caller) {
			return fmt.Errorf("engine: sweep residue: %w", domain.ErrUnauthorized)
		}

		arena, err := settledArena(ctx, tx, arenaID)
		if err != nil {
			return fmt.Errorf("engine: sweep residue arena %d: %w", arenaID, err)
		}

		entries, err := tx.Entries(ctx, arenaID)
		if err != nil {
			return fmt.Errorf("engine: sweep residue: %w", err)
		}
		losers := 0
		for _, en := range entries {
			if en.SlotIndex != arena.WinningSlot {
				losers++
			}
		}
		for _, en := range entries {
			if en.SlotIndex == arena.WinningSlot {
				if !en.OwnStakeClaimed || en.RewardsClaimed.Count() < losers {
					return fmt.Errorf("engine: sweep residue: %w", domain.ErrSettlementOpen)
				}
			} else if !en.FeeClaimed {
				return fmt.Errorf("engine: sweep residue: %w", domain.ErrSettlementOpen)
			}
		}

		aggs, err := tx.AssetAggregates(ctx, arenaID)
		if err != nil {
			return fmt.Errorf("engine: sweep residue: %w", err)
		}
		for _, agg := range aggs {
			bal, err := tx.EscrowBalance(ctx, arenaID, agg.SlotIndex)
			if err != nil {
				return fmt.Errorf("engine: sweep residue: %w", err)
			}
			if bal <= 0 {
				continue
			}
			if _, err := tx.DebitEscrow(ctx, arenaID, agg.SlotIndex, cfg.Treasury, bal, domain.TransferFee); err != nil {
				return fmt.Errorf("engine: sweep residue: %w", err)
			}
			total += bal
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.logger.InfoContext(ctx, "engine: residue swept",
		slog.Int64("arena", arenaID),
		slog.Int64("amount", total),
	)
	if total > 0 {
		e.emit(domain.Event{Type: domain.EventFeeSwept, ArenaID: arenaID, Amount: total})
	}
	return total, nil
}
