package loadgen

import (
	"errors"
	"fmt"

	"github.com/okian/leaderboard/internal/domain/model"
)

// ErrVerification wraps every ranking inconsistency found by a check.
var ErrVerification = errors.New("ranking verification failed")

func failf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrVerification, fmt.Sprintf(format, args...))
}

// checkOrdered verifies entries are in rank order with dense ranks and
// no repeated user.
func checkOrdered(entries []model.RankedUser) error {
	seen := make(map[int64]struct{}, len(entries))
	for i, e := range entries {
		if _, dup := seen[e.ID]; dup {
			return failf("user %d listed twice", e.ID)
		}
		seen[e.ID] = struct{}{}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if !prev.User.Outranks(e.User) {
			return failf("entry %d (id %d, score %d) sorts before entry %d (id %d, score %d)",
				i, e.ID, e.Score, i-1, prev.ID, prev.Score)
		}
		want := prev.Rank
		if e.Score != prev.Score {
			want++
		}
		if e.Rank != want {
			return failf("entry %d (id %d) has rank %d, want %d", i, e.ID, e.Rank, want)
		}
	}
	return nil
}

// CheckTopN verifies a getTopUsers answer for limit.
func CheckTopN(top []model.RankedUser, limit int) error {
	if len(top) > limit {
		return failf("top %d returned %d entries", limit, len(top))
	}
	if len(top) > 0 && top[0].Rank != 1 {
		return failf("first entry has rank %d", top[0].Rank)
	}
	return checkOrdered(top)
}

// CheckWindow verifies a getUserWithNeighbors answer around target.
func CheckWindow(window []model.RankedUser, target model.RankedUser, radius int) error {
	if err := checkOrdered(window); err != nil {
		return err
	}
	lo, hi := target.Rank-radius, target.Rank+radius
	if lo < 1 {
		lo = 1
	}
	found := false
	for _, e := range window {
		if e.Rank < lo || e.Rank > hi {
			return failf("rank %d outside [%d, %d] around user %d", e.Rank, lo, hi, target.ID)
		}
		if e.ID == target.ID {
			found = true
			if e.Rank != target.Rank {
				return failf("user %d ranked %d in window, %d alone", e.ID, e.Rank, target.Rank)
			}
		}
	}
	if !found {
		return failf("window around user %d does not contain it", target.ID)
	}
	if window[0].Rank != lo {
		return failf("window around user %d starts at rank %d, want %d", target.ID, window[0].Rank, lo)
	}
	return nil
}

// CheckAgainstTop verifies a single ranked user agrees with the top list:
// anyone ranked strictly above the last listed rank must be listed.
func CheckAgainstTop(u model.RankedUser, top []model.RankedUser) error {
	if len(top) == 0 {
		return nil
	}
	last := top[len(top)-1].Rank
	if u.Rank >= last {
		return nil
	}
	for _, e := range top {
		if e.ID == u.ID {
			if e.Rank != u.Rank || e.Score != u.Score {
				return failf("user %d is rank %d score %d alone, rank %d score %d in top",
					u.ID, u.Rank, u.Score, e.Rank, e.Score)
			}
			return nil
		}
	}
	return failf("user %d has rank %d but is missing from the top list", u.ID, u.Rank)
}
