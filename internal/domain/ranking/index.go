// Package ranking computes dense ranks over the score store and keeps an
// immutable, atomically swapped rank index fresh.
package ranking

import (
	"sort"
	"time"

	"github.com/okian/leaderboard/internal/domain/model"
)

// Index is an immutable rank snapshot. Entries are ordered by rank, then id.
type Index struct {
	version uint64
	builtAt time.Time
	entries []model.RankedUser
	pos     map[int64]int
}

// Build sorts users by score desc, id asc and assigns dense ranks: equal
// scores share a rank, the next distinct score gets the previous rank + 1.
// version is the store version the users were read at.
func Build(users []model.User, version uint64) *Index {
	sorted := make([]model.User, len(users))
	copy(sorted, users)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Outranks(sorted[j]) })

	entries := make([]model.RankedUser, len(sorted))
	pos := make(map[int64]int, len(sorted))
	rank := 0
	for i, u := range sorted {
		if i == 0 || u.Score != sorted[i-1].Score {
			rank++
		}
		entries[i] = model.RankedUser{User: u, Rank: rank}
		pos[u.ID] = i
	}

	return &Index{
		version: version,
		builtAt: time.Now(),
		entries: entries,
		pos:     pos,
	}
}

// Version returns the store version this index reflects.
func (ix *Index) Version() uint64 { return ix.version }

// BuiltAt returns when the index was computed.
func (ix *Index) BuiltAt() time.Time { return ix.builtAt }

// Len returns the number of ranked users.
func (ix *Index) Len() int { return len(ix.entries) }

// Entries returns a copy of every ranked user in rank order.
func (ix *Index) Entries() []model.RankedUser {
	return clone(ix.entries)
}

// TopN returns the first n entries, or all of them when fewer exist.
func (ix *Index) TopN(n int) ([]model.RankedUser, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	if n > len(ix.entries) {
		n = len(ix.entries)
	}
	return clone(ix.entries[:n]), nil
}

// RankOf returns the ranked entry of user id.
func (ix *Index) RankOf(id int64) (model.RankedUser, error) {
	i, ok := ix.pos[id]
	if !ok {
		return model.RankedUser{}, ErrNotFound
	}
	return ix.entries[i], nil
}

// Window returns every entry whose rank lies within radius of the rank of
// user id, in rank order. The target is always included.
func (ix *Index) Window(id int64, radius int) ([]model.RankedUser, error) {
	if radius < 0 {
		return nil, ErrInvalidRadius
	}
	target, err := ix.RankOf(id)
	if err != nil {
		return nil, err
	}
	lowRank, highRank := target.Rank-radius, target.Rank+radius

	lo := sort.Search(len(ix.entries), func(i int) bool { return ix.entries[i].Rank >= lowRank })
	hi := sort.Search(len(ix.entries), func(i int) bool { return ix.entries[i].Rank > highRank })
	return clone(ix.entries[lo:hi]), nil
}

func clone(in []model.RankedUser) []model.RankedUser {
	out := make([]model.RankedUser, len(in))
	copy(out, in)
	return out
}
