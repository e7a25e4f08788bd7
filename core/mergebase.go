package core

import (
	"context"

	"github.com/gitmap-dev/gitmap/object"
)

// MergeBase finds the most recent common ancestor of two commits by
// walking both parent chains breadth-first with shared seen sets.
// Among the nearest common ancestors (fewest total steps summed over
// both sides) a criss-cross tie is broken deterministically: lowest
// timestamp first, then lexically smallest id.
func (r *Repository) MergeBase(ctx context.Context, a, b string) (string, error) {
	depthsA, err := r.ancestorDepths(ctx, a)
	if err != nil {
		return "", err
	}
	depthsB, err := r.ancestorDepths(ctx, b)
	if err != nil {
		return "", err
	}

	var (
		best      string
		bestScore int
		bestTime  *object.Commit
	)
	for id, da := range depthsA {
		db, ok := depthsB[id]
		if !ok {
			continue
		}
		score := da + db
		if best != "" && score > bestScore {
			continue
		}
		commit, err := r.GetCommit(ctx, id)
		if err != nil {
			return "", err
		}
		better := best == "" || score < bestScore
		if !better && score == bestScore {
			if commit.Timestamp.Before(bestTime.Timestamp) {
				better = true
			} else if commit.Timestamp.Equal(bestTime.Timestamp) && id < best {
				better = true
			}
		}
		if better {
			best, bestScore, bestTime = id, score, commit
		}
	}
	if best == "" {
		return "", ErrNoCommonAncestor
	}
	return best, nil
}

// IsAncestor reports whether old is an ancestor of (or equal to) new.
func (r *Repository) IsAncestor(ctx context.Context, old, new string) (bool, error) {
	depths, err := r.ancestorDepths(ctx, new)
	if err != nil {
		return false, err
	}
	_, ok := depths[old]
	return ok, nil
}

// ancestorDepths walks the parent chain breadth-first and returns the
// minimal step count from start to every reachable commit, start
// included at depth zero.
func (r *Repository) ancestorDepths(ctx context.Context, start string) (map[string]int, error) {
	depths := map[string]int{start: 0}
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		commit, err := r.GetCommit(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, parent := range commit.Parents {
			if _, seen := depths[parent]; seen {
				continue
			}
			depths[parent] = depths[id] + 1
			queue = append(queue, parent)
		}
	}
	return depths, nil
}
