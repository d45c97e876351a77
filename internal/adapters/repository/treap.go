package repository

import (
	"math"

	"github.com/okian/storyrank/internal/domain/types"
)

// Treap ordered for leaderboard reads.
//
// Ordering: rating DESC, then story id ASC. "less" means ranks earlier, so
// an in-order walk yields the leaderboard from best to worst. Priorities
// are random, which keeps the expected depth logarithmic regardless of how
// ratings cluster.

// ratingScale keeps six decimals; rank-to-range writes fractional values.
const ratingScale = 1_000_000

type ratingFP int64

func toFixedPoint(x float64) ratingFP {
	scaled := math.Round(x * ratingScale)
	switch {
	case math.IsNaN(scaled):
		return 0
	case scaled >= math.MaxInt64:
		return ratingFP(math.MaxInt64)
	case scaled <= math.MinInt64:
		return ratingFP(math.MinInt64)
	}
	return ratingFP(scaled)
}

func toFloat(x ratingFP) float64 {
	return float64(x) / ratingScale
}

type node struct {
	id    string
	key   ratingFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(aKey ratingFP, aID string, bKey ratingFP, bID string) bool {
	if aKey != bKey {
		return aKey > bKey
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, key ratingFP, prio uint64) *node {
	if n == nil {
		return &node{id: id, key: key, prio: prio, size: 1}
	}
	if less(key, id, n.key, n.id) {
		n.left = insert(n.left, id, key, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, key, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, key ratingFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case key == n.key && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, key)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, key)
		}
	case less(key, id, n.key, n.id):
		n.left = deleteNode(n.left, id, key)
	default:
		n.right = deleteNode(n.right, id, key)
	}
	fix(n)
	return n
}

// walk visits nodes in leaderboard order until visit returns false.
func walk(n *node, visit func(*node) bool) bool {
	if n == nil {
		return true
	}
	if !walk(n.left, visit) {
		return false
	}
	if !visit(n) {
		return false
	}
	return walk(n.right, visit)
}

// ratingIndex is the per (tenant, metric) leaderboard.
type ratingIndex struct {
	root *node
	keys map[string]ratingFP
}

func newRatingIndex() *ratingIndex {
	return &ratingIndex{keys: make(map[string]ratingFP)}
}

func (ix *ratingIndex) set(id string, value float64, prio uint64) {
	key := toFixedPoint(value)
	if old, ok := ix.keys[id]; ok {
		if old == key {
			return
		}
		ix.root = deleteNode(ix.root, id, old)
	}
	ix.keys[id] = key
	ix.root = insert(ix.root, id, key, prio)
}

// top returns up to limit entries with dense ranks: equal ratings share a
// rank and the next distinct rating takes the following number.
func (ix *ratingIndex) top(limit int) []types.Entry {
	out := make([]types.Entry, 0, min(limit, nsize(ix.root)))
	rank := 0
	var prev ratingFP
	walk(ix.root, func(n *node) bool {
		if len(out) >= limit {
			return false
		}
		if rank == 0 || n.key != prev {
			rank++
			prev = n.key
		}
		out = append(out, types.Entry{Rank: rank, StoryID: n.id, Rating: toFloat(n.key)})
		return true
	})
	return out
}

// rank returns the dense rank of id, walking only the stories above it.
func (ix *ratingIndex) rank(id string) (types.Entry, bool) {
	key, ok := ix.keys[id]
	if !ok {
		return types.Entry{}, false
	}
	rank := 0
	var prev ratingFP
	walk(ix.root, func(n *node) bool {
		if rank == 0 || n.key != prev {
			rank++
			prev = n.key
		}
		return n.id != id
	})
	return types.Entry{Rank: rank, StoryID: id, Rating: toFloat(key)}, true
}
