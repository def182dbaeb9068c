package accel

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// Partitions with this many items or fewer become leaves.
	maxLeafItems = 4
	sahBins      = 12
)

// node is a BVH node in a contiguous, depth-first list. A node with
// count > 0 is a leaf covering order[first:first+count]; otherwise left and
// right index its children.
type node struct {
	bounds      AABB
	left, right int32
	first       int32
	count       int32
}

func (n *node) isLeaf() bool {
	return n.count > 0
}

// boundedItem is a primitive as seen by the builder.
type boundedItem struct {
	bounds AABB
	center mgl32.Vec3
	index  int32
}

type splitCandidate struct {
	axis  int
	bin   int
	score float32
}

// buildBVH partitions items with a binned surface area heuristic and returns
// the node list plus the item order referenced by leaves.
func buildBVH(items []boundedItem) ([]node, []int32) {
	if len(items) == 0 {
		return nil, nil
	}
	b := &bvhBuilder{
		nodes: make([]node, 0, 2*len(items)/maxLeafItems+1),
		order: make([]int32, 0, len(items)),
	}
	b.partition(items)
	return b.nodes, b.order
}

type bvhBuilder struct {
	nodes []node
	order []int32
}

// partition emits the node for items and returns its index.
func (b *bvhBuilder) partition(items []boundedItem) int32 {
	bounds := EmptyAABB()
	centroids := EmptyAABB()
	for _, it := range items {
		bounds = bounds.Union(it.bounds)
		centroids = centroids.Extend(it.center)
	}

	nodeIndex := int32(len(b.nodes))
	b.nodes = append(b.nodes, node{bounds: bounds})

	if len(items) <= maxLeafItems {
		b.makeLeaf(nodeIndex, items)
		return nodeIndex
	}

	best, ok := b.bestSplit(items, bounds, centroids)
	if !ok {
		b.makeLeaf(nodeIndex, items)
		return nodeIndex
	}

	// Partition in place around the chosen bin boundary.
	lo, hi := 0, len(items)-1
	for lo <= hi {
		if binOf(items[lo].center, centroids, best.axis) <= best.bin {
			lo++
		} else {
			items[lo], items[hi] = items[hi], items[lo]
			hi--
		}
	}
	if lo == 0 || lo == len(items) {
		b.makeLeaf(nodeIndex, items)
		return nodeIndex
	}

	left := b.partition(items[:lo])
	right := b.partition(items[lo:])
	b.nodes[nodeIndex].left = left
	b.nodes[nodeIndex].right = right
	return nodeIndex
}

func (b *bvhBuilder) makeLeaf(nodeIndex int32, items []boundedItem) {
	b.nodes[nodeIndex].first = int32(len(b.order))
	b.nodes[nodeIndex].count = int32(len(items))
	for _, it := range items {
		b.order = append(b.order, it.index)
	}
}

// bestSplit scores every bin boundary on every axis and returns the cheapest
// split, or false if no split beats keeping the items in one leaf.
func (b *bvhBuilder) bestSplit(items []boundedItem, bounds, centroids AABB) (splitCandidate, bool) {
	leafScore := float32(len(items)) * bounds.SurfaceArea()
	best := splitCandidate{score: leafScore}
	found := false

	for axis := 0; axis < 3; axis++ {
		if centroids.Max[axis]-centroids.Min[axis] < 1e-6 {
			continue
		}

		var binBounds [sahBins]AABB
		var binCounts [sahBins]int
		for i := range binBounds {
			binBounds[i] = EmptyAABB()
		}
		for _, it := range items {
			bin := binOf(it.center, centroids, axis)
			binBounds[bin] = binBounds[bin].Union(it.bounds)
			binCounts[bin]++
		}

		for split := 0; split < sahBins-1; split++ {
			left, right := EmptyAABB(), EmptyAABB()
			leftCount, rightCount := 0, 0
			for i := 0; i <= split; i++ {
				left = left.Union(binBounds[i])
				leftCount += binCounts[i]
			}
			for i := split + 1; i < sahBins; i++ {
				right = right.Union(binBounds[i])
				rightCount += binCounts[i]
			}
			if leftCount == 0 || rightCount == 0 {
				continue
			}

			score := float32(leftCount)*left.SurfaceArea() + float32(rightCount)*right.SurfaceArea()
			if score < best.score {
				best = splitCandidate{axis: axis, bin: split, score: score}
				found = true
			}
		}
	}
	return best, found
}

func binOf(center mgl32.Vec3, centroids AABB, axis int) int {
	extent := centroids.Max[axis] - centroids.Min[axis]
	if extent <= 0 {
		return 0
	}
	bin := int(float32(sahBins) * (center[axis] - centroids.Min[axis]) / extent)
	if bin >= sahBins {
		bin = sahBins - 1
	}
	if bin < 0 {
		bin = 0
	}
	return bin
}

// traverse walks the tree front to back and calls leaf for every leaf whose
// box the ray enters before tmax. leaf returns the new closest distance.
func traverse(nodes []node, origin, dir mgl32.Vec3, tmin, tmax float32, leaf func(n *node, tmax float32) float32) float32 {
	if len(nodes) == 0 {
		return tmax
	}
	invDir := mgl32.Vec3{1 / dir[0], 1 / dir[1], 1 / dir[2]}

	stack := make([]int32, 1, 64)
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &nodes[top]
		if _, ok := n.bounds.hitSlab(origin, invDir, tmin, tmax); !ok {
			continue
		}
		if n.isLeaf() {
			tmax = leaf(n, tmax)
			continue
		}

		// Push the far child first so the near one is visited first.
		tl, hitL := nodes[n.left].bounds.hitSlab(origin, invDir, tmin, tmax)
		tr, hitR := nodes[n.right].bounds.hitSlab(origin, invDir, tmin, tmax)
		switch {
		case hitL && hitR:
			near, far := n.left, n.right
			if tr < tl {
				near, far = far, near
			}
			stack = append(stack, far, near)
		case hitL:
			stack = append(stack, n.left)
		case hitR:
			stack = append(stack, n.right)
		}
	}
	return tmax
}

// Infinity is the open upper bound for ray intervals.
var Infinity = math32.Inf(1)
