package predictor

import (
	"fmt"
)

const (
	AggregateMean = "mean"
	AggregateSum  = "sum"
)

// Node is one node of a regression tree. Leaves have Feature < 0 and carry
// Value. Internal nodes send x[Feature] <= Threshold to Left.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value,omitempty"`
}

// Tree stores nodes in a flat slice with the root at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) evaluate(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// validate checks that every child index points forward, which rules out
// cycles, and that split features fall inside the design vector.
func (t Tree) validate(width int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Feature < 0 {
			continue
		}
		if n.Feature >= width {
			return fmt.Errorf("node %d splits on feature %d, design width is %d", i, n.Feature, width)
		}
		for _, child := range []int{n.Left, n.Right} {
			if child <= i || child >= len(t.Nodes) {
				return fmt.Errorf("node %d has invalid child %d", i, child)
			}
		}
	}
	return nil
}

// treeEnsemble averages its trees (random forest) or adds their scaled sum
// to a base score (gradient boosting).
type treeEnsemble struct {
	trees        []Tree
	aggregation  string
	baseScore    float64
	learningRate float64
}

func newTreeEnsemble(trees []Tree, aggregation string, baseScore, learningRate float64) (*treeEnsemble, error) {
	if len(trees) == 0 {
		return nil, fmt.Errorf("tree ensemble without trees")
	}
	if aggregation == "" {
		aggregation = AggregateMean
	}
	if aggregation != AggregateMean && aggregation != AggregateSum {
		return nil, fmt.Errorf("unsupported aggregation %q", aggregation)
	}
	if aggregation == AggregateSum && learningRate == 0 {
		learningRate = 1
	}
	return &treeEnsemble{
		trees:        trees,
		aggregation:  aggregation,
		baseScore:    baseScore,
		learningRate: learningRate,
	}, nil
}

func (e *treeEnsemble) evaluate(x []float64) float64 {
	var sum float64
	for _, t := range e.trees {
		sum += t.evaluate(x)
	}
	if e.aggregation == AggregateMean {
		return sum / float64(len(e.trees))
	}
	return e.baseScore + e.learningRate*sum
}

func (e *treeEnsemble) validate(width int) error {
	for i, t := range e.trees {
		if err := t.validate(width); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
