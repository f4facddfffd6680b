package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RandomForest averages regression trees fit on bootstrap samples. Tree i
// draws its sample from a generator seeded with Seed+i, so the ensemble is
// reproducible regardless of how many workers fit it.
type RandomForest struct {
	NumTrees        int
	MaxDepth        int
	MinSamplesSplit int
	Seed            int64
	Workers         int

	trees []*DecisionTree
}

func NewRandomForest(numTrees, maxDepth, minSamplesSplit int, seed int64) *RandomForest {
	return &RandomForest{
		NumTrees:        numTrees,
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		Seed:            seed,
	}
}

func (rf *RandomForest) Fit(ctx context.Context, features [][]float64, targets []float64) error {
	if len(features) == 0 || len(targets) == 0 {
		return errors.New("features or targets empty")
	}
	if len(features) != len(targets) {
		return errors.New("features and targets size mismatch")
	}
	if rf.NumTrees <= 0 {
		return errors.New("number of trees must be positive")
	}

	workers := rf.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*DecisionTree, rf.NumTrees)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rnd := rand.New(rand.NewSource(rf.Seed + int64(i)))
			sampleX := make([][]float64, len(features))
			sampleY := make([]float64, len(targets))
			for j := range sampleX {
				row := rnd.Intn(len(features))
				sampleX[j] = features[row]
				sampleY[j] = targets[row]
			}
			tree := NewDecisionTree(rf.MaxDepth, rf.MinSamplesSplit)
			if err := tree.Fit(ctx, sampleX, sampleY); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	rf.trees = trees
	return nil
}

func (rf *RandomForest) Predict(features []float64) (float64, error) {
	if len(rf.trees) == 0 {
		return 0, errors.New("model not trained")
	}
	sum := 0.0
	for _, tree := range rf.trees {
		value, err := tree.Predict(features)
		if err != nil {
			return 0, err
		}
		sum += value
	}
	return sum / float64(len(rf.trees)), nil
}

type forestJSON struct {
	NumTrees        int             `json:"n_estimators"`
	MaxDepth        int             `json:"max_depth"`
	MinSamplesSplit int             `json:"min_samples_split"`
	Seed            int64           `json:"seed"`
	Trees           []*DecisionTree `json:"trees"`
}

func (rf *RandomForest) MarshalJSON() ([]byte, error) {
	if len(rf.trees) == 0 {
		return nil, errors.New("model not trained")
	}
	return json.Marshal(forestJSON{
		NumTrees:        rf.NumTrees,
		MaxDepth:        rf.MaxDepth,
		MinSamplesSplit: rf.MinSamplesSplit,
		Seed:            rf.Seed,
		Trees:           rf.trees,
	})
}

func (rf *RandomForest) UnmarshalJSON(payload []byte) error {
	var decoded forestJSON
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return err
	}
	if len(decoded.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	for i, tree := range decoded.Trees {
		if tree == nil {
			return fmt.Errorf("tree %d is empty", i)
		}
	}
	rf.NumTrees = decoded.NumTrees
	rf.MaxDepth = decoded.MaxDepth
	rf.MinSamplesSplit = decoded.MinSamplesSplit
	rf.Seed = decoded.Seed
	rf.trees = decoded.Trees
	return nil
}
