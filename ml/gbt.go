package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ModelFormatVersion is embedded in every serialized model. Load rejects
// files written by an incompatible trainer.
const ModelFormatVersion = 1

// TreeNode is one node of a regression tree, stored as a flat array with
// child indices.
type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	LeafValue  float64 `json:"leaf_value"`
	IsLeaf     bool    `json:"is_leaf"`
}

// GradientBoostedTrees is an additive ensemble of regression trees. The
// prediction is BaseScore plus LearningRate times the sum of tree outputs.
type GradientBoostedTrees struct {
	FormatVersion int          `json:"format_version"`
	BaseScore     float64      `json:"base_score"`
	LearningRate  float64      `json:"learning_rate"`
	Trees         [][]TreeNode `json:"trees"`
}

// LoadGradientBoostedTrees reads a serialized ensemble from disk.
func LoadGradientBoostedTrees(path string) (*GradientBoostedTrees, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var model GradientBoostedTrees
	if err := json.Unmarshal(payload, &model); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if model.FormatVersion != ModelFormatVersion {
		return nil, fmt.Errorf("model format version %d, runtime supports %d", model.FormatVersion, ModelFormatVersion)
	}
	if len(model.Trees) == 0 {
		return nil, errors.New("model has no trees")
	}
	return &model, nil
}

// Save writes the ensemble to disk.
func (m *GradientBoostedTrees) Save(path string) error {
	if len(m.Trees) == 0 {
		return errors.New("model has no trees")
	}
	m.FormatVersion = ModelFormatVersion
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// Predict walks every tree and accumulates leaf values.
func (m *GradientBoostedTrees) Predict(features []float64) (float64, error) {
	if len(m.Trees) == 0 {
		return 0, errors.New("model not loaded")
	}
	sum := 0.0
	for _, tree := range m.Trees {
		leaf, err := walkTree(tree, features)
		if err != nil {
			return 0, err
		}
		sum += leaf
	}
	rate := m.LearningRate
	if rate == 0 {
		rate = 1
	}
	return m.BaseScore + rate*sum, nil
}

func walkTree(tree []TreeNode, features []float64) (float64, error) {
	if len(tree) == 0 {
		return 0, errors.New("empty tree")
	}
	idx := 0
	// A well-formed tree reaches a leaf in at most len(tree) steps; more
	// means the child indices form a cycle.
	for steps := 0; steps < len(tree); steps++ {
		node := tree[idx]
		if node.IsLeaf {
			return node.LeafValue, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, fmt.Errorf("feature index %d out of range for vector of length %d", node.FeatureIdx, len(features))
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(tree) {
			return 0, errors.New("invalid tree state")
		}
	}
	return 0, errors.New("invalid tree state")
}
