package congestion

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Node 决策树节点
// 说明：Feature<0 表示叶子节点，Value为叶子的类别；
// 非叶子节点按 x[Feature] <= Threshold 走向Left，否则走向Right
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     int     `json:"value"`
}

// Tree 决策树，根节点为Nodes[0]
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest 随机森林分类器
// 功能：由离线训练导出的JSON模型加载，多数投票给出类别
type Forest struct {
	Classes int    `json:"n_classes"`
	Trees   []Tree `json:"trees"`
}

// ParseForest 解析并校验JSON格式的随机森林模型
func ParseForest(data []byte) (*Forest, error) {
	f := &Forest{}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("decode forest: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// LoadForest 从文件加载随机森林模型
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read forest %s: %w", path, err)
	}
	f, err := ParseForest(data)
	if err != nil {
		return nil, fmt.Errorf("load forest %s: %w", path, err)
	}
	return f, nil
}

func (f *Forest) validate() error {
	if f.Classes <= 0 {
		return fmt.Errorf("forest has invalid class count %d", f.Classes)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for i, t := range f.Trees {
		n := len(t.Nodes)
		if n == 0 {
			return fmt.Errorf("tree %d is empty", i)
		}
		for j, node := range t.Nodes {
			if node.Feature < 0 {
				if node.Value < 0 || node.Value >= f.Classes {
					return fmt.Errorf("tree %d node %d: class %d out of range", i, j, node.Value)
				}
				continue
			}
			if node.Feature >= len(Features{}) {
				return fmt.Errorf("tree %d node %d: feature %d out of range", i, j, node.Feature)
			}
			// 子节点必须位于父节点之后，保证遍历必然终止
			if node.Left <= j || node.Left >= n || node.Right <= j || node.Right >= n {
				return fmt.Errorf("tree %d node %d: invalid children %d/%d", i, j, node.Left, node.Right)
			}
		}
	}
	return nil
}

// Predict 多数投票给出类别，票数相同时取较小的类别
func (f *Forest) Predict(ctx context.Context, features Features) (int, error) {
	votes := make([]int, f.Classes)
	for _, t := range f.Trees {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrPredictorInference, err)
		}
		votes[t.classify(features)]++
	}
	best := 0
	for class, v := range votes {
		if v > votes[best] {
			best = class
		}
	}
	return best, nil
}

func (t *Tree) classify(x Features) int {
	i := 0
	for {
		node := t.Nodes[i]
		if node.Feature < 0 {
			return node.Value
		}
		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}
