// 拥堵等级估计：根据最近车辆数与时间特征给出LOW/MEDIUM/HIGH等级与置信度
package congestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPredictorUnavailable = errors.New("congestion predictor unavailable")
	ErrPredictorInference   = errors.New("congestion predictor inference failed")
)

// Level 拥堵等级
type Level int

const (
	LOW Level = iota
	MEDIUM
	HIGH
)

var levelNames = [...]string{"LOW", "MEDIUM", "HIGH"}

func (l Level) String() string {
	if l < LOW || l > HIGH {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	v := strings.ToUpper(string(text))
	for i, name := range levelNames {
		if name == v {
			*l = Level(i)
			return nil
		}
	}
	return fmt.Errorf("unknown congestion level %q", string(text))
}

// LevelOfClass 将分类器输出映射为拥堵等级，{0,1,2}之外的值按MEDIUM处理
func LevelOfClass(class int) Level {
	switch class {
	case 0:
		return LOW
	case 1:
		return MEDIUM
	case 2:
		return HIGH
	default:
		return MEDIUM
	}
}

const (
	// PredictedConfidence 分类器给出等级时的固定置信度
	PredictedConfidence = 0.82
	// FallbackConfidence 无可用分类器时的固定置信度
	FallbackConfidence = 0.75
)

// Estimate 拥堵估计结果
type Estimate struct {
	Level      Level   `json:"level"`
	Confidence float64 `json:"confidence"`
}

// Fallback 分类器不可用时的静态估计
var Fallback = Estimate{Level: MEDIUM, Confidence: FallbackConfidence}

// Features 分类器输入特征 [hour, weekday, meanCount]
type Features [3]float64

// NewFeatures 构造分类器输入特征
// 参数：hour-小时（0..23），weekday-星期（0..6，周一为0），meanCount-各车道车辆数均值
func NewFeatures(hour, weekday int, meanCount float64) Features {
	return Features{float64(hour), float64(weekday), meanCount}
}

// Predictor 拥堵分类器
// 功能：输入3维特征，输出整数类别，期望取值为{0,1,2}
// 说明：不可用时应返回ErrPredictorUnavailable
type Predictor interface {
	Predict(ctx context.Context, features Features) (int, error)
}

// PredictorFunc 函数形式的分类器
type PredictorFunc func(ctx context.Context, features Features) (int, error)

func (f PredictorFunc) Predict(ctx context.Context, features Features) (int, error) {
	return f(ctx, features)
}
