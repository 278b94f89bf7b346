package congestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/metrics"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/input"
)

// Estimator 拥堵估计器
// 功能：调用分类器得到拥堵等级，分类器缺失、超时或出错时回退为静态估计
// 说明：相同特征的估计结果在cacheTTL内复用，模型重载后需调用Invalidate
type Estimator struct {
	predictor Predictor
	timeout   time.Duration
	cache     *ttlcache.Cache[Features, Estimate]
}

// NewEstimator 创建拥堵估计器
// 参数：predictor-分类器（nil表示不可用），timeout-单次推理超时，cacheTTL-结果缓存时长（<=0不缓存）
func NewEstimator(predictor Predictor, timeout, cacheTTL time.Duration) *Estimator {
	e := &Estimator{
		predictor: predictor,
		timeout:   timeout,
	}
	if cacheTTL > 0 {
		e.cache = ttlcache.New(
			ttlcache.WithTTL[Features, Estimate](cacheTTL),
			ttlcache.WithDisableTouchOnHit[Features, Estimate](),
		)
	}
	return e
}

// Predict 计算拥堵估计（带错误的结果）
// 功能：以 [hour, weekday, mean(counts)] 为特征调用分类器
// 返回：成功时为分类器给出的估计；失败时返回Fallback以及ErrPredictorUnavailable或ErrPredictorInference
func (e *Estimator) Predict(ctx context.Context, counts map[lane.ID]int, hour, weekday int) (Estimate, error) {
	if e.predictor == nil {
		return Fallback, ErrPredictorUnavailable
	}
	features := NewFeatures(hour, weekday, input.MeanCount(counts))
	if e.cache != nil {
		if item := e.cache.Get(features); item != nil {
			return item.Value(), nil
		}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	class, err := e.invoke(ctx, features)
	if err != nil {
		return Fallback, err
	}
	est := Estimate{Level: LevelOfClass(class), Confidence: PredictedConfidence}
	if e.cache != nil {
		e.cache.Set(features, est, ttlcache.DefaultTTL)
	}
	return est, nil
}

// Estimate 计算拥堵估计
// 功能：Predict的无错误版本，任何失败都折叠为Fallback并记录原因
func (e *Estimator) Estimate(ctx context.Context, counts map[lane.ID]int, hour, weekday int) Estimate {
	est, err := e.Predict(ctx, counts, hour, weekday)
	if err != nil {
		if errors.Is(err, ErrPredictorUnavailable) {
			metrics.RecordEstimatorFallback("unavailable")
			log.Debugf("use fallback estimate: %v", err)
		} else {
			metrics.RecordEstimatorFallback("inference")
			log.Warnf("use fallback estimate: %v", err)
		}
		return Fallback
	}
	return est
}

// Invalidate 清空结果缓存
func (e *Estimator) Invalidate() {
	if e.cache != nil {
		e.cache.DeleteAll()
	}
}

// invoke 在独立协程中调用分类器
// 说明：ctx到期即返回，不等待不响应ctx的分类器；分类器panic被转换为ErrPredictorInference
func (e *Estimator) invoke(ctx context.Context, features Features) (int, error) {
	type result struct {
		class int
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("%w: panic: %v", ErrPredictorInference, r)}
			}
		}()
		class, err := e.predictor.Predict(ctx, features)
		ch <- result{class: class, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && !errors.Is(r.err, ErrPredictorUnavailable) && !errors.Is(r.err, ErrPredictorInference) {
			return 0, fmt.Errorf("%w: %w", ErrPredictorInference, r.err)
		}
		return r.class, r.err
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %w", ErrPredictorInference, ctx.Err())
	}
}
