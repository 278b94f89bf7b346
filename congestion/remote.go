package congestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// RemotePredictor 远程拥堵分类服务客户端
// 功能：POST {"features": [hour, weekday, meanCount]}，期望返回 {"class": n}
type RemotePredictor struct {
	url    string
	client *http.Client
}

type remoteRequest struct {
	Features Features `json:"features"`
}

type remoteResponse struct {
	Class *int `json:"class"`
}

// NewRemotePredictor 创建远程分类服务客户端，client为nil时使用http.DefaultClient
func NewRemotePredictor(url string, client *http.Client) *RemotePredictor {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemotePredictor{url: url, client: client}
}

func (p *RemotePredictor) Predict(ctx context.Context, features Features) (int, error) {
	data, err := json.Marshal(remoteRequest{Features: features})
	if err != nil {
		return 0, fmt.Errorf("%w: marshal request: %w", ErrPredictorInference, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewBuffer(data))
	if err != nil {
		return 0, fmt.Errorf("%w: create request: %w", ErrPredictorUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPredictorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("%w: predictor returned non-200 status: %d %s, body: %s",
			ErrPredictorInference, resp.StatusCode, resp.Status, string(body))
	}
	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decode response: %w", ErrPredictorInference, err)
	}
	if out.Class == nil {
		return 0, fmt.Errorf("%w: response has no class", ErrPredictorInference)
	}
	return *out.Class, nil
}
