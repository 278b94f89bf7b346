// 智能问答：将路口实时状态渲染为提示词，调用外部文本生成服务
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/config"
)

var log = logrus.WithField("module", "advisor")

var (
	ErrDisabled    = errors.New("advisor is disabled")
	ErrUnavailable = errors.New("advisor service unavailable")
	ErrConnection  = errors.New("advisor connection error")
)

const (
	MessageUnavailable = "Gemini AI: Service temporarily unavailable."
	MessageConnection  = "Gemini AI: Connection error. Check API key."
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Advisor 文本生成服务客户端
type Advisor struct {
	endpoint string
	config   generationConfig
	client   *http.Client
}

// New 创建文本生成服务客户端
// 说明：API Key从配置指定的环境变量读取，作为key查询参数附加到URL上；URL为空时返回禁用状态的客户端
func New(c config.Advisor, client *http.Client) *Advisor {
	if client == nil {
		client = &http.Client{Timeout: c.Timeout}
	}
	a := &Advisor{
		config: generationConfig{
			Temperature:     c.Temperature,
			MaxOutputTokens: c.MaxOutputTokens,
		},
		client: client,
	}
	if c.URL == "" {
		return a
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		log.Warnf("advisor disabled, invalid url %q: %v", c.URL, err)
		return a
	}
	if key := os.Getenv(c.APIKeyEnv); key != "" {
		q := u.Query()
		q.Set("key", key)
		u.RawQuery = q.Encode()
	} else {
		log.Warnf("%s is not set, advisor requests are sent without an API key", c.APIKeyEnv)
	}
	a.endpoint = u.String()
	return a
}

// Enabled 是否配置了文本生成服务
func (a *Advisor) Enabled() bool {
	return a.endpoint != ""
}

// Generate 调用文本生成服务
// 返回：首个候选的文本；未配置、非200状态与网络错误分别返回ErrDisabled、ErrUnavailable与ErrConnection
func (a *Advisor) Generate(ctx context.Context, prompt string) (string, error) {
	if !a.Enabled() {
		return "", ErrDisabled
	}
	data, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: a.config,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewBuffer(data))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConnection, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d, body: %s", ErrUnavailable, resp.StatusCode, string(body))
	}
	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrConnection, err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: response has no candidates", ErrConnection)
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

// Chat 回答关于路口状态的问题
// 功能：渲染状态与问题为提示词并调用文本生成服务，任何失败都以固定提示文本返回
func (a *Advisor) Chat(ctx context.Context, s entity.Snapshot, question string) string {
	text, err := a.Generate(ctx, RenderPrompt(s, question))
	if err != nil {
		log.Warnf("advisor request failed: %v", err)
		if errors.Is(err, ErrConnection) {
			return MessageConnection
		}
		return MessageUnavailable
	}
	return text
}

// RenderPrompt 将路口状态与问题渲染为提示词
func RenderPrompt(s entity.Snapshot, question string) string {
	perLane := func(value func(id lane.ID) int) string {
		fields := make([]string, 0, len(lane.All))
		for _, id := range lane.All {
			fields = append(fields, fmt.Sprintf("%s:%d", id.Short(), value(id)))
		}
		return strings.Join(fields, " ")
	}
	emergency := "INACTIVE"
	if s.EmergencyActive {
		emergency = "ACTIVE"
	}

	var b strings.Builder
	b.WriteString("SMART TRAFFIC SYSTEM - AI ANALYST\n\n")
	b.WriteString("LIVE DATA:\n")
	fmt.Fprintf(&b, "Active: %v (GREEN %ds)\n", s.ActiveLane, s.RemainingTime)
	fmt.Fprintf(&b, "Counts: %s\n", perLane(func(id lane.ID) int { return s.LastCounts[id] }))
	fmt.Fprintf(&b, "Density: %s\n", perLane(func(id lane.ID) int { return s.Lane(id).Density }))
	fmt.Fprintf(&b, "Emergency: %s\n", emergency)
	fmt.Fprintf(&b, "Prediction: %v\n\n", s.Congestion.Level)
	fmt.Fprintf(&b, "QUESTION: %s\n\n", question)
	b.WriteString("Answer as traffic engineer. Be specific and actionable.\n")
	return b.String()
}
