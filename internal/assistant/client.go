// Package assistant 术后照护 AI 助手客户端
//
// 助手只做康复常识问答，返回文本会原样入库为 assistant 角色消息。
// 不做医疗诊断，网关侧有免责话术兜底。
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Turn 会话中的一轮（传给助手的上下文）
type Turn struct {
	Role string `json:"role"` // patient / assistant
	Text string `json:"text"`
}

// replyRequest 助手请求
type replyRequest struct {
	PatientContext string `json:"patient_context,omitempty"` // 手术/出院日期等简述
	History        []Turn `json:"history"`
	Message        string `json:"message"`
}

// replyResponse 助手响应
type replyResponse struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

type replyData struct {
	Reply string `json:"reply"`
}

// Client AI 助手服务客户端
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建助手客户端
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second). // 生成回复可能较慢
		SetRetryCount(1).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", "Bearer "+apiKey)

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// Reply 请求助手生成一条回复
func (c *Client) Reply(ctx context.Context, patientContext string, history []Turn, message string) (string, error) {
	request := replyRequest{
		PatientContext: patientContext,
		History:        history,
		Message:        message,
	}

	var response replyResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/assistant/reply")

	if err != nil {
		c.logger.Error("Assistant API call failed", zap.Error(err))
		return "", fmt.Errorf("failed to call assistant API: %w", err)
	}

	if resp.StatusCode() >= 300 || response.Status != 0 {
		c.logger.Error("Assistant API returned error",
			zap.Int("http_status", resp.StatusCode()),
			zap.Int("status", response.Status),
			zap.String("msg", response.Msg),
		)
		return "", fmt.Errorf("assistant API error: %s (status: %d)", response.Msg, response.Status)
	}

	var data replyData
	if err := json.Unmarshal(response.Data, &data); err != nil {
		return "", fmt.Errorf("failed to unmarshal assistant reply: %w", err)
	}

	return data.Reply, nil
}
