// Package sms 短信网关客户端（OTP 验证码下发）
package sms

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// sendRequest 网关发送请求
type sendRequest struct {
	APIKey   string `json:"api_key"`
	Mobile   string `json:"mobile"`
	Template string `json:"template"`
	Code     string `json:"code"`
}

// sendResponse 网关响应
type sendResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

const otpTemplate = "otp_login"

// Client 短信网关客户端
type Client struct {
	httpClient *resty.Client
	apiKey     string
	logger     *zap.Logger
}

// NewClient 创建短信客户端
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// SendCode 下发登录验证码
func (c *Client) SendCode(mobile, code string) error {
	request := sendRequest{
		APIKey:   c.apiKey,
		Mobile:   mobile,
		Template: otpTemplate,
		Code:     code,
	}

	var response sendResponse
	resp, err := c.httpClient.R().
		SetBody(request).
		SetResult(&response).
		Post("/sms/send")

	if err != nil {
		c.logger.Error("SMS gateway call failed",
			zap.Error(err),
			zap.String("mobile", maskMobile(mobile)),
		)
		return fmt.Errorf("failed to call SMS gateway: %w", err)
	}

	if resp.StatusCode() >= 300 || response.Status != 0 {
		c.logger.Error("SMS gateway returned error",
			zap.Int("http_status", resp.StatusCode()),
			zap.Int("status", response.Status),
			zap.String("msg", response.Msg),
		)
		return fmt.Errorf("SMS gateway error: %s (status: %d)", response.Msg, response.Status)
	}

	c.logger.Info("OTP code sent",
		zap.String("mobile", maskMobile(mobile)),
	)

	return nil
}

// maskMobile 日志脱敏，保留尾号 4 位
func maskMobile(mobile string) string {
	if len(mobile) <= 4 {
		return "****"
	}
	return "****" + mobile[len(mobile)-4:]
}
