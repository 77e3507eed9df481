package giftcard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agrimatch/internal/config"
	"agrimatch/pkg/idgen"

	"github.com/go-resty/resty/v2"
)

var ErrIssueFailed = errors.New("购物卡发放失败")

// Card 发放结果
type Card struct {
	Code     string
	Provider string
}

// Issuer 购物卡发放方
type Issuer interface {
	Issue(ctx context.Context, userID, faceValue int64) (*Card, error)
}

// NewIssuer 配置了供应商地址时走 HTTP，否则本地生成卡密
func NewIssuer(cfg *config.GiftCardConfig) Issuer {
	if cfg.BaseURL == "" {
		return LocalIssuer{}
	}
	return NewHTTPIssuer(cfg)
}

// LocalIssuer 本地生成卡密，用于演示环境
type LocalIssuer struct{}

func (LocalIssuer) Issue(_ context.Context, _ int64, faceValue int64) (*Card, error) {
	return &Card{
		Code:     fmt.Sprintf("JD%d%012d", faceValue, idgen.NextID()%1000000000000),
		Provider: "local",
	}, nil
}

// HTTPIssuer 调用供应商接口发卡
type HTTPIssuer struct {
	client *resty.Client
}

type issueRequest struct {
	UserID    int64  `json:"user_id"`
	FaceValue int64  `json:"face_value"`
	RequestID string `json:"request_id"`
}

type issueResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		CardCode string `json:"card_code"`
	} `json:"data"`
}

func NewHTTPIssuer(cfg *config.GiftCardConfig) *HTTPIssuer {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(200*time.Millisecond).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}
	return &HTTPIssuer{client: client}
}

func (h *HTTPIssuer) Issue(ctx context.Context, userID, faceValue int64) (*Card, error) {
	var out issueResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(issueRequest{
			UserID:    userID,
			FaceValue: faceValue,
			RequestID: idgen.GenerateTransactionNo(),
		}).
		SetResult(&out).
		Post("/cards/issue")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIssueFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: http %d", ErrIssueFailed, resp.StatusCode())
	}
	if out.Code != 0 || out.Data.CardCode == "" {
		return nil, fmt.Errorf("%w: %s", ErrIssueFailed, out.Message)
	}
	return &Card{Code: out.Data.CardCode, Provider: "http"}, nil
}
