package handler

import (
	"errors"
	"strconv"

	"agrimatch/internal/model"
	"agrimatch/internal/service"
	"agrimatch/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler 积分接口处理器
type Handler struct {
	ledger   *service.Ledger
	recharge *service.RechargeService
	card     *service.CardService
}

func NewHandler(ledger *service.Ledger, recharge *service.RechargeService, card *service.CardService) *Handler {
	return &Handler{
		ledger:   ledger,
		recharge: recharge,
		card:     card,
	}
}

// ============================================================
// 账户
// ============================================================

// GetMe 当前用户积分账户
// GET /api/points/me
func (h *Handler) GetMe(c *gin.Context) {
	account, err := h.ledger.GetOrCreateAccount(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, accountView(account))
}

// PointsRequest 积分数量请求
type PointsRequest struct {
	Points *int64 `json:"points" binding:"required"`
}

// Recharge 直接充值积分
// POST /api/points/recharge
func (h *Handler) Recharge(c *gin.Context) {
	var req PointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.ledger.Recharge(c.Request.Context(), currentUserID(c), *req.Points)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, accountView(account))
}

// Redeem 积分兑换人民币余额
// POST /api/points/redeem
func (h *Handler) Redeem(c *gin.Context) {
	var req PointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.ledger.Redeem(c.Request.Context(), currentUserID(c), *req.Points)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, accountView(account))
}

// ListTransactions 积分流水，最新在前
// GET /api/points/tx
// GET /api/points/tx?page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	userID := currentUserID(c)

	if c.Query("page") == "" && c.Query("page_size") == "" {
		txs, err := h.ledger.History(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err)
			return
		}
		response.Success(c, nonNil(txs))
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		response.ParamError(c, "page 参数错误")
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil {
		response.ParamError(c, "page_size 参数错误")
		return
	}

	txs, total, err := h.ledger.HistoryPage(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":     nonNil(txs),
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// Reconcile 回放流水核对当前用户余额
// GET /api/points/reconcile
func (h *Handler) Reconcile(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	consistent := true
	if err := h.ledger.Reconcile(ctx, userID); err != nil {
		if !errors.Is(err, service.ErrLedgerMismatch) {
			writeError(c, err)
			return
		}
		log.Error().Err(err).Int64("user_id", userID).Msg("积分对账不一致")
		consistent = false
	}

	balance, err := h.ledger.Balance(ctx, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"consistent":    consistent,
		"pointsBalance": balance,
	})
}

// ============================================================
// 充值订单
// ============================================================

type CreateRechargeOrderRequest struct {
	Amount     *int64 `json:"amount" binding:"required"`
	PayChannel string `json:"payChannel"`
}

// CreateRechargeOrder 创建充值订单，返回支付二维码
// POST /api/points/recharge/create
func (h *Handler) CreateRechargeOrder(c *gin.Context) {
	var req CreateRechargeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.recharge.CreateOrder(c.Request.Context(), &service.CreateRechargeRequest{
		UserID:     currentUserID(c),
		Amount:     *req.Amount,
		PayChannel: req.PayChannel,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// RechargeOrderStatus 查询充值订单状态
// GET /api/points/recharge/:orderNo/status
func (h *Handler) RechargeOrderStatus(c *gin.Context) {
	orderNo := c.Param("orderNo")
	status, err := h.recharge.OrderStatus(c.Request.Context(), orderNo)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"orderNo": orderNo,
		"status":  status,
	})
}

// ConfirmRechargeOrder 支付回调
// POST /api/points/recharge/:orderNo/confirm?tradeNo=xxx
func (h *Handler) ConfirmRechargeOrder(c *gin.Context) {
	orderNo := c.Param("orderNo")
	tradeNo := c.Query("tradeNo")
	if tradeNo == "" {
		response.ParamError(c, "tradeNo 参数不能为空")
		return
	}

	status, err := h.recharge.ConfirmOrder(c.Request.Context(), orderNo, tradeNo)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"orderNo": orderNo,
		"status":  status,
	})
}

// ============================================================
// 购物卡
// ============================================================

type CardRedeemRequest struct {
	FaceValue int64 `json:"faceValue" binding:"required"`
}

// RedeemCard 积分兑换购物卡
// POST /api/points/redeem/card
func (h *Handler) RedeemCard(c *gin.Context) {
	var req CardRedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.card.Redeem(c.Request.Context(), currentUserID(c), req.FaceValue)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// ListCardRedemptions 购物卡兑换记录
// GET /api/points/redeem/card/records
func (h *Handler) ListCardRedemptions(c *gin.Context) {
	records, err := h.card.Records(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if records == nil {
		records = []*model.CardRedemption{}
	}

	response.Success(c, records)
}

// GetLimits 限额，登录时附带当日已用额度
// GET /api/points/limits
func (h *Handler) GetLimits(c *gin.Context) {
	view, err := h.card.Limits(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, view)
}

func accountView(account *model.PointsAccount) gin.H {
	return gin.H{
		"pointsBalance": account.PointsBalance,
		"cnyBalance":    account.CnyBalance.StringFixed(2),
	}
}

func nonNil(txs []*model.PointsTransaction) []*model.PointsTransaction {
	if txs == nil {
		return []*model.PointsTransaction{}
	}
	return txs
}

// writeError 业务错误映射为错误码，其余按 500 处理并记录日志
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		response.BusinessError(c, response.CodeInvalidAmount, service.ErrInvalidAmount.Error())
	case errors.Is(err, service.ErrInsufficientBalance):
		response.BusinessError(c, response.CodeInsufficientBalance, service.ErrInsufficientBalance.Error())
	case errors.Is(err, service.ErrConcurrencyConflict):
		response.BusinessError(c, response.CodeConcurrencyConflict, service.ErrConcurrencyConflict.Error())
	case errors.Is(err, service.ErrDailyLimitExceeded):
		response.BusinessError(c, response.CodeDailyLimitExceeded, err.Error())
	case errors.Is(err, service.ErrUnsupportedFaceValue):
		response.BusinessError(c, response.CodeUnsupportedFaceValue, service.ErrUnsupportedFaceValue.Error())
	case errors.Is(err, service.ErrRechargeOrderNotFound):
		response.BusinessError(c, response.CodeRechargeOrderNotFound, service.ErrRechargeOrderNotFound.Error())
	case errors.Is(err, service.ErrRechargeOrderClosed):
		response.BusinessError(c, response.CodeRechargeOrderClosed, service.ErrRechargeOrderClosed.Error())
	default:
		log.Error().Err(err).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetString(requestIDKey)).
			Msg("请求处理失败")
		response.ServerError(c)
	}
}
