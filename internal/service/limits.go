package service

import "time"

// Limits 单次与每日限额
type Limits struct {
	RechargeMax    int64 `json:"rechargeMax"`
	RechargeDayMax int64 `json:"rechargeDayMax"`
	RedeemMax      int64 `json:"redeemMax"`
	RedeemDayMax   int64 `json:"redeemDayMax"`
}

// LimitsView 限额及当日已用额度
type LimitsView struct {
	Limits
	TodayRechargeTotal int64 `json:"todayRechargeTotal"`
	TodayRedeemTotal   int64 `json:"todayRedeemTotal"`
}

var nowFunc = time.Now

func startOfToday() time.Time {
	now := nowFunc()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
