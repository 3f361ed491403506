package common

import (
	"time"
)

// 交易时区：开奖与注单按交易所当地日期归档，期号标签的日期部分也由此产生
const ExchangeTimezone = "Asia/Kolkata"

// TodayLabelDate 返回交易时区下的当天日期串（YYYY-MM-DD），用于拼期号标签
func TodayLabelDate(t time.Time) string {
	loc, _ := time.LoadLocation(ExchangeTimezone)
	return t.In(loc).Format("2006-01-02")
}

// GetTodayRange 获取交易时区下当天 00:00:00 和 第二天 00:00:00
func GetTodayRange(t time.Time) (start, end int64) {
	loc, _ := time.LoadLocation(ExchangeTimezone)
	year, month, day := t.In(loc).Date()

	startTime := time.Date(year, month, day, 0, 0, 0, 0, loc)
	endTime := startTime.AddDate(0, 0, 1) // +1 天

	return startTime.Unix(), endTime.Unix()
}

// GetWeekRange 获取当周周一 00:00:00 和 周日 00:00:00
func GetWeekRange(t time.Time) (start, end int64) {
	loc, _ := time.LoadLocation(ExchangeTimezone)
	t = t.In(loc)

	// 获取当前是周几（周日是0，周一是1 ... 周六是6）
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // 让周日变成 7，方便计算
	}

	// 计算周一
	year, month, day := t.Date()
	monday := time.Date(year, month, day, 0, 0, 0, 0, loc).AddDate(0, 0, -(weekday - 1))
	// 周日 = 周一 + 7天
	sunday := monday.AddDate(0, 0, 7)

	return monday.Unix(), sunday.Unix()
}
