package worker

import (
	"context"
	"time"

	"nx-server/common"
	"nx-server/common/logger"
	helper "nx-server/internal/common/helper"
	"nx-server/internal/service"

	"go.uber.org/zap"
)

// handleDrawFeed 处理上游开奖源消息，转为开奖声明。
// 消息格式：{"event":"draw_feed","draw_label":"2026-08-31-kalyan","two_digit":"47"}
// 或携带 "open"/"close" 单数字段（恰好一个结果组件）。
// 声明流程自身幂等，重复消息为安全空操作。
func handleDrawFeed(ctx context.Context, payload map[string]any, msgID string) {
	drawLabel, _ := payload["draw_label"].(string)
	twoDigit, _ := payload["two_digit"].(string)
	open, _ := payload["open"].(string)
	close_, _ := payload["close"].(string)

	// 只带游戏名的消息按交易时区当天拼期号标签
	if drawLabel == "" {
		if game, _ := payload["game"].(string); game != "" {
			drawLabel = common.TodayLabelDate(time.Now()) + "-" + game
		}
	}

	if !helper.IsValidDrawLabel(drawLabel) {
		logger.Warn("[mq] draw feed: invalid draw label",
			zap.String("msg_id", msgID), zap.String("draw_label", drawLabel))
		return
	}
	components := 0
	if twoDigit != "" {
		if !helper.IsValidTwoDigit(twoDigit) {
			logger.Warn("[mq] draw feed: invalid two_digit", zap.String("msg_id", msgID))
			return
		}
		components++
	}
	if open != "" {
		if !helper.IsValidOneDigit(open) {
			logger.Warn("[mq] draw feed: invalid open digit", zap.String("msg_id", msgID))
			return
		}
		components++
	}
	if close_ != "" {
		if !helper.IsValidOneDigit(close_) {
			logger.Warn("[mq] draw feed: invalid close digit", zap.String("msg_id", msgID))
			return
		}
		components++
	}
	if components != 1 {
		logger.Warn("[mq] draw feed: expect exactly one result component",
			zap.String("msg_id", msgID), zap.Int("components", components))
		return
	}

	traceID, _ := payload["trace_id"].(string)
	if traceID == "" {
		traceID = msgID
	}

	out, err := service.NewDrawService().DeclareDraw(ctx, service.DeclareInput{
		DrawLabel: drawLabel,
		TwoDigit:  twoDigit,
		Open:      open,
		Close:     close_,
		Operator:  "feed",
		Source:    "mq",
		TraceID:   traceID,
	})
	if err != nil {
		logger.Error("[mq] draw feed: declare failed",
			zap.String("msg_id", msgID), zap.String("draw_label", drawLabel), zap.Error(err))
		return
	}
	logger.Info("[mq] draw feed: declared",
		zap.String("draw_label", drawLabel),
		zap.String("state", out.State),
		zap.Int("settled_bets", out.SettledBets))
}
