// Package notify 换日重置等事件的通知出口。
// 邮件/IM 投递属于外部协作方，这里只定义窄接口和日志实现。
package notify

import (
	"context"
	"log/slog"
	"time"
)

// LogNotifier 将通知写入结构化日志
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{logger: log}
}

// DailyReset 记录一次换日重置
func (n *LogNotifier) DailyReset(_ context.Context, day time.Time) {
	n.logger.Info("trading day opened",
		slog.String("date", day.Format("2006-01-02")))
}
