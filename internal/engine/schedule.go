package engine

import (
	"time"
)

// ActiveWindow 每日营业时段 [Open, Close)，以分钟计
type ActiveWindow struct {
	OpenMinute  int            // 开市时刻，当日分钟数 (16:00 = 960)
	CloseMinute int            // 闭市时刻，当日分钟数 (23:59 = 1439)
	Loc         *time.Location // 营业时段所在时区
}

// NewActiveWindow 创建营业时段
func NewActiveWindow(openHour, openMin, closeHour, closeMin int, loc *time.Location) ActiveWindow {
	if loc == nil {
		loc = time.Local
	}
	return ActiveWindow{
		OpenMinute:  openHour*60 + openMin,
		CloseMinute: closeHour*60 + closeMin,
		Loc:         loc,
	}
}

// Contains 判断 now 是否处于营业时段内
func (w ActiveWindow) Contains(now time.Time) bool {
	local := now.In(w.Loc)
	minute := local.Hour()*60 + local.Minute()
	return minute >= w.OpenMinute && minute < w.CloseMinute
}

// UntilNextOpen 返回距下一次开市的时长
// 当日开市时刻未到则等到当日，否则等到次日
func (w ActiveWindow) UntilNextOpen(now time.Time) time.Duration {
	local := now.In(w.Loc)
	open := time.Date(local.Year(), local.Month(), local.Day(),
		w.OpenMinute/60, w.OpenMinute%60, 0, 0, w.Loc)
	if !local.Before(open) {
		open = open.AddDate(0, 0, 1)
	}
	return open.Sub(local)
}

// ResetTracker 决定换日重置是否应当触发
// lastReset 通过历史存储持久化，进程在营业时段内重启不会重复清空当日数据
type ResetTracker struct {
	lastReset time.Time // 所在时区的日期，零值表示从未重置
	loc       *time.Location
}

// NewResetTracker 创建重置跟踪器
// last 传入持久化的上次重置日期，首次启动传零值
func NewResetTracker(last time.Time, loc *time.Location) *ResetTracker {
	if loc == nil {
		loc = time.Local
	}
	return &ResetTracker{lastReset: last, loc: loc}
}

// ShouldReset 判断 now 所在日期是否还未执行过重置
// 同一天内重复进入营业时段不会再次触发
func (t *ResetTracker) ShouldReset(now time.Time) bool {
	return !sameDay(t.lastReset, now.In(t.loc))
}

// MarkReset 记录本日重置已完成
func (t *ResetTracker) MarkReset(now time.Time) {
	local := now.In(t.loc)
	t.lastReset = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, t.loc)
}

// LastReset 返回上次重置日期
func (t *ResetTracker) LastReset() time.Time {
	return t.lastReset
}

// sameDay 检查两个时间是否是同一天
func sameDay(t1, t2 time.Time) bool {
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
