// Package engine 实现定价/需求模拟引擎：
// 滚动窗口、模拟需求、定价算法、营业时段调度与单线程定价循环。
package engine

// Window 固定容量的价格滚动窗口 (FIFO)
// 只记录已实现价格，供均值回归计算使用
type Window struct {
	cap int
	buf []float64
}

// NewWindow 创建容量为 capacity 的滚动窗口
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 20
	}
	return &Window{cap: capacity}
}

// Append 追加一个价格，超出容量时淘汰最旧的记录
func (w *Window) Append(price float64) {
	w.buf = append(w.buf, price)
	if len(w.buf) > w.cap {
		w.buf = w.buf[len(w.buf)-w.cap:]
	}
}

// Mean 返回窗口内价格均值，空窗口返回 0
func (w *Window) Mean() float64 {
	if len(w.buf) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range w.buf {
		sum += p
	}
	return sum / float64(len(w.buf))
}

// Len 返回窗口当前长度
func (w *Window) Len() int {
	return len(w.buf)
}

// Cap 返回窗口容量
func (w *Window) Cap() int {
	return w.cap
}

// Values 返回窗口内容的拷贝，从旧到新
func (w *Window) Values() []float64 {
	out := make([]float64, len(w.buf))
	copy(out, w.buf)
	return out
}

// Reset 清空窗口
func (w *Window) Reset() {
	w.buf = w.buf[:0]
}
