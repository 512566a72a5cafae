package engine

import "math"

// Params 定价算法参数
// 历史版本存在多套互不一致的公式 (±2% 游走/固定 0.1 回归等)，
// 这里实现规范化的一套；旧行为可通过参数复现
type Params struct {
	Floor      float64 // 最低价格
	Cap        float64 // 最高价格 (0 = 不设上限)
	Target     float64 // 均衡目标价
	WalkRange  float64 // 随机游走幅度 ±R
	DemandStep float64 // 每单位购买的需求漂移
	StreakCap  float64 // 无购买连续漂移的绝对值上限
	AlphaMin   float64 // 目标价处的均值回归强度
	AlphaMax   float64 // 锚点价处的均值回归强度
}

// DefaultParams 参考参数
func DefaultParams() Params {
	return Params{
		Floor:      2.00,
		Cap:        10.00,
		Target:     5.00,
		WalkRange:  0.10,
		DemandStep: 0.01,
		StreakCap:  0.03,
		AlphaMin:   0.01,
		AlphaMax:   0.25,
	}
}

// Next 计算下一个价格，纯函数
//
//	current  当前已实现价格
//	quantity 本周期该酒水收到的购买数量 (0 = 无事件)
//	streak   无购买连续周期数 (仅 quantity == 0 时参与计算)
//	mean     滚动窗口均价 (调用方先把 current 追加进窗口再取均值)
//	walk     随机游走分量，调用方从注入的随机源抽取，属于 [-R, +R]
//
// 步骤: 随机游走 + 需求漂移 -> 临时价 -> 均值回归 -> floor/cap 裁剪 -> 取分
func Next(current float64, quantity, streak int, mean, walk float64, p Params) float64 {
	drift := walk + demandDrift(quantity, streak, p)

	provisional := current * (1 + drift)

	// 均值回归: 离目标价越远拉力越强
	a := alpha(provisional, p)
	reverted := provisional + (mean-provisional)*a

	return RoundCents(Clamp(reverted, p))
}

// demandDrift 需求漂移分量
// 有购买: +DemandStep * quantity；无购买: -min(DemandStep*streak, StreakCap)
func demandDrift(quantity, streak int, p Params) float64 {
	if quantity > 0 {
		return p.DemandStep * float64(quantity)
	}
	d := p.DemandStep * float64(streak)
	if d > p.StreakCap {
		d = p.StreakCap
	}
	return -d
}

// alpha 均值回归强度
// 目标价处为 AlphaMin，向低/高锚点 (floor/cap) 线性增长至 AlphaMax
func alpha(price float64, p Params) float64 {
	var anchor float64
	if price < p.Target {
		anchor = p.Floor
	} else {
		anchor = p.Cap
		if anchor <= p.Target {
			// 未配置上限时高价侧用对称锚点
			anchor = p.Target + (p.Target - p.Floor)
		}
	}

	span := math.Abs(anchor - p.Target)
	if span == 0 {
		return p.AlphaMin
	}

	dist := math.Abs(price-p.Target) / span
	if dist > 1 {
		dist = 1
	}
	return p.AlphaMin + (p.AlphaMax-p.AlphaMin)*dist
}

// Clamp 裁剪到 [Floor, Cap]
func Clamp(price float64, p Params) float64 {
	if price < p.Floor {
		return p.Floor
	}
	if p.Cap > 0 && price > p.Cap {
		return p.Cap
	}
	return price
}

// RoundCents 取整到最小货币单位 (美分)
func RoundCents(price float64) float64 {
	return math.Round(price*100) / 100
}
