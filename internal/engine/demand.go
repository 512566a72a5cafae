package engine

import (
	"fmt"
	"math"
	"math/rand"
)

// DemandEvent 单次模拟购买事件
// 每个周期最多一个酒水收到事件 (参考实现的设计简化)
type DemandEvent struct {
	Drink    string
	Quantity int
}

// DemandWeights 每周期购买数量 {0,1,2,3} 的离散分布权重
type DemandWeights struct {
	None  float64
	One   float64
	Two   float64
	Three float64
}

// DefaultDemandWeights 参考分布: 50% 无购买, 30%x1, 10%x2, 10%x3
func DefaultDemandWeights() DemandWeights {
	return DemandWeights{None: 0.50, One: 0.30, Two: 0.10, Three: 0.10}
}

// Validate 校验权重和为 1
func (w DemandWeights) Validate() error {
	sum := w.None + w.One + w.Two + w.Three
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("demand weights must sum to 1, got %v", sum)
	}
	if w.None < 0 || w.One < 0 || w.Two < 0 || w.Three < 0 {
		return fmt.Errorf("demand weights must be non-negative")
	}
	return nil
}

// Simulator 需求模拟器
// 随机源显式注入，固定种子下事件序列完全可复现
type Simulator struct {
	rng     *rand.Rand
	weights DemandWeights
}

// NewSimulator 创建需求模拟器
func NewSimulator(src rand.Source, weights DemandWeights) *Simulator {
	return &Simulator{
		rng:     rand.New(src),
		weights: weights,
	}
}

// Generate 生成本周期的需求事件
// 返回 nil 表示本周期无购买；否则从目录中等概率选出一个酒水
func (s *Simulator) Generate(catalog []string) *DemandEvent {
	if len(catalog) == 0 {
		return nil
	}

	qty := s.drawQuantity()
	if qty == 0 {
		return nil
	}

	drink := catalog[s.rng.Intn(len(catalog))]
	return &DemandEvent{Drink: drink, Quantity: qty}
}

// drawQuantity 按权重抽取购买数量
func (s *Simulator) drawQuantity() int {
	r := s.rng.Float64()
	switch {
	case r < s.weights.None:
		return 0
	case r < s.weights.None+s.weights.One:
		return 1
	case r < s.weights.None+s.weights.One+s.weights.Two:
		return 2
	default:
		return 3
	}
}

// Walk 抽取一个 [-r, +r] 区间的随机游走分量
// 定价函数保持纯函数，随机数由调用方统一从这里抽取
func (s *Simulator) Walk(r float64) float64 {
	if r <= 0 {
		return 0
	}
	return (s.rng.Float64()*2 - 1) * r
}
