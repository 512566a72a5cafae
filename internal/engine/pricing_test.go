package engine

import (
	"math"
	"math/rand"
	"testing"
)

// 均衡场景: 价格在目标价、均价也在目标价、无事件无游走时价格不动
func TestNext_EquilibriumHolds(t *testing.T) {
	p := DefaultParams()

	got := Next(5.00, 0, 0, 5.00, 0, p)
	if got != 5.00 {
		t.Errorf("Next(5.00, ...) = %v, want 5.00", got)
	}
}

// 低价场景: 连续无购买把价格压穿下限时裁剪到 floor
func TestNext_ClampsToFloor(t *testing.T) {
	p := DefaultParams()

	// drift = -min(0.01*4, 0.03) = -0.03, provisional = 2.00*0.97 = 1.94
	got := Next(2.00, 0, 4, 2.00, 0, p)
	if got != 2.00 {
		t.Errorf("Next(2.00, streak=4) = %v, want floor 2.00", got)
	}
}

// 高价场景: 大量购买推高价格，但高锚点附近的强均值回归往回拉
func TestNext_HighPriceReversion(t *testing.T) {
	p := DefaultParams()

	current, mean := 9.50, 9.00
	// drift = +0.03, provisional = 9.785
	got := Next(current, 3, 0, mean, 0, p)

	if got >= 9.785 {
		t.Errorf("Next(9.50, qty=3) = %v, want < provisional 9.785", got)
	}
	if got <= mean {
		t.Errorf("Next(9.50, qty=3) = %v, want > mean %v", got, mean)
	}
}

// 不变式: 任意随机序列下价格始终在 [floor, cap] 内且为整美分
func TestNext_StaysWithinBounds(t *testing.T) {
	p := DefaultParams()
	rng := rand.New(rand.NewSource(42))

	price := p.Target
	mean := p.Target
	streak := 0

	for i := 0; i < 10000; i++ {
		qty := rng.Intn(4)
		if qty > 0 {
			streak = 0
		} else {
			streak++
		}
		walk := (rng.Float64()*2 - 1) * p.WalkRange

		price = Next(price, qty, streak, mean, walk, p)

		if price < p.Floor {
			t.Fatalf("tick %d: price %v below floor %v", i, price, p.Floor)
		}
		if price > p.Cap {
			t.Fatalf("tick %d: price %v above cap %v", i, price, p.Cap)
		}
		if cents := price * 100; math.Abs(cents-math.Round(cents)) > 1e-6 {
			t.Fatalf("tick %d: price %v not rounded to cents", i, price)
		}

		// 粗略跟随的均价，只为驱动回归项
		mean = (mean*19 + price) / 20
	}
}

// 无上限配置: cap = 0 时高价侧用对称锚点，价格不被截断
func TestNext_NoCapConfigured(t *testing.T) {
	p := DefaultParams()
	p.Cap = 0

	got := Next(11.00, 3, 0, 11.00, 0.10, p)
	if got <= 10.00 {
		t.Errorf("Next with no cap = %v, want above default cap 10.00", got)
	}
	if got < p.Floor {
		t.Errorf("Next with no cap = %v, below floor", got)
	}
}

func TestDemandDrift(t *testing.T) {
	p := DefaultParams()

	tests := []struct {
		name     string
		quantity int
		streak   int
		want     float64
	}{
		{"purchase of one", 1, 0, 0.01},
		{"purchase of three", 3, 0, 0.03},
		{"purchase ignores streak", 2, 7, 0.02},
		{"no purchase streak 1", 0, 1, -0.01},
		{"no purchase streak 2", 0, 2, -0.02},
		{"streak capped", 0, 4, -0.03},
		{"streak far past cap", 0, 100, -0.03},
		{"fresh state", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := demandDrift(tt.quantity, tt.streak, p)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("demandDrift(%d, %d) = %v, want %v", tt.quantity, tt.streak, got, tt.want)
			}
		})
	}
}

func TestAlpha(t *testing.T) {
	p := DefaultParams()

	if got := alpha(p.Target, p); math.Abs(got-p.AlphaMin) > 1e-9 {
		t.Errorf("alpha(target) = %v, want AlphaMin %v", got, p.AlphaMin)
	}
	if got := alpha(p.Floor, p); math.Abs(got-p.AlphaMax) > 1e-9 {
		t.Errorf("alpha(floor) = %v, want AlphaMax %v", got, p.AlphaMax)
	}
	if got := alpha(p.Cap, p); math.Abs(got-p.AlphaMax) > 1e-9 {
		t.Errorf("alpha(cap) = %v, want AlphaMax %v", got, p.AlphaMax)
	}

	// 锚点之外的价格不会把强度推过 AlphaMax
	if got := alpha(0.50, p); got > p.AlphaMax {
		t.Errorf("alpha(0.50) = %v, exceeds AlphaMax", got)
	}

	// 离目标越远强度越大
	near := alpha(5.50, p)
	far := alpha(8.00, p)
	if near >= far {
		t.Errorf("alpha not monotonic: alpha(5.50)=%v >= alpha(8.00)=%v", near, far)
	}
}

func TestClamp(t *testing.T) {
	p := DefaultParams()

	if got := Clamp(1.50, p); got != p.Floor {
		t.Errorf("Clamp(1.50) = %v, want floor", got)
	}
	if got := Clamp(12.00, p); got != p.Cap {
		t.Errorf("Clamp(12.00) = %v, want cap", got)
	}
	if got := Clamp(5.55, p); got != 5.55 {
		t.Errorf("Clamp(5.55) = %v, want unchanged", got)
	}

	p.Cap = 0
	if got := Clamp(12.00, p); got != 12.00 {
		t.Errorf("Clamp(12.00) with no cap = %v, want 12.00", got)
	}
}

func TestRoundCents(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{5.004, 5.00},
		{5.006, 5.01},
		{5.999, 6.00},
		{2.00, 2.00},
	}
	for _, tt := range tests {
		if got := RoundCents(tt.in); got != tt.want {
			t.Errorf("RoundCents(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
