package rppg

// SignalBuffer 固定容量的滑动窗口信号缓冲区
//
// Push 在缓冲区满时淘汰最旧样本（FIFO 环形语义）。
// 单个扫描会话独占一个缓冲区，不做并发保护。
type SignalBuffer struct {
	capacity int
	values   []float64
	sum      float64
}

// NewSignalBuffer 创建指定容量的信号缓冲区（容量至少为 1）
func NewSignalBuffer(capacity int) *SignalBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &SignalBuffer{
		capacity: capacity,
		values:   make([]float64, 0, capacity),
	}
}

// Push 追加一个样本，满时淘汰最旧样本
func (b *SignalBuffer) Push(v float64) {
	if len(b.values) == b.capacity {
		b.sum -= b.values[0]
		copy(b.values, b.values[1:])
		b.values = b.values[:len(b.values)-1]
	}
	b.values = append(b.values, v)
	b.sum += v
}

// Average 当前内容的算术平均值，空缓冲区返回 0
func (b *SignalBuffer) Average() float64 {
	if len(b.values) == 0 {
		return 0
	}
	return b.sum / float64(len(b.values))
}

// Values 返回当前内容的副本（从旧到新）
func (b *SignalBuffer) Values() []float64 {
	out := make([]float64, len(b.values))
	copy(out, b.values)
	return out
}

// Len 当前样本数
func (b *SignalBuffer) Len() int {
	return len(b.values)
}

// Capacity 缓冲区容量
func (b *SignalBuffer) Capacity() int {
	return b.capacity
}

// Full 缓冲区是否已满
func (b *SignalBuffer) Full() bool {
	return len(b.values) == b.capacity
}
