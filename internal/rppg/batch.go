package rppg

import (
	"fmt"
	"math"
	"math/rand"
)

// 批量变体参数：约 30 秒窗口，按 30 fps 假设最多 1050 个样本
const (
	BatchCapacity = 1050
	AssumedFPS    = 30.0

	// 心率接受区间与最终回退值
	ibiHeartRateMin   = 40
	ibiHeartRateMax   = 200
	countHeartRateMin = 45
	countHeartRateMax = 180
	fallbackHeartRate = 72
)

// BatchEstimator 固定时长批量生命体征估计器
//
// 扫描期间 Feed 只累积通过皮肤判定门控的绿通道样本，窗口结束后
// Finalize 对整个缓冲区做一次条理 + 峰值/IBI 分析，产出最终结果。
//
// 心率计算的优先级阶梯：
//  1. 平均搏动间隔：60 / (meanIntervalFrames / fps)，接受区间 [40,200]；
//  2. 峰计数估计：峰数 / 时长，接受区间 [45,180]；
//  3. 固定回退值 72 bpm。
//
// 其余派生指标（SpO2、压力分类、呼吸、HRV、血压、血红蛋白、体温）
// 是心率的确定性函数加小幅随机抖动，属于启发式占位，不是生理推导。
type BatchEstimator struct {
	buf      *SignalBuffer
	rng      *rand.Rand
	accepted int
	rejected int
}

// NewBatchEstimator 创建批量估计器
//
// rng 注入随机源：测试用固定种子可断言精确值，生产传 nil 使用全局源。
func NewBatchEstimator(rng *rand.Rand) *BatchEstimator {
	return &BatchEstimator{
		buf: NewSignalBuffer(BatchCapacity),
		rng: rng,
	}
}

// SampleCount 已接受进入信号窗口的样本数
func (e *BatchEstimator) SampleCount() int {
	return e.buf.Len()
}

// Feed 累积一帧样本，不产出中间快照
//
// 帧必须通过皮肤判定门控（红通道优势 + 亮度下限）才进入窗口，
// 否则静默丢弃。返回值恒为 ok=false。
func (e *BatchEstimator) Feed(sample FrameSample) (VitalsSnapshot, bool) {
	if !AcceptSkinSample(sample.Red, sample.Green, sample.Brightness) {
		e.rejected++
		return VitalsSnapshot{}, false
	}
	e.buf.Push(sample.Green)
	e.accepted++
	return VitalsSnapshot{}, false
}

// Finalize 对累积的信号窗口计算一次最终结果
func (e *BatchEstimator) Finalize() (VitalsSnapshot, error) {
	raw := e.buf.Values()

	conditioned, err := Condition(raw)
	if err != nil {
		// 信号不足：返回全回退值结果而不是失败，扫描以占位结果收尾
		return e.derive(fallbackHeartRate, PeakResult{SNR: fallbackSNR}), nil
	}

	peaks := DetectPeaks(conditioned)
	hr := e.heartRate(peaks, len(raw))

	return e.derive(hr, peaks), nil
}

// heartRate 按优先级阶梯计算心率
func (e *BatchEstimator) heartRate(peaks PeakResult, sampleCount int) int {
	if mean := peaks.MeanInterval(); mean > 0 {
		bpm := int(math.Round(60 / (mean / AssumedFPS)))
		if bpm >= ibiHeartRateMin && bpm <= ibiHeartRateMax {
			return bpm
		}
	}

	if len(peaks.Peaks) > 0 && sampleCount > 0 {
		durationSec := float64(sampleCount) / AssumedFPS
		bpm := int(math.Round(float64(len(peaks.Peaks)) / durationSec * 60))
		if bpm >= countHeartRateMin && bpm <= countHeartRateMax {
			return bpm
		}
	}

	return fallbackHeartRate
}

// derive 由心率派生其余指标（启发式占位公式）
func (e *BatchEstimator) derive(hr int, peaks PeakResult) VitalsSnapshot {
	fhr := float64(hr)

	spo2 := int(clampFloat(99-(fhr-65)/12+e.jitter(0.5), 94, 99))

	stress, category := stressFromHeartRate(fhr)

	resp := int(math.Round(fhr / 4.4))

	// HRV 近似：平均搏动间隔（ms）的固定比例
	meanIBIMillis := 60000 / fhr
	hrv := int(clampFloat(meanIBIMillis*0.07+e.jitter(5), 20, 120))

	sys := int(clampFloat(110+(fhr-70)*0.5+e.jitter(4), 90, 180))
	dia := int(clampFloat(72+(fhr-70)*0.25+e.jitter(3), 60, 120))

	hemoglobin := math.Round((13.5+e.jitter(1))*10) / 10
	temperature := math.Round((36.5+e.jitter(0.3))*10) / 10

	return VitalsSnapshot{
		HeartRate:       hr,
		SpO2:            spo2,
		Stress:          stress,
		StressCategory:  category,
		RespiratoryRate: resp,
		HRV:             hrv,
		Systolic:        sys,
		Diastolic:       dia,
		BloodPressure:   bpString(sys, dia),
		Hemoglobin:      hemoglobin,
		SNR:             math.Round(peaks.SNR*10) / 10,
		Temperature:     temperature,
	}
}

// stressFromHeartRate 按心率阈值划分压力档位
func stressFromHeartRate(hr float64) (float64, string) {
	switch {
	case hr < 70:
		return clampFloat(20+(hr-55), 10, 40), "Optimal"
	case hr < 85:
		return clampFloat(40+(hr-70)*1.5, 35, 65), "Moderate"
	default:
		return clampFloat(65+(hr-85), 60, 95), "Elevated"
	}
}

func (e *BatchEstimator) jitter(amplitude float64) float64 {
	if e.rng != nil {
		return (e.rng.Float64()*2 - 1) * amplitude
	}
	return (rand.Float64()*2 - 1) * amplitude
}

func bpString(sys, dia int) string {
	return fmt.Sprintf("%d/%d", sys, dia)
}
