package rppg

// FrameSample 一帧视频对应的估计器输入
//
// Landmarks 为空表示该帧未检测到人脸；Green/Red 为 ROI 补丁的通道均值
// （0–255），Brightness 为补丁整体亮度。时间戳由采集端按帧序提供。
type FrameSample struct {
	Landmarks   []Landmark `json:"landmarks"`
	TimestampMS int64      `json:"timestamp_ms"`
	Green       float64    `json:"green_mean"`
	Red         float64    `json:"red_mean"`
	Brightness  float64    `json:"brightness"`
}

// VitalsSnapshot 一次扫描事件产生的生命体征估计
//
// 值对象，返回后不再修改。血压、血红蛋白、HRV 等派生指标是启发式
// 占位公式（线性模型加有界随机抖动），不是临床测量，不要在未获得
// 新数据的情况下"升级"为真实生理模型。
type VitalsSnapshot struct {
	HeartRate       int     `json:"heart_rate"`       // bpm
	SpO2            int     `json:"spo2"`             // %
	Stress          float64 `json:"stress"`           // 0–100
	StressCategory  string  `json:"stress_category,omitempty"` // Optimal/Moderate/Elevated（批量变体）
	RespiratoryRate int     `json:"respiratory_rate"` // 次/分
	HRV             int     `json:"hrv"`              // ms，近似值
	Systolic        int     `json:"systolic"`         // mmHg
	Diastolic       int     `json:"diastolic"`        // mmHg
	BloodPressure   string  `json:"blood_pressure"`   // "SYS/DIA"
	BlinkCount      int     `json:"blink_count"`
	Hemoglobin      float64 `json:"hemoglobin,omitempty"`  // g/dL（批量变体）
	SNR             float64 `json:"snr,omitempty"`         // dB（批量变体）
	Temperature     float64 `json:"temperature,omitempty"` // ℃（批量变体）
}

// VitalEstimator 两种估计策略的公共能力接口
//
// 连续变体：每帧 Feed 返回一个实时快照（ok=true），Finalize 返回最后快照；
// 批量变体：Feed 只累积样本（ok=false），Finalize 对整个窗口计算一次结果。
// 调用方（扫描编排器和测试）对当前激活的变体保持不可知。
type VitalEstimator interface {
	Feed(sample FrameSample) (VitalsSnapshot, bool)
	Finalize() (VitalsSnapshot, error)
}
