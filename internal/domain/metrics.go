package domain

// VolatilityLevel classifies volatilityPercent.
type VolatilityLevel string

const (
	VolatilityLow      VolatilityLevel = "LOW"
	VolatilityModerate VolatilityLevel = "MODERATE"
	VolatilityHigh     VolatilityLevel = "HIGH"
	VolatilityExtreme  VolatilityLevel = "EXTREME"
)

// HealthStatus is the tier of an overall health score.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "HEALTHY"
	HealthWarning  HealthStatus = "WARNING"
	HealthCritical HealthStatus = "CRITICAL"
)

// RiskLevel is the tier of an overall risk score.
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

// LiquidityMetrics is derived from one order book snapshot.
// TotalDepth is always BidDepth + AskDepth.
type LiquidityMetrics struct {
	Score           int     `json:"score"`
	BidDepth        float64 `json:"bidDepth"`
	AskDepth        float64 `json:"askDepth"`
	TotalDepth      float64 `json:"totalDepth"`
	DepthWithin1Pct float64 `json:"depthWithin1Pct"`
	DepthWithin5Pct float64 `json:"depthWithin5Pct"`
	Spread          float64 `json:"spread"`
	SpreadPercent   float64 `json:"spreadPercent"`
	MidPrice        float64 `json:"midPrice"`
}

// VolatilityMetrics is derived from the trades inside the volatility window.
type VolatilityMetrics struct {
	Score             int             `json:"score"`
	StandardDeviation float64         `json:"standardDeviation"`
	VolatilityPercent float64         `json:"volatilityPercent"`
	Level             VolatilityLevel `json:"level"`
	MeanPrice         float64         `json:"meanPrice"`
	PriceChanges      []float64       `json:"priceChanges"`
	SampleSize        int             `json:"sampleSize"`
}

// VolumeMetrics is derived from the trades of the last 24 hours.
type VolumeMetrics struct {
	Score               int     `json:"score"`
	Volume24h           float64 `json:"volume24h"`
	TradeCount          int     `json:"tradeCount"`
	VolumeChangePercent float64 `json:"volumeChangePercent"`
	AverageTradeSize    float64 `json:"averageTradeSize"`
}

// HealthComponents are the four weighted inputs of a health score.
type HealthComponents struct {
	Liquidity  int `json:"liquidity"`
	Volatility int `json:"volatility"`
	Volume     int `json:"volume"`
	Spread     int `json:"spread"`
}

// HealthScore is the overall market health view.
type HealthScore struct {
	Score          int              `json:"score"`
	Status         HealthStatus     `json:"status"`
	Components     HealthComponents `json:"components"`
	Recommendation string           `json:"recommendation"`
}

// RiskFactors are the four weighted inputs of a risk score. Higher is riskier.
type RiskFactors struct {
	LiquidityRisk  int `json:"liquidityRisk"`
	VolatilityRisk int `json:"volatilityRisk"`
	SpreadRisk     int `json:"spreadRisk"`
	VolumeRisk     int `json:"volumeRisk"`
}

// RiskMetrics is the overall market risk view. It is computed independently
// of HealthScore and is not its complement.
type RiskMetrics struct {
	Score    int         `json:"score"`
	Level    RiskLevel   `json:"level"`
	Factors  RiskFactors `json:"factors"`
	Warnings []string    `json:"warnings"`
}

// MarketSummary bundles every metric kind for one market.
type MarketSummary struct {
	Liquidity  LiquidityMetrics  `json:"liquidity"`
	Volatility VolatilityMetrics `json:"volatility"`
	Volume     VolumeMetrics     `json:"volume"`
	Health     HealthScore       `json:"health"`
	Risk       RiskMetrics       `json:"risk"`
}
