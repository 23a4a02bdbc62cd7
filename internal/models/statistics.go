package models

// StatisticalDataRequest asks for descriptive statistics over a numeric sample.
type StatisticalDataRequest struct {
	Data            []float64 `json:"data" binding:"required,min=1"`
	ConfidenceLevel float64   `json:"confidence_level"`
}

// MeanConfidenceInterval is the t-based confidence interval for the sample mean.
type MeanConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Level float64 `json:"level"`
}

// DescriptiveStatistics summarizes a numeric sample.
type DescriptiveStatistics struct {
	Count              int                    `json:"count"`
	Mean               float64                `json:"mean"`
	Median             float64                `json:"median"`
	Mode               *float64               `json:"mode"`
	StdDev             float64                `json:"std_dev"`
	Variance           float64                `json:"variance"`
	MinValue           float64                `json:"min_value"`
	MaxValue           float64                `json:"max_value"`
	RangeValue         float64                `json:"range_value"`
	Q1                 float64                `json:"q1"`
	Q3                 float64                `json:"q3"`
	IQR                float64                `json:"iqr"`
	Skewness           float64                `json:"skewness"`
	Kurtosis           float64                `json:"kurtosis"`
	ConfidenceInterval MeanConfidenceInterval `json:"confidence_interval"`
}

// HypothesisTestRequest asks for a hypothesis test over a sample.
type HypothesisTestRequest struct {
	SampleData          []float64 `json:"sample_data" binding:"required,min=2"`
	TestType            string    `json:"test_type"`
	NullHypothesisValue float64   `json:"null_hypothesis_value"`
	// Alternative is one of "two_sided", "greater", "less".
	Alternative string  `json:"alternative"`
	Alpha       float64 `json:"alpha"`
}

// HypothesisTestResult holds the outcome of a hypothesis test.
type HypothesisTestResult struct {
	TestStatistic    float64   `json:"test_statistic"`
	PValue           float64   `json:"p_value"`
	CriticalValues   []float64 `json:"critical_values"`
	DegreesOfFreedom int       `json:"degrees_of_freedom"`
	RejectNull       bool      `json:"reject_null"`
	Conclusion       string    `json:"conclusion"`
	EffectSize       float64   `json:"effect_size"`
}
