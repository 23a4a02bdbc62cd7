package services

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/statforge/statforge-go/internal/models"
	"github.com/statforge/statforge-go/internal/utils"
)

// StatisticsService computes descriptive statistics and hypothesis tests
// over numeric samples.
type StatisticsService struct {
	logger *logrus.Logger
}

// NewStatisticsService creates a new statistics service.
func NewStatisticsService(logger *logrus.Logger) *StatisticsService {
	if logger == nil {
		logger = logrus.New()
	}
	return &StatisticsService{logger: logger}
}

// Descriptive summarizes a sample: central tendency, dispersion, quartiles,
// shape, and a t-based confidence interval for the mean.
func (s *StatisticsService) Descriptive(ctx context.Context, req *models.StatisticalDataRequest) (*models.DescriptiveStatistics, error) {
	data := req.Data
	if len(data) == 0 {
		return nil, utils.NewValidationError("data must not be empty")
	}

	level := req.ConfidenceLevel
	if level == 0 {
		level = 0.95
	}
	if level <= 0 || level >= 1 {
		return nil, utils.NewValidationErrorf("confidence_level must be in (0, 1), got %g", level)
	}

	n := len(data)
	m := mean(data)
	variance := sampleVariance(data)
	std := math.Sqrt(variance)

	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}

	q1 := percentile(data, 25)
	q3 := percentile(data, 75)

	ci := models.MeanConfidenceInterval{Lower: m, Upper: m, Level: level}
	if n > 1 && std > 0 {
		t := studentTQuantile(1-(1-level)/2, n-1)
		halfWidth := t * std / math.Sqrt(float64(n))
		ci.Lower = m - halfWidth
		ci.Upper = m + halfWidth
	}

	return &models.DescriptiveStatistics{
		Count:              n,
		Mean:               m,
		Median:             median(data),
		Mode:               sampleMode(data),
		StdDev:             std,
		Variance:           variance,
		MinValue:           minVal,
		MaxValue:           maxVal,
		RangeValue:         maxVal - minVal,
		Q1:                 q1,
		Q3:                 q3,
		IQR:                q3 - q1,
		Skewness:           skewness(data),
		Kurtosis:           kurtosis(data),
		ConfidenceInterval: ci,
	}, nil
}

// HypothesisTest runs a one-sample t test against the null hypothesis value.
func (s *StatisticsService) HypothesisTest(ctx context.Context, req *models.HypothesisTestRequest) (*models.HypothesisTestResult, error) {
	if req.TestType != "" && req.TestType != "one_sample_t" {
		return nil, utils.NewValidationErrorf("unsupported test type: %s", req.TestType)
	}

	data := req.SampleData
	if len(data) < 2 {
		return nil, utils.NewValidationErrorf("hypothesis testing needs at least 2 observations, got %d", len(data))
	}

	alternative := req.Alternative
	if alternative == "" {
		alternative = "two_sided"
	}

	alpha := req.Alpha
	if alpha == 0 {
		alpha = 0.05
	}
	if alpha <= 0 || alpha >= 1 {
		return nil, utils.NewValidationErrorf("alpha must be in (0, 1), got %g", alpha)
	}

	n := len(data)
	m := mean(data)
	std := sampleStdDev(data)
	if std == 0 {
		return nil, utils.NewValidationError("sample has zero variance")
	}

	df := n - 1
	tStat := (m - req.NullHypothesisValue) / (std / math.Sqrt(float64(n)))

	var pValue float64
	var critical []float64
	switch alternative {
	case "two_sided":
		pValue = 2 * (1 - studentTCDF(math.Abs(tStat), df))
		c := studentTQuantile(1-alpha/2, df)
		critical = []float64{-c, c}
	case "greater":
		pValue = 1 - studentTCDF(tStat, df)
		critical = []float64{studentTQuantile(1-alpha, df)}
	case "less":
		pValue = studentTCDF(tStat, df)
		critical = []float64{studentTQuantile(alpha, df)}
	default:
		return nil, utils.NewValidationErrorf("unsupported alternative: %s", alternative)
	}

	reject := pValue < alpha
	conclusion := fmt.Sprintf("Fail to reject the null hypothesis at alpha=%.3g (p=%.4g)", alpha, pValue)
	if reject {
		conclusion = fmt.Sprintf("Reject the null hypothesis at alpha=%.3g (p=%.4g)", alpha, pValue)
	}

	s.logger.WithFields(logrus.Fields{
		"test":        "one_sample_t",
		"alternative": alternative,
		"p_value":     pValue,
	}).Debug("Hypothesis test computed")

	return &models.HypothesisTestResult{
		TestStatistic:    tStat,
		PValue:           pValue,
		CriticalValues:   critical,
		DegreesOfFreedom: df,
		RejectNull:       reject,
		Conclusion:       conclusion,
		// Cohen's d against the hypothesized mean.
		EffectSize: (m - req.NullHypothesisValue) / std,
	}, nil
}

// sampleMode returns the most frequent value, or nil when no value repeats
// or the most frequent value is not unique.
func sampleMode(data []float64) *float64 {
	counts := make(map[float64]int, len(data))
	for _, v := range data {
		counts[v]++
	}

	best, bestCount, tied := 0.0, 0, false
	for v, c := range counts {
		switch {
		case c > bestCount:
			best, bestCount, tied = v, c, false
		case c == bestCount:
			tied = true
		}
	}
	if bestCount < 2 || tied {
		return nil
	}
	return &best
}

// skewness is the moment-based (Fisher-Pearson) skewness coefficient.
func skewness(data []float64) float64 {
	n := len(data)
	if n < 2 {
		return 0
	}
	m := mean(data)
	var m2, m3 float64
	for _, v := range data {
		d := v - m
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= float64(n)
	m3 /= float64(n)
	if m2 == 0 {
		return 0
	}
	return m3 / math.Pow(m2, 1.5)
}

// kurtosis is the excess kurtosis (normal distribution scores 0).
func kurtosis(data []float64) float64 {
	n := len(data)
	if n < 2 {
		return 0
	}
	m := mean(data)
	var m2, m4 float64
	for _, v := range data {
		d := v - m
		m2 += d * d
		m4 += d * d * d * d
	}
	m2 /= float64(n)
	m4 /= float64(n)
	if m2 == 0 {
		return 0
	}
	return m4/(m2*m2) - 3
}
