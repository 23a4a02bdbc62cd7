package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/statforge/statforge-go/internal/models"
	"github.com/statforge/statforge-go/internal/utils"
)

// AdvancedStatisticsService computes correlation and regression analyses
// between paired numeric samples.
type AdvancedStatisticsService struct {
	logger *logrus.Logger
}

// NewAdvancedStatisticsService creates a new advanced statistics service.
func NewAdvancedStatisticsService(logger *logrus.Logger) *AdvancedStatisticsService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AdvancedStatisticsService{logger: logger}
}

func validatePairedSamples(x, y []float64) error {
	if len(x) != len(y) {
		return utils.NewValidationErrorf("x_data and y_data must have equal length, got %d and %d", len(x), len(y))
	}
	if len(x) < 3 {
		return utils.NewValidationErrorf("correlation/regression needs at least 3 observations, got %d", len(x))
	}
	return nil
}

// Correlation computes the requested correlation coefficient with its
// p-value and, for Pearson, a Fisher-z confidence interval.
func (s *AdvancedStatisticsService) Correlation(ctx context.Context, req *models.CorrelationRequest) (*models.CorrelationResult, error) {
	if err := validatePairedSamples(req.XData, req.YData); err != nil {
		return nil, err
	}

	corrType := req.CorrelationType
	if corrType == "" {
		corrType = models.CorrelationPearson
	}

	alpha := req.Alpha
	if alpha == 0 {
		alpha = 0.05
	}
	if alpha <= 0 || alpha >= 1 {
		return nil, utils.NewValidationErrorf("alpha must be in (0, 1), got %g", alpha)
	}

	n := len(req.XData)
	var r, pValue float64
	ci := models.CorrelationConfidenceInterval{Level: 1 - alpha}

	switch corrType {
	case models.CorrelationPearson:
		var err error
		r, err = pearson(req.XData, req.YData)
		if err != nil {
			return nil, err
		}
		pValue = correlationPValue(r, n)
		if lower, upper, ok := fisherInterval(r, n, alpha); ok {
			ci.Lower, ci.Upper = &lower, &upper
		}
	case models.CorrelationSpearman:
		var err error
		r, err = pearson(ranks(req.XData), ranks(req.YData))
		if err != nil {
			return nil, err
		}
		pValue = correlationPValue(r, n)
	case models.CorrelationKendall:
		r, pValue = kendallTauB(req.XData, req.YData)
	default:
		return nil, utils.NewValidationErrorf("unsupported correlation type: %s", corrType)
	}

	strength := correlationStrength(r)
	direction := "positive"
	if r < 0 {
		direction = "negative"
	}
	interpretation := fmt.Sprintf("%s %s correlation (%s = %.4f, p = %.4g)",
		strings.ToUpper(strength[:1])+strength[1:], direction, corrType, r, pValue)

	return &models.CorrelationResult{
		CorrelationCoefficient: r,
		PValue:                 pValue,
		ConfidenceInterval:     ci,
		Interpretation:         interpretation,
		Strength:               strength,
	}, nil
}

func pearson(x, y []float64) (float64, error) {
	n := len(x)
	xMean, yMean := mean(x), mean(y)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx := x[i] - xMean
		dy := y[i] - yMean
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, utils.NewValidationError("correlation is undefined for a constant sample")
	}
	return sxy / math.Sqrt(sxx*syy), nil
}

// correlationPValue is the two-sided p-value from the t transform of r.
func correlationPValue(r float64, n int) float64 {
	if n < 3 {
		return 1
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	t := r * math.Sqrt(float64(n-2)/(1-r*r))
	return 2 * (1 - studentTCDF(math.Abs(t), n-2))
}

// fisherInterval is the Fisher-z confidence interval for a Pearson r.
// Undefined for n <= 3.
func fisherInterval(r float64, n int, alpha float64) (float64, float64, bool) {
	if n <= 3 || math.Abs(r) >= 1 {
		return 0, 0, false
	}
	z := math.Atanh(r)
	se := 1 / math.Sqrt(float64(n-3))
	q := normalQuantile(1 - alpha/2)
	return math.Tanh(z - q*se), math.Tanh(z + q*se), true
}

// kendallTauB computes the tie-corrected Kendall rank correlation and a
// normal-approximation p-value.
func kendallTauB(x, y []float64) (float64, float64) {
	n := len(x)
	var concordant, discordant int
	var tiesX, tiesY int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := x[i] - x[j]
			dy := y[i] - y[j]
			switch {
			case dx == 0 && dy == 0:
				tiesX++
				tiesY++
			case dx == 0:
				tiesX++
			case dy == 0:
				tiesY++
			case dx*dy > 0:
				concordant++
			default:
				discordant++
			}
		}
	}

	n0 := float64(n*(n-1)) / 2
	denom := math.Sqrt((n0 - float64(tiesX)) * (n0 - float64(tiesY)))
	if denom == 0 {
		return 0, 1
	}
	tau := float64(concordant-discordant) / denom

	// Normal approximation for the null distribution of tau.
	z := 3 * tau * math.Sqrt(float64(n*(n-1))) / math.Sqrt(float64(2*(2*n+5)))
	pValue := 2 * (1 - normalCDF(math.Abs(z)))
	return tau, pValue
}

func correlationStrength(r float64) string {
	abs := math.Abs(r)
	switch {
	case abs < 0.3:
		return "weak"
	case abs < 0.7:
		return "moderate"
	default:
		return "strong"
	}
}

// Regression fits the requested model of y on x and reports fit diagnostics.
func (s *AdvancedStatisticsService) Regression(ctx context.Context, req *models.RegressionRequest) (*models.RegressionResult, error) {
	if err := validatePairedSamples(req.XData, req.YData); err != nil {
		return nil, err
	}

	regType := req.RegressionType
	if regType == "" {
		regType = models.RegressionLinear
	}

	var degree int
	var ridgeAlpha, lassoAlpha float64
	switch regType {
	case models.RegressionLinear:
		degree = 1
	case models.RegressionPolynomial:
		degree = req.PolynomialDegree
		if degree < 2 || degree > 5 {
			return nil, utils.NewValidationErrorf("polynomial_degree must be in [2, 5], got %d", degree)
		}
	case models.RegressionRidge:
		degree = 1
		ridgeAlpha = req.Alpha
		if ridgeAlpha < 0 {
			return nil, utils.NewValidationErrorf("ridge alpha must be non-negative, got %g", ridgeAlpha)
		}
		if ridgeAlpha == 0 {
			ridgeAlpha = 1.0
		}
	case models.RegressionLasso:
		degree = 1
		lassoAlpha = req.Alpha
		if lassoAlpha < 0 {
			return nil, utils.NewValidationErrorf("lasso alpha must be non-negative, got %g", lassoAlpha)
		}
		if lassoAlpha == 0 {
			lassoAlpha = 1.0
		}
	case models.RegressionLogistic:
		return s.logisticRegression(req)
	default:
		return nil, utils.NewValidationErrorf("unsupported regression type: %s", regType)
	}

	n := len(req.XData)
	if n < degree+2 {
		return nil, utils.NewInsufficientDataErrorf(
			"degree-%d regression needs at least %d observations, got %d", degree, degree+2, n)
	}

	var coeffs []float64
	var err error
	if regType == models.RegressionLasso {
		coeffs = fitLasso(req.XData, req.YData, lassoAlpha)
	} else {
		coeffs, err = fitPolynomial(req.XData, req.YData, degree, ridgeAlpha)
		if err != nil {
			return nil, err
		}
	}
	intercept := coeffs[0]
	slopes := coeffs[1:]

	fitted := make([]float64, n)
	residuals := make([]float64, n)
	yMean := mean(req.YData)
	var ssRes, ssTot float64
	for i, x := range req.XData {
		v := intercept
		pow := 1.0
		for _, c := range slopes {
			pow *= x
			v += c * pow
		}
		fitted[i] = v
		residuals[i] = req.YData[i] - v
		ssRes += residuals[i] * residuals[i]
		d := req.YData[i] - yMean
		ssTot += d * d
	}

	r2 := 1.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	p := degree
	dfRes := n - p - 1
	adjR2 := 1 - (1-r2)*float64(n-1)/float64(dfRes)

	fStat := math.Inf(1)
	fPValue := 0.0
	if r2 < 1 {
		fStat = (r2 / float64(p)) / ((1 - r2) / float64(dfRes))
		fPValue = 1 - fCDF(fStat, p, dfRes)
	}

	return &models.RegressionResult{
		Coefficients:       slopes,
		Intercept:          intercept,
		RSquared:           r2,
		AdjustedRSquared:   adjR2,
		FStatistic:         fStat,
		FPValue:            fPValue,
		ResidualAnalysis:   analyzeResiduals(residuals),
		PredictionEquation: predictionEquation(intercept, slopes),
	}, nil
}

// logisticRegression fits a binary classifier of y on x by batch gradient
// descent. RSquared carries the classification accuracy; the F statistic and
// residual diagnostics do not apply.
func (s *AdvancedStatisticsService) logisticRegression(req *models.RegressionRequest) (*models.RegressionResult, error) {
	for _, y := range req.YData {
		if y != 0 && y != 1 {
			return nil, utils.NewValidationError("logistic regression targets must be 0 or 1")
		}
	}

	const (
		learningRate = 0.1
		iterations   = 1000
	)
	n := float64(len(req.XData))
	var b0, b1 float64
	for iter := 0; iter < iterations; iter++ {
		var g0, g1 float64
		for i, x := range req.XData {
			e := sigmoid(b0+b1*x) - req.YData[i]
			g0 += e
			g1 += e * x
		}
		b0 -= learningRate * g0 / n
		b1 -= learningRate * g1 / n
	}

	var correct int
	for i, x := range req.XData {
		pred := 0.0
		if sigmoid(b0+b1*x) >= 0.5 {
			pred = 1
		}
		if pred == req.YData[i] {
			correct++
		}
	}
	accuracy := float64(correct) / n

	eq := predictionEquation(b0, []float64{b1})
	return &models.RegressionResult{
		Coefficients:       []float64{b1},
		Intercept:          b0,
		RSquared:           accuracy,
		AdjustedRSquared:   accuracy,
		FStatistic:         0,
		FPValue:            1,
		PredictionEquation: "p(y=1) = sigmoid(" + strings.TrimPrefix(eq, "y = ") + ")",
	}, nil
}

// fitLasso fits a single-predictor lasso, minimizing (1/2n)·SSE plus
// alpha·|slope| with the intercept unpenalized. With one predictor the
// coordinate-descent update converges in a single soft-thresholding step.
func fitLasso(x, y []float64, alpha float64) []float64 {
	n := float64(len(x))
	xMean := mean(x)
	yMean := mean(y)
	var sxx, sxy float64
	for i := range x {
		xc := x[i] - xMean
		sxx += xc * xc
		sxy += xc * (y[i] - yMean)
	}

	var slope float64
	if sxx > 0 {
		shrunk := math.Abs(sxy)/n - alpha
		if shrunk > 0 {
			slope = math.Copysign(shrunk, sxy) / (sxx / n)
		}
	}
	return []float64{yMean - slope*xMean, slope}
}

// fitPolynomial solves the (optionally L2-regularized) normal equations for a
// degree-d polynomial fit. The intercept is never penalized.
func fitPolynomial(x, y []float64, degree int, ridgeAlpha float64) ([]float64, error) {
	n := len(x)
	p := degree + 1

	// Design matrix columns are powers of x; accumulate XᵀX and Xᵀy directly.
	xtx := make([][]float64, p)
	for i := range xtx {
		xtx[i] = make([]float64, p)
	}
	xty := make([]float64, p)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		row[0] = 1
		for j := 1; j < p; j++ {
			row[j] = row[j-1] * x[i]
		}
		for a := 0; a < p; a++ {
			for b := 0; b < p; b++ {
				xtx[a][b] += row[a] * row[b]
			}
			xty[a] += row[a] * y[i]
		}
	}

	for j := 1; j < p; j++ {
		xtx[j][j] += ridgeAlpha
	}

	coeffs, err := solveLinearSystem(xtx, xty)
	if err != nil {
		return nil, utils.NewValidationError("regression design matrix is singular")
	}
	return coeffs, nil
}

// solveLinearSystem solves Ax = b by Gaussian elimination with partial
// pivoting. A and b are modified in place.
func solveLinearSystem(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular matrix at column %d", col)
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			factor := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * x[c]
		}
		x[r] = sum / a[r][r]
	}
	return x, nil
}

func analyzeResiduals(residuals []float64) *models.ResidualAnalysis {
	var dw float64
	var ssRes float64
	for i, r := range residuals {
		ssRes += r * r
		if i > 0 {
			d := r - residuals[i-1]
			dw += d * d
		}
	}
	if ssRes > 0 {
		dw /= ssRes
	}
	return &models.ResidualAnalysis{
		MeanResidual: mean(residuals),
		StdResidual:  sampleStdDev(residuals),
		DurbinWatson: dw,
	}
}

func predictionEquation(intercept float64, slopes []float64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "y = %.4f", intercept)
	for i, c := range slopes {
		sign := "+"
		if c < 0 {
			sign = "-"
		}
		if i == 0 {
			fmt.Fprintf(&sb, " %s %.4f*x", sign, math.Abs(c))
		} else {
			fmt.Fprintf(&sb, " %s %.4f*x^%d", sign, math.Abs(c), i+1)
		}
	}
	return sb.String()
}
