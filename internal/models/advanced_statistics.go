package models

// CorrelationType identifies a correlation coefficient.
type CorrelationType string

const (
	CorrelationPearson  CorrelationType = "pearson"
	CorrelationSpearman CorrelationType = "spearman"
	CorrelationKendall  CorrelationType = "kendall"
)

// RegressionType identifies a regression model.
type RegressionType string

const (
	RegressionLinear     RegressionType = "linear"
	RegressionPolynomial RegressionType = "polynomial"
	RegressionRidge      RegressionType = "ridge"
	RegressionLasso      RegressionType = "lasso"
	RegressionLogistic   RegressionType = "logistic"
)

// CorrelationRequest asks for a correlation analysis between two samples.
type CorrelationRequest struct {
	XData           []float64       `json:"x_data" binding:"required,min=3"`
	YData           []float64       `json:"y_data" binding:"required,min=3"`
	CorrelationType CorrelationType `json:"correlation_type"`
	Alpha           float64         `json:"alpha"`
}

// CorrelationConfidenceInterval is the Fisher-z interval for Pearson
// correlations. Lower/Upper are nil for rank correlations.
type CorrelationConfidenceInterval struct {
	Lower *float64 `json:"lower"`
	Upper *float64 `json:"upper"`
	Level float64  `json:"level"`
}

// CorrelationResult holds a correlation coefficient and its interpretation.
type CorrelationResult struct {
	CorrelationCoefficient float64                       `json:"correlation_coefficient"`
	PValue                 float64                       `json:"p_value"`
	ConfidenceInterval     CorrelationConfidenceInterval `json:"confidence_interval"`
	Interpretation         string                        `json:"interpretation"`
	Strength               string                        `json:"strength"`
}

// RegressionRequest asks for a regression fit of y on x.
type RegressionRequest struct {
	XData            []float64      `json:"x_data" binding:"required,min=3"`
	YData            []float64      `json:"y_data" binding:"required,min=3"`
	RegressionType   RegressionType `json:"regression_type"`
	PolynomialDegree int            `json:"polynomial_degree"`
	// Alpha is the regularization strength for ridge (L2) and lasso (L1)
	// regression.
	Alpha float64 `json:"alpha"`
}

// ResidualAnalysis summarizes the fit residuals.
type ResidualAnalysis struct {
	MeanResidual float64 `json:"mean_residual"`
	StdResidual  float64 `json:"std_residual"`
	DurbinWatson float64 `json:"durbin_watson"`
}

// RegressionResult holds the fitted model and its diagnostics.
// ResidualAnalysis is nil for logistic fits, where RSquared carries the
// classification accuracy instead of a coefficient of determination.
type RegressionResult struct {
	Coefficients       []float64         `json:"coefficients"`
	Intercept          float64           `json:"intercept"`
	RSquared           float64           `json:"r_squared"`
	AdjustedRSquared   float64           `json:"adjusted_r_squared"`
	FStatistic         float64           `json:"f_statistic"`
	FPValue            float64           `json:"f_p_value"`
	ResidualAnalysis   *ResidualAnalysis `json:"residual_analysis,omitempty"`
	PredictionEquation string            `json:"prediction_equation"`
}
