package metrics

import (
	"math"
	"unicode/utf8"
)

// EmbeddingPricePer1K is the embedding price in dollars per 1K tokens.
const EmbeddingPricePer1K = 0.0001

// Operation names a local or database step for infrastructure pricing.
type Operation string

const (
	OpTextValidation  Operation = "text_validation"
	OpDatabaseRead    Operation = "database_read"
	OpDatabaseWrite   Operation = "database_write"
	OpTextAnalysis    Operation = "text_analysis"
	OpPatternMatching Operation = "pattern_matching"
	OpSimilarityCalc  Operation = "similarity_calc"
	OpDataUpdate      Operation = "data_update"
	OpResponsePackage Operation = "response_package"
)

var infrastructureCosts = map[Operation]float64{
	OpTextValidation:  0.0001,
	OpDatabaseRead:    0.0002,
	OpDatabaseWrite:   0.0004,
	OpTextAnalysis:    0.0003,
	OpPatternMatching: 0.0010,
	OpSimilarityCalc:  0.0004,
	OpDataUpdate:      0.0006,
	OpResponsePackage: 0.0001,
}

// base units and bytes-per-unit divisor for each operation
var unitFormulas = map[Operation][2]int{
	OpTextValidation:  {5, 10},
	OpDatabaseRead:    {15, 5},
	OpDatabaseWrite:   {20, 5},
	OpTextAnalysis:    {10, 8},
	OpPatternMatching: {25, 4},
	OpSimilarityCalc:  {20, 3},
	OpDataUpdate:      {15, 6},
	OpResponsePackage: {5, 20},
}

// EstimateTokens approximates a token count as one token per four characters.
func EstimateTokens(text string) int {
	return ceilDiv(utf8.RuneCountInString(text), 4)
}

// TokenCost prices tokens at pricePer1K dollars per thousand.
func TokenCost(tokens int, pricePer1K float64) float64 {
	return float64(tokens) / 1000 * pricePer1K
}

// InfrastructureCost is the flat per-call price of op. Unknown operations
// cost 0.0001.
func InfrastructureCost(op Operation) float64 {
	if c, ok := infrastructureCosts[op]; ok {
		return c
	}
	return 0.0001
}

// ProcessingUnits estimates the work of op over size input units. Unknown
// operations count 10.
func ProcessingUnits(op Operation, size int) int {
	f, ok := unitFormulas[op]
	if !ok {
		return 10
	}
	if size < 0 {
		size = 0
	}
	return f[0] + ceilDiv(size, f[1])
}

func ceilDiv(n, d int) int {
	return int(math.Ceil(float64(n) / float64(d)))
}
