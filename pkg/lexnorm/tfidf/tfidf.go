package tfidf

import "math"

// Calculator handles term-frequency/inverse-document-frequency weights
type Calculator struct{}

// NewCalculator creates a new tf-idf calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Weight calculates the tf-idf score for one term in one document
//
//	tfidf(t, d) = tf × log(N / df)
//
// Where:
//   - tf = occurrences of t in d
//   - df = number of documents containing t
//   - N = total number of documents
func (c *Calculator) Weight(tf, df, n int64) float64 {
	if tf == 0 || df == 0 || n == 0 {
		return 0
	}
	return float64(tf) * math.Log(float64(n)/float64(df))
}
