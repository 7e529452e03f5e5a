package tfidf

// Counter maintains document-frequency counts for tf-idf calculation
type Counter struct {
	N  int64            // total number of documents
	DF map[string]int64 // document frequency per term
}

// NewCounter creates a new document-frequency counter
func NewCounter() *Counter {
	return &Counter{DF: make(map[string]int64)}
}

// AddDocument updates counts for a document's unique terms
func (c *Counter) AddDocument(uniqueTerms []string) {
	c.N++
	for _, t := range uniqueTerms {
		if t == "" {
			continue
		}
		c.DF[t]++
	}
}

// TermDF returns the document frequency for a term
func (c *Counter) TermDF(t string) int64 {
	return c.DF[t]
}

// TotalDocs returns the total number of documents processed
func (c *Counter) TotalDocs() int64 {
	return c.N
}

// UniqueTerms returns the number of distinct terms seen
func (c *Counter) UniqueTerms() int {
	return len(c.DF)
}
