package index

// Source is one tokenized document handed to Build.
type Source struct {
	ID    string
	Words []string
}

// TermStat reports how many documents contain a query term and the IDF
// derived from that count.
type TermStat struct {
	Term    string  `json:"term"`
	DocFreq int     `json:"doc_freq"`
	IDF     float64 `json:"idf"`
}
