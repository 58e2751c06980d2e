package audit

// Heading describes one column of the result table.
type Heading struct {
	Key      string `json:"key"`
	ItemType string `json:"itemType,omitempty"`
	Text     string `json:"text"`
}

// Item is one resource with wasted bytes. Audits fill URL or NodeID and the
// byte counts; the formatted fields are filled by the Scorer.
type Item struct {
	URL         string `json:"url,omitempty"`
	Label       string `json:"label,omitempty"`
	NodeID      string `json:"nodeId,omitempty"`
	WastedBytes int64  `json:"wastedBytes"`
	TotalBytes  int64  `json:"totalBytes"`

	WastedPercent    int    `json:"wastedPercent"`
	WastedKb         string `json:"wastedKb"`
	TotalKb          string `json:"totalKb"`
	PotentialSavings string `json:"potentialSavings"`
}

// Config is what an audit hands to the Scorer.
type Config struct {
	ID       string
	Title    string
	Headings []Heading
	Results  []Item
	// DisplayValue overrides the generated summary when set.
	DisplayValue string
}

// ExtendedInfo carries the detail behind the summary fields.
type ExtendedInfo struct {
	WastedMs float64 `json:"wastedMs"`
	WastedKb int64   `json:"wastedKb"`
	Results  []Item  `json:"results"`
}

// Result is the outcome of one audit.
type Result struct {
	ID       string    `json:"id"`
	Title    string    `json:"title,omitempty"`
	Headings []Heading `json:"headings,omitempty"`
	Results  []Item    `json:"results"`
	// RawValue is the estimated saving in milliseconds.
	RawValue     float64      `json:"rawValue"`
	Score        int          `json:"score"`
	DisplayValue string       `json:"displayValue,omitempty"`
	DebugString  string       `json:"debugString,omitempty"`
	ExtendedInfo ExtendedInfo `json:"extendedInfo"`
	// Failed marks a degraded result produced from an audit error.
	Failed bool `json:"failed,omitempty"`
}
