package domain

// Question is one generated item inside a set.
type Question struct {
	Description string   `json:"description"`
	Options     []string `json:"options,omitempty"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
	OrderIndex  int      `json:"order_index"`
}
