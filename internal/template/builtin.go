package template

// Builtins returns the merchant templates compiled into the binary. An
// optional YAML file (see LoadFile) can extend this set at startup.
func Builtins() []*Template {
	return []*Template{
		{
			ID:   "supermart",
			Name: "SUPERMART",
			Anchors: []Anchor{
				{Token: "SUPERMART", Weight: 3},
				{Token: "THANK YOU FOR SHOPPING", Weight: 1},
			},
			Patterns: &LinePatterns{
				Store: "SUPERMART",
				Item:  `^(?:(?P<qty>\d{1,3})\s*(?:[xX@])\s*)?(?P<name>[A-Za-z][A-Za-z .'\-]*?)\s+(?P<price>\d+[.,]\d{2})$`,
			},
		},
		{
			ID:   "walmart",
			Name: "Walmart",
			Anchors: []Anchor{
				{Token: "WALMART", Weight: 3},
				{Token: "WAL-MART", Weight: 3},
				{Token: "SAVE MONEY. LIVE BETTER", Weight: 1},
			},
			Patterns: &LinePatterns{
				Store: "Walmart",
			},
		},
		{
			ID:   "costco",
			Name: "Costco Wholesale",
			Anchors: []Anchor{
				{Token: "COSTCO", Weight: 3},
				{Token: "WHOLESALE", Weight: 1},
				{Token: "MEMBER", Weight: 0.5},
			},
			Patterns: &LinePatterns{
				Store: "Costco Wholesale",
			},
		},
	}
}
