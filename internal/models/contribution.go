package models

import "time"

// Contribution represents a single presale deposit into the treasury wallet.
type Contribution struct {
	Signature string  `json:"signature"`
	Sender    string  `json:"sender"`
	AmountSOL float64 `json:"amount"`
	BlockTime int64   `json:"timestamp"`
	Time      string  `json:"time,omitempty"`
}

// Observed returns the contribution's block time as a time.Time.
func (c *Contribution) Observed() time.Time {
	return time.Unix(c.BlockTime, 0)
}

// PresaleStats is the aggregate view served to the landing page and the
// admin dashboard.
type PresaleStats struct {
	TotalSOL          float64         `json:"totalSol"`
	TargetSOL         float64         `json:"targetSol"`
	Progress          float64         `json:"progress"`
	ContributionCount int             `json:"contributionCount"`
	CountByAmount     map[string]int  `json:"countByAmount"`
	TreasuryBalance   float64         `json:"treasuryBalance"`
	LastScanned       int64           `json:"lastScanned"`
	Recent            []*Contribution `json:"recent,omitempty"`
}
