package models

// PolicyName identifies a named risk profile.
type PolicyName string

const (
	PolicyConservative PolicyName = "conservative"
	PolicyModerate     PolicyName = "moderate"
	PolicyAggressive   PolicyName = "aggressive"
)

// RiskPolicy is one immutable set of stop and sizing parameters. The active
// policy is swapped as a whole; readers never see a partially edited one.
type RiskPolicy struct {
	Name            PolicyName
	ATRMultSL       float64 // stop-loss distance in ATR units
	ATRMultTP       float64 // take-profit distance in ATR units
	MinNotional     float64
	MaxNotional     float64
	DefaultNotional float64 // used when the candidate carries no size hint
}
