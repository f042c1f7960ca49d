package stats

// RaceResult is one finished race from a single user's point of view,
// as fed into the cumulative stats formula.
type RaceResult struct {
	WPM int  `json:"wpm"`
	Won bool `json:"won"`
}
