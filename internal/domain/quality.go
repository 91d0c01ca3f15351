package domain

import "slices"

// DefaultLadder is the set of heights offered to the user.
var DefaultLadder = []int{144, 240, 360, 480, 720, 1080}

// QualityChoice is a click on the quality keyboard, addressed to the
// selection pending for Key.
type QualityChoice struct {
	Key    string
	Height int
}

// OnLadder reports whether height is one of the offered heights.
func OnLadder(ladder []int, height int) bool {
	return slices.Contains(ladder, height)
}
