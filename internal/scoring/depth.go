// Package scoring computes depth scores for profiles and capsules. Scores
// reward sustained reading and substantive responses over one-tap reactions.
package scoring

import "math"

// ProfileDepthScore maps a profile's accumulated activity to a 0-100 score.
// Responses weigh more than authored capsules; accrued read time on the
// profile's capsules contributes per minute. Logarithms keep prolific
// accounts from running away with the scale.
func ProfileDepthScore(responseCount, capsuleCount int, readSeconds int64) int {
	score := 10*math.Log2(1+float64(responseCount)) +
		6*math.Log2(1+float64(capsuleCount)) +
		8*math.Log2(1+float64(readSeconds)/60)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(math.Round(score))
}

// CapsuleFeedScore ranks a capsule for the for-you feed. Average dwell time
// dominates; responses count far more than reactions, which enter only as a
// weak logarithmic term.
func CapsuleFeedScore(readCount int, totalReadSeconds int64, responseCount, reactionCount int) float64 {
	var avgReadSeconds float64
	if readCount > 0 {
		avgReadSeconds = float64(totalReadSeconds) / float64(readCount)
	}
	return avgReadSeconds +
		12*math.Log2(1+float64(responseCount)) +
		2*math.Log2(1+float64(reactionCount))
}
