package diplomacy

import "strings"

const (
	initialScore    = 30
	messageBonusCap = 10

	positiveDelta = 4
	negativeDelta = -2

	minScore = 0
	maxScore = 100
)

var positiveKeywords = []string{
	"alliance", "friend", "cooperation", "peace", "trade",
	"help", "support", "thank", "respect",
}

var negativeKeywords = []string{
	"war", "attack", "threat", "enemy", "destroy",
	"invasion", "betray", "refuse", "ignore",
}

// scoreRelationship walks the player's side of the conversation: a small
// bonus for sustained contact plus keyword deltas per message, clamped to
// [0, 100].
func scoreRelationship(messages []Message) int {
	score := initialScore

	userMessages := 0
	for _, msg := range messages {
		if msg.Role != RoleUser {
			continue
		}
		userMessages++

		content := strings.ToLower(msg.Content)
		for _, keyword := range positiveKeywords {
			if strings.Contains(content, keyword) {
				score += positiveDelta
			}
		}
		for _, keyword := range negativeKeywords {
			if strings.Contains(content, keyword) {
				score += negativeDelta
			}
		}
	}

	if userMessages > messageBonusCap {
		score += messageBonusCap
	} else {
		score += userMessages
	}

	return clampScore(score)
}

func clampScore(score int) int {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}
