package study

// Quiz sizing bounds for caller-supplied counts.
const (
	minQuizCount = 1
	maxQuizCount = 50
)

// QuizCount returns the default number of quiz questions for a video of
// the given length: <15 min 10, <30 min 15, <60 min 25, >120 min 30,
// otherwise 25.
func QuizCount(durationSeconds float64) int {
	minutes := durationSeconds / 60
	switch {
	case minutes < 15:
		return 10
	case minutes < 30:
		return 15
	case minutes < 60:
		return 25
	case minutes > 120:
		return 30
	default:
		return 25
	}
}

func resolveQuizCount(explicit int, durationSeconds float64) int {
	if explicit <= 0 {
		return QuizCount(durationSeconds)
	}
	return min(max(explicit, minQuizCount), maxQuizCount)
}
