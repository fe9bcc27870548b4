package sources

import (
	"fmt"
	"math"
)

// minAllowedGap is the smallest tolerated difference between video length
// and transcript coverage.
const minAllowedGap = 30.0

// QualityRejection means a transcript covers too little of the video.
type QualityRejection struct {
	VideoDuration      float64
	TranscriptDuration float64
	Gap                float64
	AllowedGap         float64
}

func (e *QualityRejection) Error() string {
	return fmt.Sprintf("transcript too short: covers %.0fs of %.0fs video (gap %.0fs > allowed %.0fs)",
		e.TranscriptDuration, e.VideoDuration, e.Gap, e.AllowedGap)
}

// AllowedGap returns max(30s, round(20% of the video duration)).
func AllowedGap(videoDuration float64) float64 {
	return math.Max(minAllowedGap, math.Round(0.2*videoDuration))
}

// QualityGate rejects a transcript whose estimated duration falls short of
// the video duration by more than AllowedGap. An unknown video duration
// (zero or non-finite) always passes. The transcript duration comes from
// segment timing, so zero means untimed cues and is judged like any other.
func QualityGate(videoDuration, transcriptDuration float64) error {
	if !known(videoDuration) || !finite(transcriptDuration) {
		return nil
	}
	gap := videoDuration - transcriptDuration
	allowed := AllowedGap(videoDuration)
	if gap > allowed {
		return &QualityRejection{
			VideoDuration:      videoDuration,
			TranscriptDuration: transcriptDuration,
			Gap:                gap,
			AllowedGap:         allowed,
		}
	}
	return nil
}

func known(d float64) bool {
	return d > 0 && finite(d)
}

func finite(d float64) bool {
	return !math.IsInf(d, 0) && !math.IsNaN(d)
}
