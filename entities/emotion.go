package entities

// EmotionFrame is one sampled frame of the facial emotion timeline.
type EmotionFrame struct {
	Frame           int                `json:"frame"`
	TimestampSec    float64            `json:"timestamp_sec"`
	DominantEmotion string             `json:"dominant_emotion"`
	Scores          map[string]float64 `json:"scores"`
}

type LongestEmotion struct {
	Emotion     string  `json:"emotion"`
	DurationSec float64 `json:"duration_sec"`
}

type EmotionSummary struct {
	DominantEmotionOverall     string             `json:"dominant_emotion_overall"`
	LongestEmotion             LongestEmotion     `json:"longest_emotion"`
	EmotionDistributionPercent map[string]float64 `json:"emotion_distribution_percent"`
	EmotionDurationsSec        map[string]float64 `json:"emotion_durations_sec,omitempty"`
	AverageScores              map[string]float64 `json:"average_scores"`
}

// EmotionResult is what an emotion provider produces for a whole clip.
type EmotionResult struct {
	VideoDurationSec float64        `json:"video_duration_sec"`
	FPS              float64        `json:"fps"`
	TotalFrames      int            `json:"total_frames"`
	AnalyzedFrames   int            `json:"analyzed_frames"`
	FacesDetected    int            `json:"faces_detected"`
	Timeline         []EmotionFrame `json:"emotions_timeline"`
	Summary          EmotionSummary `json:"summary"`
}

type ExpectedEmotionProfile struct {
	ShouldShow []string `json:"should_show"`
	RedFlags   []string `json:"red_flags"`
}
