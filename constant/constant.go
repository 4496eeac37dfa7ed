package constant

type EvaluationStatus string

const (
	EvaluationStatusPending    EvaluationStatus = "pending"
	EvaluationStatusProcessing EvaluationStatus = "processing"
	EvaluationStatusCompleted  EvaluationStatus = "completed"
	EvaluationStatusFailed     EvaluationStatus = "failed"
)

func (s EvaluationStatus) String() string {
	return string(s)
}

// RequiredSource returns the only status a record may hold before moving to s.
// Moving back to pending is an operator action and is allowed from failed or processing.
func (s EvaluationStatus) RequiredSource() []EvaluationStatus {
	switch s {
	case EvaluationStatusProcessing:
		return []EvaluationStatus{EvaluationStatusPending}
	case EvaluationStatusCompleted, EvaluationStatusFailed:
		return []EvaluationStatus{EvaluationStatusProcessing}
	case EvaluationStatusPending:
		return []EvaluationStatus{EvaluationStatusFailed, EvaluationStatusProcessing}
	}
	return nil
}

type SnapshotBackend string

const (
	SnapshotBackendFile  SnapshotBackend = "file"
	SnapshotBackendMinIO SnapshotBackend = "minio"
)

type TranscriptBackend string

const (
	TranscriptBackendOpenAI TranscriptBackend = "openai"
	TranscriptBackendScript TranscriptBackend = "script"
)

const (
	MinScore            = 1.0
	MaxScore            = 10.0
	NeutralEmotionScore = 5.0
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
