package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"worker-evaluation/config"
	"worker-evaluation/constant"
	"worker-evaluation/entities"
	"worker-evaluation/pkg/snapshot"
	"worker-evaluation/pkg/transcript"
	"worker-evaluation/repository"
)

var mediaUploads = config.Uploads{Dir: "/srv/media/uploads"}

const (
	leadershipQuestion = "Tell me about a leadership experience"
	leadershipAnswer   = "I led a team of five engineers through a migration and we shipped on time."
	answerJSON         = `{"expected_expression": "A concrete story with actions and results.", "answer_text": "Led five engineers through a migration.",
"evaluation": {"completeness": "good", "overall": "strong"}, "expected_emotions": {"should_show": ["confident"], "red_flags": ["fear"]}, "score": 8}`
	emotionJSON = `{"score": 8, "evaluation": {"alignment": "confident throughout", "overall": "matches the expected profile"}}`
)

type fakeTranscripts struct {
	text  string
	err   error
	panic bool
	calls atomic.Int32
}

func (f *fakeTranscripts) Transcribe(context.Context, string) (*transcript.Result, error) {
	f.calls.Add(1)
	if f.panic {
		panic("whisper exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &transcript.Result{Text: f.text}, nil
}

type fakeEmotions struct {
	result *entities.EmotionResult
	err    error
	panic  bool
	calls  atomic.Int32
}

func (f *fakeEmotions) Analyze(context.Context, string) (*entities.EmotionResult, error) {
	f.calls.Add(1)
	if f.panic {
		panic("deepface exploded")
	}
	return f.result, f.err
}

type failingSnapshots struct{}

func (failingSnapshots) Upsert(context.Context, string, entities.VideoEvaluationEntry) (string, error) {
	return "", errors.New("disk full")
}

func (failingSnapshots) Load(context.Context, string) (*entities.SessionEvaluation, error) {
	return nil, snapshot.ErrNotExist
}

type panickingEvaluator struct{}

func (panickingEvaluator) Evaluate(context.Context, string, string, *entities.QAContext) (*entities.AnswerEvaluation, error) {
	panic("nil pointer somewhere")
}

func confidentEmotion() *entities.EmotionResult {
	return &entities.EmotionResult{
		AnalyzedFrames: 30,
		FacesDetected:  30,
		Timeline:       []entities.EmotionFrame{{Frame: 0, DominantEmotion: "confident", Scores: map[string]float64{"confident": 90}}},
		Summary: entities.EmotionSummary{
			DominantEmotionOverall:     "confident",
			LongestEmotion:             entities.LongestEmotion{Emotion: "confident", DurationSec: 9},
			EmotionDistributionPercent: map[string]float64{"confident": 100},
			AverageScores:              map[string]float64{"confident": 90},
		},
	}
}

type pipelineFixture struct {
	repo        repository.VideoRepository
	transcripts *fakeTranscripts
	emotions    *fakeEmotions
	llm         *fakeLLM
	snapshots   snapshot.Store
	snapshotDir string
	deps        PipelineDependencies
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&entities.SessionVideo{}))

	f := &pipelineFixture{
		repo:        repository.NewRepoWithGorm(db),
		transcripts: &fakeTranscripts{text: leadershipAnswer},
		emotions:    &fakeEmotions{result: confidentEmotion()},
		llm:         &fakeLLM{answer: answerJSON, emotion: emotionJSON},
		snapshotDir: t.TempDir(),
	}
	f.snapshots = snapshot.NewStore(snapshot.NewFileBackend(f.snapshotDir))
	f.deps = PipelineDependencies{
		Repo:             f.repo,
		Transcripts:      f.transcripts,
		Emotions:         f.emotions,
		AnswerEvaluator:  NewAnswerEvaluator(f.llm),
		EmotionEvaluator: NewEmotionEvaluator(f.llm),
		Snapshots:        f.snapshots,
	}
	return f
}

func (f *pipelineFixture) pipeline() Pipeline {
	return NewPipeline(f.deps)
}

func (f *pipelineFixture) createVideo(t *testing.T, status constant.EvaluationStatus) *entities.SessionVideo {
	t.Helper()
	question := leadershipQuestion
	video := &entities.SessionVideo{
		SessionID:        uuid.New(),
		QuestionID:       3,
		QuestionText:     &question,
		Filename:         "answer.webm",
		FilePath:         "uploads/answer.webm",
		EvaluationStatus: status,
	}
	require.NoError(t, f.repo.Create(context.Background(), video))
	return video
}

func (f *pipelineFixture) reload(t *testing.T, id uuid.UUID) *entities.SessionVideo {
	t.Helper()
	video, err := f.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return video
}

func TestPipelineEndToEnd(t *testing.T) {
	f := newPipelineFixture(t)
	video := f.createVideo(t, constant.EvaluationStatusPending)

	outcome := f.pipeline().Run(context.Background(), NewRequest(video, mediaUploads))
	require.Equal(t, OutcomeCompleted, outcome)

	got := f.reload(t, video.ID)
	assert.Equal(t, constant.EvaluationStatusCompleted, got.EvaluationStatus)
	require.NotNil(t, got.Score)
	assert.Equal(t, 8.0, *got.Score)
	assert.Equal(t, leadershipAnswer, *got.TranscriptText)
	assert.Equal(t, "Led five engineers through a migration.", *got.AnswerText)

	var stored map[string]any
	require.NoError(t, json.Unmarshal(got.EvaluationJSON, &stored))
	assert.Equal(t, 8.0, stored["overall_score"])
	assert.Equal(t, 8.0, stored["emotion_score"])

	doc, err := f.snapshots.Load(context.Background(), video.SessionID.String())
	require.NoError(t, err)
	entry, ok := doc.Videos[video.ID.String()]
	require.True(t, ok)
	assert.Equal(t, 8.0, entry.OverallScore)
	assert.Equal(t, 8.0, entry.AnswerScore)
	assert.Equal(t, 8.0, entry.EmotionScore)
	assert.Equal(t, 5.6, entry.ScoreBreakdown.WeightedAnswer)
	assert.Equal(t, 2.4, entry.ScoreBreakdown.WeightedEmotion)
	assert.Equal(t, leadershipQuestion, entry.QuestionText)
	require.NotNil(t, entry.QuestionID)
	assert.Equal(t, 3, *entry.QuestionID)
	require.NotNil(t, entry.EmotionAnalysis)
	assert.Equal(t, "confident", entry.EmotionAnalysis.Summary.DominantEmotionOverall)
	assert.Equal(t, 1, doc.Summary.TotalVideos)
	assert.Equal(t, []float64{8}, doc.Summary.OverallScores)
}

func TestPipelineDegradedEmotion(t *testing.T) {
	tests := []struct {
		name     string
		emotions *fakeEmotions
	}{
		{name: "provider error", emotions: &fakeEmotions{err: errors.New("deepface crashed")}},
		{name: "not configured", emotions: &fakeEmotions{}},
		{name: "provider panic", emotions: &fakeEmotions{panic: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t)
			f.deps.Emotions = tt.emotions
			video := f.createVideo(t, constant.EvaluationStatusPending)

			outcome := f.pipeline().Run(context.Background(), NewRequest(video, mediaUploads))
			require.Equal(t, OutcomeCompleted, outcome)

			got := f.reload(t, video.ID)
			assert.Equal(t, constant.EvaluationStatusCompleted, got.EvaluationStatus)
			assert.Equal(t, 7.1, *got.Score)

			doc, err := f.snapshots.Load(context.Background(), video.SessionID.String())
			require.NoError(t, err)
			entry := doc.Videos[video.ID.String()]
			assert.Equal(t, constant.NeutralEmotionScore, entry.EmotionScore)
			assert.Equal(t, false, entry.EmotionEvaluation["available"])
			assert.Nil(t, entry.EmotionAnalysis)
			assert.Len(t, f.llm.prompts, 1, "emotion evaluator must not be called without emotion data")
		})
	}
}

func TestPipelineFatalTranscript(t *testing.T) {
	tests := []struct {
		name        string
		transcripts *fakeTranscripts
	}{
		{name: "empty transcript", transcripts: &fakeTranscripts{text: "   "}},
		{name: "provider error", transcripts: &fakeTranscripts{err: errors.New("timeout")}},
		{name: "provider panic", transcripts: &fakeTranscripts{panic: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t)
			f.deps.Transcripts = tt.transcripts
			video := f.createVideo(t, constant.EvaluationStatusPending)

			outcome := f.pipeline().Run(context.Background(), NewRequest(video, mediaUploads))
			require.Equal(t, OutcomeFailed, outcome)

			got := f.reload(t, video.ID)
			assert.Equal(t, constant.EvaluationStatusFailed, got.EvaluationStatus)
			assert.Nil(t, got.Score)
			assert.Nil(t, got.TranscriptText)
			assert.Nil(t, got.AnswerText)
			assert.Equal(t, int32(1), f.emotions.calls.Load(), "emotion analysis still runs alongside")
			assert.Empty(t, f.llm.prompts)

			_, err := f.snapshots.Load(context.Background(), video.SessionID.String())
			assert.ErrorIs(t, err, snapshot.ErrNotExist)
		})
	}
}

func TestPipelineAnswerEvaluatorFailureIsFatal(t *testing.T) {
	f := newPipelineFixture(t)
	f.llm.answer = "Sorry, I can't help with that."
	video := f.createVideo(t, constant.EvaluationStatusPending)

	outcome := f.pipeline().Run(context.Background(), NewRequest(video, mediaUploads))
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, constant.EvaluationStatusFailed, f.reload(t, video.ID).EvaluationStatus)
}

func TestPipelineRecoversPanic(t *testing.T) {
	f := newPipelineFixture(t)
	f.deps.AnswerEvaluator = panickingEvaluator{}
	video := f.createVideo(t, constant.EvaluationStatusPending)

	var outcome Outcome
	assert.NotPanics(t, func() {
		outcome = f.pipeline().Run(context.Background(), NewRequest(video, mediaUploads))
	})
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, constant.EvaluationStatusFailed, f.reload(t, video.ID).EvaluationStatus)
}

func TestPipelineSkipsUnclaimable(t *testing.T) {
	for _, status := range []constant.EvaluationStatus{constant.EvaluationStatusProcessing, constant.EvaluationStatusCompleted, constant.EvaluationStatusFailed} {
		t.Run(status.String(), func(t *testing.T) {
			f := newPipelineFixture(t)
			video := f.createVideo(t, status)

			outcome := f.pipeline().Run(context.Background(), NewRequest(video, mediaUploads))
			assert.Equal(t, OutcomeSkipped, outcome)
			assert.Equal(t, status, f.reload(t, video.ID).EvaluationStatus)
			assert.Zero(t, f.transcripts.calls.Load())
			assert.Zero(t, f.emotions.calls.Load())
		})
	}

	f := newPipelineFixture(t)
	outcome := f.pipeline().Run(context.Background(), Request{VideoID: uuid.New()})
	assert.Equal(t, OutcomeSkipped, outcome)
}

func TestPipelineConcurrentTriggersClaimOnce(t *testing.T) {
	f := newPipelineFixture(t)
	video := f.createVideo(t, constant.EvaluationStatusPending)
	p := f.pipeline()

	var completed, skipped atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch p.Run(context.Background(), NewRequest(video, mediaUploads)) {
			case OutcomeCompleted:
				completed.Add(1)
			case OutcomeSkipped:
				skipped.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), completed.Load())
	assert.Equal(t, int32(3), skipped.Load())
	assert.Equal(t, int32(1), f.transcripts.calls.Load())
}

func TestPipelineSnapshotFailureKeepsCompleted(t *testing.T) {
	f := newPipelineFixture(t)
	f.deps.Snapshots = failingSnapshots{}
	video := f.createVideo(t, constant.EvaluationStatusPending)

	outcome := f.pipeline().Run(context.Background(), NewRequest(video, mediaUploads))
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, constant.EvaluationStatusCompleted, f.reload(t, video.ID).EvaluationStatus)
}

func TestPipelineFillsMissingMetadata(t *testing.T) {
	f := newPipelineFixture(t)
	video := f.createVideo(t, constant.EvaluationStatusPending)

	outcome := f.pipeline().Run(context.Background(), Request{VideoID: video.ID, FilePath: "/srv/media/uploads/answer.webm"})
	require.Equal(t, OutcomeCompleted, outcome)

	doc, err := f.snapshots.Load(context.Background(), video.SessionID.String())
	require.NoError(t, err)
	entry := doc.Videos[video.ID.String()]
	assert.Equal(t, "answer.webm", entry.Filename)
	assert.Equal(t, leadershipQuestion, entry.QuestionText)
	require.NotNil(t, entry.QuestionID)
	assert.Equal(t, 3, *entry.QuestionID)
}

func TestPipelineWeightOverride(t *testing.T) {
	f := newPipelineFixture(t)
	video := f.createVideo(t, constant.EvaluationStatusPending)
	f.llm.emotion = `{"score": 2, "evaluation": {"overall": "anxious"}}`

	req := NewRequest(video, mediaUploads)
	req.Weights = &Weights{Answer: 0.5, Emotion: 0.5}
	require.Equal(t, OutcomeCompleted, f.pipeline().Run(context.Background(), req))
	assert.Equal(t, 5.0, *f.reload(t, video.ID).Score)
}

func TestPipelineTrigger(t *testing.T) {
	f := newPipelineFixture(t)
	dispatcher := NewDispatcher(context.Background(), 2, 4)
	defer dispatcher.Stop()
	f.deps.Dispatcher = dispatcher
	p := f.pipeline()

	videos := []*entities.SessionVideo{
		f.createVideo(t, constant.EvaluationStatusPending),
		f.createVideo(t, constant.EvaluationStatusPending),
	}
	for _, v := range videos {
		p.Trigger(NewRequest(v, mediaUploads))
	}

	for _, v := range videos {
		id := v.ID
		require.Eventually(t, func() bool {
			return f.reload(t, id).EvaluationStatus == constant.EvaluationStatusCompleted
		}, 5*time.Second, 20*time.Millisecond)
	}
}

func TestNewRequest(t *testing.T) {
	question := "Why us?"
	video := &entities.SessionVideo{
		ID:           uuid.New(),
		SessionID:    uuid.New(),
		QuestionID:   2,
		QuestionText: &question,
		Filename:     "a.webm",
		FilePath:     "uploads/a.webm",
	}

	req := NewRequest(video, config.Uploads{Dir: "/srv/app/uploads"})
	assert.Equal(t, filepath.Join("/srv/app", "uploads", "a.webm"), req.FilePath)
	assert.Equal(t, "Why us?", req.QuestionText)
	assert.Equal(t, video.SessionID, *req.SessionID)
	assert.Equal(t, 2, *req.QuestionID)

	assert.Equal(t, filepath.Join("/data", "videos", "a.webm"), NewRequest(video, config.Uploads{Dir: "/data/videos"}).FilePath)

	video.FilePath = "uploads/2024/a.webm"
	assert.Equal(t, filepath.Join("/data", "videos", "2024", "a.webm"), NewRequest(video, config.Uploads{Dir: "/data/videos"}).FilePath)

	video.FilePath = "/data/uploads/a.webm"
	assert.Equal(t, "/data/uploads/a.webm", NewRequest(video, config.Uploads{Dir: "/srv/app/uploads"}).FilePath)
}
