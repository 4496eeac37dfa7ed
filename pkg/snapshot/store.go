package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/rs/zerolog"
	"time"
	"worker-evaluation/entities"
)

var ErrNotExist = errors.New("session evaluation does not exist")

// Backend stores one JSON document per session.
type Backend interface {
	Read(ctx context.Context, sessionID string) ([]byte, error)
	Write(ctx context.Context, sessionID string, data []byte) error
	Location(sessionID string) string
}

type Store interface {
	Upsert(ctx context.Context, sessionID string, entry entities.VideoEvaluationEntry) (string, error)
	Load(ctx context.Context, sessionID string) (*entities.SessionEvaluation, error)
}

type store struct {
	backend Backend
	locker  Locker
	now     func() time.Time
}

// Upsert replaces the session's entry for entry.SessionVideoID and rewrites the summary.
// It returns the document location, or "" when either id is missing.
func (s *store) Upsert(ctx context.Context, sessionID string, entry entities.VideoEvaluationEntry) (string, error) {
	if sessionID == "" || entry.SessionVideoID == "" {
		return "", nil
	}

	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("lock session %s: %w", sessionID, err)
	}
	defer unlock()

	doc, err := s.load(ctx, sessionID)
	if errors.Is(err, ErrNotExist) {
		doc = entities.NewSessionEvaluation(sessionID, s.now())
	} else if err != nil {
		return "", err
	}

	if entry.EvaluatedAt.IsZero() {
		entry.EvaluatedAt = s.now()
	}
	doc.Videos[entry.SessionVideoID] = entry
	doc.UpdatedAt = s.now()
	doc.RecomputeSummary()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	if err := s.backend.Write(ctx, sessionID, data); err != nil {
		return "", fmt.Errorf("write session evaluation: %w", err)
	}

	location := s.backend.Location(sessionID)
	zerolog.Ctx(ctx).Info().
		Str("session_id", sessionID).
		Str("video_id", entry.SessionVideoID).
		Int("total_videos", doc.Summary.TotalVideos).
		Str("location", location).
		Msg("session evaluation updated")
	return location, nil
}

func (s *store) Load(ctx context.Context, sessionID string) (*entities.SessionEvaluation, error) {
	doc, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// load treats an unreadable document as missing so the next upsert starts over.
func (s *store) load(ctx context.Context, sessionID string) (*entities.SessionEvaluation, error) {
	data, err := s.backend.Read(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	doc := &entities.SessionEvaluation{}
	if err := json.Unmarshal(data, doc); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("corrupt session evaluation, reinitializing")
		return nil, ErrNotExist
	}
	if doc.Videos == nil {
		doc.Videos = map[string]entities.VideoEvaluationEntry{}
	}
	if doc.SessionID == "" {
		doc.SessionID = sessionID
	}
	return doc, nil
}

type Option func(*store)

func WithClock(now func() time.Time) Option {
	return func(s *store) {
		s.now = now
	}
}

func WithLocker(locker Locker) Option {
	return func(s *store) {
		s.locker = locker
	}
}

func NewStore(backend Backend, opts ...Option) Store {
	s := &store{
		backend: backend,
		locker:  NewKeyedMutex(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
