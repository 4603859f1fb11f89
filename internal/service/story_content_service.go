package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lectio_backend/internal/model"
	"lectio_backend/internal/repository"
	"lectio_backend/internal/util"
	"lectio_backend/pkg/logger"
	"lectio_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	segmentsCacheKeyPrefix = "story:segments:"
	contentCacheKeyPrefix  = "story:content:"

	// Prompts carry at most this much lecture text.
	maxLectureChars = 24000
)

const pathwaySystemPrompt = "You are a curriculum designer for an education app. " +
	"You turn lecture material into a short, ordered learning pathway. " +
	"Respond with JSON only."

const contentSystemPrompt = "You are a tutor writing an interactive story-mode unit for an education app. " +
	"You write short theory slides and check questions from lecture material. " +
	"Respond with JSON only."

// StoryContentService is the Content Provider: it generates a lecture's
// pathway and each segment's study material exactly once, persists the
// result, and serves the stored copy forever after. Generation is a single
// non-retrying call bounded by a timeout.
type StoryContentService struct {
	LectureRepo *repository.LectureRepository
	SegmentRepo *repository.StorySegmentRepository
	Storage     *StorageService
	Generator   ContentGenerator
	Redis       *redis.Client // optional; nil disables the cache layer
	Timeout     time.Duration

	group singleflight.Group
}

func NewStoryContentService(
	lectureRepo *repository.LectureRepository,
	segmentRepo *repository.StorySegmentRepository,
	storage *StorageService,
	generator ContentGenerator,
	rdb *redis.Client,
	timeout time.Duration,
) *StoryContentService {
	return &StoryContentService{
		LectureRepo: lectureRepo,
		SegmentRepo: segmentRepo,
		Storage:     storage,
		Generator:   generator,
		Redis:       rdb,
		Timeout:     timeout,
	}
}

type pathwayOutput struct {
	Segments []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Action      string `json:"action"`
	} `json:"segments"`
}

type contentOutput struct {
	Slides    []string `json:"slides"`
	Questions []struct {
		Type          string   `json:"type"`
		Prompt        string   `json:"prompt"`
		Options       []string `json:"options"`
		CorrectAnswer string   `json:"correctAnswer"`
		Explanation   string   `json:"explanation"`
	} `json:"questions"`
}

// GetSegments returns the lecture's ordered pathway, generating it on first
// request. Once generated, segments are immutable and cached indefinitely.
func (s *StoryContentService) GetSegments(ctx context.Context, lectureID string) ([]model.StorySegment, error) {
	cacheKey := segmentsCacheKeyPrefix + lectureID
	if cached, ok := s.cacheGet(ctx, cacheKey); ok {
		var segments []model.StorySegment
		if err := json.Unmarshal(cached, &segments); err == nil {
			return segments, nil
		}
	}

	segments, err := s.SegmentRepo.ListByLecture(lectureID)
	if err != nil {
		return nil, err
	}
	if len(segments) > 0 {
		s.cacheSet(ctx, cacheKey, segments)
		return segments, nil
	}

	// First visit: generate once. Concurrent callers share one flight.
	v, err, _ := s.group.Do("segments:"+lectureID, func() (interface{}, error) {
		return s.generateSegments(ctx, lectureID)
	})
	if err != nil {
		return nil, err
	}

	segments = v.([]model.StorySegment)
	s.cacheSet(ctx, cacheKey, segments)
	return segments, nil
}

func (s *StoryContentService) generateSegments(ctx context.Context, lectureID string) ([]model.StorySegment, error) {
	text, err := s.lectureText(ctx, lectureID)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"Create a learning pathway of 4 to 8 segments for the lecture below. "+
			"Each segment needs a title, a one-sentence description, and an action "+
			"chosen from: summary, story, chat, flashcards, quiz, resources, mindmap, podcast. "+
			"Most segments should use the story action.\n"+
			"Return: {\"segments\":[{\"title\":\"...\",\"description\":\"...\",\"action\":\"...\"}]}\n\n"+
			"Lecture:\n%s", text)

	raw, err := s.generate(ctx, "pathway", prompt, pathwaySystemPrompt)
	if err != nil {
		return nil, err
	}

	var out pathwayOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse pathway response: %w", err)
	}
	if len(out.Segments) == 0 {
		return nil, fmt.Errorf("pathway response contained no segments")
	}

	segments := make([]model.StorySegment, 0, len(out.Segments))
	for i, seg := range out.Segments {
		action, err := model.ParseSegmentAction(seg.Action)
		if err != nil {
			return nil, fmt.Errorf("pathway segment %d: %w", i+1, err)
		}
		segments = append(segments, model.StorySegment{
			LectureID:      lectureID,
			SequenceNumber: i + 1,
			Title:          seg.Title,
			Description:    seg.Description,
			Action:         action,
		})
	}

	if err := s.SegmentRepo.CreateBatch(segments); err != nil {
		return nil, err
	}

	logger.Log.Info("generated story pathway",
		zap.String("lectureID", lectureID),
		zap.Int("segments", len(segments)))

	return s.SegmentRepo.ListByLecture(lectureID)
}

// GetSegmentContent returns the segment's slides and questions, generating
// them the first time the learner opens the segment.
func (s *StoryContentService) GetSegmentContent(ctx context.Context, lectureID string, segmentNumber int) (*model.StorySegmentContent, error) {
	cacheKey := fmt.Sprintf("%s%s:%d", contentCacheKeyPrefix, lectureID, segmentNumber)
	if cached, ok := s.cacheGet(ctx, cacheKey); ok {
		var content model.StorySegmentContent
		if err := json.Unmarshal(cached, &content); err == nil {
			return &content, nil
		}
	}

	segment, err := s.SegmentRepo.FindByNumber(lectureID, segmentNumber)
	if err != nil {
		return nil, err
	}

	if segment.Content != "" {
		var content model.StorySegmentContent
		if err := json.Unmarshal([]byte(segment.Content), &content); err != nil {
			return nil, fmt.Errorf("stored segment content is corrupt: %w", err)
		}
		s.cacheSet(ctx, cacheKey, content)
		return &content, nil
	}

	key := fmt.Sprintf("content:%s:%d", lectureID, segmentNumber)
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.generateContent(ctx, segment)
	})
	if err != nil {
		return nil, err
	}

	content := v.(*model.StorySegmentContent)
	s.cacheSet(ctx, cacheKey, content)
	return content, nil
}

func (s *StoryContentService) generateContent(ctx context.Context, segment *model.StorySegment) (*model.StorySegmentContent, error) {
	text, err := s.lectureText(ctx, segment.LectureID)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"Write story-mode material for the segment %q (%s) of the lecture below. "+
			"Produce exactly 2 theory slides (120-180 words each, plain text) and exactly %d questions. "+
			"Each question is multiple_choice (4 options) or true_false (options True/False), "+
			"with the correct answer repeated verbatim in correctAnswer and a one-sentence explanation.\n"+
			"Return: {\"slides\":[\"...\",\"...\"],\"questions\":[{\"type\":\"...\",\"prompt\":\"...\","+
			"\"options\":[\"...\"],\"correctAnswer\":\"...\",\"explanation\":\"...\"}]}\n\n"+
			"Lecture:\n%s",
		segment.Title, segment.Description, model.QuestionsPerSegment, text)

	raw, err := s.generate(ctx, "segment_content", prompt, contentSystemPrompt)
	if err != nil {
		return nil, err
	}

	var out contentOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse content response: %w", err)
	}
	if len(out.Slides) == 0 || len(out.Questions) != model.QuestionsPerSegment {
		return nil, fmt.Errorf("content response malformed: %d slides, %d questions",
			len(out.Slides), len(out.Questions))
	}

	content := &model.StorySegmentContent{Slides: out.Slides}
	for i, q := range out.Questions {
		if q.Type != string(model.MultipleChoice) && q.Type != string(model.TrueFalse) {
			return nil, fmt.Errorf("question %d has unknown type %q", i+1, q.Type)
		}
		content.Questions = append(content.Questions, model.StoryQuestion{
			Type:          model.QuestionType(q.Type),
			Prompt:        q.Prompt,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		})
	}

	serialized, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	if err := s.SegmentRepo.UpdateContent(segment.ID, string(serialized)); err != nil {
		return nil, err
	}

	logger.Log.Info("generated segment content",
		zap.String("lectureID", segment.LectureID),
		zap.Int("segment", segment.SequenceNumber))

	return content, nil
}

func (s *StoryContentService) generate(ctx context.Context, kind, prompt, system string) (json.RawMessage, error) {
	gctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := s.Generator.GenerateJSON(gctx, system, prompt)
	monitoring.ContentGenerationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("content generation (%s): %w", kind, err)
	}
	return raw, nil
}

func (s *StoryContentService) lectureText(ctx context.Context, lectureID string) (string, error) {
	lecture, err := s.LectureRepo.FindByID(lectureID)
	if err != nil {
		return "", err
	}
	if lecture.TextObjectKey == "" || lecture.Status != model.LectureReady {
		return "", util.ErrLectureNotReady
	}

	data, err := s.Storage.Fetch(ctx, lecture.TextObjectKey)
	if err != nil {
		return "", fmt.Errorf("fetch lecture text: %w", err)
	}

	text := string(data)
	if len(text) > maxLectureChars {
		text = text[:maxLectureChars]
	}
	return text, nil
}

// Segments never change once generated, so cache entries have no expiry.
func (s *StoryContentService) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.Redis == nil {
		return nil, false
	}
	val, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

func (s *StoryContentService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.Redis == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, key, data, 0).Err(); err != nil {
		logger.Log.Warn("failed to cache story content", zap.String("key", key), zap.Error(err))
	}
}
