package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lectio_backend/internal/model"
	"lectio_backend/internal/repository"
)

// StoryService owns the live engines, one per (user, lecture) session, and
// joins segments with persisted progress for the pathway view.
type StoryService struct {
	Content      *StoryContentService
	ProgressRepo *repository.StoryProgressRepository
	writeTimeout time.Duration

	mu      sync.Mutex
	engines map[string]*StoryEngine
}

func NewStoryService(content *StoryContentService, progressRepo *repository.StoryProgressRepository, writeTimeout time.Duration) *StoryService {
	return &StoryService{
		Content:      content,
		ProgressRepo: progressRepo,
		writeTimeout: writeTimeout,
		engines:      make(map[string]*StoryEngine),
	}
}

func (s *StoryService) engine(userID uint, lectureID string) *StoryEngine {
	key := fmt.Sprintf("%d:%s", userID, lectureID)

	s.mu.Lock()
	defer s.mu.Unlock()
	eng, ok := s.engines[key]
	if !ok {
		eng = NewStoryEngine(userID, lectureID, s.ProgressRepo, s.writeTimeout)
		s.engines[key] = eng
	}
	return eng
}

func (s *StoryService) Continue(userID uint, lectureID string, segmentNumber int) *StepResult {
	return s.engine(userID, lectureID).Continue(segmentNumber)
}

func (s *StoryService) AnswerQuestion(ctx context.Context, userID uint, lectureID string, segmentNumber int, correct bool) (*StepResult, error) {
	return s.engine(userID, lectureID).AnswerQuestion(ctx, segmentNumber, correct)
}

func (s *StoryService) SegmentState(userID uint, lectureID string, segmentNumber int) *StepResult {
	eng := s.engine(userID, lectureID)
	return &StepResult{
		SegmentNumber: segmentNumber,
		Step:          eng.CurrentStep(segmentNumber),
		Score:         eng.Score(segmentNumber),
	}
}

func (s *StoryService) Progress(ctx context.Context, userID uint, lectureID string) ([]model.StoryProgress, error) {
	return s.ProgressRepo.ListByUserAndLecture(ctx, userID, lectureID)
}

// PathwayNode is a segment decorated with the learner's durable progress and
// the navigation target resolved from the segment's action.
type PathwayNode struct {
	SegmentNumber int                 `json:"segmentNumber"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Action        model.SegmentAction `json:"action"`
	Route         string              `json:"route"`
	Icon          string              `json:"icon"`
	Score         int                 `json:"score"`
	Completed     bool                `json:"completed"`
}

func (s *StoryService) Pathway(ctx context.Context, userID uint, lectureID string) ([]PathwayNode, error) {
	segments, err := s.Content.GetSegments(ctx, lectureID)
	if err != nil {
		return nil, err
	}

	progress, err := s.ProgressRepo.ListByUserAndLecture(ctx, userID, lectureID)
	if err != nil {
		return nil, err
	}
	bySegment := make(map[int]model.StoryProgress, len(progress))
	for _, p := range progress {
		bySegment[p.SegmentNumber] = p
	}

	nodes := make([]PathwayNode, 0, len(segments))
	for _, seg := range segments {
		route, err := seg.Action.Route()
		if err != nil {
			return nil, err
		}
		icon, err := seg.Action.Icon()
		if err != nil {
			return nil, err
		}

		node := PathwayNode{
			SegmentNumber: seg.SequenceNumber,
			Title:         seg.Title,
			Description:   seg.Description,
			Action:        seg.Action,
			Route:         route,
			Icon:          icon,
		}
		if p, ok := bySegment[seg.SequenceNumber]; ok {
			node.Score = p.Score
			node.Completed = p.CompletedAt != nil
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
