package model

import "time"

// Story-mode scoring rules. Each segment carries QuestionsPerSegment
// questions; every correct answer awards PointsPerCorrect XP and mastery
// requires a fully correct cycle.
const (
	PointsPerCorrect    = 5
	QuestionsPerSegment = 2
	MasteryScore        = PointsPerCorrect * QuestionsPerSegment
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
)

type StoryQuestion struct {
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correctAnswer"`
	Explanation   string       `json:"explanation"`
}

// StorySegmentContent is the generated study material for one segment: the
// slides shown on the theory steps and the questions asked on the question
// steps, in order.
type StorySegmentContent struct {
	Slides    []string        `json:"slides"`
	Questions []StoryQuestion `json:"questions"`
}

// StorySegment is one node of a lecture's learning pathway. Segments are
// generated once per lecture and never change within a session; Content stays
// empty until the learner first opens the segment.
// swagger:model
type StorySegment struct {
	BaseModel
	LectureID      string        `gorm:"type:varchar(36);uniqueIndex:idx_segment_lecture_seq" json:"lectureId"`
	SequenceNumber int           `gorm:"uniqueIndex:idx_segment_lecture_seq" json:"sequenceNumber"`
	Title          string        `gorm:"type:varchar(255)" json:"title"`
	Description    string        `gorm:"type:text" json:"description"`
	Action         SegmentAction `gorm:"type:varchar(20)" json:"action"`
	// Serialized StorySegmentContent; empty until first generated.
	Content string `gorm:"type:json" json:"-"`
}

// StoryProgress is the durable per-(user, lecture, segment) record. Writes
// happen only when a learner finishes a fully correct cycle; CompletedAt is
// set by the store when the written score reaches MasteryScore and is never
// cleared afterwards.
// swagger:model
type StoryProgress struct {
	BaseModel
	UserID        uint       `gorm:"uniqueIndex:idx_progress_user_lecture_seg" json:"userId"`
	LectureID     string     `gorm:"type:varchar(36);uniqueIndex:idx_progress_user_lecture_seg" json:"lectureId"`
	SegmentNumber int        `gorm:"uniqueIndex:idx_progress_user_lecture_seg" json:"segmentNumber"`
	Score         int        `json:"score"`
	CompletedAt   *time.Time `json:"completedAt"`
}
