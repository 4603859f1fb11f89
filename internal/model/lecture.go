package model

import "fmt"

type LectureStatus string

const (
	LectureProcessing LectureStatus = "processing"
	LectureReady      LectureStatus = "ready"
	LectureFailed     LectureStatus = "failed"
)

// Lecture is the metadata record for an uploaded lecture. The PDF itself and
// its extracted text live in object storage; the platform registers both keys
// here once extraction is done.
// swagger:model
type Lecture struct {
	UUIDBase
	UserID        uint          `gorm:"index" json:"userId"`
	Title         string        `gorm:"type:varchar(255)" json:"title"`
	Status        LectureStatus `gorm:"type:varchar(20);default:'processing'" json:"status"`
	PDFObjectKey  string        `gorm:"type:varchar(512)" json:"pdfObjectKey"`
	TextObjectKey string        `gorm:"type:varchar(512)" json:"textObjectKey"`
	PageCount     int           `json:"pageCount"`
}

// SegmentAction is the navigation target attached to a pathway node. The set
// is closed; anything outside it is rejected at parse time instead of falling
// through to a null route.
type SegmentAction string

const (
	ActionSummary    SegmentAction = "summary"
	ActionStory      SegmentAction = "story"
	ActionChat       SegmentAction = "chat"
	ActionFlashcards SegmentAction = "flashcards"
	ActionQuiz       SegmentAction = "quiz"
	ActionResources  SegmentAction = "resources"
	ActionMindmap    SegmentAction = "mindmap"
	ActionPodcast    SegmentAction = "podcast"
)

func ParseSegmentAction(s string) (SegmentAction, error) {
	switch SegmentAction(s) {
	case ActionSummary, ActionStory, ActionChat, ActionFlashcards,
		ActionQuiz, ActionResources, ActionMindmap, ActionPodcast:
		return SegmentAction(s), nil
	}
	return "", fmt.Errorf("unknown segment action %q", s)
}

// Route returns the frontend route for the action, relative to the lecture.
func (a SegmentAction) Route() (string, error) {
	switch a {
	case ActionSummary:
		return "/summary", nil
	case ActionStory:
		return "/story", nil
	case ActionChat:
		return "/chat", nil
	case ActionFlashcards:
		return "/flashcards", nil
	case ActionQuiz:
		return "/quiz", nil
	case ActionResources:
		return "/resources", nil
	case ActionMindmap:
		return "/mindmap", nil
	case ActionPodcast:
		return "/podcast", nil
	}
	return "", fmt.Errorf("unknown segment action %q", string(a))
}

// Icon returns the icon name the frontend renders for the action.
func (a SegmentAction) Icon() (string, error) {
	switch a {
	case ActionSummary:
		return "file-text", nil
	case ActionStory:
		return "book-open", nil
	case ActionChat:
		return "message-circle", nil
	case ActionFlashcards:
		return "layers", nil
	case ActionQuiz:
		return "help-circle", nil
	case ActionResources:
		return "folder", nil
	case ActionMindmap:
		return "git-branch", nil
	case ActionPodcast:
		return "headphones", nil
	}
	return "", fmt.Errorf("unknown segment action %q", string(a))
}
