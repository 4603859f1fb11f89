package service

import (
	"fmt"

	"lectio_backend/internal/model"
)

// NotificationKind styles a toast on the frontend.
type NotificationKind string

const (
	NotificationInfo        NotificationKind = "info"
	NotificationSuccess     NotificationKind = "success"
	NotificationDestructive NotificationKind = "destructive"
)

// Notification is a user-visible toast produced by a story transition. The
// engine returns them with each result; it never pushes out of band, so every
// transition that matters to mastery is visibly reported and nothing fails
// silently.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
}

func reviewNotification() Notification {
	return Notification{
		Kind:    NotificationDestructive,
		Title:   "Let's review!",
		Message: "Not quite right. Go back through the material and try again.",
	}
}

func correctAnswerNotification(score int) Notification {
	return Notification{
		Kind:    NotificationSuccess,
		Title:   "Correct!",
		Message: fmt.Sprintf("+%d XP! Total: %d/%d XP", model.PointsPerCorrect, score, model.MasteryScore),
	}
}

func completedNotification() Notification {
	return Notification{
		Kind:    NotificationSuccess,
		Title:   "Node Completed",
		Message: "You mastered this segment. The next node is unlocked.",
	}
}

func saveFailedNotification() Notification {
	return Notification{
		Kind:    NotificationDestructive,
		Title:   "Failed to save progress",
		Message: "Your score is kept for this session, but could not be saved. It will be retried on your next completion.",
	}
}
