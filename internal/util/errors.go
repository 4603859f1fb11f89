package util

import "errors"

var (
	ErrLectureNotFound  = errors.New("lecture not found")
	ErrLectureNotReady  = errors.New("lecture text has not been extracted yet")
	ErrSegmentNotFound  = errors.New("segment not found")
	ErrNotQuestionStep  = errors.New("current step does not accept an answer")
	ErrPermissionDenied = errors.New("permission denied")
)
