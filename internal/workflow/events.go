package workflow

import (
	"context"
	"time"

	"chapter-server/internal/model"
)

// StateEvent - изменение состояния главы.
type StateEvent struct {
	PlanID        string                `json:"planId"`
	ChapterIndex  int                   `json:"chapterIndex"`
	ChapterID     string                `json:"chapterId"`
	State         model.ChapterState    `json:"state"`
	Failure       *model.ChapterFailure `json:"failure,omitempty"`
	QualityIssues []model.QualityIssue  `json:"qualityIssues,omitempty"`
	At            time.Time             `json:"at"`
}

// EventSink получает изменения состояния глав: websocket, очередь событий, хранилище.
type EventSink interface {
	Publish(ctx context.Context, event StateEvent) error
}

// SinkFunc позволяет использовать функцию как EventSink.
type SinkFunc func(ctx context.Context, event StateEvent) error

func (f SinkFunc) Publish(ctx context.Context, event StateEvent) error {
	return f(ctx, event)
}

func newEvent(planID string, index int, ch model.Chapter, at time.Time) StateEvent {
	return StateEvent{
		PlanID:        planID,
		ChapterIndex:  index,
		ChapterID:     ch.ID,
		State:         ch.State,
		Failure:       ch.LastFailure,
		QualityIssues: ch.QualityIssues,
		At:            at,
	}
}
