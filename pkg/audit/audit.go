// Package audit keeps an append-only trail of business events, such as
// order status changes, that can be read back per subject.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/freshbulk/storefront/config"
)

// Entry is one recorded event.
type Entry struct {
	At        time.Time      `bson:"at"                   json:"at"`
	Event     string         `bson:"event"                json:"event"`
	Subject   string         `bson:"subject"              json:"-"`
	ActorID   *uint          `bson:"actor_id,omitempty"   json:"actor_id,omitempty"`
	RequestID string         `bson:"request_id,omitempty" json:"request_id,omitempty"`
	Data      map[string]any `bson:"data,omitempty"       json:"data,omitempty"`
}

// Subject builds the key entries are grouped by, e.g. Subject("order", 42).
func Subject(kind string, id uint) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

type Recorder interface {
	Record(ctx context.Context, e Entry) error
	// History returns the entries for subject, oldest first.
	History(ctx context.Context, subject string, limit int) ([]Entry, error)
	Close(ctx context.Context) error
}

// Connect returns a Mongo recorder when MONGO_URI is set. Without it, or
// when Mongo is unreachable, an in-memory recorder is returned; in the
// latter case the connection error is returned alongside it.
func Connect(ctx context.Context) (Recorder, error) {
	uri := config.MongoURI()
	if uri == "" {
		return NewMemoryRecorder(), nil
	}
	rec, err := NewMongoRecorder(ctx, uri, config.MongoDatabase(), "audit_events")
	if err != nil {
		return NewMemoryRecorder(), err
	}
	return rec, nil
}
