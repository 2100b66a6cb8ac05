package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Event types appended by the attempt lifecycle.
const (
	AttemptStarted   = "AttemptStarted"
	AttemptCompleted = "AttemptCompleted"
	AttemptGraded    = "AttemptGraded"
)

type Event struct {
	Seq       int64
	SiteID    string
	Type      string
	Key       string // natural key: attemptID
	DataJSON  string
	CreatedAt int64
}

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewEvent encodes data as the event payload.
func NewEvent(typ, key string, data any) (Event, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{SiteID: "local", Type: typ, Key: key, DataJSON: string(b), CreatedAt: time.Now().Unix()}, nil
}

// Append writes e using ex, usually the caller's transaction so the event
// commits or rolls back with the change it describes.
func Append(ctx context.Context, ex Execer, e Event) error {
	if e.SiteID == "" {
		e.SiteID = "local"
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, e.CreatedAt)
	return err
}
