package tracking

import (
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"riqaudio.click/internal/audio"
	"riqaudio.click/internal/engine"
)

// DBHook records engine events in the tracking database
type DBHook struct {
	db        *sql.DB
	sessionID string

	mu       sync.Mutex
	disabled bool
	recorded int
}

var _ engine.EventHook = (*DBHook)(nil)

// NewDBHook creates a new database hook for the specified session
func NewDBHook(db *sql.DB, sessionID string) *DBHook {
	return &DBHook{
		db:        db,
		sessionID: sessionID,
	}
}

// OnEvent inserts one row per event. After the first write error the hook
// disables itself so a broken database never slows playback down.
func (d *DBHook) OnEvent(event engine.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.disabled {
		return
	}

	if err := d.insertEvent(event); err != nil {
		slog.Warn("usage tracking failed to record event, disabling", "kind", event.Kind, "error", err)
		d.disabled = true
		return
	}
	d.recorded++

	slog.Debug("usage tracking recorded event",
		"session_id", d.sessionID,
		"kind", event.Kind,
		"source", event.Source)
}

func (d *DBHook) insertEvent(event engine.Event) error {
	var errText sql.NullString
	if event.Err != nil {
		errText = sql.NullString{String: event.Err.Error(), Valid: true}
	}

	ts := event.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	fileType := ""
	if event.Source != "" {
		if ft := audio.FileTypeFromPath(event.Source); ft != audio.FileTypeUnknown {
			fileType = ft.String()
		}
	}

	_, err := d.db.Exec(`
		INSERT INTO engine_events (timestamp, session_id, kind, source, file_type, frames, sample_rate, channels, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.Unix(),
		d.sessionID,
		string(event.Kind),
		event.Source,
		fileType,
		event.Frames,
		event.SampleRate,
		event.Channels,
		errText)
	return err
}

// Disabled reports whether a write error switched the hook off
func (d *DBHook) Disabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disabled
}

// Recorded counts events written so far
func (d *DBHook) Recorded() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recorded
}
