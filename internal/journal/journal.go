// Package journal records studio runs in Postgres and answers usage questions
// about them.
package journal

import (
	"context"
	"fmt"
	"time"

	"personastudio/internal/domain"
	"personastudio/internal/infra"
	"personastudio/internal/sqlinline"
	"personastudio/internal/studio"
)

const writeTimeout = 5 * time.Second

// RunDiscarded is the journal status of a run dropped by a reset while it was
// in flight. The sequence itself never reports it.
const RunDiscarded domain.RunStatus = "discarded"

const discardedMessage = "discarded by reset"

// Run is one journaled studio run.
type Run struct {
	SessionID    string           `json:"session_id"`
	Run          int              `json:"run"`
	PersonaID    string           `json:"persona_id,omitempty"`
	Prompt       string           `json:"prompt"`
	Status       domain.RunStatus `json:"status"`
	Error        string           `json:"error,omitempty"`
	GenerationID string           `json:"generation_id,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty"`
}

type Journal struct {
	db     infra.SQLExecutor
	logger *infra.Logger
}

func New(db infra.SQLExecutor, logger *infra.Logger) *Journal {
	return &Journal{db: db, logger: infra.LoggerOrDiscard(logger)}
}

// Observer returns a studio observer that journals the runs of one session
// on behalf of user.
func (j *Journal) Observer(sessionID string, user domain.User) studio.Observer {
	return &recorder{journal: j, sessionID: sessionID, user: user}
}

// CountRunsSince counts the user's runs started at or after since that did not
// fail. Runs still in flight count, so parallel sessions cannot overrun a
// monthly allowance.
func (j *Journal) CountRunsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	if err := j.db.QueryRow(ctx, sqlinline.QCountStudioRunsSince, userID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("journal: count runs: %w", err)
	}
	return n, nil
}

// Recent lists the user's latest runs, newest first.
func (j *Journal) Recent(ctx context.Context, userID string, limit int) ([]Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := j.db.Query(ctx, sqlinline.QListStudioRunsByUser, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r        Run
			persona  *string
			status   string
			finished *time.Time
		)
		if err := rows.Scan(&r.SessionID, &r.Run, &persona, &r.Prompt, &status, &r.Error, &r.GenerationID, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("journal: scan run: %w", err)
		}
		if persona != nil {
			r.PersonaID = *persona
		}
		r.Status = domain.RunStatus(status)
		r.FinishedAt = finished
		out = append(out, r)
	}
	return out, rows.Err()
}

// MonthStart is the first instant of the UTC calendar month containing t.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

type recorder struct {
	journal   *Journal
	sessionID string
	user      domain.User
}

func (r *recorder) OnEvent(ctx context.Context, ev studio.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	var (
		query string
		args  []any
	)
	switch ev.Kind {
	case studio.EventTransition:
		if ev.To == domain.RunMergingImages {
			personaID := ""
			if ev.Snapshot.Persona != nil {
				personaID = ev.Snapshot.Persona.ID
			}
			query = sqlinline.QInsertStudioRun
			args = []any{r.sessionID, ev.Run, r.user.Sub, r.user.Email, personaID, ev.Snapshot.Prompt, string(ev.To)}
		} else {
			query = sqlinline.QUpdateStudioRunStatus
			args = []any{r.sessionID, ev.Run, string(ev.To), ev.Snapshot.Error}
		}
	case studio.EventSaved:
		id := ""
		if ev.Snapshot.Saved != nil {
			id = ev.Snapshot.Saved.ID
		}
		query = sqlinline.QUpdateStudioRunSaved
		args = []any{r.sessionID, ev.Run, id, ""}
	case studio.EventSaveFailed:
		query = sqlinline.QUpdateStudioRunSaved
		args = []any{r.sessionID, ev.Run, "", domain.Message(ev.Err)}
	case studio.EventDiscarded:
		query = sqlinline.QUpdateStudioRunStatus
		args = []any{r.sessionID, ev.Run, string(RunDiscarded), discardedMessage}
	default:
		return
	}

	if _, err := r.journal.db.Exec(ctx, query, args...); err != nil {
		r.journal.logger.Warn().Err(err).
			Str("session_id", r.sessionID).
			Int("run", ev.Run).
			Str("event", string(ev.Kind)).
			Msg("journal: write failed")
	}
}
