package postgres

// The sweep depends on the (status, next_run_at) index; listUpcoming and
// subscribeUpcoming on next_run_at; subscribeForDay on (created_by, start_at).
const schemaDDL = `
CREATE TABLE IF NOT EXISTS events (
    id              UUID PRIMARY KEY,
    title           TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    timezone        TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL,
    recurrence_rule TEXT NOT NULL DEFAULT '',
    start_at        TIMESTAMPTZ NOT NULL,
    end_at          TIMESTAMPTZ NOT NULL,
    next_run_at     TIMESTAMPTZ NOT NULL,
    last_posted_at  TIMESTAMPTZ,
    posted_at       TIMESTAMPTZ,
    created_by      TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_status_next_run_at ON events (status, next_run_at);
CREATE INDEX IF NOT EXISTS idx_events_next_run_at ON events (next_run_at);
CREATE INDEX IF NOT EXISTS idx_events_owner_start_at ON events (created_by, start_at);
`

const eventColumns = `
    id, title, description, timezone, status, recurrence_rule,
    start_at, end_at, next_run_at, last_posted_at, posted_at,
    created_by, created_at, updated_at`

const queryInsertEvent = `
INSERT INTO events (` + eventColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`

const queryGetEventForUpdate = `
SELECT ` + eventColumns + `
FROM events
WHERE id = $1
FOR UPDATE
`

const queryUpdateEvent = `
UPDATE events SET
    title = $2,
    description = $3,
    timezone = $4,
    status = $5,
    recurrence_rule = $6,
    start_at = $7,
    end_at = $8,
    next_run_at = $9,
    last_posted_at = $10,
    posted_at = $11,
    updated_at = $12
WHERE id = $1
`

const queryDeleteEvent = `
DELETE FROM events WHERE id = $1
`

const queryDueEvents = `
SELECT ` + eventColumns + `
FROM events
WHERE status = 'scheduled'
  AND next_run_at <= $1
ORDER BY next_run_at ASC
LIMIT $2
`

const queryUpcomingEvents = `
SELECT ` + eventColumns + `
FROM events
WHERE status = 'scheduled'
ORDER BY next_run_at ASC
LIMIT $1
`

const queryEventsForDay = `
SELECT ` + eventColumns + `
FROM events
WHERE created_by = $1
  AND start_at >= $2
  AND start_at < $3
ORDER BY start_at ASC
`
