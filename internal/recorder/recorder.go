// Package recorder persists telemetry to a local SQLite database so a run
// can be replayed or inspected after the fact. It sits behind the same sink
// interface the live publisher implements; enqueueing never blocks the
// control loop, and a dedicated worker batches inserts on a timer.
package recorder

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/asterworks/go-aster/internal/log"
	"github.com/asterworks/go-aster/pkg/driver"
	"github.com/asterworks/go-aster/pkg/telemetry"
)

const (
	// defaultQueue bounds the enqueue channel; samples beyond it are dropped.
	defaultQueue = 256
	// maxBatch flushes early when a burst outpaces the timer.
	maxBatch = 128
	// defaultFlushEvery is the insert cadence. One transaction per flush.
	defaultFlushEvery = time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	robot TEXT NOT NULL,
	started_at TEXT NOT NULL,
	stopped_at TEXT
);
CREATE TABLE IF NOT EXISTS joint_states (
	run_id TEXT NOT NULL,
	stamp TEXT NOT NULL,
	names TEXT NOT NULL,
	positions TEXT NOT NULL,
	FOREIGN KEY(run_id) REFERENCES runs(id)
);
CREATE TABLE IF NOT EXISTS stiffnesses (
	run_id TEXT NOT NULL,
	stamp TEXT NOT NULL,
	value DOUBLE NOT NULL,
	FOREIGN KEY(run_id) REFERENCES runs(id)
);
`

type sampleKind int

const (
	jointSample sampleKind = iota
	stiffnessSample
)

type sample struct {
	kind  sampleKind
	joint telemetry.JointState
	stiff telemetry.Stiffness
}

// Recorder is a telemetry sink that writes joint states and stiffness
// values into per-run SQLite tables.
type Recorder struct {
	db    *sql.DB
	runID string

	queue      chan sample
	done       chan struct{}
	finished   chan struct{}
	closeOnce  sync.Once
	flushEvery time.Duration

	mu      sync.Mutex
	started bool
	dropped uint64

	logger *slog.Logger
}

var _ driver.TelemetrySink = (*Recorder)(nil)

// Run identifies one recorded driver session.
type Run struct {
	ID        string
	Robot     string
	StartedAt time.Time
	StoppedAt time.Time // zero while the run is still open
}

// Open creates or opens the database at path and starts a new run row for
// the given robot model. Call Start to launch the flush worker.
func Open(path, robot string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open recorder database")
	}
	// WAL lets the web layer read snapshots while the worker is writing.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "apply %s", pragma)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create recorder schema")
	}

	r := &Recorder{
		db:         db,
		runID:      uuid.NewString(),
		queue:      make(chan sample, defaultQueue),
		done:       make(chan struct{}),
		finished:   make(chan struct{}),
		flushEvery: defaultFlushEvery,
		logger:     log.Component("recorder"),
	}

	_, err = db.Exec(`INSERT INTO runs (id, robot, started_at) VALUES (?, ?, ?)`,
		r.runID, robot, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "insert run row")
	}

	r.logger.Info("recording started", "run", r.runID, "path", path)
	return r, nil
}

// RunID returns the identifier of the run being recorded.
func (r *Recorder) RunID() string {
	return r.runID
}

// Start launches the flush worker. It returns immediately.
func (r *Recorder) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()
	go r.loop()
}

// JointState enqueues a joint snapshot. When the queue is full the sample
// is dropped; recording must never stall the control loop.
func (r *Recorder) JointState(js telemetry.JointState) {
	r.enqueue(sample{kind: jointSample, joint: js})
}

// Stiffness enqueues a stiffness sample.
func (r *Recorder) Stiffness(s telemetry.Stiffness) {
	r.enqueue(sample{kind: stiffnessSample, stiff: s})
}

func (r *Recorder) enqueue(s sample) {
	select {
	case r.queue <- s:
	case <-r.done:
	default:
		r.mu.Lock()
		r.dropped++
		n := r.dropped
		r.mu.Unlock()
		if n%100 == 1 {
			r.logger.Warn("recorder queue full, dropping samples", "dropped", n)
		}
	}
}

// Dropped returns how many samples were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Recorder) loop() {
	defer close(r.finished)

	ticker := time.NewTicker(r.flushEvery)
	defer ticker.Stop()

	batch := make([]sample, 0, maxBatch)
	for {
		select {
		case s := <-r.queue:
			batch = append(batch, s)
			if len(batch) >= maxBatch {
				r.flush(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}

		case <-r.done:
			// Drain whatever arrived before the shutdown, then flush once.
			for {
				select {
				case s := <-r.queue:
					batch = append(batch, s)
				default:
					if len(batch) > 0 {
						r.flush(batch)
					}
					return
				}
			}
		}
	}
}

func (r *Recorder) flush(batch []sample) {
	if err := r.insert(batch); err != nil {
		r.logger.Error("flush failed", "samples", len(batch), "error", err)
	}
}

func (r *Recorder) insert(batch []sample) error {
	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			r.logger.Warn("rollback failed", "error", err)
		}
	}()

	jointStmt, err := tx.Prepare(`INSERT INTO joint_states (run_id, stamp, names, positions) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare joint insert")
	}
	defer jointStmt.Close()

	stiffStmt, err := tx.Prepare(`INSERT INTO stiffnesses (run_id, stamp, value) VALUES (?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare stiffness insert")
	}
	defer stiffStmt.Close()

	for _, s := range batch {
		switch s.kind {
		case jointSample:
			names, err := json.Marshal(s.joint.Names)
			if err != nil {
				return errors.Wrap(err, "encode joint names")
			}
			positions, err := json.Marshal(s.joint.Positions)
			if err != nil {
				return errors.Wrap(err, "encode joint positions")
			}
			stamp := s.joint.Stamp.UTC().Format(time.RFC3339Nano)
			if _, err := jointStmt.Exec(r.runID, stamp, string(names), string(positions)); err != nil {
				return errors.Wrap(err, "insert joint state")
			}
		case stiffnessSample:
			stamp := s.stiff.Stamp.UTC().Format(time.RFC3339Nano)
			if _, err := stiffStmt.Exec(r.runID, stamp, s.stiff.Value); err != nil {
				return errors.Wrap(err, "insert stiffness")
			}
		}
	}

	return errors.Wrap(tx.Commit(), "commit batch")
}

// Close stops the worker, flushes the remaining samples, stamps the run as
// stopped and closes the database. Safe to call more than once.
func (r *Recorder) Close() error {
	var closeErr error
	r.closeOnce.Do(func() {
		close(r.done)
		r.mu.Lock()
		started := r.started
		r.mu.Unlock()
		if started {
			<-r.finished
		}

		stopped := time.Now().UTC().Format(time.RFC3339Nano)
		if _, err := r.db.Exec(`UPDATE runs SET stopped_at = ? WHERE id = ?`, stopped, r.runID); err != nil {
			closeErr = errors.Wrap(err, "stamp run stop")
		}
		if err := r.db.Close(); err != nil && closeErr == nil {
			closeErr = errors.Wrap(err, "close database")
		}
		r.logger.Info("recording stopped", "run", r.runID)
	})
	return closeErr
}

// Runs lists the recorded runs, newest first.
func (r *Recorder) Runs() ([]Run, error) {
	rows, err := r.db.Query(`SELECT id, robot, started_at, COALESCE(stopped_at, '') FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, stopped string
		if err := rows.Scan(&run.ID, &run.Robot, &started, &stopped); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, errors.Wrapf(err, "parse started_at for run %s", run.ID)
		}
		if stopped != "" {
			if run.StoppedAt, err = time.Parse(time.RFC3339Nano, stopped); err != nil {
				return nil, errors.Wrapf(err, "parse stopped_at for run %s", run.ID)
			}
		}
		runs = append(runs, run)
	}
	return runs, errors.Wrap(rows.Err(), "iterate runs")
}

// JointStates returns up to limit joint snapshots recorded for the given
// run, oldest first.
func (r *Recorder) JointStates(runID string, limit int) ([]telemetry.JointState, error) {
	rows, err := r.db.Query(
		`SELECT stamp, names, positions FROM joint_states WHERE run_id = ? ORDER BY stamp LIMIT ?`,
		runID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query joint states")
	}
	defer rows.Close()

	var states []telemetry.JointState
	for rows.Next() {
		var stamp, names, positions string
		if err := rows.Scan(&stamp, &names, &positions); err != nil {
			return nil, errors.Wrap(err, "scan joint state")
		}
		var js telemetry.JointState
		if js.Stamp, err = time.Parse(time.RFC3339Nano, stamp); err != nil {
			return nil, errors.Wrap(err, "parse stamp")
		}
		if err := json.Unmarshal([]byte(names), &js.Names); err != nil {
			return nil, errors.Wrap(err, "decode names")
		}
		if err := json.Unmarshal([]byte(positions), &js.Positions); err != nil {
			return nil, errors.Wrap(err, "decode positions")
		}
		states = append(states, js)
	}
	return states, errors.Wrap(rows.Err(), "iterate joint states")
}

// Stiffnesses returns up to limit stiffness samples for the given run,
// oldest first.
func (r *Recorder) Stiffnesses(runID string, limit int) ([]telemetry.Stiffness, error) {
	rows, err := r.db.Query(
		`SELECT stamp, value FROM stiffnesses WHERE run_id = ? ORDER BY stamp LIMIT ?`,
		runID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query stiffnesses")
	}
	defer rows.Close()

	var samples []telemetry.Stiffness
	for rows.Next() {
		var stamp string
		var st telemetry.Stiffness
		if err := rows.Scan(&stamp, &st.Value); err != nil {
			return nil, errors.Wrap(err, "scan stiffness")
		}
		if st.Stamp, err = time.Parse(time.RFC3339Nano, stamp); err != nil {
			return nil, errors.Wrap(err, "parse stamp")
		}
		samples = append(samples, st)
	}
	return samples, errors.Wrap(rows.Err(), "iterate stiffnesses")
}
