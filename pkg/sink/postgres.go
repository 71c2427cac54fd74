package sink

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/netsecsim/netsec-monitor/pkg/models"
)

const (
	writerBatchSize     = 50
	writerBatchInterval = 2 * time.Second
	writerQueueSize     = 4096
)

// EventWriter persists attack events to PostgreSQL in batches. It is an
// optional consumer: the engine reports currently observed violations, and
// the writer turns the per-cycle stream into an incident log by updating
// last_seen_at on repeats instead of inserting duplicates.
type EventWriter struct {
	db    *sql.DB
	queue chan models.AttackEvent
	done  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	running bool

	eventsWritten  uint64
	eventsDropped  uint64
	batchesWritten uint64
}

// NewEventWriter connects to PostgreSQL and prepares the batch writer.
func NewEventWriter(databaseURL string) (*EventWriter, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &EventWriter{
		db:    db,
		queue: make(chan models.AttackEvent, writerQueueSize),
		done:  make(chan struct{}),
	}, nil
}

// Start begins the background writer goroutine.
func (w *EventWriter) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.writerLoop()
	log.Printf("event writer: started")
}

// Stop shuts down the writer, flushing queued events.
func (w *EventWriter) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
	w.db.Close()
	log.Printf("event writer: stopped (written=%d dropped=%d batches=%d)",
		w.eventsWritten, w.eventsDropped, w.batchesWritten)
}

// OnSnapshot queues the snapshot's events for batch writing. The queue is
// drained by a background goroutine so the poll loop is never delayed; when
// the queue is full events are dropped, not blocked on.
func (w *EventWriter) OnSnapshot(snap models.Snapshot) {
	for _, event := range snap.Events {
		select {
		case w.queue <- event:
		default:
			w.eventsDropped++
			if w.eventsDropped%1000 == 1 {
				log.Printf("event writer: queue full, dropped %d events", w.eventsDropped)
			}
		}
	}
}

func (w *EventWriter) writerLoop() {
	defer w.wg.Done()

	batch := make([]models.AttackEvent, 0, writerBatchSize)
	ticker := time.NewTicker(writerBatchInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-w.queue:
			batch = append(batch, event)
			if len(batch) >= writerBatchSize {
				w.writeBatch(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.writeBatch(batch)
				batch = batch[:0]
			}

		case <-w.done:
			close(w.queue)
			for event := range w.queue {
				batch = append(batch, event)
				if len(batch) >= writerBatchSize {
					w.writeBatch(batch)
					batch = batch[:0]
				}
			}
			if len(batch) > 0 {
				w.writeBatch(batch)
			}
			return
		}
	}
}

func (w *EventWriter) writeBatch(batch []models.AttackEvent) {
	tx, err := w.db.Begin()
	if err != nil {
		log.Printf("event writer: begin transaction: %v", err)
		return
	}
	defer tx.Rollback()

	written := 0
	for _, event := range batch {
		if w.writeEvent(tx, event) {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("event writer: commit batch: %v", err)
		return
	}

	w.eventsWritten += uint64(written)
	w.batchesWritten++
}

// writeEvent inserts a new incident or refreshes an active one with the
// same (type, node, prefix) signature.
func (w *EventWriter) writeEvent(tx *sql.Tx, event models.AttackEvent) bool {
	var existingID int
	err := tx.QueryRow(`
		SELECT id FROM attack_events
		WHERE event_type = $1
		AND node = $2
		AND prefix = $3
		AND is_active = true
		LIMIT 1
	`, event.Type, event.Node, event.Prefix).Scan(&existingID)

	if err == nil {
		_, err = tx.Exec(`
			UPDATE attack_events
			SET last_seen_at = $1, last_cycle = $2
			WHERE id = $3
		`, event.DetectedAt, event.Cycle, existingID)
		if err != nil {
			log.Printf("event writer: update event %d: %v", existingID, err)
			return false
		}
		return true
	}

	if err != sql.ErrNoRows {
		log.Printf("event writer: check existing event: %v", err)
		return false
	}

	_, err = tx.Exec(`
		INSERT INTO attack_events (
			event_type, node, prefix,
			first_cycle, last_cycle,
			detected_at, last_seen_at, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		event.Type,
		event.Node,
		event.Prefix,
		event.Cycle,
		event.Cycle,
		event.DetectedAt,
		event.DetectedAt,
		true,
	)
	if err != nil {
		log.Printf("event writer: insert event: %v", err)
		return false
	}
	return true
}
