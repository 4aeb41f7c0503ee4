// Copyright 2025 ChemGPT
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditMode defines how audit records are persisted.
type AuditMode string

const (
	// AuditModeCompliance writes every record synchronously.
	AuditModeCompliance AuditMode = "compliance"
	// AuditModePerformance queues records for async workers.
	AuditModePerformance AuditMode = "performance"
)

// AuditRecord captures the outcome of one gateway request.
type AuditRecord struct {
	AuditID      string    `json:"audit_id"`
	RequestID    string    `json:"request_id"`
	CallerID     string    `json:"caller_id"`
	Capabilities []string  `json:"capabilities"`
	Status       string    `json:"status"` // complete/partial/failed or error code
	DurationMs   int64     `json:"duration_ms"`
	Timestamp    time.Time `json:"timestamp"`
	retries      int
}

// AuditQueue persists request audit records to Postgres with a file
// fallback. Records are queued and written by a small worker pool;
// compliance mode writes synchronously instead.
type AuditQueue struct {
	mode         AuditMode
	queue        chan AuditRecord
	workers      int
	wg           sync.WaitGroup
	db           *sql.DB
	fallbackFile *os.File
	mu           sync.Mutex

	processed uint64
	failed    uint64
	queued    uint64
}

// NewAuditQueue opens the fallback file and starts the workers. db may
// be nil, in which case every record goes to the fallback file.
func NewAuditQueue(mode AuditMode, queueSize, workers int, db *sql.DB, fallbackPath string) (*AuditQueue, error) {
	fallbackFile, err := os.OpenFile(fallbackPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open fallback file: %v", err)
	}

	aq := &AuditQueue{
		mode:         mode,
		queue:        make(chan AuditRecord, queueSize),
		workers:      workers,
		db:           db,
		fallbackFile: fallbackFile,
	}

	for i := 0; i < workers; i++ {
		aq.wg.Add(1)
		go aq.worker(i)
	}

	log.Printf("[Audit] queue started in %s mode with %d workers, fallback: %s", mode, workers, fallbackPath)
	return aq, nil
}

// Record persists one audit record according to the queue's mode.
func (aq *AuditQueue) Record(rec AuditRecord) error {
	rec.AuditID = uuid.New().String()
	rec.Timestamp = time.Now().UTC()

	if aq.mode == AuditModeCompliance {
		return aq.writeToDB(rec)
	}

	select {
	case aq.queue <- rec:
		aq.mu.Lock()
		aq.queued++
		aq.mu.Unlock()
		return nil
	default:
		// Queue full - write to fallback immediately rather than drop.
		aq.mu.Lock()
		defer aq.mu.Unlock()
		return aq.writeToFallback(rec)
	}
}

func (aq *AuditQueue) worker(id int) {
	defer aq.wg.Done()

	for rec := range aq.queue {
		var err error
		for retry := 0; retry < 3; retry++ {
			if err = aq.writeToDB(rec); err == nil {
				aq.mu.Lock()
				aq.processed++
				aq.mu.Unlock()
				break
			}
			time.Sleep(time.Millisecond * time.Duration(100*(retry+1)))
			rec.retries++
		}

		if err != nil {
			aq.mu.Lock()
			aq.failed++
			if fallbackErr := aq.writeToFallback(rec); fallbackErr != nil {
				log.Printf("[Audit] worker %d: failed to write to fallback: %v", id, fallbackErr)
			}
			aq.mu.Unlock()
		}
	}
}

func (aq *AuditQueue) writeToDB(rec AuditRecord) error {
	if aq.db == nil {
		return fmt.Errorf("database connection not initialized")
	}

	capsJSON, _ := json.Marshal(rec.Capabilities)
	const insertQuery = `
		INSERT INTO gateway_audit_logs (audit_id, request_id, caller_id, capabilities, status, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := aq.db.Exec(insertQuery,
		rec.AuditID,
		rec.RequestID,
		rec.CallerID,
		capsJSON,
		rec.Status,
		rec.DurationMs,
		rec.Timestamp)
	return err
}

func (aq *AuditQueue) writeToFallback(rec AuditRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %v", err)
	}
	if _, err := fmt.Fprintf(aq.fallbackFile, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write to fallback: %v", err)
	}
	return aq.fallbackFile.Sync()
}

// Shutdown drains the queue, waiting up to the context deadline before
// spilling what remains to the fallback file.
func (aq *AuditQueue) Shutdown(ctx context.Context) error {
	close(aq.queue)

	done := make(chan struct{})
	go func() {
		aq.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("[Audit] shutdown complete. Processed: %d, Failed: %d", aq.processed, aq.failed)
		return nil
	case <-ctx.Done():
		remaining := len(aq.queue)
		aq.mu.Lock()
		for rec := range aq.queue {
			if err := aq.writeToFallback(rec); err != nil {
				log.Printf("[Audit] failed to spill record to fallback: %v", err)
			}
		}
		aq.mu.Unlock()
		log.Printf("[Audit] timeout: spilled %d records to fallback", remaining)
		return ctx.Err()
	}
}

// Stats returns queue counters for the health endpoint.
func (aq *AuditQueue) Stats() map[string]interface{} {
	aq.mu.Lock()
	defer aq.mu.Unlock()
	return map[string]interface{}{
		"mode":      string(aq.mode),
		"queued":    aq.queued,
		"processed": aq.processed,
		"failed":    aq.failed,
		"pending":   len(aq.queue),
	}
}
