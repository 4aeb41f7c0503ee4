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
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditRecordFixture() AuditRecord {
	return AuditRecord{
		RequestID:    "req-1",
		CallerID:     "bench-app",
		Capabilities: []string{"retrosynthesis", "enrichment"},
		Status:       "complete",
		DurationMs:   42,
	}
}

func TestAuditComplianceModeWritesSynchronously(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO gateway_audit_logs").
		WithArgs(sqlmock.AnyArg(), "req-1", "bench-app", sqlmock.AnyArg(), "complete", int64(42), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	aq, err := NewAuditQueue(AuditModeCompliance, 10, 1, db, filepath.Join(t.TempDir(), "audit.log"))
	require.NoError(t, err)

	require.NoError(t, aq.Record(auditRecordFixture()))
	require.NoError(t, mock.ExpectationsWereMet())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, aq.Shutdown(ctx))
}

func TestAuditPerformanceModeDrainsQueue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO gateway_audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	aq, err := NewAuditQueue(AuditModePerformance, 10, 1, db, filepath.Join(t.TempDir(), "audit.log"))
	require.NoError(t, err)

	require.NoError(t, aq.Record(auditRecordFixture()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, aq.Shutdown(ctx))
	require.NoError(t, mock.ExpectationsWereMet())

	stats := aq.Stats()
	assert.Equal(t, uint64(1), stats["processed"])
	assert.Equal(t, uint64(0), stats["failed"])
}

func TestAuditFallsBackToFileWithoutDB(t *testing.T) {
	fallback := filepath.Join(t.TempDir(), "audit.log")

	aq, err := NewAuditQueue(AuditModePerformance, 10, 1, nil, fallback)
	require.NoError(t, err)

	require.NoError(t, aq.Record(auditRecordFixture()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, aq.Shutdown(ctx))

	f, err := os.Open(fallback)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan(), "fallback file should contain the record")

	var rec AuditRecord
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, "bench-app", rec.CallerID)
	assert.NotEmpty(t, rec.AuditID)
	assert.False(t, rec.Timestamp.IsZero())
}

func TestAuditQueueFullSpillsToFallback(t *testing.T) {
	fallback := filepath.Join(t.TempDir(), "audit.log")

	// Zero workers so nothing drains the one-slot queue.
	aq := &AuditQueue{
		mode:  AuditModePerformance,
		queue: make(chan AuditRecord, 1),
	}
	f, err := os.OpenFile(fallback, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	defer f.Close()
	aq.fallbackFile = f

	require.NoError(t, aq.Record(auditRecordFixture()))
	require.NoError(t, aq.Record(auditRecordFixture())) // spills

	data, err := os.ReadFile(fallback)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"request_id":"req-1"`)
}
