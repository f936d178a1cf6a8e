package storage

import (
	"context"
	"fmt"

	"github.com/scangate/gateway/internal/pipeline"
)

// WriteAudit inserts one best-effort scan-audit row, satisfying
// pipeline.AuditWriter. It runs outside any caller transaction: audit loss
// must never block or fail the frame response.
func (db *DB) WriteAudit(ctx context.Context, rec pipeline.AuditRecord) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO scan_audits (user_id, device_id, session_id, frame_sequence, detection_count, outcome)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.DeviceID, rec.SessionID, rec.FrameSequence, rec.DetectionCount, rec.Outcome)
	if err != nil {
		return fmt.Errorf("insert scan audit: %w", err)
	}
	return nil
}
