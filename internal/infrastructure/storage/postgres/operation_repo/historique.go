package operation_repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"fretops/internal/core/id"
	"fretops/internal/domain/operation"
	"fretops/internal/infrastructure/storage/postgres"
)

const historiquesTable = "historiques"

// Change payloads above this size are stored zstd-compressed.
const compressThreshold = 4 * 1024

// Compile-time check.
var _ operation.HistoriqueRecorder = (*HistoriqueRepo)(nil)

// HistoriqueRepo persists the append-only audit trail. Rows are only ever
// inserted; there is no update or delete path, removal happens solely by
// cascade when the operation goes.
type HistoriqueRepo struct {
	txManager *postgres.TxManager
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

// NewHistoriqueRepo creates the historique repository.
func NewHistoriqueRepo(txManager *postgres.TxManager) (*HistoriqueRepo, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &HistoriqueRepo{
		txManager: txManager,
		encoder:   encoder,
		decoder:   decoder,
	}, nil
}

// Record appends one audit record. It runs against the transaction carried
// by ctx, so the record commits or rolls back with the mutation it audits.
func (r *HistoriqueRepo) Record(ctx context.Context, h *operation.Historique) error {
	var changes []byte
	var compressed []byte
	if len(h.Changes) > 0 {
		raw, err := json.Marshal(h.Changes)
		if err != nil {
			return fmt.Errorf("marshal changes: %w", err)
		}
		if len(raw) > compressThreshold {
			compressed = r.encoder.EncodeAll(raw, nil)
		} else {
			changes = raw
		}
	}

	_, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO historiques (id, operation_id, user_id, action, changes, changes_compressed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, h.ID, h.OperationID, h.UserID, h.Action, changes, compressed, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert historique: %w", err)
	}
	return nil
}

// ListByOperation returns the audit trail of an operation, newest first.
func (r *HistoriqueRepo) ListByOperation(ctx context.Context, opID id.ID, limit int) ([]operation.Historique, error) {
	rows, err := r.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, operation_id, user_id, action, changes, changes_compressed, created_at
		FROM historiques
		WHERE operation_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, opID, limit)
	if err != nil {
		return nil, fmt.Errorf("query historiques: %w", err)
	}
	defer rows.Close()

	var out []operation.Historique
	for rows.Next() {
		var (
			h          operation.Historique
			changes    []byte
			compressed []byte
			createdAt  time.Time
		)
		if err := rows.Scan(&h.ID, &h.OperationID, &h.UserID, &h.Action, &changes, &compressed, &createdAt); err != nil {
			return nil, fmt.Errorf("scan historique: %w", err)
		}
		h.CreatedAt = createdAt

		raw := changes
		if len(compressed) > 0 {
			raw, err = r.decoder.DecodeAll(compressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress changes: %w", err)
			}
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &h.Changes); err != nil {
				return nil, fmt.Errorf("unmarshal changes: %w", err)
			}
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate historiques: %w", err)
	}
	return out, nil
}
