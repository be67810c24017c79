package tracker

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"capatrack/internal/errs"
)

var historyCSVHeader = []string{
	"entry_id", "tenant_id", "entity_kind", "entity_id",
	"previous_status", "new_status", "changed_by", "reason",
	"source", "metadata", "created_at",
}

// ExportHistoryCSV streams a tenant's full ledger as CSV, oldest entry
// first. Metadata is encoded as a JSON object in a single column.
func (s *Service) ExportHistoryCSV(ctx context.Context, tenantID string, w io.Writer) error {
	if err := s.checkWiring(ctx); err != nil {
		return err
	}

	entries, err := s.repo.ListHistoryByTenant(ctx, tenantID)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(historyCSVHeader); err != nil {
		return errs.Wrap(err, "write csv header")
	}

	for _, entry := range entries {
		previous := ""
		if entry.PreviousStatus != nil {
			previous = string(*entry.PreviousStatus)
		}

		metadata := "{}"
		if len(entry.Metadata) > 0 {
			encoded, err := json.Marshal(entry.Metadata)
			if err != nil {
				return errs.Wrapf(err, "encode metadata of entry %d", entry.EntryID)
			}
			metadata = string(encoded)
		}

		record := []string{
			strconv.FormatUint(entry.EntryID, 10),
			entry.TenantID,
			string(entry.EntityKind),
			entry.EntityID,
			previous,
			string(entry.NewStatus),
			entry.ChangedBy,
			entry.Reason,
			string(entry.Source),
			metadata,
			entry.CreatedAt,
		}
		if err := writer.Write(record); err != nil {
			return errs.Wrapf(err, "write csv record %d", entry.EntryID)
		}
	}

	writer.Flush()
	return errs.Wrap(writer.Error(), "flush csv")
}
