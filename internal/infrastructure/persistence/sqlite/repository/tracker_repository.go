package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"capatrack/internal/domain/lifecycle"
	"capatrack/internal/errs"
	"capatrack/internal/infrastructure/persistence/sqlite/model"
	"capatrack/internal/ports"
)

// TrackerRepository implements ports.TrackerRepository on gorm/sqlite.
type TrackerRepository struct {
	db *gorm.DB
}

var _ ports.TrackerRepository = (*TrackerRepository)(nil)

func NewTrackerRepository(db *gorm.DB) *TrackerRepository {
	return &TrackerRepository{db: db}
}

func (r *TrackerRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *TrackerRepository) GetCorrectiveAction(ctx context.Context, tenantID, capaID string) (ports.CorrectiveAction, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.CorrectiveAction{}, err
	}

	var row model.CorrectiveAction
	if err := db.
		Where("tenant_id = ? AND capa_id = ?", tenantID, capaID).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.CorrectiveAction{}, ports.ErrNotFound
		}
		return ports.CorrectiveAction{}, errs.Wrap(err, "query corrective action")
	}
	return mapCorrectiveAction(row), nil
}

func (r *TrackerRepository) ListCorrectiveActions(ctx context.Context, tenantID string) ([]ports.CorrectiveAction, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.CorrectiveAction
	if err := db.
		Where("tenant_id = ?", tenantID).
		Order("capa_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query corrective actions")
	}

	items := make([]ports.CorrectiveAction, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapCorrectiveAction(row))
	}
	return items, nil
}

func (r *TrackerRepository) ListCorrectiveActionsByFinding(ctx context.Context, tenantID, findingID string) ([]ports.CorrectiveAction, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.CorrectiveAction
	if err := db.
		Where("tenant_id = ? AND finding_id = ?", tenantID, findingID).
		Order("capa_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query corrective actions by finding")
	}

	items := make([]ports.CorrectiveAction, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapCorrectiveAction(row))
	}
	return items, nil
}

func (r *TrackerRepository) CreateCorrectiveAction(ctx context.Context, capa ports.CorrectiveAction) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.CorrectiveAction{
		TenantID:       capa.TenantID,
		CapaID:         capa.CapaID,
		Title:          capa.Title,
		Description:    capa.Description,
		Status:         string(capa.Status),
		FindingID:      capa.FindingID,
		VerifiedBy:     capa.VerifiedBy,
		VerifiedAt:     capa.VerifiedAt,
		ClosedBy:       capa.ClosedBy,
		ClosedAt:       capa.ClosedAt,
		ReopenedCount:  capa.ReopenedCount,
		LastReopenedAt: capa.LastReopenedAt,
		Version:        1,
		CreatedAt:      capa.CreatedAt,
		UpdatedAt:      capa.UpdatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert corrective action")
	}
	return nil
}

func (r *TrackerRepository) UpdateCorrectiveAction(ctx context.Context, capa ports.CorrectiveAction) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.CorrectiveAction{}).
		Where("tenant_id = ? AND capa_id = ? AND version = ?", capa.TenantID, capa.CapaID, capa.Version).
		Updates(map[string]any{
			"status":           string(capa.Status),
			"verified_by":      capa.VerifiedBy,
			"verified_at":      capa.VerifiedAt,
			"closed_by":        capa.ClosedBy,
			"closed_at":        capa.ClosedAt,
			"reopened_count":   capa.ReopenedCount,
			"last_reopened_at": capa.LastReopenedAt,
			"version":          capa.Version + 1,
			"updated_at":       capa.UpdatedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update corrective action")
	}
	if result.RowsAffected == 0 {
		return r.versionConflictOrNotFound(ctx, &model.CorrectiveAction{}, "capa_id", capa.TenantID, capa.CapaID)
	}
	return nil
}

func (r *TrackerRepository) GetTask(ctx context.Context, tenantID, capaID, taskID string) (ports.CorrectiveActionTask, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.CorrectiveActionTask{}, err
	}

	var row model.CorrectiveActionTask
	if err := db.
		Where("tenant_id = ? AND capa_id = ? AND task_id = ?", tenantID, capaID, taskID).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.CorrectiveActionTask{}, ports.ErrNotFound
		}
		return ports.CorrectiveActionTask{}, errs.Wrap(err, "query task")
	}
	return mapTask(row), nil
}

func (r *TrackerRepository) ListTasks(ctx context.Context, tenantID, capaID string) ([]ports.CorrectiveActionTask, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.CorrectiveActionTask
	if err := db.
		Where("tenant_id = ? AND capa_id = ?", tenantID, capaID).
		Order("task_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query tasks")
	}

	items := make([]ports.CorrectiveActionTask, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapTask(row))
	}
	return items, nil
}

func (r *TrackerRepository) CreateTask(ctx context.Context, task ports.CorrectiveActionTask) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.CorrectiveActionTask{
		TenantID:  task.TenantID,
		TaskID:    task.TaskID,
		CapaID:    task.CapaID,
		Title:     task.Title,
		Status:    string(task.Status),
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert task")
	}
	return nil
}

func (r *TrackerRepository) UpdateTaskStatus(ctx context.Context, tenantID, capaID, taskID string, status lifecycle.Status, updatedAt string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.CorrectiveActionTask{}).
		Where("tenant_id = ? AND capa_id = ? AND task_id = ?", tenantID, capaID, taskID).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": updatedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update task status")
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *TrackerRepository) GetFinding(ctx context.Context, tenantID, findingID string) (ports.Finding, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Finding{}, err
	}

	var row model.Finding
	if err := db.
		Where("tenant_id = ? AND finding_id = ?", tenantID, findingID).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Finding{}, ports.ErrNotFound
		}
		return ports.Finding{}, errs.Wrap(err, "query finding")
	}
	return mapFinding(row), nil
}

func (r *TrackerRepository) ListFindings(ctx context.Context, tenantID string) ([]ports.Finding, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Finding
	if err := db.
		Where("tenant_id = ?", tenantID).
		Order("finding_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query findings")
	}

	items := make([]ports.Finding, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapFinding(row))
	}
	return items, nil
}

func (r *TrackerRepository) CreateFinding(ctx context.Context, finding ports.Finding) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.Finding{
		TenantID:       finding.TenantID,
		FindingID:      finding.FindingID,
		Title:          finding.Title,
		Description:    finding.Description,
		Status:         string(finding.Status),
		ClosedBy:       finding.ClosedBy,
		ClosedAt:       finding.ClosedAt,
		ReopenedCount:  finding.ReopenedCount,
		LastReopenedAt: finding.LastReopenedAt,
		Version:        1,
		CreatedAt:      finding.CreatedAt,
		UpdatedAt:      finding.UpdatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert finding")
	}
	return nil
}

func (r *TrackerRepository) UpdateFinding(ctx context.Context, finding ports.Finding) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.Finding{}).
		Where("tenant_id = ? AND finding_id = ? AND version = ?", finding.TenantID, finding.FindingID, finding.Version).
		Updates(map[string]any{
			"status":           string(finding.Status),
			"closed_by":        finding.ClosedBy,
			"closed_at":        finding.ClosedAt,
			"reopened_count":   finding.ReopenedCount,
			"last_reopened_at": finding.LastReopenedAt,
			"version":          finding.Version + 1,
			"updated_at":       finding.UpdatedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update finding")
	}
	if result.RowsAffected == 0 {
		return r.versionConflictOrNotFound(ctx, &model.Finding{}, "finding_id", finding.TenantID, finding.FindingID)
	}
	return nil
}

func (r *TrackerRepository) AppendHistory(ctx context.Context, entry ports.StatusHistoryEntry) (uint64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	metadataJSON := "{}"
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return 0, errs.Wrap(err, "encode history metadata")
		}
		metadataJSON = string(encoded)
	}

	var previous *string
	if entry.PreviousStatus != nil {
		value := string(*entry.PreviousStatus)
		previous = &value
	}

	row := model.StatusHistory{
		TenantID:       entry.TenantID,
		EntityKind:     string(entry.EntityKind),
		EntityID:       entry.EntityID,
		PreviousStatus: previous,
		NewStatus:      string(entry.NewStatus),
		ChangedBy:      entry.ChangedBy,
		Reason:         entry.Reason,
		Source:         string(entry.Source),
		MetadataJSON:   metadataJSON,
		CreatedAt:      entry.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return 0, errs.Wrap(err, "insert history entry")
	}
	return row.EntryID, nil
}

func (r *TrackerRepository) ListHistory(ctx context.Context, tenantID string, kind lifecycle.EntityKind, entityID string) ([]ports.StatusHistoryEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.StatusHistory
	if err := db.
		Where("tenant_id = ? AND entity_kind = ? AND entity_id = ?", tenantID, string(kind), entityID).
		Order("entry_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query history")
	}
	return mapHistoryRows(rows)
}

func (r *TrackerRepository) ListHistoryByTenant(ctx context.Context, tenantID string) ([]ports.StatusHistoryEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.StatusHistory
	if err := db.
		Where("tenant_id = ?", tenantID).
		Order("entry_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query tenant history")
	}
	return mapHistoryRows(rows)
}

// versionConflictOrNotFound disambiguates a zero-row guarded update:
// a row that exists under another version is a conflict, a missing row
// is not found.
func (r *TrackerRepository) versionConflictOrNotFound(ctx context.Context, probe any, idColumn, tenantID, id string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	var count int64
	if err := db.Model(probe).
		Where("tenant_id = ? AND "+idColumn+" = ?", tenantID, id).
		Count(&count).Error; err != nil {
		return errs.Wrap(err, "probe guarded update")
	}
	if count == 0 {
		return ports.ErrNotFound
	}
	return ports.ErrVersionConflict
}

func mapCorrectiveAction(row model.CorrectiveAction) ports.CorrectiveAction {
	return ports.CorrectiveAction{
		TenantID:       row.TenantID,
		CapaID:         row.CapaID,
		Title:          row.Title,
		Description:    row.Description,
		Status:         lifecycle.Status(row.Status),
		FindingID:      row.FindingID,
		VerifiedBy:     row.VerifiedBy,
		VerifiedAt:     row.VerifiedAt,
		ClosedBy:       row.ClosedBy,
		ClosedAt:       row.ClosedAt,
		ReopenedCount:  row.ReopenedCount,
		LastReopenedAt: row.LastReopenedAt,
		Version:        row.Version,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func mapTask(row model.CorrectiveActionTask) ports.CorrectiveActionTask {
	return ports.CorrectiveActionTask{
		TenantID:  row.TenantID,
		TaskID:    row.TaskID,
		CapaID:    row.CapaID,
		Title:     row.Title,
		Status:    lifecycle.Status(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func mapFinding(row model.Finding) ports.Finding {
	return ports.Finding{
		TenantID:       row.TenantID,
		FindingID:      row.FindingID,
		Title:          row.Title,
		Description:    row.Description,
		Status:         lifecycle.Status(row.Status),
		ClosedBy:       row.ClosedBy,
		ClosedAt:       row.ClosedAt,
		ReopenedCount:  row.ReopenedCount,
		LastReopenedAt: row.LastReopenedAt,
		Version:        row.Version,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func mapHistoryRows(rows []model.StatusHistory) ([]ports.StatusHistoryEntry, error) {
	items := make([]ports.StatusHistoryEntry, 0, len(rows))
	for _, row := range rows {
		metadata := map[string]string{}
		if row.MetadataJSON != "" && row.MetadataJSON != "{}" {
			if err := json.Unmarshal([]byte(row.MetadataJSON), &metadata); err != nil {
				return nil, errs.Wrapf(err, "decode metadata of history entry %d", row.EntryID)
			}
		}

		var previous *lifecycle.Status
		if row.PreviousStatus != nil {
			value := lifecycle.Status(*row.PreviousStatus)
			previous = &value
		}

		items = append(items, ports.StatusHistoryEntry{
			EntryID:        row.EntryID,
			TenantID:       row.TenantID,
			EntityKind:     lifecycle.EntityKind(row.EntityKind),
			EntityID:       row.EntityID,
			PreviousStatus: previous,
			NewStatus:      lifecycle.Status(row.NewStatus),
			ChangedBy:      row.ChangedBy,
			Reason:         row.Reason,
			Source:         lifecycle.Source(row.Source),
			Metadata:       metadata,
			CreatedAt:      row.CreatedAt,
		})
	}
	return items, nil
}
