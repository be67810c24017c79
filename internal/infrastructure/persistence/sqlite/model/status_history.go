package model

// StatusHistory rows are append-only; the repository exposes no update
// or delete for this table.
type StatusHistory struct {
	EntryID        uint64  `gorm:"column:entry_id;primaryKey;autoIncrement"`
	TenantID       string  `gorm:"column:tenant_id;type:text;not null;index"`
	EntityKind     string  `gorm:"column:entity_kind;type:text;not null;index:idx_history_entity"`
	EntityID       string  `gorm:"column:entity_id;type:text;not null;index:idx_history_entity"`
	PreviousStatus *string `gorm:"column:previous_status;type:text"`
	NewStatus      string  `gorm:"column:new_status;type:text;not null"`
	ChangedBy      string  `gorm:"column:changed_by;type:text;not null"`
	Reason         string  `gorm:"column:reason;type:text;not null"`
	Source         string  `gorm:"column:source;type:text;not null"`
	MetadataJSON   string  `gorm:"column:metadata_json;type:text;not null"`
	CreatedAt      string  `gorm:"column:created_at;type:text;not null"`
}

func (StatusHistory) TableName() string {
	return "status_history"
}
