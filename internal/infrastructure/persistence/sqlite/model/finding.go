package model

type Finding struct {
	TenantID       string  `gorm:"column:tenant_id;primaryKey;type:text;not null"`
	FindingID      string  `gorm:"column:finding_id;primaryKey;type:text;not null"`
	Title          string  `gorm:"column:title;type:text;not null"`
	Description    string  `gorm:"column:description;type:text;not null"`
	Status         string  `gorm:"column:status;type:text;not null;index"`
	ClosedBy       *string `gorm:"column:closed_by;type:text"`
	ClosedAt       *string `gorm:"column:closed_at;type:text"`
	ReopenedCount  int     `gorm:"column:reopened_count;not null;default:0"`
	LastReopenedAt *string `gorm:"column:last_reopened_at;type:text"`
	Version        uint64  `gorm:"column:version;not null;default:1"`
	CreatedAt      string  `gorm:"column:created_at;type:text;not null"`
	UpdatedAt      string  `gorm:"column:updated_at;type:text;not null"`
}

func (Finding) TableName() string {
	return "findings"
}
