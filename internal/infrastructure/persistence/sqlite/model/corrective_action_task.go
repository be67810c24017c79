package model

type CorrectiveActionTask struct {
	TenantID  string `gorm:"column:tenant_id;primaryKey;type:text;not null"`
	TaskID    string `gorm:"column:task_id;primaryKey;type:text;not null"`
	CapaID    string `gorm:"column:capa_id;type:text;not null;index"`
	Title     string `gorm:"column:title;type:text;not null"`
	Status    string `gorm:"column:status;type:text;not null"`
	CreatedAt string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (CorrectiveActionTask) TableName() string {
	return "corrective_action_tasks"
}
