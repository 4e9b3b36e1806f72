package models

// ActivityModel is one security event. Rows are only ever inserted.
type ActivityModel struct {
	Base
	UserID    int64  `json:"user_id"    gorm:"index"`
	Action    string `json:"action"     gorm:"size:64;index;not null"`
	Details   string `json:"details"    gorm:"type:text"`
	IPAddress string `json:"ip_address" gorm:"size:64"`
	UserAgent string `json:"user_agent" gorm:"type:text"`
}

func (ActivityModel) TableName() string { return "user_activity" }
