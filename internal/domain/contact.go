package domain

import "time"

// ContactSubmission 表示一条联系表单提交记录。
//
// 记录一旦写入即不可变：系统内没有更新或删除路径，
// 存储层按值向调用方返回副本。
type ContactSubmission struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"type:varchar(120);not null"`
	Email     string    `json:"email" gorm:"type:varchar(254);not null"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName 指定 GORM 表名
func (ContactSubmission) TableName() string {
	return "contacts"
}
