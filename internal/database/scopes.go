package database

import (
	"gorm.io/gorm"
)

// PushEnabled restricts a users query to accounts that receive reminders
func PushEnabled(db *gorm.DB) *gorm.DB {
	return db.Where("push = ?", true)
}

// ByUsername restricts a query to rows owned by the given backend username
func ByUsername(username string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("username = ?", username)
	}
}
