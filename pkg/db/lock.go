package db

import "gorm.io/gorm"

// ForUpdate returns the row-lock suffix for raw SELECTs on dialects that support it.
func ForUpdate(tx *gorm.DB) string {
	if tx == nil || tx.Dialector == nil {
		return ""
	}
	switch tx.Dialector.Name() {
	case TypePostgres, TypeMySQL:
		return " FOR UPDATE"
	default:
		return ""
	}
}
