package database

import "inkwell/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Account{},
		&models.Post{},
		&models.Comment{},
		&models.CommentEdge{},
		&models.Like{},
		&models.Notification{},
	}
}
