package repository

import (
	"github.com/JonasKleint/ReelKit/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	CreateWithLedger(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByActivationToken(token string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	Count() (int64, error)
}

// ProjectRepository defines the interface for project-related database operations
type ProjectRepository interface {
	Create(project *models.Project) error
	GetByID(id uint) (*models.Project, error)
	GetByUUID(uuid string) (*models.Project, error)
	GetByShareCode(code string) (*models.Project, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Project, error)
	Update(project *models.Project) error
	Delete(id uint) error
	CountByUserID(userID uint) (int64, error)
}
