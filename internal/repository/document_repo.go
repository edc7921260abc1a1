package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/stde-go-api/internal/models"
)

// DocumentRepository exposes persistence helpers for uploaded documents.
type DocumentRepository interface {
	Create(ctx context.Context, document *models.Document) error
	GetByID(ctx context.Context, id uint) (models.Document, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Document, error)
	ListSubmittedByClassroom(ctx context.Context, classroomID uint) ([]models.Document, error)
	MarkProcessing(ctx context.Context, id uint, staleBefore time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
	SetContentHash(ctx context.Context, id uint, hash string) error
	MarkSubmitted(ctx context.Context, id uint) (bool, error)
	Delete(ctx context.Context, id uint) error
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository constructs a document repository.
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, document *models.Document) error {
	return r.db.WithContext(ctx).Create(document).Error
}

func (r *documentRepository) GetByID(ctx context.Context, id uint) (models.Document, error) {
	var document models.Document
	if err := r.db.WithContext(ctx).First(&document, id).Error; err != nil {
		return models.Document{}, err
	}
	return document, nil
}

func (r *documentRepository) ListByUser(ctx context.Context, userID uint) ([]models.Document, error) {
	var documents []models.Document
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&documents).Error
	if err != nil {
		return nil, err
	}
	return documents, nil
}

func (r *documentRepository) ListSubmittedByClassroom(ctx context.Context, classroomID uint) ([]models.Document, error) {
	var documents []models.Document
	err := r.db.WithContext(ctx).
		Where("classroom_id = ? AND is_submitted = ?", classroomID, true).
		Order("created_at DESC").
		Order("id DESC").
		Find(&documents).Error
	if err != nil {
		return nil, err
	}
	return documents, nil
}

// MarkProcessing moves the document into PROCESSING unless another call already holds it. A
// PROCESSING row last touched before staleBefore counts as abandoned and is taken over.
// It reports false when no row changed.
func (r *documentRepository) MarkProcessing(ctx context.Context, id uint, staleBefore time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ? AND (status <> ? OR updated_at < ?)", id, models.DocumentStatusProcessing, staleBefore).
		Update("status", models.DocumentStatusProcessing)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *documentRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *documentRepository) SetContentHash(ctx context.Context, id uint, hash string) error {
	return r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ?", id).
		Update("content_hash", hash).Error
}

// MarkSubmitted flips the submission flag once; false means the document was already submitted.
func (r *documentRepository) MarkSubmitted(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ? AND is_submitted = ?", id, false).
		Update("is_submitted", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Delete removes the document together with its evaluation.
func (r *documentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&models.Evaluation{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Document{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
