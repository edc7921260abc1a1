package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/stde-go-api/internal/models"
)

// EvaluationRepository persists evaluation reports.
type EvaluationRepository interface {
	FindByDocumentID(ctx context.Context, documentID uint) (models.Evaluation, error)
	FindByDocumentIDs(ctx context.Context, documentIDs []uint) ([]models.Evaluation, error)
	FindLatestByUserAndHash(ctx context.Context, userID uint, hash string) (models.Evaluation, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Evaluation, error)
	ReplaceForDocument(ctx context.Context, evaluation *models.Evaluation) error
	SaveForDocument(ctx context.Context, evaluation *models.Evaluation) error
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository constructs an evaluation repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) FindByDocumentID(ctx context.Context, documentID uint) (models.Evaluation, error) {
	var evaluation models.Evaluation
	err := r.db.WithContext(ctx).
		Preload("Document").
		Where("document_id = ?", documentID).
		First(&evaluation).Error
	if err != nil {
		return models.Evaluation{}, err
	}
	return evaluation, nil
}

func (r *evaluationRepository) FindByDocumentIDs(ctx context.Context, documentIDs []uint) ([]models.Evaluation, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	var evaluations []models.Evaluation
	if err := r.db.WithContext(ctx).Where("document_id IN ?", documentIDs).Find(&evaluations).Error; err != nil {
		return nil, err
	}
	return evaluations, nil
}

// FindLatestByUserAndHash returns the newest evaluation owned by userID whose document carries
// the given content hash.
func (r *evaluationRepository) FindLatestByUserAndHash(ctx context.Context, userID uint, hash string) (models.Evaluation, error) {
	if hash == "" {
		return models.Evaluation{}, gorm.ErrRecordNotFound
	}

	var evaluation models.Evaluation
	err := r.db.WithContext(ctx).
		Joins("JOIN documents ON documents.id = evaluations.document_id").
		Where("evaluations.user_id = ? AND documents.content_hash = ?", userID, hash).
		Order("evaluations.created_at DESC").
		Order("evaluations.id DESC").
		First(&evaluation).Error
	if err != nil {
		return models.Evaluation{}, err
	}
	return evaluation, nil
}

func (r *evaluationRepository) ListByUser(ctx context.Context, userID uint) ([]models.Evaluation, error) {
	var evaluations []models.Evaluation
	err := r.db.WithContext(ctx).
		Preload("Document").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&evaluations).Error
	if err != nil {
		return nil, err
	}
	return evaluations, nil
}

// ReplaceForDocument deletes any evaluation attached to the document, inserts the new one and
// marks the document COMPLETED, all in one transaction. The delete is issued before the insert
// so the unique document index never sees two rows.
func (r *evaluationRepository) ReplaceForDocument(ctx context.Context, evaluation *models.Evaluation) error {
	if evaluation == nil || evaluation.DocumentID == 0 {
		return errors.New("evaluation must reference a document")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", evaluation.DocumentID).Delete(&models.Evaluation{}).Error; err != nil {
			return err
		}

		evaluation.ID = 0
		if err := tx.Omit(clause.Associations).Create(evaluation).Error; err != nil {
			return err
		}

		result := tx.Model(&models.Document{}).
			Where("id = ?", evaluation.DocumentID).
			Update("status", models.DocumentStatusCompleted)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// SaveForDocument updates the evaluation in place (or inserts it when new) and marks the document
// COMPLETED in the same transaction.
func (r *evaluationRepository) SaveForDocument(ctx context.Context, evaluation *models.Evaluation) error {
	if evaluation == nil || evaluation.DocumentID == 0 {
		return errors.New("evaluation must reference a document")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if evaluation.ID == 0 {
			if err := tx.Omit(clause.Associations).Create(evaluation).Error; err != nil {
				return err
			}
		} else if err := tx.Omit(clause.Associations).Save(evaluation).Error; err != nil {
			return err
		}

		result := tx.Model(&models.Document{}).
			Where("id = ?", evaluation.DocumentID).
			Update("status", models.DocumentStatusCompleted)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
