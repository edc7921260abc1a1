package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/stde-go-api/internal/models"
)

func TestEvaluationRepositoryReplaceKeepsSingleRowPerDocument(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEvaluationRepository(db)
	ctx := context.Background()
	doc := seedDocument(t, db, 1, "plan.txt")

	first := &models.Evaluation{DocumentID: doc.ID, UserID: 1, OverallScore: 60}
	require.NoError(t, repo.ReplaceForDocument(ctx, first))

	second := &models.Evaluation{DocumentID: doc.ID, UserID: 1, OverallScore: 85}
	require.NoError(t, repo.ReplaceForDocument(ctx, second))

	var count int64
	require.NoError(t, db.Model(&models.Evaluation{}).Where("document_id = ?", doc.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)

	stored, err := repo.FindByDocumentID(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, 85, stored.OverallScore)
	require.Equal(t, "plan.txt", stored.Document.Filename)

	var reloaded models.Document
	require.NoError(t, db.First(&reloaded, doc.ID).Error)
	require.Equal(t, models.DocumentStatusCompleted, reloaded.Status)
}

func TestEvaluationRepositoryFindLatestByUserAndHash(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEvaluationRepository(db)
	ctx := context.Background()
	hash := "abc123"

	older := seedDocument(t, db, 1, "old.txt")
	newer := seedDocument(t, db, 1, "new.txt")
	foreign := seedDocument(t, db, 2, "foreign.txt")
	for _, doc := range []models.Document{older, newer, foreign} {
		require.NoError(t, db.Model(&models.Document{}).Where("id = ?", doc.ID).Update("content_hash", hash).Error)
	}

	now := time.Now().UTC()
	require.NoError(t, db.Create(&models.Evaluation{DocumentID: older.ID, UserID: 1, OverallScore: 50, CreatedAt: now.Add(-2 * time.Hour)}).Error)
	require.NoError(t, db.Create(&models.Evaluation{DocumentID: newer.ID, UserID: 1, OverallScore: 77, CreatedAt: now.Add(-time.Hour)}).Error)
	require.NoError(t, db.Create(&models.Evaluation{DocumentID: foreign.ID, UserID: 2, OverallScore: 99, CreatedAt: now}).Error)

	found, err := repo.FindLatestByUserAndHash(ctx, 1, hash)
	require.NoError(t, err)
	require.Equal(t, 77, found.OverallScore)

	_, err = repo.FindLatestByUserAndHash(ctx, 3, hash)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.FindLatestByUserAndHash(ctx, 1, "")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestEvaluationRepositorySaveForDocumentUpdatesInPlace(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEvaluationRepository(db)
	ctx := context.Background()
	doc := seedDocument(t, db, 1, "plan.txt")

	evaluation := &models.Evaluation{DocumentID: doc.ID, UserID: 1, OverallScore: 40}
	require.NoError(t, repo.SaveForDocument(ctx, evaluation))
	originalID := evaluation.ID

	evaluation.OverallScore = 95
	require.NoError(t, repo.SaveForDocument(ctx, evaluation))

	stored, err := repo.FindByDocumentID(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, originalID, stored.ID)
	require.Equal(t, 95, stored.OverallScore)
}

func TestEvaluationRepositoryListByUserNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEvaluationRepository(db)
	ctx := context.Background()

	a := seedDocument(t, db, 1, "a.txt")
	b := seedDocument(t, db, 1, "b.txt")
	now := time.Now().UTC()
	require.NoError(t, db.Create(&models.Evaluation{DocumentID: a.ID, UserID: 1, CreatedAt: now.Add(-time.Hour)}).Error)
	require.NoError(t, db.Create(&models.Evaluation{DocumentID: b.ID, UserID: 1, CreatedAt: now}).Error)

	evaluations, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, evaluations, 2)
	require.Equal(t, "b.txt", evaluations[0].Document.Filename)
}
