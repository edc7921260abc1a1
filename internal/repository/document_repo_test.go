package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/stde-go-api/internal/models"
)

func TestDocumentRepositoryMarkProcessingIsCompareAndSet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	doc := seedDocument(t, db, 1, "plan.txt")

	ok, err := repo.MarkProcessing(ctx, doc.ID, time.Time{})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.MarkProcessing(ctx, doc.ID, time.Time{})
	require.NoError(t, err)
	require.False(t, ok, "second caller must observe PROCESSING")

	require.NoError(t, repo.UpdateStatus(ctx, doc.ID, models.DocumentStatusFailed))

	ok, err = repo.MarkProcessing(ctx, doc.ID, time.Time{})
	require.NoError(t, err)
	require.True(t, ok, "failed documents can be re-evaluated")
}

func TestDocumentRepositoryMarkProcessingTakesOverStaleClaim(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()
	doc := seedDocument(t, db, 1, "plan.txt")

	ok, err := repo.MarkProcessing(ctx, doc.ID, time.Time{})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.MarkProcessing(ctx, doc.ID, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.False(t, ok, "a fresh claim is still honoured")

	abandoned := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&models.Document{}).Where("id = ?", doc.ID).UpdateColumn("updated_at", abandoned).Error)

	ok, err = repo.MarkProcessing(ctx, doc.ID, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.True(t, ok, "an abandoned claim is taken over")

	stored, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, models.DocumentStatusProcessing, stored.Status)
	require.True(t, stored.UpdatedAt.After(abandoned), "takeover refreshes the claim")
}

func TestDocumentRepositoryUpdateStatusMissingDocument(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDocumentRepository(db)

	err := repo.UpdateStatus(context.Background(), 999, models.DocumentStatusFailed)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDocumentRepositoryMarkSubmittedOnlyOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()
	doc := seedDocument(t, db, 1, "plan.txt")

	ok, err := repo.MarkSubmitted(ctx, doc.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.MarkSubmitted(ctx, doc.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDocumentRepositoryDeleteRemovesEvaluation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()
	doc := seedDocument(t, db, 1, "plan.txt")

	require.NoError(t, NewEvaluationRepository(db).ReplaceForDocument(ctx, &models.Evaluation{
		DocumentID:   doc.ID,
		UserID:       1,
		OverallScore: 70,
	}))

	require.NoError(t, repo.Delete(ctx, doc.ID))

	var count int64
	require.NoError(t, db.Model(&models.Evaluation{}).Count(&count).Error)
	require.Zero(t, count)

	_, err := repo.GetByID(ctx, doc.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDocumentRepositoryListSubmittedByClassroom(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	classID := uint(7)
	submitted := models.Document{UserID: 1, ClassroomID: &classID, Filename: "a.txt", IsSubmitted: true, Status: models.DocumentStatusUploaded}
	draft := models.Document{UserID: 2, ClassroomID: &classID, Filename: "b.txt", Status: models.DocumentStatusUploaded}
	require.NoError(t, db.Create(&submitted).Error)
	require.NoError(t, db.Create(&draft).Error)

	docs, err := repo.ListSubmittedByClassroom(ctx, classID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "a.txt", docs[0].Filename)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedDocument(t *testing.T, db *gorm.DB, userID uint, filename string) models.Document {
	t.Helper()
	doc := models.Document{
		UserID:         userID,
		Filename:       filename,
		MimeType:       "text/plain",
		StorageLocator: filename,
		Status:         models.DocumentStatusUploaded,
	}
	require.NoError(t, db.Create(&doc).Error)
	return doc
}
