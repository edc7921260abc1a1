package service

import (
	"archive/zip"
	"bytes"
	"context"
	"mime/multipart"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/stde-go-api/internal/models"
	"github.com/noah-isme/stde-go-api/pkg/extract"
)

func newDocumentFixture(t *testing.T, maxSizeMB int) (*evaluationFixture, DocumentService) {
	t.Helper()
	f := newEvaluationFixture(t, EvaluationConfig{ClassifyFailOpen: true}, 30)
	classrooms := NewClassroomService(f.classrooms, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
	svc := NewDocumentService(f.documents, f.evaluations, classrooms, f.storage, f.activity, maxSizeMB, zerolog.Nop())
	return f, svc
}

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {"form-data; name=\"file\"; filename=\"" + filename + "\""},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content)) + 1024)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	archive := zip.NewWriter(buf)

	contentTypes, err := archive.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = contentTypes.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`))
	require.NoError(t, err)

	body := `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	for _, paragraph := range paragraphs {
		body += `<w:p><w:r><w:t>` + paragraph + `</w:t></w:r></w:p>`
	}
	body += `</w:body></w:document>`
	document, err := archive.Create("word/document.xml")
	require.NoError(t, err)
	_, err = document.Write([]byte(body))
	require.NoError(t, err)

	require.NoError(t, archive.Close())
	return buf.Bytes()
}

func TestDocumentUploadStoresPlainText(t *testing.T) {
	f, svc := newDocumentFixture(t, 5)
	file := buildFileHeader(t, "../plan.txt", []byte(testPlan))

	resp, err := svc.Upload(context.Background(), actorOf(f.student), nil, file)
	require.NoError(t, err)
	require.Equal(t, extract.MimeTypeText, resp.MimeType)
	require.Equal(t, models.DocumentStatusUploaded, resp.Status)
	require.Equal(t, "plan.txt", resp.Filename)
	require.Nil(t, resp.OverallScore)

	stored, err := f.documents.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	reader, err := f.storage.Fetch(context.Background(), stored.StorageLocator)
	require.NoError(t, err)
	defer reader.Close()

	require.Len(t, f.activity.entries, 1)
	require.Equal(t, models.ActivityActionUpload, f.activity.entries[0].Action)
}

func TestDocumentUploadDetectsDocx(t *testing.T) {
	f, svc := newDocumentFixture(t, 5)
	file := buildFileHeader(t, "plan.docx", buildDocx(t, "Test case 1", "Expected: ok"))

	resp, err := svc.Upload(context.Background(), actorOf(f.student), nil, file)
	require.NoError(t, err)
	require.Equal(t, extract.MimeTypeDOCX, resp.MimeType)
}

func TestDocumentUploadValidation(t *testing.T) {
	f, svc := newDocumentFixture(t, 1)
	missingClassroom := uint(404)

	cases := []struct {
		name      string
		file      *multipart.FileHeader
		classroom *uint
		expected  error
	}{
		{name: "too large", file: buildFileHeader(t, "big.txt", bytes.Repeat([]byte("a"), 2*1024*1024)), expected: ErrUploadTooLarge},
		{name: "empty", file: buildFileHeader(t, "empty.txt", nil), expected: ErrUploadEmpty},
		{name: "image", file: buildFileHeader(t, "image.png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}), expected: ErrUnsupportedFileType},
		{name: "unknown classroom", file: buildFileHeader(t, "plan.txt", []byte(testPlan)), classroom: &missingClassroom, expected: ErrClassroomNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), actorOf(f.student), tc.classroom, tc.file)
			require.ErrorIs(t, err, tc.expected)
		})
	}
	require.Empty(t, f.storage.objects)
}

func TestDocumentSubmitOnce(t *testing.T) {
	f, svc := newDocumentFixture(t, 5)
	document := f.upload(t, f.student, "plan.txt", testPlan, nil)

	_, err := svc.Submit(context.Background(), document.ID, actorOf(f.teacher))
	require.ErrorIs(t, err, ErrUnauthorized)

	resp, err := svc.Submit(context.Background(), document.ID, actorOf(f.student))
	require.NoError(t, err)
	require.True(t, resp.IsSubmitted)

	_, err = svc.Submit(context.Background(), document.ID, actorOf(f.student))
	require.ErrorIs(t, err, ErrDocumentAlreadySubmitted)
}

func TestDocumentDelete(t *testing.T) {
	f, svc := newDocumentFixture(t, 5)
	document := f.upload(t, f.student, "plan.txt", testPlan, nil)
	_, err := f.svc.Evaluate(context.Background(), document.ID, actorOf(f.student))
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(context.Background(), document.ID, actorOf(f.teacher)), ErrUnauthorized)
	require.NoError(t, svc.Delete(context.Background(), document.ID, actorOf(f.student)))

	_, err = f.documents.GetByID(context.Background(), document.ID)
	require.Error(t, err)
	require.Zero(t, f.evaluationCount(t, document.ID))
	require.NotContains(t, f.storage.objects, document.StorageLocator)

	require.ErrorIs(t, svc.Delete(context.Background(), document.ID, actorOf(f.student)), ErrDocumentNotFound)
}

func TestDocumentDeleteRejectsSubmittedAndBusy(t *testing.T) {
	f, svc := newDocumentFixture(t, 5)

	submitted := f.upload(t, f.student, "submitted.txt", testPlan, nil)
	_, err := svc.Submit(context.Background(), submitted.ID, actorOf(f.student))
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(context.Background(), submitted.ID, actorOf(f.student)), ErrDocumentImmutable)

	busy := f.upload(t, f.student, "busy.txt", testPlan, nil)
	_, err = f.documents.MarkProcessing(context.Background(), busy.ID, time.Time{})
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(context.Background(), busy.ID, actorOf(f.student)), ErrDocumentBusy)
}

func TestDocumentListings(t *testing.T) {
	f, svc := newDocumentFixture(t, 5)
	classroom := models.Classroom{Name: "QA 101", TeacherID: f.teacher.ID}
	require.NoError(t, f.classrooms.Create(context.Background(), &classroom))

	scored := f.upload(t, f.student, "scored.txt", testPlan, &classroom.ID)
	draft := f.upload(t, f.student, "draft.txt", "draft", &classroom.ID)
	_, err := f.svc.Evaluate(context.Background(), scored.ID, actorOf(f.student))
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), scored.ID, actorOf(f.student))
	require.NoError(t, err)

	mine, err := svc.ListForUser(context.Background(), f.student.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, draft.ID, mine[0].ID)
	require.Nil(t, mine[0].OverallScore)
	require.NotNil(t, mine[1].OverallScore)
	require.Equal(t, 79, *mine[1].OverallScore)

	submitted, err := svc.ListForClassroom(context.Background(), classroom.ID, f.teacher.ID)
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	require.Equal(t, scored.ID, submitted[0].ID)

	_, err = svc.ListForClassroom(context.Background(), classroom.ID, f.student.ID)
	require.ErrorIs(t, err, ErrUnauthorized)

	viewed, err := svc.Get(context.Background(), scored.ID, f.teacher.ID)
	require.NoError(t, err)
	require.Equal(t, models.DocumentStatusCompleted, viewed.Status)
}
