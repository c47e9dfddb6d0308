package services

import (
	"context"
	"testing"

	"coursemarket/backend/models"
	"coursemarket/backend/utils"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func courseWithChapters(t *testing.T, env *testEnv, title string, chapters ...string) *models.Course {
	t.Helper()
	c := env.course(t, title, 25)
	for _, ch := range chapters {
		_, err := env.svc.Chapters.CreateChapter(context.Background(), c.ID, ChapterInput{Title: ch, Content: ch + " body"})
		require.NoError(t, err)
	}
	return c
}

func TestExportImportRoundTrip(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	src := courseWithChapters(t, env, "Go Basics", "Intro", "Types", "Concurrency")

	snap, err := env.svc.Transfer.ExportCourse(ctx, src.ID)
	require.NoError(t, err)
	raw, err := sonic.Marshal(snap)
	require.NoError(t, err)

	parsed, err := ParseSnapshot(raw)
	require.NoError(t, err)
	imported, err := env.svc.Transfer.ImportCourse(ctx, parsed)
	require.NoError(t, err)

	assert.NotEqual(t, src.ID, imported.ID)
	assert.NotEqual(t, src.Slug, imported.Slug)
	assert.Equal(t, "Go Basics (Imported)", imported.Title)
	assert.Equal(t, models.CourseStatusDraft, imported.Status)
	assert.Equal(t, src.Price, imported.Price)
	assert.Equal(t, src.Description, imported.Description)
	assert.Equal(t, src.Level, imported.Level)
	assert.Zero(t, imported.EnrolledCount)

	chapters, err := env.svc.Chapters.GetChapters(ctx, imported.ID)
	require.NoError(t, err)
	require.Len(t, chapters, 3)
	for i, title := range []string{"Intro", "Types", "Concurrency"} {
		assert.Equal(t, title, chapters[i].Title)
		assert.Equal(t, title+" body", chapters[i].Content)
	}
}

func TestParseSnapshotRejectsBadJSON(t *testing.T) {
	_, err := ParseSnapshot([]byte("{not json"))
	assert.True(t, utils.HasCode(err, utils.CodeValidation), "got %v", err)
	_, err = ParseBackup([]byte("{\"courses\": ["))
	assert.True(t, utils.HasCode(err, utils.CodeValidation), "got %v", err)
}

func TestImportRejectsIncompleteSnapshot(t *testing.T) {
	env := newTestEnv(t, false)
	price := 10.0
	_, err := env.svc.Transfer.ImportCourse(context.Background(), &CourseSnapshot{Title: "Only a title", Price: &price})
	assert.True(t, utils.HasCode(err, utils.CodeValidation), "got %v", err)
}

func TestBackupRestore(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	kept := courseWithChapters(t, env, "Kept", "One")
	removed := courseWithChapters(t, env, "Removed", "One", "Two")

	backup, err := env.svc.Transfer.ExportBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, testAcademy, backup.AcademyID)
	require.Len(t, backup.Courses, 2)

	require.NoError(t, env.svc.Catalog.DeleteCourse(ctx, removed.ID))

	res, err := env.svc.Transfer.RestoreBackup(ctx, backup)
	require.NoError(t, err)
	assert.Equal(t, []string{kept.Slug}, res.Skipped)
	require.Len(t, res.Created, 1)

	restored, err := env.svc.Catalog.GetCourseByID(ctx, res.Created[0])
	require.NoError(t, err)
	assert.Equal(t, "Removed", restored.Title)
	assert.Equal(t, removed.Slug, restored.Slug)
	assert.Equal(t, models.CourseStatusPublished, restored.Status)

	chapters, err := env.svc.Chapters.GetChapters(ctx, restored.ID)
	require.NoError(t, err)
	assert.Len(t, chapters, 2)
}

func TestRestoreValidatesBeforeWriting(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	good := courseWithChapters(t, env, "Good")
	snap, err := env.svc.Transfer.ExportCourse(ctx, good.ID)
	require.NoError(t, err)
	snap.Slug = "fresh-slug"

	_, err = env.svc.Transfer.RestoreBackup(ctx, &Backup{Courses: []CourseSnapshot{*snap, {Title: "broken"}}})
	assert.True(t, utils.HasCode(err, utils.CodeValidation), "got %v", err)

	_, err = env.svc.Catalog.GetCourseBySlug(ctx, "fresh-slug")
	assert.True(t, utils.HasCode(err, utils.CodeNotFound), "got %v", err)

	_, err = env.svc.Transfer.RestoreBackup(ctx, &Backup{})
	assert.True(t, utils.HasCode(err, utils.CodeValidation), "got %v", err)
}
