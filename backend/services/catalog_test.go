package services

import (
	"context"
	"testing"
	"time"

	"coursemarket/backend/models"
	"coursemarket/backend/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCourseDefaultsAndSlug(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	price := 25.0
	in := CourseInput{
		Title: "Go Basics", Instructor: "Ada", Duration: "3h", Price: &price,
		Category: "programming", Level: "beginner", Description: "d",
	}

	first, err := env.svc.Catalog.CreateCourse(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusDraft, first.Status)
	assert.Equal(t, "go-basics", first.Slug)
	assert.Equal(t, testAcademy, first.AcademyID)

	second, err := env.svc.Catalog.CreateCourse(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "go-basics-2", second.Slug)
}

func TestCreateCourseValidation(t *testing.T) {
	env := newTestEnv(t, false)
	neg := -1.0
	_, err := env.svc.Catalog.CreateCourse(context.Background(), CourseInput{Title: "x", Price: &neg, Level: "expert"})
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.CodeValidation))
	assert.Contains(t, err.Error(), "price")
	assert.Contains(t, err.Error(), "level")
}

func TestGetCoursesPublishedNewestFirst(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	older := env.course(t, "Older", 10)
	newer := env.course(t, "Newer", 10)
	draft := env.course(t, "Draft", 10)
	_, err := env.svc.Catalog.UpdateCourseStatus(ctx, draft.ID, models.CourseStatusDraft)
	require.NoError(t, err)

	base := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, env.db.Model(&models.Course{}).Where("id = ?", older.ID).UpdateColumn("created_at", base).Error)
	require.NoError(t, env.db.Model(&models.Course{}).Where("id = ?", newer.ID).UpdateColumn("created_at", base.Add(time.Minute)).Error)

	courses, err := env.svc.Catalog.GetCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, newer.ID, courses[0].ID)
	assert.Equal(t, older.ID, courses[1].ID)

	all, err := env.svc.Catalog.GetAllCourses(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSearchCourses(t *testing.T) {
	env := newTestEnv(t, false)
	env.course(t, "Go Concurrency", 10)
	env.course(t, "Cooking Pasta", 10)

	found, err := env.svc.Catalog.SearchCourses(context.Background(), CourseFilter{Query: "concurr"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Go Concurrency", found[0].Title)

	none, err := env.svc.Catalog.SearchCourses(context.Background(), CourseFilter{Level: "advanced"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetCourseNotFound(t *testing.T) {
	env := newTestEnv(t, false)
	_, err := env.svc.Catalog.GetCourseByID(context.Background(), "missing")
	assert.True(t, utils.HasCode(err, utils.CodeNotFound))
	_, err = env.svc.Catalog.GetCourseBySlug(context.Background(), "missing")
	assert.True(t, utils.HasCode(err, utils.CodeNotFound))
}

func TestCoursesAreScopedToAcademy(t *testing.T) {
	env := newTestEnv(t, false)
	other := models.Course{AcademyID: "other", Title: "Foreign", Slug: "foreign", Status: models.CourseStatusPublished, Level: "beginner"}
	require.NoError(t, env.db.Create(&other).Error)

	_, err := env.svc.Catalog.GetCourseByID(context.Background(), other.ID)
	assert.True(t, utils.HasCode(err, utils.CodeNotFound))
	courses, err := env.svc.Catalog.GetCourses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, courses)
}

func TestUpdateCourse(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	course := env.course(t, "Old Title", 10)
	env.course(t, "Taken", 10)

	title := "New Title"
	slug := "taken"
	price := 0.0
	updated, err := env.svc.Catalog.UpdateCourse(ctx, course.ID, CoursePatch{Title: &title, Slug: &slug, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "New Title", updated.Title)
	assert.Equal(t, "taken-2", updated.Slug)
	assert.Equal(t, 0.0, updated.Price)
	assert.Equal(t, "Ada", updated.Instructor)
}

func TestUpdateCourseStatusBumpsUpdatedAt(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	course := env.course(t, "Status", 10)
	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, env.db.Model(&models.Course{}).Where("id = ?", course.ID).UpdateColumn("updated_at", past).Error)

	updated, err := env.svc.Catalog.UpdateCourseStatus(ctx, course.ID, models.CourseStatusDraft)
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusDraft, updated.Status)
	assert.True(t, updated.UpdatedAt.After(past))

	_, err = env.svc.Catalog.UpdateCourseStatus(ctx, course.ID, "archived")
	assert.True(t, utils.HasCode(err, utils.CodeValidation))
	_, err = env.svc.Catalog.UpdateCourseStatus(ctx, "missing", models.CourseStatusDraft)
	assert.True(t, utils.HasCode(err, utils.CodeNotFound))
}

func TestDeleteCourseRemovesChapters(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	course := env.course(t, "Doomed", 10)
	_, err := env.svc.Chapters.CreateChapter(ctx, course.ID, ChapterInput{Title: "One"})
	require.NoError(t, err)

	require.NoError(t, env.svc.Catalog.DeleteCourse(ctx, course.ID))

	var chapters int64
	require.NoError(t, env.db.Model(&models.Chapter{}).Where("course_id = ?", course.ID).Count(&chapters).Error)
	assert.Zero(t, chapters)
	assert.True(t, utils.HasCode(env.svc.Catalog.DeleteCourse(ctx, course.ID), utils.CodeNotFound))
}

func TestEnrolledCountIncrementAndClamp(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	course := env.course(t, "Counter", 10)

	require.NoError(t, env.svc.Catalog.IncrementEnrolledCount(ctx, nil, course.ID))
	require.NoError(t, env.svc.Catalog.IncrementEnrolledCount(ctx, nil, course.ID))
	assert.Equal(t, 2, env.count(t, course.ID))

	for i := 0; i < 3; i++ {
		require.NoError(t, env.svc.Catalog.DecrementEnrolledCount(ctx, nil, course.ID))
	}
	assert.Equal(t, 0, env.count(t, course.ID))

	err := env.svc.Catalog.IncrementEnrolledCount(ctx, nil, "missing")
	assert.True(t, utils.HasCode(err, utils.CodeNotFound))
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t, false)
	env.course(t, "A", 1)
	env.course(t, "B", 1)

	cats, err := env.svc.Catalog.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, CategoryCount{Category: "programming", Courses: 2}, cats[0])
}
