package utils

import (
	"context"
	"testing"

	"coursemarket/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openQueryDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, Migrate(db))
	for _, title := range []string{"a", "b", "c"} {
		require.NoError(t, db.Create(&models.Course{AcademyID: "x", Title: title, Slug: title, Status: models.CourseStatusPublished}).Error)
	}
	return db
}

func TestFindWithFallbackPreferred(t *testing.T) {
	db := openQueryDB(t)
	var courses []models.Course
	degraded, err := FindWithFallback(context.Background(), db, NopLogger(), &courses,
		func(q *gorm.DB) *gorm.DB { return q.Where("academy_id = ?", "x") },
		func(q *gorm.DB) *gorm.DB { return q.Order("title DESC") })
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, courses, 3)
	assert.Equal(t, "c", courses[0].Title)
}

func TestFindWithFallbackDegrades(t *testing.T) {
	db := openQueryDB(t)
	var courses []models.Course
	degraded, err := FindWithFallback(context.Background(), db, NopLogger(), &courses,
		func(q *gorm.DB) *gorm.DB { return q.Where("academy_id = ?", "x") },
		func(q *gorm.DB) *gorm.DB { return q.Order("no_such_column DESC") })
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Len(t, courses, 3)
}

func TestFindWithFallbackFiltersFail(t *testing.T) {
	db := openQueryDB(t)
	var courses []models.Course
	degraded, err := FindWithFallback(context.Background(), db, nil, &courses,
		func(q *gorm.DB) *gorm.DB { return q.Where("no_such_column = ?", 1) },
		NoScope)
	assert.Error(t, err)
	assert.True(t, degraded)
}
