package services

import (
	"context"
	"testing"

	"coursemarket/backend/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChaptersAppendAndOrder(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	course := env.course(t, "Chaptered", 10)

	first, err := env.svc.Chapters.CreateChapter(ctx, course.ID, ChapterInput{Title: "Intro"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Order)
	second, err := env.svc.Chapters.CreateChapter(ctx, course.ID, ChapterInput{Title: "Next", Content: "[video:abc123]"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Order)

	chapters, err := env.svc.Chapters.GetChapters(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "Intro", chapters[0].Title)

	reordered, err := env.svc.Chapters.ReorderChapters(ctx, course.ID, []string{second.ID, first.ID})
	require.NoError(t, err)
	require.Len(t, reordered, 2)
	assert.Equal(t, second.ID, reordered[0].ID)
	assert.Equal(t, 1, reordered[0].Order)
}

func TestCreateChapterRequiresCourse(t *testing.T) {
	env := newTestEnv(t, false)
	_, err := env.svc.Chapters.CreateChapter(context.Background(), "missing", ChapterInput{Title: "Orphan"})
	assert.True(t, utils.HasCode(err, utils.CodeNotFound))
}

func TestUpdateAndDeleteChapter(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	course := env.course(t, "Edit", 10)
	ch, err := env.svc.Chapters.CreateChapter(ctx, course.ID, ChapterInput{Title: "Draft"})
	require.NoError(t, err)

	title := "Final"
	updated, err := env.svc.Chapters.UpdateChapter(ctx, course.ID, ch.ID, ChapterPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)

	require.NoError(t, env.svc.Chapters.DeleteChapter(ctx, course.ID, ch.ID))
	_, err = env.svc.Chapters.GetChapter(ctx, course.ID, ch.ID)
	assert.True(t, utils.HasCode(err, utils.CodeNotFound))
}

func TestReorderRejectsForeignChapter(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	a := env.course(t, "A", 10)
	b := env.course(t, "B", 10)
	foreign, err := env.svc.Chapters.CreateChapter(ctx, b.ID, ChapterInput{Title: "B1"})
	require.NoError(t, err)

	_, err = env.svc.Chapters.ReorderChapters(ctx, a.ID, []string{foreign.ID})
	assert.True(t, utils.HasCode(err, utils.CodeNotFound))
}
