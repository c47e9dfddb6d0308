package services

import (
	"context"
	"testing"

	"coursemarket/backend/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCourseToUserIsIdempotent(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	user := env.user(t, "u@example.com")
	course := env.course(t, "Once", 10)

	added, err := env.svc.Enrollment.AddCourseToUser(ctx, user.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = env.svc.Enrollment.AddCourseToUser(ctx, user.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, added)

	data, err := env.svc.Enrollment.GetUserData(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{course.ID}, data.EnrolledCourses)
	assert.Equal(t, 1, env.count(t, course.ID))
}

func TestAddCourseToUserUnknownCourseRollsBack(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	user := env.user(t, "u@example.com")

	_, err := env.svc.Enrollment.AddCourseToUser(ctx, user.ID, "missing")
	assert.True(t, utils.HasCode(err, utils.CodeNotFound))

	enrolled, err := env.svc.Enrollment.IsEnrolled(ctx, user.ID, "missing")
	require.NoError(t, err)
	assert.False(t, enrolled)
}

func TestAddCourseToUnknownUser(t *testing.T) {
	env := newTestEnv(t, false)
	course := env.course(t, "Lonely", 10)
	_, err := env.svc.Enrollment.AddCourseToUser(context.Background(), "ghost", course.ID)
	assert.True(t, utils.HasCode(err, utils.CodeNotFound))
	assert.Equal(t, 0, env.count(t, course.ID))
}

func TestRemoveCourseFromUser(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	user := env.user(t, "u@example.com")
	course := env.course(t, "Leaving", 10)
	_, err := env.svc.Enrollment.AddCourseToUser(ctx, user.ID, course.ID)
	require.NoError(t, err)

	removed, err := env.svc.Enrollment.RemoveCourseFromUser(ctx, user.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, env.count(t, course.ID))

	removed, err = env.svc.Enrollment.RemoveCourseFromUser(ctx, user.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 0, env.count(t, course.ID))
}

func TestGetUserDataNotFound(t *testing.T) {
	env := newTestEnv(t, false)
	_, err := env.svc.Enrollment.GetUserData(context.Background(), "ghost")
	assert.True(t, utils.HasCode(err, utils.CodeNotFound))
}

func TestGetEnrolledCourses(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	user := env.user(t, "u@example.com")
	a := env.course(t, "A", 10)
	env.course(t, "B", 10)
	_, err := env.svc.Enrollment.AddCourseToUser(ctx, user.ID, a.ID)
	require.NoError(t, err)

	courses, err := env.svc.Enrollment.GetEnrolledCourses(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, a.ID, courses[0].ID)
}

func TestEnsureNotEnrolled(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	user := env.user(t, "u@example.com")
	owned := env.course(t, "Owned", 10)
	other := env.course(t, "Other", 10)
	_, err := env.svc.Enrollment.AddCourseToUser(ctx, user.ID, owned.ID)
	require.NoError(t, err)

	assert.NoError(t, env.svc.Enrollment.EnsureNotEnrolled(ctx, user.ID, other.ID))
	assert.NoError(t, env.svc.Enrollment.EnsureNotEnrolled(ctx, "", owned.ID))

	err = env.svc.Enrollment.EnsureNotEnrolled(ctx, user.ID, other.ID, owned.ID)
	assert.True(t, utils.HasCode(err, utils.CodeAlreadyEnrolled), "got %v", err)
	assert.Contains(t, err.Error(), owned.ID)
}
