package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thriftique/service-account-go/internal/account/entity"
)

func TestAdminService_DisableRequiresDuration(t *testing.T) {
	f := newFixture(t)
	summary := f.register(t, "Ann", "ann@x.com", "password123")
	ctx := context.Background()

	_, err := f.admin.SetStatus(ctx, summary.ID, ActionDisable, nil)
	assert.ErrorIs(t, err, ErrMissingDuration)

	zero := int64(0)
	_, err = f.admin.SetStatus(ctx, summary.ID, ActionDisable, &zero)
	assert.ErrorIs(t, err, ErrMissingDuration)

	acc, err := f.store.ByID(ctx, summary.ID)
	require.NoError(t, err)
	assert.False(t, acc.Disabled, "rejected disable must not touch the record")
}

func TestAdminService_DisableWithDuration(t *testing.T) {
	f := newFixture(t)
	summary := f.register(t, "Ann", "ann@x.com", "password123")
	ctx := context.Background()

	duration := int64(3600)
	message, err := f.admin.SetStatus(ctx, summary.ID, ActionDisable, &duration)
	require.NoError(t, err)
	assert.Equal(t, "Ann disabled for 3600 seconds.", message)

	acc, err := f.store.ByID(ctx, summary.ID)
	require.NoError(t, err)
	assert.True(t, acc.Disabled)
	require.NotNil(t, acc.DisabledUntil)
	assert.Equal(t, f.clock.Now().Add(time.Hour), *acc.DisabledUntil)
	assert.Equal(t, entity.AdminDisabled, acc.Availability(f.clock.Now()).Kind)
}

func TestAdminService_EnableIdempotence(t *testing.T) {
	f := newFixture(t)
	summary := f.register(t, "Ann", "ann@x.com", "password123")
	ctx := context.Background()

	// build up prior state: failures then a suspension
	for i := 0; i < 3; i++ {
		_, _ = f.svc.Login(ctx, "ann@x.com", "wrongpass")
	}
	duration := int64(600)
	_, err := f.admin.SetStatus(ctx, summary.ID, ActionDisable, &duration)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		message, err := f.admin.SetStatus(ctx, summary.ID, ActionEnable, nil)
		require.NoError(t, err)
		assert.Equal(t, "Ann enabled successfully.", message)

		acc, err := f.store.ByID(ctx, summary.ID)
		require.NoError(t, err)
		assert.False(t, acc.Disabled)
		assert.Nil(t, acc.DisabledUntil)
		assert.Zero(t, acc.FailedAttempts, "enable must clear the failure counter so the account cannot immediately relock")
	}
}

func TestAdminService_EnableClearsAutoLockout(t *testing.T) {
	f := newFixture(t)
	summary := f.register(t, "Ann", "ann@x.com", "password123")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(ctx, "ann@x.com", "wrongpass")
	}

	_, err := f.admin.SetStatus(ctx, summary.ID, ActionEnable, nil)
	require.NoError(t, err)

	tok, err := f.svc.Login(ctx, "ann@x.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
}

func TestAdminService_SetStatus_Errors(t *testing.T) {
	f := newFixture(t)
	summary := f.register(t, "Ann", "ann@x.com", "password123")
	ctx := context.Background()

	_, err := f.admin.SetStatus(ctx, summary.ID, "suspend", nil)
	assert.ErrorIs(t, err, ErrInvalidAction)

	duration := int64(60)
	_, err = f.admin.SetStatus(ctx, 999999, ActionDisable, &duration)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminService_List(t *testing.T) {
	f := newFixture(t)
	b := f.register(t, "Bea", "bea@x.com", "password456")
	a := f.register(t, "Ann", "ann@x.com", "password123")

	summaries, err := f.admin.List(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// sorted by id, sanitized
	expectFirst, expectSecond := a, b
	if b.ID < a.ID {
		expectFirst, expectSecond = b, a
	}
	assert.Equal(t, expectFirst, summaries[0])
	assert.Equal(t, expectSecond, summaries[1])
}

func TestAdminService_UpdateInformation(t *testing.T) {
	f := newFixture(t)
	summary := f.register(t, "Ann", "ann@x.com", "password123")
	ctx := context.Background()

	require.NoError(t, f.admin.UpdateInformation(ctx, summary.ID, "username", "Annabel"))
	require.NoError(t, f.admin.UpdateInformation(ctx, summary.ID, "email", "annabel@x.com"))
	require.NoError(t, f.admin.UpdateInformation(ctx, summary.ID, "password", "resetbyadmin1"))

	assert.ErrorIs(t, f.admin.UpdateInformation(ctx, summary.ID, "role", "admin"), ErrInvalidField)
	assert.ErrorIs(t, f.admin.UpdateInformation(ctx, 999999, "username", "x"), ErrNotFound)

	acc, err := f.store.ByID(ctx, summary.ID)
	require.NoError(t, err)
	assert.Equal(t, "Annabel", acc.Username)
	assert.Equal(t, "annabel@x.com", acc.Email)

	tok, err := f.svc.Login(ctx, "annabel@x.com", "resetbyadmin1")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
}

func TestAdminService_DeleteAndNoIDReuse(t *testing.T) {
	f := newFixture(t)
	summary := f.register(t, "Ann", "ann@x.com", "password123")
	ctx := context.Background()

	require.NoError(t, f.admin.Delete(ctx, summary.ID))
	assert.ErrorIs(t, f.admin.Delete(ctx, summary.ID), ErrNotFound)
	assert.Zero(t, f.store.Len())

	// re-registering after a delete must mint a fresh id
	again := f.register(t, "Ann Again", "ann@x.com", "password123")
	assert.NotEqual(t, summary.ID, again.ID)
}
