package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kommetio/reportgrid/internal/auth"
	"github.com/kommetio/reportgrid/internal/testenv"
)

func TestSystem_ReadsEverything(t *testing.T) {
	reg := testenv.Registry(t)
	account, err := reg.Type("Account")
	require.NoError(t, err)
	revenue, err := account.Field("revenue")
	require.NoError(t, err)

	caller := auth.System()
	assert.True(t, caller.CanReadType(account))
	assert.True(t, caller.CanReadField(revenue))
}

func TestNilCaller_IsUnrestricted(t *testing.T) {
	reg := testenv.Registry(t)
	account, err := reg.Type("Account")
	require.NoError(t, err)

	var caller *auth.Data
	assert.True(t, caller.CanReadType(account))
}

func TestDenySet(t *testing.T) {
	reg := testenv.Registry(t)
	account, err := reg.Type("Account")
	require.NoError(t, err)
	user, err := reg.Type("User")
	require.NoError(t, err)
	revenue, err := account.Field("revenue")
	require.NoError(t, err)
	name, err := account.Field("name")
	require.NoError(t, err)

	caller := &auth.Data{
		UserID: "005testuser00",
		Perms:  auth.NewDenySet().DenyType(user.ID).DenyField(revenue.ID),
	}

	assert.True(t, caller.CanReadType(account))
	assert.False(t, caller.CanReadType(user))
	assert.True(t, caller.CanReadField(name))
	assert.False(t, caller.CanReadField(revenue))
}

func TestContextRoundTrip(t *testing.T) {
	caller := auth.System()
	ctx := auth.NewContext(context.Background(), caller)
	assert.Same(t, caller, auth.FromContext(ctx))
	assert.Nil(t, auth.FromContext(context.Background()))
}
