package access

import (
	"errors"
	"testing"

	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/stretchr/testify/assert"
)

func TestAdmins(t *testing.T) {
	a := NewAdmins([]int64{10, 20, 10}, []int64{30, 20, 0})

	assert.Equal(t, []int64{10, 20, 30}, a.IDs())
	assert.True(t, a.IsAdmin(30))
	assert.False(t, a.IsAdmin(0))
	assert.NoError(t, a.Require(10))
	assert.True(t, errors.Is(a.Require(99), types.ErrUnauthorized))

	var none *Admins
	assert.False(t, none.IsAdmin(10))
	assert.Empty(t, none.IDs())
}
