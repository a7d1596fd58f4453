package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	Cost = bcrypt.MinCost
	t.Cleanup(func() { Cost = bcrypt.DefaultCost })

	hashed, err := HashPassword("pw123456")
	require.NoError(t, err)
	assert.NotEqual(t, "pw123456", hashed)

	assert.True(t, CheckPasswordHash("pw123456", hashed))
	assert.False(t, CheckPasswordHash("wrongpw", hashed))
}

func TestHashPasswordSalts(t *testing.T) {
	Cost = bcrypt.MinCost
	t.Cleanup(func() { Cost = bcrypt.DefaultCost })

	a, err := HashPassword("same")
	require.NoError(t, err)
	b, err := HashPassword("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCheckPasswordHashMalformed(t *testing.T) {
	assert.False(t, CheckPasswordHash("pw", "not-a-bcrypt-hash"))
	assert.False(t, CheckPasswordHash("pw", ""))
}
