package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sessionbridge/sessionbridge-go/internal/domain/entities/session"
	"github.com/sessionbridge/sessionbridge-go/internal/domain/user"
)

func TestFilterVisible(t *testing.T) {
	sessions := []session.Session{
		{ID: "ALPHA-00000001"},
		{ID: "ALPHA-00000002", AssignedOperator: "op-1"},
		{ID: "ALPHA-00000003", AssignedOperator: "op-2"},
	}

	admin := FilterVisible(user.FullAccess(), sessions)
	assert.Len(t, admin, 3)

	restricted := FilterVisible(user.RestrictedTo("op-1"), sessions)
	assert.Len(t, restricted, 1)
	assert.Equal(t, "ALPHA-00000002", restricted[0].ID)

	stranger := FilterVisible(user.RestrictedTo("op-9"), sessions)
	assert.Empty(t, stranger)
}
