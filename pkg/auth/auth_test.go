package auth_test

import (
	"context"
	"testing"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/auth"
	"github.com/stretchr/testify/require"
)

func TestAuthContext(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		ctx     context.Context
		wantID  int
		admin   bool
		wantErr bool
	}{
		{name: "student", ctx: auth.SetAuthContext(context.Background(), 4, "Estudiante"), wantID: 4},
		{name: "librarian", ctx: auth.SetAuthContext(context.Background(), 2, auth.RoleLibrarian), wantID: 2, admin: true},
		{name: "admin", ctx: auth.SetAuthContext(context.Background(), 1, auth.RoleAdmin), wantID: 1, admin: true},
		{name: "empty", ctx: context.Background(), wantErr: true},
		{name: "zero id", ctx: auth.SetAuthContext(context.Background(), 0, auth.RoleAdmin), wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id, err := auth.GetUserID(tt.ctx)
			if tt.wantErr {
				require.ErrorIs(t, err, auth.ErrNoIdentity)
				require.False(t, auth.IsAdmin(tt.ctx))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantID, id)
			require.Equal(t, tt.admin, auth.IsAdmin(tt.ctx))
		})
	}
}
