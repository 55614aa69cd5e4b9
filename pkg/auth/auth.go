package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
)

const (
	XUserIDHeader   = "X-User-Id"
	XUserRoleHeader = "X-User-Role"

	RoleLibrarian = "Bibliotecaria"
	RoleAdmin     = "Administrador"
)

var ErrNoIdentity = errors.New("user identity is missing")

type Profile struct {
	UserID int    `json:"userId"`
	Role   string `json:"role"`
}

type Claims struct {
	jwt.RegisteredClaims
	Profile Profile `json:"profile"`
}

type identityKey struct{}

func SetAuthContext(ctx context.Context, userID int, role string) context.Context {
	return context.WithValue(ctx, identityKey{}, Profile{UserID: userID, Role: role})
}

func GetProfile(ctx context.Context) (Profile, error) {
	p, ok := ctx.Value(identityKey{}).(Profile)
	if !ok || p.UserID <= 0 {
		return Profile{}, ErrNoIdentity
	}
	return p, nil
}

func GetUserID(ctx context.Context) (int, error) {
	p, err := GetProfile(ctx)
	if err != nil {
		return 0, err
	}
	return p.UserID, nil
}

// IsAdmin reports whether the caller is library staff.
func IsAdmin(ctx context.Context) bool {
	p, err := GetProfile(ctx)
	if err != nil {
		return false
	}
	return p.Role == RoleLibrarian || p.Role == RoleAdmin
}
