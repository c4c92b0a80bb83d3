// Package auth resolves a caller token into a member profile. Tokens are
// HMAC-signed JWTs carrying the member id; the member row supplies the role
// and restriction flag.
package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"olympus.fund/internal/store"
)

var ErrUnauthorized = errors.New("unauthorized")

// Identity resolves a bearer token to a member profile.
type Identity interface {
	ResolveCaller(ctx context.Context, token string) (store.Member, error)
}

// Claims carried by a platform token.
type Claims struct {
	MemberID string `json:"member_id"`
	jwt.RegisteredClaims
}

type memberLookup interface {
	GetMember(ctx context.Context, id string) (store.Member, error)
}

// Resolver validates tokens and loads the member they belong to.
type Resolver struct {
	secret  []byte
	members memberLookup
}

func NewResolver(secret []byte, members memberLookup) *Resolver {
	return &Resolver{secret: secret, members: members}
}

func (r *Resolver) ResolveCaller(ctx context.Context, token string) (store.Member, error) {
	if token == "" {
		return store.Member{}, ErrUnauthorized
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return r.secret, nil
	})
	if err != nil || !parsed.Valid || claims.MemberID == "" {
		return store.Member{}, ErrUnauthorized
	}

	member, err := r.members.GetMember(ctx, claims.MemberID)
	if err != nil {
		if errors.Is(err, store.ErrMemberNotFound) {
			return store.Member{}, ErrUnauthorized
		}
		return store.Member{}, err
	}
	if member.IsRestricted {
		return store.Member{}, ErrUnauthorized
	}
	return member, nil
}

// Sign issues a token for a member id. Used by tests and provisioning.
func Sign(secret []byte, memberID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{MemberID: memberID})
	return token.SignedString(secret)
}

// RoleAllowed reports whether a role is in the allowed set.
func RoleAllowed(role string, allowed ...string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}
