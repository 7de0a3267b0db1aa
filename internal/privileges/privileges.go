// Package privileges decides what an account may do. Policies are pluggable:
// a static allow-list, a Postgres-backed allow-list, or any function.
package privileges

import (
	"context"
	"strings"

	"personastudio/internal/domain"
)

// DefaultJudgeEmails are the accounts elevated when no list is configured.
var DefaultJudgeEmails = []string{
	"genaihackathon2025@impetus.com",
	"testing@devpost.com",
}

// Resolver maps an email to its privileges.
type Resolver interface {
	Resolve(ctx context.Context, email string) (domain.Privileges, error)
}

// PolicyFunc adapts a plain function to Resolver.
type PolicyFunc func(email string) domain.Privileges

func (f PolicyFunc) Resolve(_ context.Context, email string) (domain.Privileges, error) {
	return f(email), nil
}

// AllowList elevates the listed emails and gives everyone else the standard
// allowance. Matching ignores case and surrounding space.
func AllowList(emails ...string) PolicyFunc {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if e = domain.NormalizeEmail(e); e != "" {
			set[e] = struct{}{}
		}
	}
	return func(email string) domain.Privileges {
		if _, ok := set[domain.NormalizeEmail(email)]; ok {
			return domain.ElevatedPrivileges()
		}
		return domain.StandardPrivileges()
	}
}

// Chain asks each resolver in order and returns the first elevated result.
// An error from one resolver is returned only if no other resolver elevates
// the account.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, email string) (domain.Privileges, error) {
	var firstErr error
	for _, r := range c {
		if r == nil {
			continue
		}
		p, err := r.Resolve(ctx, email)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if p.IsJudge || p.UnlimitedGenerations {
			return p, nil
		}
	}
	return domain.StandardPrivileges(), firstErr
}

// IsElevated is a convenience for callers that only need the yes/no answer.
func IsElevated(ctx context.Context, r Resolver, email string) bool {
	if r == nil || strings.TrimSpace(email) == "" {
		return false
	}
	p, err := r.Resolve(ctx, email)
	return err == nil && p.IsJudge
}
