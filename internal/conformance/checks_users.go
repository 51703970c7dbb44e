package conformance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/hnapi"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/schema"
)

const (
	knownMissingUser = "__this_should_not_exist__"
	randomUserLen    = 24
	userAlphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
)

func userChecks() []Check {
	return []Check{
		{
			Name: "updates/shape",
			Tags: []Tag{TagPositive, TagFunctional},
			Run:  checkUpdatesShape,
		},
		{
			Name: "updates/profiles-are-strings",
			Tags: []Tag{TagPositive},
			Run:  checkUpdatesProfiles,
		},
		{
			Name: "users/schema-from-updates",
			Tags: []Tag{TagPositive, TagFunctional},
			Run:  checkUserFromUpdates,
		},
		{
			Name: "users/unknown-absent",
			Tags: []Tag{TagNegative, TagFunctional},
			Run:  checkUnknownUserAbsent,
		},
	}
}

func checkUpdatesShape(ctx context.Context, env *Env) error {
	u, err := env.API.Updates(ctx)
	if err != nil {
		return err
	}
	if u.Items == nil {
		return errors.New("updates.items is missing or not a list")
	}
	if u.Profiles == nil {
		return errors.New("updates.profiles is missing or not a list")
	}

	var ids []int64
	for _, v := range u.Items {
		if id, ok := hnapi.IntID(v); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return Skip("updates.items has no integer ids")
	}
	for _, id := range head(ids, sampleSize) {
		if _, err := item(ctx, env, id); err != nil {
			return err
		}
	}
	return nil
}

func checkUpdatesProfiles(ctx context.Context, env *Env) error {
	u, err := env.API.Updates(ctx)
	if err != nil {
		return err
	}
	for i, p := range u.Profiles {
		if s, ok := p.(string); !ok || s == "" {
			return fmt.Errorf("updates.profiles[%d] is %s %v, want non-empty string", i, hnapi.TypeName(p), p)
		}
	}
	return nil
}

func checkUserFromUpdates(ctx context.Context, env *Env) error {
	u, err := env.API.Updates(ctx)
	if err != nil {
		return err
	}
	var names []string
	for _, p := range u.Profiles {
		if s, ok := p.(string); ok && s != "" {
			names = append(names, s)
		}
	}
	if len(names) == 0 {
		return Skip("no profiles in updates")
	}

	name := names[env.Rand.IntN(len(names))]
	out := env.API.User(ctx, name)
	switch {
	case out.IsFailed():
		return fmt.Errorf("user %q: %w", name, out.Err())
	case out.IsAbsent():
		return fmt.Errorf("user %q from updates is absent", name)
	}

	user := out.Payload()
	if got, _ := user["id"].(string); got != name {
		return fmt.Errorf("user %q: id is %v", name, user["id"])
	}
	return schema.ValidateUser(user)
}

func checkUnknownUserAbsent(ctx context.Context, env *Env) error {
	var b strings.Builder
	b.WriteString("zzzz_")
	for range randomUserLen {
		b.WriteByte(userAlphabet[env.Rand.IntN(len(userAlphabet))])
	}

	for _, name := range []string{knownMissingUser, b.String()} {
		out := env.API.User(ctx, name)
		switch {
		case out.IsAbsent():
		case out.IsFound() && len(out.Payload()) == 0:
			// An empty object is an accepted spelling of "no such user".
		default:
			return fmt.Errorf("user %q: got %s, want absent", name, out)
		}
	}
	return nil
}
