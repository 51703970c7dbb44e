package conformance

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/hnapi"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/schema"
)

// DefaultChecks returns the full suite in execution order.
func DefaultChecks() []Check {
	var checks []Check
	checks = append(checks, listChecks()...)
	checks = append(checks, itemChecks()...)
	checks = append(checks, commentChecks()...)
	checks = append(checks, userChecks()...)
	checks = append(checks, robustnessChecks()...)
	return checks
}

func listChecks() []Check {
	var checks []Check
	for _, e := range hnapi.ListEndpoints() {
		tags := []Tag{TagPositive, TagFunctional}
		if e == hnapi.EndpointTopStories {
			tags = append(tags, TagSmoke)
		}
		checks = append(checks,
			Check{
				Name: "lists/" + string(e) + "/shape",
				Tags: tags,
				Run: func(ctx context.Context, env *Env) error {
					return checkListShape(ctx, env, e)
				},
			},
			Check{
				Name: "lists/" + string(e) + "/unique",
				Tags: []Tag{TagPositive},
				Run: func(ctx context.Context, env *Env) error {
					return checkListUnique(ctx, env, e)
				},
			},
		)
	}

	typed := []struct {
		endpoint hnapi.ListEndpoint
		kind     schema.Kind
	}{
		{hnapi.EndpointAskStories, schema.KindStory},
		{hnapi.EndpointShowStories, schema.KindStory},
		{hnapi.EndpointJobStories, schema.KindJob},
	}
	for _, tc := range typed {
		checks = append(checks, Check{
			Name: "lists/" + string(tc.endpoint) + "/item-types",
			Tags: []Tag{TagPositive},
			Run: func(ctx context.Context, env *Env) error {
				return checkListItemTypes(ctx, env, tc.endpoint, tc.kind)
			},
		})
	}
	return checks
}

// checkListShape: non-empty, within the documented bound, positive integers.
func checkListShape(ctx context.Context, env *Env, e hnapi.ListEndpoint) error {
	ids, err := listIDs(ctx, env, e)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("%s is empty", e)
	}
	if len(ids) > e.MaxLen() {
		return fmt.Errorf("%s has %d ids, limit %d", e, len(ids), e.MaxLen())
	}
	for i, id := range ids {
		if id <= 0 {
			return fmt.Errorf("%s[%d] = %d, want positive id", e, i, id)
		}
	}
	return nil
}

func checkListUnique(ctx context.Context, env *Env, e hnapi.ListEndpoint) error {
	ids, err := listIDs(ctx, env, e)
	if err != nil {
		return err
	}
	seen := make(map[int64]int, len(ids))
	for i, id := range ids {
		if first, dup := seen[id]; dup {
			return fmt.Errorf("%s: id %d at positions %d and %d", e, id, first, i)
		}
		seen[id] = i
	}
	return nil
}

func checkListItemTypes(ctx context.Context, env *Env, e hnapi.ListEndpoint, want schema.Kind) error {
	ids, err := listIDs(ctx, env, e)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return Skip(string(e) + " is empty")
	}
	for _, id := range head(ids, sampleSize) {
		it, err := item(ctx, env, id)
		if err != nil {
			return err
		}
		if it == nil {
			return fmt.Errorf("%s lists item %d but it is absent", e, id)
		}
		if err := schema.Validate(it, schema.CommonItem); err != nil {
			return fmt.Errorf("item %d: %w", id, err)
		}
		if got := typeOf(it); got != string(want) {
			return fmt.Errorf("%s item %d has type %q, want %q", e, id, got, want)
		}
	}
	return nil
}
