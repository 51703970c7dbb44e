package conformance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/hnapi"
)

// flagScanSize is how many top items are scanned for flag types.
const flagScanSize = 10

func robustnessChecks() []Check {
	return []Check{
		{
			Name: "robustness/flags-are-booleans",
			Tags: []Tag{TagRobustness, TagPositive},
			Run:  checkFlagsAreBooleans,
		},
		{
			Name: "robustness/nested-times-sane",
			Tags: []Tag{TagRobustness, TagPositive},
			Run:  checkNestedTimes,
		},
		{
			Name: "robustness/random-sampling",
			Tags: []Tag{TagRobustness, TagSmoke, TagPositive},
			Run:  checkRandomSampling,
		},
	}
}

func checkFlagsAreBooleans(ctx context.Context, env *Env) error {
	ids, err := listIDs(ctx, env, hnapi.EndpointTopStories)
	if err != nil {
		return err
	}

	scanned := 0
	for _, id := range head(ids, flagScanSize) {
		it, err := item(ctx, env, id)
		if err != nil {
			return err
		}
		if it == nil {
			continue
		}
		scanned++
		for _, flag := range []string{"dead", "deleted"} {
			v, ok := it[flag]
			if !ok {
				continue
			}
			if _, isBool := v.(bool); !isBool {
				return fmt.Errorf("item %d: %s is %s %v, want boolean", id, flag, hnapi.TypeName(v), v)
			}
		}
	}
	if scanned == 0 {
		return errors.New("no top items could be scanned")
	}
	return nil
}

func checkNestedTimes(ctx context.Context, env *Env) error {
	return forEachTopStory(ctx, env, func(story map[string]any) (bool, error) {
		c1, err := firstComment(ctx, env, story)
		if err != nil || c1 == nil {
			return err != nil, err
		}
		if err := saneTime(env, c1); err != nil {
			return true, err
		}
		c2, err := firstComment(ctx, env, c1)
		if err != nil || c2 == nil {
			return true, err
		}
		return true, saneTime(env, c2)
	})
}

func checkRandomSampling(ctx context.Context, env *Env) error {
	ids, err := listIDs(ctx, env, hnapi.EndpointTopStories)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return Skip("topstories is empty")
	}

	for range sampleSize {
		id := ids[env.Rand.IntN(len(ids))]
		it, err := item(ctx, env, id)
		if err != nil {
			return err
		}
		if it == nil {
			continue
		}
		if _, ok := hnapi.IntID(it["id"]); !ok {
			return fmt.Errorf("item %d: id is %v, want integer", id, it["id"])
		}
		if err := saneTime(env, it); err != nil {
			return err
		}
	}
	return nil
}
