package conformance

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/hnapi"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/schema"
)

// commonSampleSize is how many ids are drawn from the story lists for the
// common-schema spot check.
const commonSampleSize = 12

// outOfRangeIDs never name an item.
var outOfRangeIDs = []int64{-10, -1, 0, 1e18}

func itemChecks() []Check {
	return []Check{
		{
			Name: "items/top-story-fetchable",
			Tags: []Tag{TagPositive, TagSmoke, TagFunctional},
			Run:  checkTopStoryFetchable,
		},
		{
			Name: "items/story-fields",
			Tags: []Tag{TagPositive, TagFunctional},
			Run:  checkStoryFields,
		},
		{
			Name: "items/common-schema-sample",
			Tags: []Tag{TagPositive, TagFunctional},
			Run:  checkCommonSchemaSample,
		},
		{
			Name: "items/kids-fetchable",
			Tags: []Tag{TagPositive},
			Run:  checkKidsFetchable,
		},
		{
			Name: "items/out-of-range-absent",
			Tags: []Tag{TagNegative, TagFunctional},
			Run:  checkOutOfRangeAbsent,
		},
		{
			Name: "items/beyond-maxitem-absent",
			Tags: []Tag{TagNegative},
			Run:  checkBeyondMaxItemAbsent,
		},
		{
			Name: "items/maxitem-covers-lists",
			Tags: []Tag{TagPositive},
			Run:  checkMaxItemCoversLists,
		},
	}
}

func checkTopStoryFetchable(ctx context.Context, env *Env) error {
	ids, err := listIDs(ctx, env, hnapi.EndpointTopStories)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return errors.New("no top stories")
	}

	top, err := item(ctx, env, ids[0])
	if err != nil {
		return err
	}
	if top == nil {
		return fmt.Errorf("top story %d is absent", ids[0])
	}
	switch typeOf(top) {
	case "story", "job", "poll":
	default:
		return fmt.Errorf("top story %d has type %v", ids[0], top["type"])
	}
	return schema.ValidateItem(top)
}

// checkStoryFields: title and url are non-blank strings, score and
// descendants non-negative integers, whenever present on a story.
func checkStoryFields(ctx context.Context, env *Env) error {
	found := false
	err := forEachTopStory(ctx, env, func(it map[string]any) (bool, error) {
		if typeOf(it) != string(schema.KindStory) {
			return false, nil
		}
		found = true
		if err := schema.Validate(it, schema.Story); err != nil {
			return true, err
		}
		for _, check := range []error{
			nonEmptyString(it, "title"),
			nonEmptyString(it, "url"),
			nonNegativeInt(it, "score"),
			nonNegativeInt(it, "descendants"),
		} {
			if check != nil {
				return true, check
			}
		}
		return true, nil
	})
	if err == nil && !found {
		return Skip("no story in the top stories window")
	}
	return err
}

func checkCommonSchemaSample(ctx context.Context, env *Env) error {
	var pool []int64
	for _, e := range []hnapi.ListEndpoint{hnapi.EndpointTopStories, hnapi.EndpointNewStories, hnapi.EndpointBestStories} {
		ids, err := listIDs(ctx, env, e)
		if err != nil {
			return err
		}
		pool = append(pool, ids...)
	}
	if len(pool) == 0 {
		return Skip("no items available to sample")
	}

	env.Rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	for _, id := range head(pool, commonSampleSize) {
		it, err := item(ctx, env, id)
		if err != nil {
			return err
		}
		if it == nil {
			continue
		}
		if err := schema.Validate(it, schema.CommonItem); err != nil {
			return fmt.Errorf("item %d: %w", id, err)
		}
		if err := saneTime(env, it); err != nil {
			return err
		}
	}
	return nil
}

func checkKidsFetchable(ctx context.Context, env *Env) error {
	found := false
	err := forEachTopStory(ctx, env, func(story map[string]any) (bool, error) {
		kids := hnapi.FirstCommentIDs(story)
		if len(kids) == 0 {
			return false, nil
		}
		found = true
		ids, err := intIDs(fmt.Sprintf("item %v kids", story["id"]), kids[:min(len(kids), sampleSize)])
		if err != nil {
			return true, err
		}
		for _, id := range ids {
			if _, err := item(ctx, env, id); err != nil {
				return true, err
			}
		}
		return true, nil
	})
	if err == nil && !found {
		return Skip("no story with kids in the window")
	}
	return err
}

func checkOutOfRangeAbsent(ctx context.Context, env *Env) error {
	return expectAbsent(ctx, env, outOfRangeIDs)
}

func checkBeyondMaxItemAbsent(ctx context.Context, env *Env) error {
	maxID, err := env.API.MaxItem(ctx)
	if err != nil {
		return err
	}
	if maxID <= 0 {
		return fmt.Errorf("maxitem is %d, want positive", maxID)
	}
	return expectAbsent(ctx, env, []int64{maxID + 1, maxID + 10, maxID + 100})
}

func expectAbsent(ctx context.Context, env *Env, ids []int64) error {
	for _, id := range ids {
		out := env.API.Item(ctx, id)
		if !out.IsAbsent() {
			return fmt.Errorf("item %d: got %s, want absent", id, out)
		}
	}
	return nil
}

// checkMaxItemCoversLists re-reads maxitem once when it lags, since lists
// and maxitem are not updated atomically upstream.
func checkMaxItemCoversLists(ctx context.Context, env *Env) error {
	var all []int64
	for _, e := range hnapi.ListEndpoints() {
		ids, err := listIDs(ctx, env, e)
		if err != nil {
			return err
		}
		all = append(all, ids...)
	}
	if len(all) == 0 {
		return Skip("no ids across any list")
	}
	listMax := slices.Max(all)

	maxID, err := env.API.MaxItem(ctx)
	if err != nil {
		return err
	}
	if maxID < listMax {
		if maxID, err = env.API.MaxItem(ctx); err != nil {
			return err
		}
	}
	if maxID < listMax {
		return fmt.Errorf("maxitem=%d < max(all lists)=%d", maxID, listMax)
	}
	return nil
}
