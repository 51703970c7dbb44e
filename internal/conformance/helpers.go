package conformance

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/hnapi"
)

const (
	// storyWindow is how many top stories are scanned when looking for a
	// story with some property.
	storyWindow = 30
	// sampleSize bounds per-list item sampling.
	sampleSize = 5
	// clockSkew is the tolerance for item times in the future, in seconds.
	clockSkew = 300
)

// item fetches id and returns its payload, nil when absent, or the failure.
func item(ctx context.Context, env *Env, id int64) (map[string]any, error) {
	out := env.API.Item(ctx, id)
	switch {
	case out.IsFailed():
		return nil, fmt.Errorf("item %d: %w", id, out.Err())
	case out.IsAbsent():
		return nil, nil
	default:
		return out.Payload(), nil
	}
}

// intIDs converts a list payload to ids, failing on the first non-integer.
func intIDs(label string, list hnapi.IDList) ([]int64, error) {
	ids := make([]int64, 0, len(list))
	for i, v := range list {
		id, ok := hnapi.IntID(v)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is %s %v, want integer", label, i, hnapi.TypeName(v), v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func listIDs(ctx context.Context, env *Env, endpoint hnapi.ListEndpoint) ([]int64, error) {
	list, err := env.API.List(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return intIDs(string(endpoint), list)
}

func head(ids []int64, n int) []int64 {
	return ids[:min(len(ids), n)]
}

func typeOf(obj map[string]any) string {
	s, _ := obj["type"].(string)
	return s
}

func isComment(obj map[string]any) bool {
	return obj != nil && typeOf(obj) == "comment"
}

// isLive reports a comment that is neither deleted nor dead.
func isLive(obj map[string]any) bool {
	deleted, _ := obj["deleted"].(bool)
	dead, _ := obj["dead"].(bool)
	return !deleted && !dead
}

// nonEmptyString fails when field is present but not a non-blank string.
func nonEmptyString(obj map[string]any, field string) error {
	v, ok := obj[field]
	if !ok {
		return nil
	}
	s, isStr := v.(string)
	if !isStr || strings.TrimSpace(s) == "" {
		return fmt.Errorf("item %v: %s is %q, want non-empty string", obj["id"], field, v)
	}
	return nil
}

// nonNegativeInt fails when field is present but not an integer >= 0.
func nonNegativeInt(obj map[string]any, field string) error {
	v, ok := obj[field]
	if !ok {
		return nil
	}
	n, isInt := hnapi.IntID(v)
	if !isInt || n < 0 {
		return fmt.Errorf("item %v: %s is %v, want integer >= 0", obj["id"], field, v)
	}
	return nil
}

// saneTime fails unless obj["time"] is an integer in (0, now+skew].
func saneTime(env *Env, obj map[string]any) error {
	t, ok := hnapi.IntID(obj["time"])
	if !ok {
		return fmt.Errorf("item %v: time is %v, want integer", obj["id"], obj["time"])
	}
	if limit := env.Now().Unix() + clockSkew; t <= 0 || t > limit {
		return fmt.Errorf("item %v: time %d outside (0, %d]", obj["id"], t, limit)
	}
	return nil
}

// forEachTopStory calls fn with each present top story in the window until
// fn reports done.
func forEachTopStory(ctx context.Context, env *Env, fn func(story map[string]any) (bool, error)) error {
	ids, err := listIDs(ctx, env, hnapi.EndpointTopStories)
	if err != nil {
		return err
	}
	for _, id := range head(ids, storyWindow) {
		story, err := item(ctx, env, id)
		if err != nil {
			return err
		}
		if story == nil {
			continue
		}
		done, err := fn(story)
		if err != nil || done {
			return err
		}
	}
	return nil
}
