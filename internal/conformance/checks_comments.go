package conformance

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/hnapi"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/schema"
)

// missingChildOffset is added to a real kid id to get one that cannot exist.
const missingChildOffset = 1_000_000_000_000

func commentChecks() []Check {
	return []Check{
		{
			Name: "comments/first-comment-links-back",
			Tags: []Tag{TagPositive, TagFunctional},
			Run:  checkFirstCommentLinksBack,
		},
		{
			Name: "comments/optional-fields",
			Tags: []Tag{TagPositive},
			Run:  checkCommentOptionalFields,
		},
		{
			Name: "comments/two-level-nesting",
			Tags: []Tag{TagPositive},
			Run:  checkTwoLevelNesting,
		},
		{
			Name: "comments/nonexistent-child-absent",
			Tags: []Tag{TagNegative},
			Run:  checkNonexistentChildAbsent,
		},
	}
}

// firstComment returns the first kid of parent when it is a live comment.
func firstComment(ctx context.Context, env *Env, parent map[string]any) (map[string]any, error) {
	kids := hnapi.FirstCommentIDs(parent)
	if len(kids) == 0 {
		return nil, nil
	}
	kidID, ok := hnapi.IntID(kids[0])
	if !ok {
		return nil, fmt.Errorf("item %v: first kid %v is not an integer", parent["id"], kids[0])
	}
	kid, err := item(ctx, env, kidID)
	if err != nil || !isComment(kid) || !isLive(kid) {
		return nil, err
	}
	return kid, nil
}

func checkFirstCommentLinksBack(ctx context.Context, env *Env) error {
	found := false
	err := forEachTopStory(ctx, env, func(story map[string]any) (bool, error) {
		comment, err := firstComment(ctx, env, story)
		if err != nil || comment == nil {
			return err != nil, err
		}
		found = true
		if err := schema.Validate(comment, schema.Comment); err != nil {
			return true, err
		}
		return true, expectParent(comment, story)
	})
	if err == nil && !found {
		return Skip(fmt.Sprintf("no top story with a first-level comment in the first %d", storyWindow))
	}
	return err
}

func checkCommentOptionalFields(ctx context.Context, env *Env) error {
	found := false
	err := forEachTopStory(ctx, env, func(story map[string]any) (bool, error) {
		comment, err := firstComment(ctx, env, story)
		if err != nil || comment == nil {
			return err != nil, err
		}
		found = true
		if err := nonEmptyString(comment, "text"); err != nil {
			return true, err
		}
		return true, nonEmptyString(comment, "by")
	})
	if err == nil && !found {
		return Skip("no first-level comment found")
	}
	return err
}

func checkTwoLevelNesting(ctx context.Context, env *Env) error {
	found := false
	err := forEachTopStory(ctx, env, func(story map[string]any) (bool, error) {
		c1, err := firstComment(ctx, env, story)
		if err != nil || c1 == nil {
			return err != nil, err
		}
		c2, err := firstComment(ctx, env, c1)
		if err != nil || c2 == nil {
			return err != nil, err
		}
		found = true
		if err := schema.Validate(c2, schema.Comment); err != nil {
			return true, err
		}
		if err := saneTime(env, c2); err != nil {
			return true, err
		}
		return true, expectParent(c2, c1)
	})
	if err == nil && !found {
		return Skip("no two-level nesting found")
	}
	return err
}

func checkNonexistentChildAbsent(ctx context.Context, env *Env) error {
	found := false
	err := forEachTopStory(ctx, env, func(story map[string]any) (bool, error) {
		kids := hnapi.FirstCommentIDs(story)
		if len(kids) == 0 {
			return false, nil
		}
		kidID, ok := hnapi.IntID(kids[0])
		if !ok {
			return false, nil
		}
		found = true
		return true, expectAbsent(ctx, env, []int64{kidID + missingChildOffset})
	})
	if err == nil && !found {
		return Skip("no story with kids available to probe")
	}
	return err
}

func expectParent(child, parent map[string]any) error {
	got, ok := hnapi.IntID(child["parent"])
	want, _ := hnapi.IntID(parent["id"])
	if !ok || got != want {
		return fmt.Errorf("item %v: parent is %v, want %d", child["id"], child["parent"], want)
	}
	return nil
}
