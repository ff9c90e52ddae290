package topics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hunkim/botmadang-digest/internal/core"
	"github.com/hunkim/botmadang-digest/internal/llm"
)

type fakeGen struct {
	response string
	err      error
}

func (f *fakeGen) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func evaluated(n int) []core.EvaluationResult {
	createdAt := time.Date(2026, 2, 7, 6, 0, 0, 0, time.UTC)
	results := make([]core.EvaluationResult, n)
	for i := range results {
		results[i] = core.EvaluationResult{
			Post: core.Post{
				ID:        string(rune('a' + i)),
				Title:     "post",
				CreatedAt: createdAt,
			},
			Include: true,
			Score:   5,
		}
	}
	return results
}

func TestGroup_SortsByImportance(t *testing.T) {
	gen := &fakeGen{response: `{
		"groups": [
			{"name": "💬 잡담", "description": "일상", "post_indices": [1], "importance": 3},
			{"name": "🤖 AI 에이전트", "description": "기술 논의", "post_indices": [2, 3], "importance": 9}
		]
	}`}

	groups := Group(context.Background(), gen, evaluated(3))

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Name != "🤖 AI 에이전트" {
		t.Errorf("groups should sort by importance descending, got %q first", groups[0].Name)
	}
	if len(groups[0].Posts) != 2 {
		t.Errorf("second group should hold 2 posts, got %d", len(groups[0].Posts))
	}
}

func TestGroup_DropsInvalidIndicesAndEmptyGroups(t *testing.T) {
	gen := &fakeGen{response: `{
		"groups": [
			{"name": "유효", "post_indices": [1, 50], "importance": 5},
			{"name": "전부 무효", "post_indices": [0, 99], "importance": 8}
		]
	}`}

	groups := Group(context.Background(), gen, evaluated(2))

	if len(groups) != 1 {
		t.Fatalf("group with no valid posts should be dropped, got %d groups", len(groups))
	}
	if len(groups[0].Posts) != 1 {
		t.Errorf("invalid index should be discarded silently, got %d posts", len(groups[0].Posts))
	}
}

func TestGroup_DeduplicatesAcrossGroups(t *testing.T) {
	gen := &fakeGen{response: `{
		"groups": [
			{"name": "첫 그룹", "post_indices": [1, 2], "importance": 7},
			{"name": "둘째 그룹", "post_indices": [2, 3], "importance": 7}
		]
	}`}

	groups := Group(context.Background(), gen, evaluated(3))

	total := 0
	for _, g := range groups {
		total += len(g.Posts)
	}
	if total != 3 {
		t.Errorf("a post may belong to one group only, got %d memberships", total)
	}
	if len(groups[0].Posts) != 2 || len(groups[1].Posts) != 1 {
		t.Errorf("first group to claim a post keeps it: got %d and %d", len(groups[0].Posts), len(groups[1].Posts))
	}
}

func TestGroup_FallbackOnFailure(t *testing.T) {
	gen := &fakeGen{err: errors.New("model unavailable")}
	input := evaluated(4)

	groups := Group(context.Background(), gen, input)

	if len(groups) != 1 {
		t.Fatalf("failure must yield exactly one synthetic group, got %d", len(groups))
	}
	if groups[0].Importance != 5 {
		t.Errorf("fallback importance = %d, want 5", groups[0].Importance)
	}
	if len(groups[0].Posts) != len(input) {
		t.Errorf("fallback group must contain every input post, got %d of %d", len(groups[0].Posts), len(input))
	}
}

func TestGroup_EmptyInput(t *testing.T) {
	if groups := Group(context.Background(), &fakeGen{}, nil); groups != nil {
		t.Errorf("no posts means no groups, got %v", groups)
	}
}

func TestSplitMainAndBrief(t *testing.T) {
	groups := []core.TopicGroup{
		{Name: "a", Importance: 9},
		{Name: "b", Importance: 7},
		{Name: "c", Importance: 5},
		{Name: "d", Importance: 2},
	}

	main, brief := SplitMainAndBrief(groups, 3)
	if len(main) != 3 || len(brief) != 1 {
		t.Errorf("split = %d/%d, want 3/1", len(main), len(brief))
	}

	main, brief = SplitMainAndBrief(groups[:2], 3)
	if len(main) != 2 || len(brief) != 0 {
		t.Errorf("short input split = %d/%d, want 2/0", len(main), len(brief))
	}
}
