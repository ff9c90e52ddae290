package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hunkim/botmadang-digest/internal/core"
	"github.com/hunkim/botmadang-digest/internal/fetch"
	"github.com/hunkim/botmadang-digest/internal/llm"
	"github.com/hunkim/botmadang-digest/internal/logger"
)

// maxRetries bounds the JSON-parse retry loop per evaluation call.
const maxRetries = 3

// fallbackLimit caps how many candidates the per-post path evaluates when
// the batch call fails outright.
const fallbackLimit = 15

const systemPrompt = `당신은 봇마당 커뮤니티의 편집자입니다.
일일 다이제스트에 포함할 포스트를 선별합니다.
JSON 형식으로만 응답합니다.`

const singlePromptTemplate = `다음 포스트가 일일 다이제스트에 포함되면 좋을지 평가해주세요.

%s

=== 평가 기준 ===
1. 정보 가치: 새로운 정보나 인사이트가 있는가?
2. 커뮤니티 관심: AI/봇/기술 관련 주제인가?
3. 토론 가치: 다른 봇/유저가 관심 가질 내용인가?
4. 품질: 잘 작성되었는가?

=== 제외 기준 ===
- 단순 인사/테스트 포스트
- 중복/반복 내용
- 저품질 스팸

다음 JSON 형식으로 응답:
{"include": true/false, "reason": "한줄 이유", "score": 1-10}`

const batchPromptTemplate = `다음 포스트들 중 봇마당 일일 다이제스트에 포함할 것들을 선별해주세요.

%s

=== 선별 기준 ===
- 정보 가치가 있는 포스트 (새로운 정보, 인사이트)
- AI/봇/기술 관련 흥미로운 주제
- 커뮤니티에서 토론할 가치가 있는 내용
- 잘 작성된 품질 좋은 글

=== 제외 대상 ===
- 단순 인사/테스트
- 중복/반복 내용
- 저품질 스팸

다음 JSON 형식으로 응답 (최대 15개 선별):
{
  "selected": [
    {"index": 1, "reason": "선정 이유", "score": 8},
    ...
  ]
}`

// Posts evaluates candidates one by one. A failed call or unparseable
// response skips that post without aborting the batch. Only posts the model
// marks for inclusion are returned, sorted by desirability score descending.
func Posts(ctx context.Context, gen llm.Chatter, posts []core.Post) []core.EvaluationResult {
	var included []core.EvaluationResult

	for i, post := range posts {
		req := llm.ChatRequest{
			UserPrompt:   fmt.Sprintf(singlePromptTemplate, fetch.FormatPostSummary(post, i+1)),
			SystemPrompt: systemPrompt,
			Temperature:  0.3,
			MaxTokens:    2000,
		}

		raw, err := llm.ChatJSON(ctx, gen, req, maxRetries)
		if err != nil {
			logger.Warn("post evaluation failed, skipping", "post_id", post.ID, "error", err.Error())
			continue
		}

		var verdict struct {
			Include bool   `json:"include"`
			Reason  string `json:"reason"`
			Score   *int   `json:"score"`
		}
		if err := json.Unmarshal(raw, &verdict); err != nil {
			logger.Warn("post evaluation returned unexpected shape, skipping", "post_id", post.ID, "error", err.Error())
			continue
		}

		if !verdict.Include {
			continue
		}
		included = append(included, core.EvaluationResult{
			Post:    post,
			Include: true,
			Reason:  verdict.Reason,
			Score:   scoreOrDefault(verdict.Score),
		})
	}

	sortByScore(included)
	return included
}

// PostsBatch evaluates the whole candidate list in a single call. The model
// answers with 1-based indices into the list; indices out of range are
// dropped silently. If the batch call fails entirely, the per-post path runs
// over a bounded prefix instead; this function never fails the run.
func PostsBatch(ctx context.Context, gen llm.Chatter, posts []core.Post) []core.EvaluationResult {
	blocks := make([]string, len(posts))
	for i, p := range posts {
		blocks[i] = fetch.FormatPostSummary(p, i+1)
	}

	req := llm.ChatRequest{
		UserPrompt:   fmt.Sprintf(batchPromptTemplate, strings.Join(blocks, "\n\n")),
		SystemPrompt: systemPrompt,
		Temperature:  0.3,
		MaxTokens:    3000,
	}

	raw, err := llm.ChatJSON(ctx, gen, req, maxRetries)
	if err != nil {
		logger.Warn("batch evaluation failed, falling back to per-post evaluation", "error", err.Error())
		return fallbackToSingle(ctx, gen, posts)
	}

	selected, err := parseSelection(raw)
	if err != nil {
		logger.Warn("batch evaluation returned unexpected shape, falling back", "error", err.Error())
		return fallbackToSingle(ctx, gen, posts)
	}

	var results []core.EvaluationResult
	for _, item := range selected {
		idx := item.Index - 1 // model speaks 1-based
		if idx < 0 || idx >= len(posts) {
			continue
		}
		results = append(results, core.EvaluationResult{
			Post:    posts[idx],
			Include: true,
			Reason:  item.Reason,
			Score:   scoreOrDefault(item.Score),
		})
	}

	sortByScore(results)
	return results
}

type selectionItem struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
	Score  *int   `json:"score"`
}

// parseSelection accepts both {"selected": [...]} and a bare array.
func parseSelection(raw json.RawMessage) ([]selectionItem, error) {
	var wrapped struct {
		Selected []selectionItem `json:"selected"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.Selected, nil
	}

	var bare []selectionItem
	if err := json.Unmarshal(raw, &bare); err != nil {
		return nil, fmt.Errorf("selection is neither an object nor an array: %w", err)
	}
	return bare, nil
}

func fallbackToSingle(ctx context.Context, gen llm.Chatter, posts []core.Post) []core.EvaluationResult {
	if len(posts) > fallbackLimit {
		posts = posts[:fallbackLimit]
	}
	return Posts(ctx, gen, posts)
}

func scoreOrDefault(score *int) int {
	if score == nil {
		return 5
	}
	return *score
}

func sortByScore(results []core.EvaluationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
