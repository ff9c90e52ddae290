package topics

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

const maxRetries = 3

const systemPrompt = `당신은 봇마당 커뮤니티의 편집자입니다.
포스트들을 주제별로 그룹화하고 중요도를 평가합니다.
JSON 형식으로만 응답합니다.`

const groupingPromptTemplate = `다음 포스트들을 주제별로 그룹화해주세요.
비슷한 주제는 하나로 묶고, 독립적인 주제는 따로 분류합니다.

%s

=== 그룹화 기준 ===
- 같은 사건/이슈를 다루는 글은 같은 그룹
- AI/LLM/봇 관련 기술 주제
- 봇마당 커뮤니티 관련 주제
- 뉴스/시사 관련
- 기타/잡담

각 그룹에 적절한 이름과 한줄 설명을 붙이고,
중요도(importance)를 1-10으로 평가해주세요.
(높을수록 다이제스트에서 자세히 다룰 주제)

다음 JSON 형식으로 응답:
{
  "groups": [
    {
      "name": "🤖 AI 에이전트 개발",
      "description": "봇 개발 관련 기술 논의",
      "post_indices": [1, 4, 7],
      "importance": 8
    },
    ...
  ]
}`

// fallbackGroup wraps every evaluated post when grouping fails; grouping must
// never fail the run.
func fallbackGroup(evaluated []core.EvaluationResult) []core.TopicGroup {
	return []core.TopicGroup{{
		Name:        "📝 오늘의 포스트",
		Description: "봇마당에 올라온 글들",
		Posts:       evaluated,
		Importance:  5,
	}}
}

// Group clusters the evaluated posts into named topic groups with importance
// weights, via a single generation call. Groups whose index lists resolve to
// no valid post are dropped; a post referenced by several groups stays with
// the first group that claims it. On total failure every post lands in one
// synthetic group.
func Group(ctx context.Context, gen llm.Chatter, evaluated []core.EvaluationResult) []core.TopicGroup {
	if len(evaluated) == 0 {
		return nil
	}

	blocks := make([]string, len(evaluated))
	for i, r := range evaluated {
		blocks[i] = fetch.FormatPostSummary(r.Post, i+1)
	}

	req := llm.ChatRequest{
		UserPrompt:   fmt.Sprintf(groupingPromptTemplate, strings.Join(blocks, "\n\n")),
		SystemPrompt: systemPrompt,
		Temperature:  0.3,
		MaxTokens:    2000,
	}

	raw, err := llm.ChatJSON(ctx, gen, req, maxRetries)
	if err != nil {
		logger.Warn("topic grouping failed, using single fallback group", "error", err.Error())
		return fallbackGroup(evaluated)
	}

	var parsed struct {
		Groups []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			PostIndices []int  `json:"post_indices"`
			Importance  *int   `json:"importance"`
		} `json:"groups"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		logger.Warn("topic grouping returned unexpected shape, using single fallback group", "error", err.Error())
		return fallbackGroup(evaluated)
	}

	var groups []core.TopicGroup
	claimed := make(map[int]bool, len(evaluated))
	for _, g := range parsed.Groups {
		var members []core.EvaluationResult
		for _, idx := range g.PostIndices {
			i := idx - 1 // model speaks 1-based
			if i < 0 || i >= len(evaluated) || claimed[i] {
				continue
			}
			claimed[i] = true
			members = append(members, evaluated[i])
		}
		if len(members) == 0 {
			continue
		}

		name := g.Name
		if name == "" {
			name = "기타"
		}
		importance := 5
		if g.Importance != nil {
			importance = *g.Importance
		}
		groups = append(groups, core.TopicGroup{
			Name:        name,
			Description: g.Description,
			Posts:       members,
			Importance:  importance,
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Importance > groups[j].Importance
	})
	return groups
}

// SplitMainAndBrief partitions importance-sorted groups into deep coverage
// and quick-summary coverage.
func SplitMainAndBrief(groups []core.TopicGroup, mainCount int) (main, brief []core.TopicGroup) {
	if mainCount > len(groups) {
		mainCount = len(groups)
	}
	return groups[:mainCount], groups[mainCount:]
}
