package narrative

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hunkim/botmadang-digest/internal/core"
	"github.com/hunkim/botmadang-digest/internal/llm"
	"github.com/hunkim/botmadang-digest/internal/logger"
)

// maxDigestPosts caps the posts narrated per digest: the first deepCount get
// full sections, the rest one-paragraph briefs.
const (
	maxDigestPosts = 10
	deepCount      = 3
)

const systemPrompt = `당신은 봇마당 오늘의 소식 편집자입니다.
뉴닉(Newneek) 스타일로 친근하고 재미있게 작성합니다.

=== 절대 규칙 ===
1. 반드시 한국어로만 작성하세요.
2. 영어로 생각하거나 분석하지 마세요.
3. 내부 reasoning을 절대 출력하지 마세요.
4. 바로 최종 결과만 출력하세요.

=== 스타일 가이드 ===
- MZ세대 친근한 말투 ("~했어요", "~라고", "~한 것", "~잖아요")
- 이모지 적절히 활용 🤖💡📊🔥
- 독자를 '봇마당 친구들'로 호칭
- 봇마당 커뮤니티 맥락 (AI, 봇, 기술 커뮤니티)`

const deepDivePromptTemplate = `다음 봇마당 포스트를 뉴닉 뉴스레터 스타일의 딥다이브 섹션으로 작성해주세요.

=== 포스트 정보 ===
제목: %s
작성자: %s
마당: %s
내용:
%s

=== 작성 규칙 ===
1. 소제목을 이모지와 함께 만들어주세요 (예: "🤖 AI 코딩 전쟁, 우리는 어떻게 해야 할까?")
2. 핵심 내용을 독자가 이해하기 쉽게 3-5문장으로 요약해주세요
3. "왜 중요한가?"를 1-2문장으로 설명해주세요
4. 봇마당 커뮤니티에서 이 주제가 왜 화제인지 멘트 추가
5. 최대 200자 내외로 작성
6. 링크를 포함하지 마세요 (별도로 추가됩니다)
7. URL을 만들어내지 마세요

한국어로만 작성하세요.`

const briefSummaryPromptTemplate = `다음 봇마당 포스트를 뉴닉 스타일로 2-3문장으로 요약해주세요.

제목: %s
작성자: %s
내용:
%s

=== 규칙 ===
- 친근한 말투 ("~했어요", "~라고")
- 핵심만 2-3문장
- 한국어로만 작성
- 내부 생각 과정을 출력하지 마세요.`

const reviewPromptTemplate = `다음은 봇마당 데일리 다이제스트입니다. 편집자로서 최종 검수를 해주세요.

=== 검수 항목 ===
1. **외부 링크 제거**: botmadang.org 이외의 URL(카카오톡, 네이버 등)이 있으면 삭제
2. **중복 내용 제거**: 같은 내용이 반복되면 하나만 남기기
3. **영어/reasoning 흔적 제거**: 영어 문장, [thinking], <analysis> 등 제거
4. **문장 다듬기**: 어색한 표현 자연스럽게 수정
5. **마크다운 형식 유지**: 제목, 볼드, 이모지, 링크 형식 그대로 유지

=== 규칙 ===
- botmadang.org 링크는 반드시 유지
- 전체 구조와 분량은 유지 (삭제만 하고 새로운 내용 추가하지 마세요)
- 수정한 부분만 바꾸고 나머지는 그대로 출력
- 바로 수정된 전체 다이제스트를 출력하세요 (설명 없이)

=== 다이제스트 ===
%s`

// submadangEmoji maps category labels to section emojis.
var submadangEmoji = map[string]string{
	"tech": "💻", "ai": "🤖", "news": "📰",
	"vibecoding": "✨", "random": "💬", "showcase": "🎪",
	"philosophy": "🧠", "general": "📝",
}

var koreanWeekdays = [7]string{"일", "월", "화", "수", "목", "금", "토"}

// Writer assembles the digest: a deterministic skeleton interleaved with
// per-post generated prose, followed by a review pass.
type Writer struct {
	gen         llm.Chatter
	siteURL     string // canonical site base, no trailing slash
	reviewModel string // non-reasoning model for the editing pass
}

// NewWriter creates a digest writer. siteURL defaults to the botmadang
// production site.
func NewWriter(gen llm.Chatter, siteURL, reviewModel string) *Writer {
	if siteURL == "" {
		siteURL = "https://botmadang.org"
	}
	return &Writer{
		gen:         gen,
		siteURL:     strings.TrimSuffix(siteURL, "/"),
		reviewModel: reviewModel,
	}
}

// Generate builds the full digest for targetDate in Newneek style:
// header, intro, up to three deep-dive sections, a quick-view list for the
// remaining posts, outro and footer. One generation call per narrated post;
// each per-post failure degrades to a deterministic excerpt instead of
// failing the run. The assembled text then goes through Review.
func (w *Writer) Generate(ctx context.Context, mainGroups, briefGroups []core.TopicGroup, targetDate time.Time) string {
	var all []core.EvaluationResult
	for _, g := range append(append([]core.TopicGroup{}, mainGroups...), briefGroups...) {
		all = append(all, g.Posts...)
	}
	if len(all) > maxDigestPosts {
		all = all[:maxDigestPosts]
	}

	deepPosts := all
	if len(deepPosts) > deepCount {
		deepPosts = deepPosts[:deepCount]
	}
	briefPosts := all[len(deepPosts):]

	dateStr := fmt.Sprintf("%d년 %02d월 %02d일", targetDate.Year(), targetDate.Month(), targetDate.Day())
	weekday := koreanWeekdays[int(targetDate.Weekday())]

	var sections []string
	sections = append(sections, fmt.Sprintf("# 🤖 봇마당 오늘의 소식\n\n**%s (%s요일)** | 매일 아침 7시에 업데이트 ⏰", dateStr, weekday))
	sections = append(sections, w.intro(deepPosts, len(all)))
	sections = append(sections, "\n---\n")

	for i, ep := range deepPosts {
		sections = append(sections, w.deepDive(ctx, ep.Post, i))
		if i < len(deepPosts)-1 {
			sections = append(sections, "")
		}
	}
	sections = append(sections, "\n---\n")

	if len(briefPosts) > 0 {
		sections = append(sections, "## ⚡ 한눈에 보기\n")
		for i, ep := range briefPosts {
			sections = append(sections, w.brief(ctx, ep.Post, i, len(briefPosts)))
			if i < len(briefPosts)-1 {
				sections = append(sections, "---")
			}
		}
	}

	sections = append(sections, "\n---\n")
	sections = append(sections, outro())
	sections = append(sections, fmt.Sprintf("\n---\n*봇마당 오늘의 소식 | %s | [botmadang.org](%s)*", dateStr, w.siteURL))

	return w.Review(ctx, strings.Join(sections, "\n\n"))
}

// intro builds the deterministic opening paragraph.
func (w *Writer) intro(deepPosts []core.EvaluationResult, postCount int) string {
	previews := make([]string, 0, len(deepPosts))
	for _, ep := range deepPosts {
		title := []rune(ep.Post.Title)
		if len(title) > 20 {
			title = title[:20]
		}
		previews = append(previews, string(title))
	}

	return fmt.Sprintf("안녕하세요, 봇마당 친구들! 🤖✨\n\n"+
		"오늘 봇마당에서 화제가 된 **%d개** 포스트를 정리했어요.\n"+
		"_%s_ 등 알찬 소식, 바로 시작해볼까요? 👀🔥",
		postCount, strings.Join(previews, "・"))
}

func outro() string {
	return "오늘의 소식, 재밌게 읽으셨나요? 🤖💖\n\n" +
		"봇마당에서 더 많은 이야기 나눠요! " +
		"댓글, 포스트 언제든 환영이에요 ✨\n" +
		"내일 또 만나요~ 피드백도 언제든 주세요! 🙌"
}

// deepDive narrates one top post. The model tends to fabricate its own
// "자세히 보기" links, so those are stripped and the real post link appended.
func (w *Writer) deepDive(ctx context.Context, post core.Post, index int) string {
	category := post.Submadang
	if category == "" {
		category = "일반"
	}
	link := fmt.Sprintf("%s/post/%s", w.siteURL, post.ID)

	logger.Info("writing deep dive", "index", index+1, "post_id", post.ID)

	content, err := w.gen.Chat(ctx, llm.ChatRequest{
		UserPrompt: fmt.Sprintf(deepDivePromptTemplate,
			post.Title, post.AuthorName, category, truncateRunes(post.Content, 1500)),
		SystemPrompt: systemPrompt,
		Temperature:  0.7,
		MaxTokens:    1500,
	})
	if err != nil || strings.TrimSpace(content) == "" {
		logger.Warn("deep dive generation failed, using excerpt fallback", "post_id", post.ID)
		return fmt.Sprintf("### %s %s\n\n%s...\n\n👉 [자세히 보기](%s)",
			emojiFor(category), post.Title,
			strings.TrimSpace(truncateRunes(post.Content, 300)), link)
	}

	content = fabricatedDetailLink.ReplaceAllString(content, "")
	content = strings.TrimSpace(content)
	return content + fmt.Sprintf("\n\n👉 [자세히 보기](%s)", link)
}

// brief narrates one quick-view entry.
func (w *Writer) brief(ctx context.Context, post core.Post, index, total int) string {
	category := post.Submadang
	if category == "" {
		category = "일반"
	}
	link := fmt.Sprintf("%s/post/%s", w.siteURL, post.ID)

	logger.Info("writing brief", "index", index+1, "total", total, "post_id", post.ID)

	summary, err := w.gen.Chat(ctx, llm.ChatRequest{
		UserPrompt: fmt.Sprintf(briefSummaryPromptTemplate,
			post.Title, post.AuthorName, truncateRunes(post.Content, 800)),
		SystemPrompt: systemPrompt,
		Temperature:  0.5,
		MaxTokens:    500,
	})
	if err != nil || strings.TrimSpace(summary) == "" {
		logger.Warn("brief generation failed, using excerpt fallback", "post_id", post.ID)
		summary = strings.TrimSpace(truncateRunes(post.Content, 100)) + "..."
	}

	return fmt.Sprintf("**%s** | %s %s\n\n%s [자세히 보기](%s)",
		category, post.Title, emojiFor(category), strings.TrimSpace(summary), link)
}

// Review runs the two-stage cleanup: one generation call that may only
// delete or edit, guarded against truncated rewrites, then the mechanical
// link sanitization that always runs. Model output is untrusted for
// structural guarantees, so the domain rule is enforced by regex regardless
// of what the review call did.
func (w *Writer) Review(ctx context.Context, digest string) string {
	reviewed, err := w.gen.Chat(ctx, llm.ChatRequest{
		UserPrompt:   fmt.Sprintf(reviewPromptTemplate, digest),
		SystemPrompt: systemPrompt,
		Temperature:  0.2,
		MaxTokens:    8000,
		Model:        w.reviewModel,
	})
	switch {
	case err != nil:
		logger.Warn("review pass failed, keeping draft", "error", err.Error())
	case len([]rune(reviewed)) > len([]rune(digest))/2:
		digest = strings.TrimSpace(reviewed)
	default:
		logger.Warn("review output too short, keeping draft",
			"reviewed_len", len(reviewed), "draft_len", len(digest))
	}

	return SanitizeExternalLinks(digest, w.siteURL)
}

func emojiFor(category string) string {
	if emoji, ok := submadangEmoji[strings.ToLower(category)]; ok {
		return emoji
	}
	return "📝"
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
