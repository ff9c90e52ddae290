package narrative

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hunkim/botmadang-digest/internal/core"
	"github.com/hunkim/botmadang-digest/internal/llm"
)

// scriptedGen returns canned prose keyed by which prompt template it sees.
type scriptedGen struct {
	deepDive string
	brief    string
	review   string
	err      error
	calls    []llm.ChatRequest
}

func (g *scriptedGen) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return "", g.err
	}
	// The review prompt embeds the whole draft, so match it before the
	// per-post templates whose output it quotes.
	switch {
	case strings.Contains(req.UserPrompt, "최종 검수"):
		return g.review, nil
	case strings.Contains(req.UserPrompt, "딥다이브"):
		return g.deepDive, nil
	case strings.Contains(req.UserPrompt, "2-3문장으로 요약"):
		return g.brief, nil
	}
	return "", errors.New("unexpected prompt")
}

func groupOf(posts ...core.Post) core.TopicGroup {
	results := make([]core.EvaluationResult, len(posts))
	for i, p := range posts {
		results[i] = core.EvaluationResult{Post: p, Include: true, Score: 5}
	}
	return core.TopicGroup{Name: "그룹", Posts: results, Importance: 7}
}

func post(id, title string) core.Post {
	return core.Post{
		ID:         id,
		Title:      title,
		Content:    "봇마당에서 재미있는 실험을 해봤어요. 결과가 꽤 흥미롭습니다.",
		Submadang:  "ai",
		AuthorName: "테스트봇",
		CreatedAt:  time.Date(2026, 2, 7, 5, 0, 0, 0, time.UTC),
	}
}

func TestGenerate_StructureAndLinks(t *testing.T) {
	gen := &scriptedGen{
		deepDive: "### 🤖 흥미로운 실험\n\n정말 재밌는 글이에요.",
		brief:    "짧게 요약하면 이런 내용이에요.",
	}
	// review answers empty; the too-short guard keeps the draft.
	w := NewWriter(gen, "https://botmadang.org", "solar-pro")

	main := []core.TopicGroup{groupOf(post("p1", "첫 글"), post("p2", "둘째 글"), post("p3", "셋째 글"))}
	brief := []core.TopicGroup{groupOf(post("p4", "넷째 글"))}

	digest := w.Generate(context.Background(), main, brief, time.Date(2026, 2, 7, 8, 0, 0, 0, time.UTC))

	if !strings.Contains(digest, "# 🤖 봇마당 오늘의 소식") {
		t.Error("digest should open with the standard header")
	}
	if !strings.Contains(digest, "2026년 02월 07일 (토요일)") {
		t.Errorf("header should carry the Korean date and weekday:\n%s", digest)
	}
	if !strings.Contains(digest, "## ⚡ 한눈에 보기") {
		t.Error("the fourth post should land in the quick-view section")
	}
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		if !strings.Contains(digest, "https://botmadang.org/post/"+id) {
			t.Errorf("digest should link post %s", id)
		}
	}
	if !strings.Contains(digest, "**4개** 포스트") {
		t.Error("intro should state the narrated post count")
	}
}

func TestGenerate_CapsAtTenPosts(t *testing.T) {
	gen := &scriptedGen{deepDive: "딥다이브 내용", brief: "짧은 요약"}
	w := NewWriter(gen, "https://botmadang.org", "solar-pro")

	var posts []core.Post
	for i := 0; i < 14; i++ {
		posts = append(posts, post(string(rune('a'+i)), "글"))
	}
	digest := w.Generate(context.Background(), []core.TopicGroup{groupOf(posts...)}, nil,
		time.Date(2026, 2, 7, 8, 0, 0, 0, time.UTC))

	if strings.Contains(digest, "/post/k") {
		t.Error("posts beyond the cap should not be narrated")
	}
	if !strings.Contains(digest, "/post/j") {
		t.Error("the tenth post should still be narrated")
	}
}

func TestGenerate_FailedCallsFallBackToExcerpts(t *testing.T) {
	gen := &scriptedGen{err: errors.New("model down")}
	w := NewWriter(gen, "https://botmadang.org", "solar-pro")

	digest := w.Generate(context.Background(),
		[]core.TopicGroup{groupOf(post("p1", "제목입니다"))}, nil,
		time.Date(2026, 2, 7, 8, 0, 0, 0, time.UTC))

	if !strings.Contains(digest, "### 🤖 제목입니다") {
		t.Errorf("excerpt fallback should carry the title heading:\n%s", digest)
	}
	if !strings.Contains(digest, "https://botmadang.org/post/p1") {
		t.Error("excerpt fallback should still link the post")
	}
}

func TestDeepDive_StripsFabricatedLinks(t *testing.T) {
	gen := &scriptedGen{
		deepDive: "### ✨ 소식\n\n내용이에요. 👉 [자세히 보기](https://fake.example.com/x)",
	}
	w := NewWriter(gen, "https://botmadang.org", "solar-pro")

	section := w.deepDive(context.Background(), post("p9", "글"), 0)

	if strings.Contains(section, "fake.example.com") {
		t.Errorf("invented link should be stripped:\n%s", section)
	}
	if !strings.Contains(section, "👉 [자세히 보기](https://botmadang.org/post/p9)") {
		t.Errorf("the real post link should be appended:\n%s", section)
	}
}

func TestReview_RejectsTruncatedRewrite(t *testing.T) {
	draft := strings.Repeat("봇마당 다이제스트 본문입니다. ", 40)
	gen := &scriptedGen{review: "짧음"}
	w := NewWriter(gen, "https://botmadang.org", "solar-pro")

	if got := w.Review(context.Background(), draft); got != strings.TrimSpace(draft) {
		t.Error("a review answer shorter than half the draft should be discarded")
	}
}

func TestReview_UsesReviewModel(t *testing.T) {
	gen := &scriptedGen{review: strings.Repeat("검수된 본문입니다. ", 30)}
	w := NewWriter(gen, "https://botmadang.org", "solar-pro")

	w.Review(context.Background(), strings.Repeat("원문. ", 30))

	last := gen.calls[len(gen.calls)-1]
	if last.Model != "solar-pro" {
		t.Errorf("review should run on the editing model, got %q", last.Model)
	}
	if last.Temperature != 0.2 {
		t.Errorf("review temperature = %v, want 0.2", last.Temperature)
	}
}

func TestSanitizeExternalLinks(t *testing.T) {
	in := "인트로 [보기](https://example.com/x) 그리고 [글](https://botmadang.org/post/1)\n" +
		"(링크: https://kakao.com/share)\n" +
		"https://naver.me/abc\n\n\n\n\n" +
		"끝"

	got := SanitizeExternalLinks(in, "https://botmadang.org")

	if strings.Contains(got, "example.com") || strings.Contains(got, "kakao.com") || strings.Contains(got, "naver.me") {
		t.Errorf("external URLs should be removed:\n%s", got)
	}
	if !strings.Contains(got, "인트로 보기 그리고") {
		t.Errorf("markdown link text should survive without its URL:\n%s", got)
	}
	if !strings.Contains(got, "[글](https://botmadang.org/post/1)") {
		t.Errorf("canonical links must stay intact:\n%s", got)
	}
	if strings.Contains(got, "\n\n\n\n") {
		t.Error("runs of blank lines should collapse")
	}
}

func TestSanitizeExternalLinks_Subdomain(t *testing.T) {
	in := "[메일](https://send.botmadang.org/t) [피싱](https://botmadang.org.evil.com/x)"

	got := SanitizeExternalLinks(in, "https://botmadang.org")

	if !strings.Contains(got, "https://send.botmadang.org/t") {
		t.Error("subdomains of the canonical site should be kept")
	}
	if strings.Contains(got, "evil.com") {
		t.Error("lookalike domains must not pass the check")
	}
}
