package prompt

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"chapter-server/internal/model"
	"chapter-server/pkg/duration"
)

// Prompt - пара системной инструкции и пользовательского запроса.
type Prompt struct {
	System string
	User   string
}

// Builder собирает промпты для всех операций генерации.
type Builder struct {
	catalog *Catalog
}

// NewBuilder создает Builder. nil означает встроенный справочник.
func NewBuilder(catalog *Catalog) *Builder {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Builder{catalog: catalog}
}

// Catalog возвращает справочник категорий.
func (b *Builder) Catalog() *Catalog {
	return b.catalog
}

// OutlineInput - данные для запроса оглавления.
type OutlineInput struct {
	Topic        string
	Length       string
	Category     string
	Style        model.ScriptStyle
	ChapterCount int
	// Analysis должен быть уже очищен от цитат (AnalysisResult.Redacted).
	Analysis *model.AnalysisResult
}

// Outline собирает запрос на разбиение видео на главы.
func (b *Builder) Outline(in OutlineInput) (Prompt, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\"%s\"를 주제로 한 %s 분량의 영상 개요를 챕터별로 나누어 생성해주세요.\n\n", in.Topic, in.Length)
	fmt.Fprintf(&sb, "**중요**: 전체 영상을 정확히 %d개의 챕터로 나누세요. 각 챕터는 나중에 개별적으로 상세 대본을 생성할 수 있도록 명확한 목적과 내용을 가져야 합니다.\n", in.ChapterCount)
	fmt.Fprintf(&sb, "챕터 ID는 chapter-1부터 chapter-%d까지 순서대로 부여하세요.\n\n", in.ChapterCount)

	if b.catalog.IsStory(in.Category) {
		sb.WriteString(StoryGuide(in.ChapterCount))
		sb.WriteString("\n")
	}

	sb.WriteString("**각 챕터 작성 지침:**\n")
	fmt.Fprintf(&sb, "1. 각 챕터의 예상 소요 시간을 명시하세요 (전체 %s이 되도록 분배)\n", in.Length)
	sb.WriteString("2. 각 챕터의 핵심 내용과 목적을 명확히 서술하세요\n")
	sb.WriteString("3. 챕터 간의 자연스러운 흐름과 연결성을 고려하세요\n")
	sb.WriteString("4. 스토리의 긴장감과 흥미가 지속되도록 구성하세요\n")
	if in.Style == model.StyleNarration {
		fmt.Fprintf(&sb, "5. 단독 나레이션 영상입니다. 등장인물 목록은 \"%s\" 하나로 작성하세요\n", model.NarratorLabel)
	} else {
		sb.WriteString("5. 대본에 등장하는 모든 인물 또는 화자를 등장인물 목록에 빠짐없이 포함하세요\n")
	}

	if in.Analysis != nil {
		analysis, err := json.MarshalIndent(in.Analysis, "", "  ")
		if err != nil {
			return Prompt{}, fmt.Errorf("marshal analysis: %w", err)
		}
		sb.WriteString("\n**참고용 분석 자료:**\n")
		sb.Write(analysis)
		sb.WriteString("\n")
	}
	sb.WriteString("\n모든 결과를 JSON 형식으로 제공해주세요.")

	return Prompt{
		System: fmt.Sprintf("당신은 '%s' 전문 YouTube 콘텐츠 기획자입니다.", categoryOrDefault(in.Category)),
		User:   sb.String(),
	}, nil
}

// StoryGuide возвращает гайд по сюжетной структуре для n глав.
func StoryGuide(n int) string {
	var sb strings.Builder
	sb.WriteString("**스토리 구조 가이드:**\n")
	switch {
	case n >= 5:
		sb.WriteString("- 챕터 1: 도입부 (후크, 배경 설정)\n")
		sb.WriteString("- 챕터 2-3: 전개 (사건 발생, 갈등 심화)\n")
		fmt.Fprintf(&sb, "- 챕터 %d: 절정 (가장 극적인 순간)\n", n-2)
		fmt.Fprintf(&sb, "- 챕터 %d: 해결 (갈등 해소)\n", n-1)
		fmt.Fprintf(&sb, "- 챕터 %d: 결말 (교훈, 마무리)\n", n)
	case n == 4:
		sb.WriteString("- 챕터 1: 도입부 (후크, 배경 설정)\n")
		sb.WriteString("- 챕터 2: 전개 (사건 발생, 갈등 심화)\n")
		sb.WriteString("- 챕터 3: 절정 (가장 극적인 순간)\n")
		sb.WriteString("- 챕터 4: 해결과 결말 (갈등 해소, 마무리)\n")
	case n == 3:
		sb.WriteString("- 챕터 1: 도입부 (후크, 배경 설정)\n")
		sb.WriteString("- 챕터 2: 전개와 절정 (갈등 심화, 가장 극적인 순간)\n")
		sb.WriteString("- 챕터 3: 해결과 결말 (갈등 해소, 마무리)\n")
	default:
		sb.WriteString("- 챕터 1: 도입부와 전개 (후크, 배경 설정, 사건 발생)\n")
		sb.WriteString("- 챕터 2: 절정과 결말 (가장 극적인 순간, 마무리)\n")
	}
	return sb.String()
}

// ChapterInput - данные для запроса сценария одной главы.
type ChapterInput struct {
	Topic      string
	Category   string
	Style      model.ScriptStyle
	Chapter    model.ChapterStub
	Characters []string
	Previous   []model.ChapterStub
	Next       []model.ChapterStub
	MinLines   int
}

// MinLines - рекомендуемое минимальное число реплик для оценки длительности главы.
// Рекомендация передается модели и не проверяется в ответе.
func (b *Builder) MinLines(estimatedDuration string) int {
	minutes := duration.ParseFractionalMinutes(estimatedDuration)
	if minutes <= 0 {
		minutes = 1
	}
	return int(math.Ceil(minutes * float64(b.catalog.LinesPerMinute)))
}

// ChapterScript собирает запрос на сценарий главы с контекстом соседних глав.
func (b *Builder) ChapterScript(in ChapterInput) Prompt {
	narration := in.Style == model.StyleNarration
	minLines := in.MinLines
	if minLines <= 0 {
		minLines = b.MinLines(in.Chapter.EstimatedDuration)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\"%s\" 주제의 다음 챕터에 대한 상세 대본을 작성해주세요:\n\n", in.Topic)
	sb.WriteString("**현재 챕터 정보:**\n")
	fmt.Fprintf(&sb, "- 제목: %s\n", in.Chapter.Title)
	fmt.Fprintf(&sb, "- 목적: %s\n", in.Chapter.Purpose)
	fmt.Fprintf(&sb, "- 예상 시간: %s\n\n", in.Chapter.EstimatedDuration)

	if narration {
		fmt.Fprintf(&sb, "**등장인물:** %s\n\n", model.NarratorLabel)
	} else {
		fmt.Fprintf(&sb, "**등장인물:** %s\n\n", strings.Join(in.Characters, ", "))
	}

	if len(in.Previous) > 0 {
		sb.WriteString("**이전 챕터 요약:**\n")
		writeSummaries(&sb, in.Previous)
		sb.WriteString("\n")
	}
	if len(in.Next) > 0 {
		sb.WriteString("**다음 챕터 예정:**\n")
		writeSummaries(&sb, in.Next)
		sb.WriteString("\n")
	}

	sb.WriteString("**대본 작성 지침:**\n")
	fmt.Fprintf(&sb, "1. **분량**: 예상 시간(%s)에 맞게 풍부하고 상세한 대사를 작성하세요. 대사 개수는 최소 %d개 이상을 목표로 하세요\n", in.Chapter.EstimatedDuration, minLines)
	sb.WriteString("2. **흐름**: 이전 챕터와 자연스럽게 연결되고, 다음 챕터로 이어지도록 구성하세요\n")
	if narration {
		fmt.Fprintf(&sb, "3. **등장인물**: character는 항상 \"%s\"로 통일하세요\n", model.NarratorLabel)
	} else {
		sb.WriteString("3. **등장인물**: 지정된 등장인물 이름만 character에 사용하세요\n")
	}
	sb.WriteString("4. **타임스탬프**: 각 대사의 예상 시점을 MM:SS 형식으로, 앞 대사보다 늦거나 같은 시점으로 작성하세요\n")
	if narration {
		sb.WriteString("5. **나레이션 스타일**: 단독 나레이터가 설명하는 투의 문체로 이야기하세요\n")
	} else {
		sb.WriteString("5. **대화 스타일**: 등장인물 간의 자연스러운 대화로 이야기를 전개하세요\n")
	}
	sb.WriteString("6. **이미지 프롬프트**: 각 장면의 인물, 장소, 행동, 분위기를 담은 영어 프롬프트를 작성하세요\n")

	if b.catalog.IsStory(in.Category) {
		sb.WriteString("\n**스토리 요소:**\n")
		sb.WriteString("- 대화를 통한 자연스러운 전개\n")
		sb.WriteString("- 캐릭터 간의 상호작용\n")
		sb.WriteString("- 감정선과 긴장감 유지\n")
		sb.WriteString("- 적절한 페이스 조절\n")
	}
	sb.WriteString("\n모든 결과를 JSON 형식으로 제공해주세요.")

	return Prompt{
		System: fmt.Sprintf("당신은 '%s' 전문 YouTube 대본 작가입니다.", categoryOrDefault(in.Category)),
		User:   sb.String(),
	}
}

// Analysis собирает запрос на анализ транскрипта.
func (b *Builder) Analysis(transcript, category, videoTitle string) Prompt {
	cat := categoryOrDefault(category)
	var intro string
	if videoTitle != "" {
		intro = fmt.Sprintf("다음은 제목이 \"%s\"인 성공적인 '%s' 카테고리 YouTube 동영상입니다. 영상의 제목과 스크립트를 종합적으로 고려하여 심층적으로 분석하고, 각 항목을 지정된 구조에 맞춰 JSON 형식으로 제공해주세요:", videoTitle, cat)
	} else {
		intro = fmt.Sprintf("다음은 성공적인 '%s' 카테고리 YouTube 동영상의 스크립트입니다. 이 카테고리의 특성을 고려하여 심층적으로 분석하고, 각 항목을 지정된 구조에 맞춰 JSON 형식으로 제공해주세요:", cat)
	}
	return Prompt{
		System: fmt.Sprintf("당신은 '%s' 전문 YouTube 콘텐츠 전략가입니다. 비디오 스크립트를 분석하고 벤치마킹을 위해 핵심 요소에 대한 구조화된 분석을 제공합니다. 중요한 키워드는 **굵은 글씨**로 강조하고, 글머리 기호 대신 문단 사이에 두 번의 줄바꿈을 사용하세요.", cat),
		User:   intro + "\n\n스크립트:\n---\n" + transcript + "\n---",
	}
}

// Ideas собирает запрос на новые темы по результату анализа.
func (b *Builder) Ideas(analysis *model.AnalysisResult, category, keyword string) (Prompt, error) {
	summary := struct {
		Keywords []string                  `json:"keywords"`
		Intent   []model.StructuredContent `json:"intent"`
	}{}
	if analysis != nil {
		summary.Keywords = analysis.Keywords
		summary.Intent = analysis.Intent
	}
	raw, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return Prompt{}, fmt.Errorf("marshal analysis: %w", err)
	}

	keywordLine := ""
	if keyword != "" {
		keywordLine = fmt.Sprintf("\n\n**중요: 사용자가 원하는 키워드 \"%s\"를 반드시 포함하거나 관련된 아이디어를 생성해주세요.**", keyword)
	}

	n := b.catalog.IdeaCount
	if b.catalog.IsShopping(category) {
		return Prompt{
			System: "당신은 최신 트렌드에 밝은 쇼핑 전문가입니다. 성공적인 리뷰 영상을 분석하여 다음에 히트할 만한 리뷰 제품을 추천합니다.",
			User: fmt.Sprintf("다음은 성공적인 '%s' 영상 분석 결과입니다. 이 분석을 바탕으로 판매량이 많거나 후기가 많은 제품 중 리뷰 콘텐츠로 만들기에 적합한 제품 %d가지를 추천해주세요. 한국어로 작성하고 JSON 형식으로 제공해주세요.%s\n\n분석 내용:\n%s",
				category, n, keywordLine, raw),
		}, nil
	}
	return Prompt{
		System: "당신은 트렌드를 잘 읽는 유튜브 콘텐츠 기획자입니다. 성공 사례를 분석하여 새로운 히트 아이디어를 제안합니다.",
		User: fmt.Sprintf("다음은 성공적인 유튜브 영상 분석 결과입니다. 이 분석을 바탕으로 비슷한 성공 가능성이 있는 새롭고 창의적인 영상 주제 아이디어 %d가지를 제안해주세요. 한국어로 작성하고 JSON 형식으로 제공해주세요.%s\n\n분석 내용:\n%s",
			n, keywordLine, raw),
	}, nil
}

func writeSummaries(sb *strings.Builder, stubs []model.ChapterStub) {
	for _, ch := range stubs {
		fmt.Fprintf(sb, "- %s: %s\n", ch.Title, ch.Purpose)
	}
}

func categoryOrDefault(category string) string {
	if category == "" {
		return "일반"
	}
	return category
}
