package ai

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/srmaas/errorreport/internal/middleware"
)

// System categories a report can be filed under.
const (
	CategoryStationSupport   = "역무지원"
	CategoryTrainOperation   = "열차운행"
	CategoryFacility         = "시설관리"
	CategorySecurity         = "보안시스템"
	CategoryPassengerService = "승객서비스"
	CategoryOther            = "기타"
)

var Categories = []string{
	CategoryStationSupport,
	CategoryTrainOperation,
	CategoryFacility,
	CategorySecurity,
	CategoryPassengerService,
	CategoryOther,
}

const (
	DefaultTitle = "시스템 오류"

	OfflineImageAnalysis = `이미지 분석 결과:
- 이미지가 업로드되었습니다
- 오류 관련 스크린샷으로 보이며, 시스템 인터페이스가 포함되어 있습니다
- 기술적 문제나 버그와 관련된 내용으로 추정됩니다
- 추가 분석을 위해 다시 시도해 주세요

⚠️ 오프라인 모드: 완전한 이미지 분석을 위해서는 온라인 AI 모델이 필요합니다`

	TranscriptionFailed = "음성 인식 처리 중 오류가 발생했습니다. 텍스트 입력을 사용해 주세요."
)

type keywordRule struct {
	keywords []string
	result   string
}

// Rules are checked in order; the first match wins.
var titleRules = []keywordRule{
	{[]string{"로그인", "인증"}, "로그인 시스템 오류"},
	{[]string{"화면", "페이지"}, "화면 표시 문제"},
	{[]string{"데이터", "정보"}, "데이터 처리 오류"},
	{[]string{"서버", "연결"}, "서버 연결 문제"},
	{[]string{"역무", "승객"}, "역무 지원 시스템 문제"},
	{[]string{"열차", "운행"}, "열차 운행 관련 오류"},
	{[]string{"시설", "관리"}, "시설 관리 시스템 오류"},
}

var categoryRules = []keywordRule{
	{[]string{"역무", "승객", "안내"}, CategoryStationSupport},
	{[]string{"열차", "운행", "시간표"}, CategoryTrainOperation},
	{[]string{"시설", "관리", "유지보수"}, CategoryFacility},
	{[]string{"보안", "인증", "로그인"}, CategorySecurity},
	{[]string{"서비스", "고객", "문의"}, CategoryPassengerService},
}

func matchRules(content string, rules []keywordRule, fallback string) string {
	lower := strings.ToLower(content)
	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.result
			}
		}
	}
	return fallback
}

// KeywordTitle derives a title from the first matching keyword group.
func KeywordTitle(content string) string {
	return matchRules(content, titleRules, DefaultTitle)
}

// KeywordCategory classifies content by the first matching keyword group.
func KeywordCategory(content string) string {
	return matchRules(content, categoryRules, CategoryOther)
}

// IsCategory reports whether s is one of the known system categories.
func IsCategory(s string) bool {
	for _, c := range Categories {
		if c == s {
			return true
		}
	}
	return false
}

// FallbackAnalysis renders the deterministic analysis report used when no
// model answer is available.
func FallbackAnalysis(kind string, data AnalysisData) string {
	rate := 0
	if data.TotalErrors > 0 {
		rate = int(math.Round(float64(data.ResolvedErrors) / float64(data.TotalErrors) * 100))
	}
	top := CategoryStationSupport
	if len(data.CategoryStats) > 0 && data.CategoryStats[0].Category != "" {
		top = data.CategoryStats[0].Category
	}

	return fmt.Sprintf(`AI 분석 결과 (%s):

📊 현재 상황 분석
• 총 %d건의 오류가 기록되었습니다
• 해결률: %d%%
• 주요 문제 영역: %s 시스템

⚠️ 주요 패턴
• 특정 시간대나 요일에 오류 집중 발생 가능성
• 시스템 간 연관 오류 발생 패턴 주의
• 반복적인 오류 유형에 대한 근본 원인 분석 필요

💡 권고사항
• 정기적인 시스템 점검 및 모니터링 강화
• 오류 예방을 위한 사전 점검 체계 구축
• 담당자 교육 및 대응 매뉴얼 업데이트`, kind, data.TotalErrors, rate, top)
}

// Heuristic answers every request locally without contacting a model.
type Heuristic struct {
	speech *SpeechRecognizer
}

// NewHeuristic returns the offline assistant. speech may be nil.
func NewHeuristic(speech *SpeechRecognizer) *Heuristic {
	return &Heuristic{speech: speech}
}

func (h *Heuristic) GenerateTitle(ctx context.Context, content string) string {
	middleware.RecordAICall(OpGenerateTitle, middleware.OutcomeOffline, 0)
	return KeywordTitle(content)
}

func (h *Heuristic) ClassifySystem(ctx context.Context, content string) string {
	middleware.RecordAICall(OpClassifySystem, middleware.OutcomeOffline, 0)
	return KeywordCategory(content)
}

func (h *Heuristic) AnalyzeImage(ctx context.Context, image []byte) string {
	middleware.RecordAICall(OpAnalyzeImage, middleware.OutcomeOffline, 0)
	return OfflineImageAnalysis
}

func (h *Heuristic) TranscribeAudio(ctx context.Context, audio []byte) string {
	if h.speech == nil {
		middleware.RecordAICall(OpTranscribeAudio, middleware.OutcomeOffline, 0)
		return TranscriptionFailed
	}
	return h.speech.Transcribe(ctx, audio)
}

func (h *Heuristic) GenerateAnalysis(ctx context.Context, kind string, data AnalysisData) string {
	middleware.RecordAICall(OpGenerateAnalysis, middleware.OutcomeOffline, 0)
	return FallbackAnalysis(kind, data)
}
