package llm

// TitlePrompt accepts the report content.
const TitlePrompt = `다음 오류 내용을 바탕으로 간결하고 명확한 제목을 생성해주세요. 제목만 반환하세요.

오류 내용: %s

제목:`

// ClassifyPrompt accepts the report content.
const ClassifyPrompt = `다음 오류 내용을 분석하여 가장 적절한 시스템 분류를 선택해주세요. 분류명만 반환하세요.

가능한 분류: 역무지원, 열차운행, 시설관리, 보안시스템, 승객서비스, 기타

오류 내용: %s

분류:`

const ImagePrompt = `이 이미지는 철도 역무 시스템의 오류 화면입니다. 화면에 보이는 오류 메시지, 영향을 받는 기능, 추정 원인을 한국어로 간결하게 분석해주세요.`

// PatternPrompt accepts total errors, resolved errors, the last four weekly
// stats as JSON and the category distribution as JSON.
const PatternPrompt = `다음 오류 데이터를 분석하여 패턴과 인사이트를 제공해주세요:

총 오류: %d건
해결된 오류: %d건
주간 통계: %s
시스템별 분포: %s

분석 결과를 다음 형식으로 제공해주세요:
1. 주요 패턴
2. 위험 요소
3. 개선 권고사항`

// TrendPrompt accepts the weekly stats and the category distribution as JSON.
const TrendPrompt = `오류 트렌드 데이터를 분석하여 향후 전망을 제공해주세요:

주간 데이터: %s
시스템 분포: %s

다음 관점에서 분석해주세요:
1. 트렌드 방향성
2. 예상 위험도
3. 예방 조치`

// SummaryPrompt accepts new, in-progress and completed counts and the top
// three categories as JSON.
const SummaryPrompt = `오류 관리 시스템의 전체 현황을 요약해주세요:

현재 상태:
- 신규 오류: %d건
- 처리중: %d건
- 완료: %d건

주요 시스템: %s

종합 평가와 우선순위를 제시해주세요.`

// OverviewPrompt accepts the full analysis data as JSON.
const OverviewPrompt = `오류 관리 데이터를 종합적으로 분석해주세요: %s`
