// Package seed fills an empty database with sample reports for development.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/srmaas/errorreport/internal/model"
	"go.uber.org/zap"
)

// ErrUnknownReporter is returned when the reporter the demo reports would be
// filed under does not exist.
var ErrUnknownReporter = errors.New("seed reporter does not exist")

type ReportStore interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	CountErrors(ctx context.Context) (int64, error)
	CreateError(ctx context.Context, report *model.ErrorReport) (*model.ErrorReport, error)
}

func strPtr(s string) *string { return &s }

// DemoReports returns the sample reports, one per system category and status.
func DemoReports() []model.ErrorReport {
	return []model.ErrorReport{
		{
			Title:    "로그인 시스템 오류",
			Content:  "역무 단말기에서 로그인 시 인증 서버 응답이 없다는 메시지가 표시됩니다.",
			Priority: "높음",
			System:   "보안시스템",
			Status:   model.StatusReceived,
			Browser:  strPtr("Chrome 126"),
			OS:       strPtr("Windows 10"),
		},
		{
			Title:    "열차 운행 관련 오류",
			Content:  "2호선 열차 운행 시간표가 실제 도착 시간과 5분 이상 차이 납니다.",
			Priority: "긴급",
			System:   "열차운행",
			Status:   model.StatusInProgress,
		},
		{
			Title:   "역무 지원 시스템 문제",
			Content: "승객 안내 방송 예약 화면에서 저장 버튼이 동작하지 않습니다.",
			System:  "역무지원",
			Status:  model.StatusReceived,
			Browser: strPtr("Edge 125"),
			OS:      strPtr("Windows 11"),
		},
		{
			Title:    "시설 관리 시스템 오류",
			Content:  "에스컬레이터 유지보수 일정이 시설 관리 화면에 중복으로 표시됩니다.",
			Priority: "낮음",
			System:   "시설관리",
			Status:   model.StatusCompleted,
		},
		{
			Title:   "서버 연결 문제",
			Content: "고객 문의 접수 페이지에서 간헐적으로 서버 연결이 끊어집니다.",
			System:  "승객서비스",
			Status:  model.StatusOnHold,
		},
		{
			Title:   "데이터 처리 오류",
			Content: "월간 승하차 통계 데이터 내보내기 결과가 비어 있습니다.",
			System:  "기타",
			Status:  model.StatusCompleted,
		},
	}
}

// Run inserts the demo reports when no report exists yet and returns how
// many were inserted.
func Run(ctx context.Context, store ReportStore, reporterID string, logger *zap.Logger) (int, error) {
	count, err := store.CountErrors(ctx)
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	if count > 0 {
		logger.Info("demo data skipped", zap.Int64("existing", count))
		return 0, nil
	}

	reporter, err := store.GetUser(ctx, reporterID)
	if err != nil {
		return 0, fmt.Errorf("load reporter: %w", err)
	}
	if reporter == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownReporter, reporterID)
	}

	inserted := 0
	for _, report := range DemoReports() {
		report.ReporterID = reporterID
		if _, err := store.CreateError(ctx, &report); err != nil {
			return inserted, fmt.Errorf("seed %q: %w", report.Title, err)
		}
		inserted++
	}

	logger.Info("demo data seeded", zap.Int("reports", inserted))
	return inserted, nil
}
