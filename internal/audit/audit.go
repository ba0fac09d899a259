// Package audit scans stored reports for data problems: unknown statuses or
// systems, blank titles, dangling attachments and reports whose text points
// to a different system than the one recorded.
package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/srmaas/errorreport/internal/ai"
	"github.com/srmaas/errorreport/internal/model"
	"github.com/srmaas/errorreport/internal/storage"
	"github.com/srmaas/errorreport/internal/validator"
)

// Issue types
const (
	IssueStatusUnknown     = "STATUS_UNKNOWN"
	IssueCategoryUnknown   = "CATEGORY_UNKNOWN"
	IssueCategoryMismatch  = "CATEGORY_MISMATCH"
	IssueEmptyTitle        = "EMPTY_TITLE"
	IssueAttachmentInvalid = "ATTACHMENT_INVALID"
	IssueAttachmentMissing = "ATTACHMENT_MISSING"
)

type Issue struct {
	ReportID int64  `json:"reportId"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	Details  string `json:"details"`
}

// Source streams reports in batches.
type Source interface {
	ListAllErrors(ctx context.Context, opts storage.ListOptions, fn func([]model.ErrorReport) error) error
}

// FileChecker reports whether an attachment reference resolves to a file.
type FileChecker interface {
	Exists(ref string) bool
}

type Summary struct {
	Total   int64  `json:"total"`
	Issues  int    `json:"issues"`
	Elapsed string `json:"elapsed"`
}

type Result struct {
	Summary      Summary            `json:"summary"`
	IssuesByType map[string][]Issue `json:"issuesByType"`
	Issues       []Issue            `json:"issues"`
}

// Check audits a single report. files may be nil to skip the attachment
// existence check.
func Check(report model.ErrorReport, files FileChecker) []Issue {
	var issues []Issue
	add := func(typ, details string) {
		issues = append(issues, Issue{ReportID: report.ID, Title: report.Title, Type: typ, Details: details})
	}

	if !model.IsValidStatus(report.Status) {
		add(IssueStatusUnknown, fmt.Sprintf("Status '%s' is not a workflow status", report.Status))
	}

	if strings.TrimSpace(report.Title) == "" {
		add(IssueEmptyTitle, "Title is empty")
	}

	if !ai.IsCategory(report.System) {
		add(IssueCategoryUnknown, fmt.Sprintf("System '%s' is not a known category", report.System))
	} else if suggested := ai.KeywordCategory(report.Title + " " + report.Content); suggested != ai.CategoryOther && suggested != report.System {
		add(IssueCategoryMismatch, fmt.Sprintf("Filed under '%s' but keywords suggest '%s'", report.System, suggested))
	}

	for _, ref := range report.Attachments {
		if !validator.IsAttachmentPath(ref) {
			add(IssueAttachmentInvalid, fmt.Sprintf("Attachment '%s' is not an upload path", ref))
			continue
		}
		if files != nil && !files.Exists(ref) {
			add(IssueAttachmentMissing, fmt.Sprintf("Attachment '%s' does not exist", ref))
		}
	}

	return issues
}

// Run audits every report using a pool of workers. progress, when non-nil,
// is called after each report with the running totals.
func Run(ctx context.Context, source Source, files FileChecker, workers int, progress func(processed, issues int64)) (*Result, error) {
	if workers < 1 {
		workers = 1
	}
	startTime := time.Now()

	reportChan := make(chan model.ErrorReport, workers*10)
	issueChan := make(chan Issue, 100)

	var processed, issueCount int64
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for report := range reportChan {
				for _, issue := range Check(report, files) {
					issueChan <- issue
					atomic.AddInt64(&issueCount, 1)
				}
				p := atomic.AddInt64(&processed, 1)
				if progress != nil {
					progress(p, atomic.LoadInt64(&issueCount))
				}
			}
		}()
	}

	// Collect issues
	var issues []Issue
	done := make(chan struct{})
	go func() {
		for issue := range issueChan {
			issues = append(issues, issue)
		}
		close(done)
	}()

	err := source.ListAllErrors(ctx, storage.ListOptions{}, func(batch []model.ErrorReport) error {
		for _, report := range batch {
			select {
			case reportChan <- report:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	close(reportChan)
	wg.Wait()
	close(issueChan)
	<-done

	if err != nil {
		return nil, fmt.Errorf("scan reports: %w", err)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].ReportID != issues[j].ReportID {
			return issues[i].ReportID < issues[j].ReportID
		}
		return issues[i].Type < issues[j].Type
	})

	byType := make(map[string][]Issue)
	for _, issue := range issues {
		byType[issue.Type] = append(byType[issue.Type], issue)
	}
	if issues == nil {
		issues = []Issue{}
	}

	return &Result{
		Summary: Summary{
			Total:   processed,
			Issues:  len(issues),
			Elapsed: time.Since(startTime).String(),
		},
		IssuesByType: byType,
		Issues:       issues,
	}, nil
}
