package notify

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Status is the overall result of a test run
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// ParseStatus accepts "success" or "failure" in any case
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(s)); st {
	case StatusSuccess, StatusFailure:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q (want success or failure)", s)
}

// WorkflowInfo describes the CI run that produced the results
type WorkflowInfo struct {
	Repository string
	Branch     string
	Commit     string
	RunURL     string
}

// WorkflowFromEnv reads the GitHub Actions variables of the current run
func WorkflowFromEnv(lookup func(string) string) WorkflowInfo {
	if lookup == nil {
		lookup = os.Getenv
	}

	info := WorkflowInfo{
		Repository: lookup("GITHUB_REPOSITORY"),
		Branch:     lookup("GITHUB_REF_NAME"),
		Commit:     lookup("GITHUB_SHA"),
	}
	if runID := lookup("GITHUB_RUN_ID"); runID != "" {
		info.RunURL = fmt.Sprintf("%s/%s/actions/runs/%s", lookup("GITHUB_SERVER_URL"), info.Repository, runID)
	}
	return info
}

// BuildMessage renders the WhatsApp body for a run finished at ts. The
// dashboard URL is only shown for successful runs.
func BuildMessage(status Status, dashboardURL string, info WorkflowInfo, ts time.Time) string {
	var b strings.Builder
	stamp := ts.Format("2006-01-02 15:04:05")

	if status == StatusSuccess {
		b.WriteString("🎉 *E2E Tests Completed Successfully!*\n\n")
		b.WriteString("✅ *Status:* PASSED\n")
		fmt.Fprintf(&b, "📊 *Live Dashboard:* %s\n", dashboardURL)
		fmt.Fprintf(&b, "📅 *Completed:* %s", stamp)
	} else {
		b.WriteString("🚨 *E2E Tests Failed!*\n\n")
		b.WriteString("❌ *Status:* FAILED\n")
		b.WriteString("🔍 *Check logs for details*\n")
		fmt.Fprintf(&b, "📅 *Failed at:* %s", stamp)
	}

	if info.Repository != "" {
		fmt.Fprintf(&b, "\n📁 *Repository:* %s", info.Repository)
	}
	if info.Branch != "" {
		fmt.Fprintf(&b, "\n🌿 *Branch:* %s", info.Branch)
	}
	if info.Commit != "" {
		commit := info.Commit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		fmt.Fprintf(&b, "\n💾 *Commit:* %s", commit)
	}
	if info.RunURL != "" {
		fmt.Fprintf(&b, "\n🔗 *Full Results:* %s", info.RunURL)
	}
	return b.String()
}
