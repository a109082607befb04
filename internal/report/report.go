// Package report partitions a batch's outcomes and renders the notification text.
package report

import (
	"strings"

	"github.com/crucial707/autosignin/internal/models"
)

// Title is the fixed notification title.
const Title = "站点签到助手"

const (
	header        = "站点签到完成"
	successMarker = "✅ 成功："
	failureMarker = "❌ 失败："
)

// BatchReport lists target ids by result, in batch order.
type BatchReport struct {
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`
}

// Aggregate splits outcomes into succeeded and failed, keeping their order.
func Aggregate(outcomes []models.Outcome) BatchReport {
	var r BatchReport
	for _, o := range outcomes {
		if o.Success {
			r.Succeeded = append(r.Succeeded, o.Target)
		} else {
			r.Failed = append(r.Failed, o.Target)
		}
	}
	return r
}

// Render returns the header line followed by a success and a failure line;
// an empty partition gets no line at all.
func Render(r BatchReport) string {
	lines := []string{header}
	if len(r.Succeeded) > 0 {
		lines = append(lines, successMarker+strings.Join(r.Succeeded, ", "))
	}
	if len(r.Failed) > 0 {
		lines = append(lines, failureMarker+strings.Join(r.Failed, ", "))
	}
	return strings.Join(lines, "\n")
}
