package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReport_Finalize_StatusSortAndUTC(t *testing.T) {
	r := RunReport{
		Command:    "sponsors",
		Root:       "/abs/site",
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Pruned:     []string{"c.png", "a.png", "b.png"},
	}

	r.Finalize()

	assert.Equal(t, StatusOK, r.Status, "无 error_code 时 status 应为 ok")
	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, r.Pruned)
	assert.NotNil(t, r.Sources, "sources 应归一为空切片")

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"started_at":"2026-02-09T02:00:00Z"`)
	assert.Contains(t, string(b), `"sources":[]`)
}

func TestRunReport_Finalize_Failed(t *testing.T) {
	r := RunReport{ErrorCode: ErrCodeTransportFailed, ErrorMsg: "HTTP 502"}
	r.Finalize()
	assert.Equal(t, StatusFailed, r.Status)
	assert.True(t, r.Failed())
}
