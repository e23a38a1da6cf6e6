package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPass(t *testing.T) {
	before := testutil.ToFloat64(statePasses)
	RecordPass(3 * time.Millisecond)
	RecordPass(time.Millisecond)
	assert.Equal(t, before+2, testutil.ToFloat64(statePasses))
}

func TestRecordRuleEvaluation(t *testing.T) {
	tests := []struct {
		effect  string
		matched bool
		label   string
	}{
		{"hidden", true, "true"},
		{"visible", false, "false"},
	}
	for _, tt := range tests {
		t.Run(tt.effect, func(t *testing.T) {
			c := ruleEvaluations.With(prometheus.Labels{"effect": tt.effect, "matched": tt.label})
			before := testutil.ToFloat64(c)
			RecordRuleEvaluation(tt.effect, tt.matched)
			assert.Equal(t, before+1, testutil.ToFloat64(c))
		})
	}
}

func TestRecordReload(t *testing.T) {
	ok := ruleReloads.WithLabelValues("success")
	failed := ruleReloads.WithLabelValues("error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	RecordReload(true)
	RecordReload(false)
	RecordReload(false)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+2, testutil.ToFloat64(failed))
}

func TestHandler(t *testing.T) {
	RecordExpressionFault()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "formrules_expression_faults_total"), body)
}
