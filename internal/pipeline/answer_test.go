package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeAnswer(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "misspelled key wins",
			body: `{"answesr": "{\"enhanced_analysis\": \"from answesr\"}", "enhanced_result": "{\"enhanced_analysis\": \"from enhanced\"}"}`,
			want: "from answesr",
		},
		{
			name: "enhanced_result as object",
			body: `{"enhanced_result": {"status": "success", "enhanced_analysis": "object form"}}`,
			want: "object form",
		},
		{
			name: "answer as plain text",
			body: `{"answer": "just text"}`,
			want: "just text",
		},
		{
			name: "result as JSON string without analysis",
			body: `{"result": "{\"foo\": 1}"}`,
			want: `{"foo": 1}`,
		},
		{
			name: "unknown keys fall back to the whole object",
			body: `{"output": "x"}`,
			want: "{\n  \"output\": \"x\"\n}",
		},
		{
			name: "non JSON body",
			body: "plain response\n",
			want: "plain response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := decodeAnswer([]byte(tt.body))
			assert.Equal(t, tt.want, resp.EnhancedResult.EnhancedAnalysis)
			assert.True(t, resp.EnhancedResult.OK())
		})
	}
}

func TestDecodeAnswer_ErrorAnalysis(t *testing.T) {
	resp := decodeAnswer([]byte(`{"enhanced_result": "{\"status\": \"error\", \"enhanced_analysis\": \"\", \"fallback_analysis\": \"Unable to provide\"}"}`))
	assert.False(t, resp.EnhancedResult.OK())
	assert.Equal(t, "Unable to provide", resp.EnhancedResult.Text())
}
