package separator

import "testing"

func TestParseLine(t *testing.T) {
	tests := []struct {
		line   string
		ok     bool
		status string
		errMsg string
	}{
		{`{"status":"progress","progress":42}`, true, StatusProgress, ""},
		{`  {"error":"Demucs failed","code":1,"details":"x"}  `, true, "", "Demucs failed: x"},
		{`{"error":"Output stems missing","path":"/tmp"}`, true, "", "Output stems missing"},
		{`Downloading model...`, false, "", ""},
		{`{"status":`, false, "", ""},
		{``, false, "", ""},
	}
	for _, tt := range tests {
		msg, ok := ParseLine(tt.line)
		if ok != tt.ok {
			t.Fatalf("ParseLine(%q) ok = %v, want %v", tt.line, ok, tt.ok)
		}
		if !ok {
			continue
		}
		if msg.Status != tt.status {
			t.Fatalf("ParseLine(%q) status = %q, want %q", tt.line, msg.Status, tt.status)
		}
		if tt.errMsg != "" && (!msg.IsError() || msg.ErrorText() != tt.errMsg) {
			t.Fatalf("ParseLine(%q) error = %q, want %q", tt.line, msg.ErrorText(), tt.errMsg)
		}
		if tt.errMsg == "" && msg.IsError() {
			t.Fatalf("ParseLine(%q) unexpected error %q", tt.line, msg.ErrorText())
		}
	}
}
