package genailive

import (
	"encoding/base64"
	"testing"

	"google.golang.org/genai"

	"github.com/MostafaRabia/mixer-fixer/pkg/core/live"
)

func TestConvertServerMessage_Audio(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	msg := &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			ModelTurn: &genai.Content{
				Parts: []*genai.Part{
					{InlineData: &genai.Blob{Data: pcm, MIMEType: "audio/pcm;rate=24000"}},
					{Text: "transcription, not audio"},
					nil,
				},
			},
		},
	}

	out := convertServerMessage(msg)
	if len(out) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out))
	}
	if out[0].AudioB64 != base64.StdEncoding.EncodeToString(pcm) {
		t.Errorf("audio payload not re-encoded: %q", out[0].AudioB64)
	}
	if out[0].Interrupted {
		t.Error("spurious interrupted flag")
	}
}

func TestConvertServerMessage_InterruptedPrecedesAudio(t *testing.T) {
	msg := &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			Interrupted: true,
			ModelTurn: &genai.Content{
				Parts: []*genai.Part{
					{InlineData: &genai.Blob{Data: []byte{0x00, 0x00}}},
				},
			},
		},
	}

	out := convertServerMessage(msg)
	if len(out) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(out))
	}
	// The flush signal must reach the scheduler before the new audio.
	if !out[0].Interrupted {
		t.Error("interrupted flag must come first")
	}
	if out[1].AudioB64 == "" {
		t.Error("audio payload missing")
	}
}

func TestConvertServerMessage_ToolCalls(t *testing.T) {
	msg := &genai.LiveServerMessage{
		ToolCall: &genai.LiveServerToolCall{
			FunctionCalls: []*genai.FunctionCall{
				{ID: "call-1", Name: live.InstructionToolName, Args: map[string]any{
					"action":  "fix_hum",
					"message": "افصل كابل الطاقة عن علبة التوصيل",
				}},
				nil,
			},
		},
	}

	out := convertServerMessage(msg)
	if len(out) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out))
	}
	calls := out[0].ToolCalls
	if len(calls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(calls))
	}
	if calls[0].ID != "call-1" || calls[0].Name != live.InstructionToolName {
		t.Errorf("tool call identity lost: %+v", calls[0])
	}
	if calls[0].Args["action"] != "fix_hum" {
		t.Errorf("tool call args lost: %+v", calls[0].Args)
	}
}

func TestConvertServerMessage_Empty(t *testing.T) {
	if out := convertServerMessage(nil); out != nil {
		t.Errorf("nil message converted to %v", out)
	}
	if out := convertServerMessage(&genai.LiveServerMessage{}); len(out) != 0 {
		t.Errorf("empty message converted to %v", out)
	}
}

func TestInstructionTool_DeclaresAllActions(t *testing.T) {
	tool := instructionTool()
	if len(tool.FunctionDeclarations) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(tool.FunctionDeclarations))
	}
	decl := tool.FunctionDeclarations[0]
	if decl.Name != live.InstructionToolName {
		t.Errorf("wrong tool name %q", decl.Name)
	}

	action := decl.Parameters.Properties["action"]
	if action == nil {
		t.Fatal("missing action property")
	}
	if len(action.Enum) != 10 {
		t.Errorf("expected 10 actions, got %d: %v", len(action.Enum), action.Enum)
	}
	if decl.Parameters.Properties["message"] == nil {
		t.Error("missing message property")
	}
	if len(decl.Parameters.Required) != 2 {
		t.Errorf("both fields are required, got %v", decl.Parameters.Required)
	}
}

func TestNewDialer_DefaultModel(t *testing.T) {
	d := NewDialer(Config{APIKey: "k"})
	if d.cfg.Model != DefaultModel {
		t.Errorf("expected default model, got %q", d.cfg.Model)
	}

	d = NewDialer(Config{APIKey: "k", Model: "gemini-2.0-flash-exp"})
	if d.cfg.Model != "gemini-2.0-flash-exp" {
		t.Errorf("model override lost, got %q", d.cfg.Model)
	}
}
