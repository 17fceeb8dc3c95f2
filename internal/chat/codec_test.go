package chat

import (
	"strings"
	"testing"
)

func TestPartsRoundTrip(t *testing.T) {
	parts := []Part{
		{Type: PartText, Text: "hello world"},
		{Type: PartFile, URL: "https://files.example/a.png", Name: "a.png"},
	}
	decoded := DecodeParts(EncodeParts(parts))
	if len(decoded) != 2 {
		t.Fatalf("decoded %d parts, want 2", len(decoded))
	}
	if decoded[0] != parts[0] || decoded[1] != parts[1] {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestAttachmentsRoundTrip(t *testing.T) {
	atts := []Attachment{
		{URL: "https://files.example/report.pdf", Name: "report.pdf", ContentType: "application/pdf"},
	}
	decoded := DecodeAttachments(EncodeAttachments(atts))
	if len(decoded) != 1 || decoded[0] != atts[0] {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestEmptySequencesEncodeToEmptyArray(t *testing.T) {
	if got := EncodeParts(nil); got != "[]" {
		t.Fatalf("EncodeParts(nil) = %q", got)
	}
	if got := EncodeAttachments(nil); got != "[]" {
		t.Fatalf("EncodeAttachments(nil) = %q", got)
	}
}

func TestMalformedBlobsDecodeToEmpty(t *testing.T) {
	for _, raw := range []string{"", "{", "not json", `{"type":"text"}`, "null"} {
		if got := DecodeParts(raw); len(got) != 0 {
			t.Fatalf("DecodeParts(%q) = %+v, want empty", raw, got)
		}
		if got := DecodeAttachments(raw); len(got) != 0 {
			t.Fatalf("DecodeAttachments(%q) = %+v, want empty", raw, got)
		}
	}
}

func TestFirstTextSkipsNonTextParts(t *testing.T) {
	parts := []Part{
		{Type: PartFile, URL: "https://files.example/a.png"},
		{Type: PartText, Text: "caption"},
	}
	if got := firstText(parts); got != "caption" {
		t.Fatalf("firstText = %q", got)
	}
	if got := firstText(nil); got != "" {
		t.Fatalf("firstText(nil) = %q", got)
	}
}

func TestSystemPromptComposition(t *testing.T) {
	base := systemPrompt("chat-model", RequestHints{})
	if base != regularPrompt {
		t.Fatalf("base prompt = %q", base)
	}

	reasoning := systemPrompt("chat-model-reasoning", RequestHints{})
	if reasoning == base {
		t.Fatal("reasoning model should extend the base prompt")
	}

	hinted := systemPrompt("chat-model", RequestHints{City: "Osaka", Country: "JP", Latitude: "34.69", Longitude: "135.50"})
	for _, want := range []string{"Osaka", "JP", "34.69", "135.50"} {
		if !strings.Contains(hinted, want) {
			t.Fatalf("hinted prompt missing %q: %q", want, hinted)
		}
	}
}
