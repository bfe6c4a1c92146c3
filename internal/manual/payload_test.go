package manual

import (
	"reflect"
	"strings"
	"testing"
)

func TestPagePayloadAggregates(t *testing.T) {
	t.Parallel()

	p := validPage()
	p.Elements[0].Keywords = []string{"torque", "boom"}
	p.Elements[1].Keywords = []string{"torque", "specifications"}
	p.Elements[1].Entities = []string{"JLG 1055"}
	p.Elements[2].Warnings = []string{"Relieve hydraulic pressure before disassembly."}

	payload, err := PagePayload(p)
	if err != nil {
		t.Fatalf("PagePayload() error = %v", err)
	}

	if payload[FieldDocumentID] != "jlg-1055-service" {
		t.Errorf("payload[%s] = %v, want jlg-1055-service", FieldDocumentID, payload[FieldDocumentID])
	}
	if payload[FieldHasTables] != true {
		t.Errorf("payload[%s] = %v, want true", FieldHasTables, payload[FieldHasTables])
	}
	if payload[FieldHasFigures] != true {
		t.Errorf("payload[%s] = %v, want true", FieldHasFigures, payload[FieldHasFigures])
	}
	if payload["table_count"] != 1 {
		t.Errorf("payload[table_count] = %v, want 1", payload["table_count"])
	}

	wantKeywords := []string{"boom", "specifications", "torque"}
	if got := payload["keywords"]; !reflect.DeepEqual(got, wantKeywords) {
		t.Errorf("payload[keywords] = %v, want %v", got, wantKeywords)
	}
	wantWarnings := []string{"Relieve hydraulic pressure before disassembly."}
	if got := payload["warnings"]; !reflect.DeepEqual(got, wantWarnings) {
		t.Errorf("payload[warnings] = %v, want %v", got, wantWarnings)
	}
}

func TestPagePayloadRejectsInvalidPage(t *testing.T) {
	t.Parallel()

	p := validPage()
	p.Number = -3
	if _, err := PagePayload(p); err == nil {
		t.Errorf("PagePayload() expected error for invalid page, got nil")
	}
}

func TestPageFromPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	p := validPage()
	payload, err := PagePayload(p)
	if err != nil {
		t.Fatalf("PagePayload() error = %v", err)
	}

	got, err := PageFromPayload(payload)
	if err != nil {
		t.Fatalf("PageFromPayload() error = %v", err)
	}

	if got.Document.ID != p.Document.ID {
		t.Errorf("document id = %v, want %v", got.Document.ID, p.Document.ID)
	}
	if got.Number != p.Number {
		t.Errorf("page number = %v, want %v", got.Number, p.Number)
	}
	if len(got.Elements) != len(p.Elements) {
		t.Fatalf("element count = %v, want %v", len(got.Elements), len(p.Elements))
	}
	if got.Elements[1].HTMLPath != p.Elements[1].HTMLPath {
		t.Errorf("table html path = %v, want %v", got.Elements[1].HTMLPath, p.Elements[1].HTMLPath)
	}
}

func TestPageFromPayloadRejectsMalformed(t *testing.T) {
	t.Parallel()

	if _, err := PageFromPayload(map[string]any{"page_number": 0}); err == nil {
		t.Errorf("PageFromPayload() expected error for malformed payload, got nil")
	}
}

func TestEmbeddingText(t *testing.T) {
	t.Parallel()

	p := validPage()
	p.Elements[2].Entities = []string{"boom pivot"}
	text := EmbeddingText(p)

	for _, want := range []string{
		"Document: JLG 1055 Service Manual (JLG, Revision Rev C)",
		"Page: 175",
		"Table: Torque Specifications",
		"Figure: Boom Pivot Assembly",
		"Full Text Content:",
		"Entities: boom pivot",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("EmbeddingText() missing %q in:\n%s", want, text)
		}
	}
}
