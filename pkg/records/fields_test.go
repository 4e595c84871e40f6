package records

import (
	"testing"
	"time"

	"lostfound/pkg/domain"
)

func TestDisplayFieldsOrdersAndLabels(t *testing.T) {
	obj := domain.FoundObject{
		ID:          "abc",
		Ref:         "FND0042",
		Type:        "Valise",
		Description: "Valise rigide bleue",
		Location:    "Porte B12",
		VolID:       "AF334",
		Status:      domain.FoundStatusFound,
		Image:       "https://cdn.example.com/lostfound/found_images/a.jpg",
		DocPath:     "/foundObjects/abc",
		CreatedAt:   time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	fields := DisplayFields("found", AsMap(obj))

	if len(fields) == 0 {
		t.Fatal("expected display fields")
	}
	if fields[0].Key != "ref" || fields[0].Label != "Référence" {
		t.Fatalf("first field = %+v, want ref/Référence", fields[0])
	}
	for i := 1; i < len(fields); i++ {
		if fields[i].Order < fields[i-1].Order {
			t.Fatalf("fields out of order: %q before %q", fields[i-1].Key, fields[i].Key)
		}
	}
	for _, f := range fields {
		if f.Key == "id" || f.Key == "docPath" {
			t.Fatalf("hidden field %q leaked into display", f.Key)
		}
		if f.Key == "pickupLocation" || f.Key == "email" {
			t.Fatalf("empty field %q should be dropped", f.Key)
		}
	}
}

func TestDisplayFieldsHidesEmbeddingsAndFallsBack(t *testing.T) {
	item := map[string]any{
		"ref":          "FND0001",
		"embedding":    []any{0.1, 0.2},
		"searchVector": "v",
		"customNote":   "fragile",
	}

	fields := DisplayFields("found", item)

	var sawCustom bool
	for _, f := range fields {
		switch f.Key {
		case "embedding", "searchVector":
			t.Fatalf("embedding field %q leaked into display", f.Key)
		case "customNote":
			sawCustom = true
			if f.Label != "Custom Note" {
				t.Fatalf("fallback label = %q", f.Label)
			}
			if f.Order != fallbackOrder {
				t.Fatalf("fallback order = %d", f.Order)
			}
		}
	}
	if !sawCustom {
		t.Fatal("extension field missing from display")
	}
}

func TestDisplayFieldsCarryFormattedText(t *testing.T) {
	score := DisplayFields("matches", map[string]any{"score": 0.91})
	if len(score) != 1 || score[0].Text != "91.0%" {
		t.Fatalf("score field = %+v, want text 91.0%%", score)
	}

	colors := DisplayFields("lost", map[string]any{"color": []any{"rouge", "noir"}})
	if len(colors) != 1 || colors[0].Text != "rouge, noir" {
		t.Fatalf("color field = %+v, want text rouge, noir", colors)
	}
}

func TestAsMapFlattensExtra(t *testing.T) {
	obj := domain.FoundObject{
		Ref:   "FND0007",
		Extra: domain.Extra{"customNote": "fragile", "ref": "should-not-override"},
	}
	m := AsMap(obj)
	if m["customNote"] != "fragile" {
		t.Fatalf("extension field not flattened: %v", m["customNote"])
	}
	if m["ref"] != "FND0007" {
		t.Fatalf("modeled field overridden by extension: %v", m["ref"])
	}
	if _, ok := m["extra"]; ok {
		t.Fatal("extra map should not survive flattening")
	}
}

func TestFallbackLabel(t *testing.T) {
	tests := map[string]string{
		"pickupLocation": "Pickup Location",
		"status":         "Status",
		"PNR":            "P N R",
		"":               "",
	}
	for in, want := range tests {
		if got := FallbackLabel(in); got != want {
			t.Fatalf("FallbackLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	if got := FormatValue(0.874, KindPercentage); got != "87.4%" {
		t.Fatalf("percentage = %q", got)
	}
	if got := FormatValue([]string{"rouge", "noir"}, KindArray); got != "rouge, noir" {
		t.Fatalf("array = %q", got)
	}
	if got := FormatValue("", KindText); got != "N/A" {
		t.Fatalf("empty = %q", got)
	}
	if got := FormatValue("Porte B12", KindText); got != "Porte B12" {
		t.Fatalf("text = %q", got)
	}
}
