package segmenter

import (
	"reflect"
	"strings"
	"testing"

	"sceneflow-go/internal/types"
)

func TestSegmentHeaders(t *testing.T) {
	cases := []struct {
		name   string
		script string
		want   []types.Scene
	}{
		{
			name:   "single scene with full header",
			script: "\nСЦЕНА 1. ИНТ. КАБИНЕТ - ДЕНЬ\nТекст сцены один.",
			want: []types.Scene{
				{ID: "Scene_001", Number: "1", Header: "СЦЕНА 1. ИНТ. КАБИНЕТ - ДЕНЬ", Location: "ИНТ. КАБИНЕТ", TimeOfDay: "ДЕНЬ", Placement: "ИНТ", Text: "Текст сцены один."},
			},
		},
		{
			name: "different header styles",
			script: "\n1. ИНТ. КОМНАТА - НОЧЬ\nТекст первой сцены.\n\n" +
				"2. НАТ. УЛИЦА - ДЕНЬ\nТекст второй сцены.\n\n" +
				"СЦЕНА 3. INT. OFFICE - EVENING\nТекст третьей сцены.",
			want: []types.Scene{
				{ID: "Scene_001", Number: "1", Header: "1. ИНТ. КОМНАТА - НОЧЬ", Location: "ИНТ. КОМНАТА", TimeOfDay: "НОЧЬ", Placement: "ИНТ", Text: "Текст первой сцены."},
				{ID: "Scene_002", Number: "2", Header: "2. НАТ. УЛИЦА - ДЕНЬ", Location: "НАТ. УЛИЦА", TimeOfDay: "ДЕНЬ", Placement: "НАТ", Text: "Текст второй сцены."},
				{ID: "Scene_003", Number: "3", Header: "СЦЕНА 3. INT. OFFICE - EVENING", Location: "INT. OFFICE", TimeOfDay: "EVENING", Placement: "INT", Text: "Текст третьей сцены."},
			},
		},
		{
			name:   "header without number",
			script: "\nИНТ. ЗАЛ - УТРО\nТекст сцены без номера.",
			want: []types.Scene{
				{ID: "Scene_001", Number: "1", Header: "ИНТ. ЗАЛ - УТРО", Location: "ИНТ. ЗАЛ", TimeOfDay: "УТРО", Placement: "ИНТ", Text: "Текст сцены без номера."},
			},
		},
		{
			name:   "two scenes without numbers",
			script: "ИНТ. ОФИС - ДЕНЬ\nГерой входит.\n\nНАТ. УЛИЦА - НОЧЬ\nОн уходит.",
			want: []types.Scene{
				{ID: "Scene_001", Number: "1", Header: "ИНТ. ОФИС - ДЕНЬ", Location: "ИНТ. ОФИС", TimeOfDay: "ДЕНЬ", Placement: "ИНТ", Text: "Герой входит."},
				{ID: "Scene_002", Number: "2", Header: "НАТ. УЛИЦА - НОЧЬ", Location: "НАТ. УЛИЦА", TimeOfDay: "НОЧЬ", Placement: "НАТ", Text: "Он уходит."},
			},
		},
		{
			name:   "lower case, em dash and combined marker",
			script: "int./ext. car — night\nThey drive.",
			want: []types.Scene{
				{ID: "Scene_001", Number: "1", Header: "int./ext. car — night", Location: "int./ext. car", TimeOfDay: "NIGHT", Placement: "INT/EXT", Text: "They drive."},
			},
		},
		{
			name:   "compound scene number and no time",
			script: "1-4-А. ИНТ. ПОДВАЛ\nТемно.",
			want: []types.Scene{
				{ID: "Scene_001", Number: "1-4-А", Header: "1-4-А. ИНТ. ПОДВАЛ", Location: "ИНТ. ПОДВАЛ", Placement: "ИНТ", Text: "Темно."},
			},
		},
		{
			name:   "no headers in cyrillic text",
			script: "Текст без заголовков сцен.",
			want: []types.Scene{
				{ID: "Scene_001", Number: "1", Header: "N/A", Location: "Неизвестно", TimeOfDay: "Неизвестно", Text: "Текст без заголовков сцен."},
			},
		},
		{
			name:   "no headers in latin text",
			script: "  Just some notes.\n",
			want: []types.Scene{
				{ID: "Scene_001", Number: "1", Header: "N/A", Location: "unknown", TimeOfDay: "unknown", Text: "Just some notes."},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Segment(tc.script).Scenes
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Segment() =\n%+v\nwant\n%+v", got, tc.want)
			}
		})
	}
}

func TestSegmentEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t\n"} {
		if doc := Segment(in); len(doc.Scenes) != 0 || doc.Preamble != "" {
			t.Fatalf("Segment(%q) = %+v, want empty", in, doc)
		}
	}
}

func TestSegmentAccumulatesBody(t *testing.T) {
	script := "\nСЦЕНА 1. ИНТ. КАБИНЕТ - ДЕНЬ\nНачало текста.\n\n" +
		"Продолжение текста сцены.\n\n" +
		"СЦЕНА 2. НАТ. ПАРК - ВЕЧЕР\nТекст второй сцены."
	scenes := Segment(script).Scenes
	if len(scenes) != 2 {
		t.Fatalf("got %d scenes", len(scenes))
	}
	if scenes[0].Text != "Начало текста.\n\nПродолжение текста сцены." {
		t.Fatalf("first body = %q", scenes[0].Text)
	}
	if scenes[1].Text != "Текст второй сцены." {
		t.Fatalf("second body = %q", scenes[1].Text)
	}
}

func TestSegmentKeepsPreamble(t *testing.T) {
	script := "ПОСЛЕДНИЙ ПОЕЗД\nавтор: Иванов\n\nИНТ. ВАГОН - НОЧЬ\nСтук колёс."
	doc := Segment(script)
	if doc.Preamble != "ПОСЛЕДНИЙ ПОЕЗД\nавтор: Иванов" {
		t.Fatalf("preamble = %q", doc.Preamble)
	}
	if len(doc.Scenes) != 1 || doc.Scenes[0].Text != "Стук колёс." {
		t.Fatalf("scenes = %+v", doc.Scenes)
	}
}

func TestSegmentMixedNumberingIsPositional(t *testing.T) {
	script := "12. ИНТ. КУХНЯ - УТРО\nЗавтрак.\n\nНАТ. ДВОР - ДЕНЬ\nИгра.\n\n40. ИНТ. КУХНЯ - ВЕЧЕР\nУжин."
	scenes := Segment(script).Scenes
	var got []string
	for _, s := range scenes {
		got = append(got, s.Number)
	}
	if strings.Join(got, ",") != "1,2,3" {
		t.Fatalf("numbers = %v, want positional", got)
	}
}

func TestSegmentIgnoresLookalikes(t *testing.T) {
	cases := []struct {
		script string
		bodies []string
	}{
		{"ИНТ. ОФИС - ДЕНЬ\nНАТАША входит.\nИнтерес растёт.\nEXTRA people wait.",
			[]string{"НАТАША входит.\nИнтерес растёт.\nEXTRA people wait."}},
		{"ИНТ. ОФИС - ДЕНЬ\nНат подошёл к окну.\nБ.",
			[]string{"Нат подошёл к окну.\nБ."}},
		{"INT. HOUSE - DAY\nInt the morning, he sleeps.\nExt ra text.",
			[]string{"Int the morning, he sleeps.\nExt ra text."}},
		{"ИНТ. ОФИС - ДЕНЬ\nНат подошёл.\n\nНАТ ДВОР - НОЧЬ\nТихо.",
			[]string{"Нат подошёл.", "Тихо."}},
	}
	for _, tc := range cases {
		scenes := Segment(tc.script).Scenes
		var got []string
		for _, s := range scenes {
			got = append(got, s.Text)
		}
		if !reflect.DeepEqual(got, tc.bodies) {
			t.Errorf("Segment(%q) bodies = %q, want %q", tc.script, got, tc.bodies)
		}
	}
}

func TestSegmentRepeatedNumbersArePositional(t *testing.T) {
	script := "5. ИНТ. КУХНЯ - УТРО\nЗавтрак.\n\n5. НАТ. ДВОР - ДЕНЬ\nИгра.\n\n7. ИНТ. ЗАЛ - ВЕЧЕР\nУжин."
	var got []string
	for _, s := range Segment(script).Scenes {
		got = append(got, s.Number)
	}
	if strings.Join(got, ",") != "1,2,3" {
		t.Fatalf("numbers = %v, want positional", got)
	}

	distinct := Segment("5. ИНТ. КУХНЯ - УТРО\nА.\n\n6. НАТ. ДВОР - ДЕНЬ\nБ.").Scenes
	if distinct[0].Number != "5" || distinct[1].Number != "6" {
		t.Fatalf("distinct numbers rewritten: %+v", distinct)
	}
}

func TestSegmentReconstructsDocument(t *testing.T) {
	script := "Титульный лист\n\nСЦЕНА 1. ИНТ. КАБИНЕТ - ДЕНЬ\r\nПервая   сцена.\r\n\r\n" +
		"2. НАТ. ПАРК - ВЕЧЕР\nВторая сцена.\n\nЕщё текст.\n\n3. ИНТ. ЗАЛ\nТретья."
	doc := Segment(script)

	parts := []string{doc.Preamble}
	for _, s := range doc.Scenes {
		parts = append(parts, s.Header, s.Text)
	}
	got := strings.Fields(strings.Join(parts, "\n"))
	want := strings.Fields(script)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("reconstruction mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestSegmentIsDeterministic(t *testing.T) {
	script := "ИНТ. ОФИС - ДЕНЬ\nА.\n\nНАТ. УЛИЦА - НОЧЬ\nБ.\n\nEXT. ROAD - DAWN\nC."
	first := Segment(script)
	for range 5 {
		if again := Segment(script); !reflect.DeepEqual(first, again) {
			t.Fatalf("Segment is not deterministic: %+v vs %+v", first, again)
		}
	}
	for i, s := range first.Scenes {
		if want := sceneID(i + 1); s.ID != want {
			t.Fatalf("scene %d id = %q, want %q", i, s.ID, want)
		}
	}
}
