package format

import "testing"

func TestUTF16Len(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"abc", 3},
		{"ação", 4},
		{"💊", 2},
		{"💊 x", 4},
	}
	for _, tt := range tests {
		if got := UTF16Len(tt.in); got != tt.want {
			t.Fatalf("UTF16Len(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseMarkdown(t *testing.T) {
	type entity struct {
		kind           string
		offset, length int
	}
	tests := []struct {
		name     string
		in       string
		text     string
		entities []entity
	}{
		{
			name: "plain",
			in:   "hello",
			text: "hello",
		},
		{
			name:     "bold after emoji",
			in:       "💊 **Aspirin**",
			text:     "💊 Aspirin",
			entities: []entity{{"bold", 3, 7}},
		},
		{
			name:     "code before bold keeps offsets",
			in:       "`#3` **Aspirin** 1 pill",
			text:     "#3 Aspirin 1 pill",
			entities: []entity{{"code", 0, 2}, {"bold", 3, 7}},
		},
		{
			name:     "header becomes bold",
			in:       "# Reminders\nnone",
			text:     "Reminders\nnone",
			entities: []entity{{"bold", 0, 9}},
		},
		{
			name:     "italic",
			in:       "next: _tomorrow_",
			text:     "next: tomorrow",
			entities: []entity{{"italic", 6, 8}},
		},
		{
			name: "underscores inside words stay",
			in:   "vitamin_d_3",
			text: "vitamin_d_3",
		},
		{
			name: "trailing whitespace trimmed",
			in:   "done \n\n",
			text: "done",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMarkdown(tt.in)
			if got.Text != tt.text {
				t.Fatalf("text = %q, want %q", got.Text, tt.text)
			}
			if len(got.Entities) != len(tt.entities) {
				t.Fatalf("got %d entities, want %d: %+v", len(got.Entities), len(tt.entities), got.Entities)
			}
			for i, want := range tt.entities {
				e := got.Entities[i]
				if e.Type != want.kind || e.Offset != want.offset || e.Length != want.length {
					t.Fatalf("entity %d = %+v, want %+v", i, e, want)
				}
			}
		})
	}
}
