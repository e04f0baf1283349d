package search

import (
	"testing"

	"go-wiki-engine/internal/data"
)

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		name   string
		render string
		want   string
	}{
		{
			name:   "strips markup",
			render: "<h1>Hello</h1><p>World of <strong>wikis</strong>!</p>",
			want:   "hello world of wikis",
		},
		{
			name:   "decodes entities",
			render: "<p>caf&eacute; &amp; tea</p>",
			want:   "café tea",
		},
		{
			name:   "drops single letter tokens",
			render: "<p>a b see, I am</p>",
			want:   "see am",
		},
		{
			name:   "drops scripts",
			render: `<p>safe</p><script>alert("x")</script>`,
			want:   "safe",
		},
		{
			name:   "empty render",
			render: "",
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanHTML(tt.render); got != tt.want {
				t.Errorf("CleanHTML(%q) = %q, want %q", tt.render, got, tt.want)
			}
		})
	}
}

func TestNewIndexDoc(t *testing.T) {
	page := &data.Page{
		ID:          3,
		Path:        "docs/intro",
		LocaleCode:  "en",
		Title:       "Intro",
		Description: "getting started",
		Render:      "<p>Welcome to the wiki</p>",
		IsPublished: true,
	}
	doc := NewIndexDoc(page, []data.Tag{{Tag: "guide"}, {Tag: "beginner"}})

	if doc.ID != 3 || doc.Path != "docs/intro" || doc.LocaleCode != "en" {
		t.Errorf("identity fields wrong: %+v", doc)
	}
	if doc.SafeContent != "welcome to the wiki" {
		t.Errorf("safe content = %q", doc.SafeContent)
	}
	if len(doc.Tags) != 2 || doc.Tags[0] != "guide" {
		t.Errorf("tags = %v", doc.Tags)
	}
}
