package handlers

import "testing"

func TestETagMatches(t *testing.T) {
	tag := contentETag([]byte(`[{"id":"c1"}]`))

	cases := []struct {
		header string
		want   bool
	}{
		{"", false},
		{"*", true},
		{tag, true},
		{"W/" + tag, true},
		{`"other", ` + tag, true},
		{`"other"`, false},
	}

	for _, tc := range cases {
		if got := etagMatches(tc.header, tag); got != tc.want {
			t.Fatalf("etagMatches(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}

	if contentETag([]byte(`[]`)) == tag {
		t.Fatalf("different bodies must not share an ETag")
	}
}
