package scanner

import "testing"

func strp(s string) *string { return &s }
func intp(n int) *int       { return &n }

func TestParseFilenameCanonical(t *testing.T) {
	p := ParseFilename("[一般コミック] [あだちみつる] [原作太郎x作画次郎] 風の物語 第3巻.zip")

	if p.Title != "風の物語" {
		t.Errorf("Title = %q, want 風の物語", p.Title)
	}
	if p.AuthorReading == nil || *p.AuthorReading != "あだちみつる" {
		t.Errorf("AuthorReading = %v, want あだちみつる", deref(p.AuthorReading))
	}
	if p.OriginalAuthor == nil || *p.OriginalAuthor != "原作太郎" {
		t.Errorf("OriginalAuthor = %v, want 原作太郎", deref(p.OriginalAuthor))
	}
	if p.Artist == nil || *p.Artist != "作画次郎" {
		t.Errorf("Artist = %v, want 作画次郎", deref(p.Artist))
	}
	if p.VolumeNumber == nil || *p.VolumeNumber != 3 {
		t.Errorf("VolumeNumber = %v, want 3", p.VolumeNumber)
	}
	if p.VolumeRange != nil {
		t.Errorf("VolumeRange = %q, want nil", *p.VolumeRange)
	}
}

func TestParseFilenameCascade(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		title  string
		artist *string
		volNum *int
		volRng *string
	}{
		{
			name:   "lone author name is the artist",
			in:     "[tag] [よみかた] [一人作家] 独りの話 第1巻.cbz",
			title:  "独りの話",
			artist: strp("一人作家"),
			volNum: intp(1),
		},
		{
			name:   "zero padded volume",
			in:     "[tag] [よみ] [作家] 短編 第07巻.zip",
			title:  "短編",
			artist: strp("作家"),
			volNum: intp(7),
		},
		{
			name:   "volume range",
			in:     "[tag] [よみ] [作家] 合本 第1-3巻.zip",
			title:  "合本",
			artist: strp("作家"),
			volRng: strp("1-3"),
		},
		{
			name:   "multiplication sign separator",
			in:     "[tag] [よみ] [原作×作画] 二人三脚 第2巻.zip",
			title:  "二人三脚",
			artist: strp("作画"),
			volNum: intp(2),
		},
		{
			name:   "embedded volume marker without trailing position",
			in:     "[tag] [よみ] [作家] 第5巻 後日談.zip",
			title:  "後日談",
			artist: strp("作家"),
			volNum: intp(5),
		},
		{
			name:   "no volume marker at all",
			in:     "[tag] [よみ] [作家] 読切作品.zip",
			title:  "読切作品",
			artist: strp("作家"),
		},
		{
			name:  "unparseable falls back to bare name",
			in:    "随筆集 2020.zip",
			title: "随筆集 2020",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseFilename(tt.in)
			if p.Title != tt.title {
				t.Errorf("Title = %q, want %q", p.Title, tt.title)
			}
			if !eqStr(p.Artist, tt.artist) {
				t.Errorf("Artist = %v, want %v", deref(p.Artist), deref(tt.artist))
			}
			if !eqInt(p.VolumeNumber, tt.volNum) {
				t.Errorf("VolumeNumber = %v, want %v", p.VolumeNumber, tt.volNum)
			}
			if !eqStr(p.VolumeRange, tt.volRng) {
				t.Errorf("VolumeRange = %v, want %v", deref(p.VolumeRange), deref(tt.volRng))
			}
			if p.VolumeNumber != nil && p.VolumeRange != nil {
				t.Error("VolumeNumber and VolumeRange are both set")
			}
		})
	}
}

func TestParseFilenameNeverFails(t *testing.T) {
	for _, in := range []string{"", ".zip", "[][][]", "[a] [b]", "タイトルのみ"} {
		p := ParseFilename(in)
		_ = p.Title
	}
}

func eqStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
