package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// --- mock completer ---

type mockCompleter struct {
	answer  string
	err     error
	prompts []string
}

func (m *mockCompleter) Complete(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.answer, m.err
}

func results(n int, content string) []types.SearchResult {
	out := make([]types.SearchResult, n)
	for i := range out {
		out[i] = types.SearchResult{
			Title:   "title-" + string(rune('A'+i)),
			URL:     "https://example.org/" + string(rune('a'+i)),
			Content: content,
		}
	}
	return out
}

func ptr(f float64) *float64 { return &f }

// --- policy table ---

func TestPolicyTable(t *testing.T) {
	tests := []struct {
		op   Op
		want Policy
	}{
		{OpBasicInfo, Fatal},
		{OpFossils, Degrade},
		{OpImageURLs, Degrade},
		{OpValidate, Conservative},
	}
	for _, tt := range tests {
		if got := PolicyFor(tt.op); got != tt.want {
			t.Errorf("PolicyFor(%s) = %d, want %d", tt.op, got, tt.want)
		}
	}
}

// --- ExtractBasicInfo ---

func TestExtractBasicInfo(t *testing.T) {
	m := &mockCompleter{answer: "```json\n" + `{
		"name": "三角龙",
		"scientific_name": "Triceratops horridus",
		"period": "白垩纪晚期",
		"diet": "植食性",
		"length_min_meters": 7.9,
		"length_max_meters": "9",
		"weight_min_tons": null,
		"habitat": "河岸平原",
		"region": "北美洲",
		"description": "一种大型角龙"
	}` + "\n```"}
	e := New(m, nil)

	info, err := e.ExtractBasicInfo(context.Background(), "Triceratops", results(2, "body"))
	if err != nil {
		t.Fatalf("ExtractBasicInfo: %v", err)
	}

	want := types.DinosaurInfo{
		Name:            "三角龙",
		ScientificName:  "Triceratops horridus",
		Period:          "白垩纪晚期",
		Diet:            "植食性",
		LengthMinMeters: ptr(7.9),
		LengthMaxMeters: ptr(9),
		Habitat:         "河岸平原",
		Region:          "北美洲",
		Description:     "一种大型角龙",
	}
	if info.Name != want.Name || info.ScientificName != want.ScientificName || info.Period != want.Period {
		t.Errorf("info = %+v, want %+v", info, want)
	}
	if info.LengthMaxMeters == nil || *info.LengthMaxMeters != 9 {
		t.Errorf("numeric string not accepted: %v", info.LengthMaxMeters)
	}
	if info.WeightMinTons != nil {
		t.Errorf("null weight should be nil, got %v", *info.WeightMinTons)
	}
	if !strings.Contains(m.prompts[0], `"Triceratops"`) {
		t.Error("prompt does not name the subject")
	}
}

func TestExtractBasicInfoDefaultsName(t *testing.T) {
	m := &mockCompleter{answer: `{"scientific_name": "Stegosaurus stenops"}`}
	e := New(m, nil)

	info, err := e.ExtractBasicInfo(context.Background(), "Stegosaurus", nil)
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "Stegosaurus" {
		t.Errorf("name = %q, want subject", info.Name)
	}
}

func TestExtractBasicInfoCapsInput(t *testing.T) {
	m := &mockCompleter{answer: `{"name":"x"}`}
	e := New(m, nil)

	long := strings.Repeat("龙", 25000)
	if _, err := e.ExtractBasicInfo(context.Background(), "x", results(7, long)); err != nil {
		t.Fatal(err)
	}
	p := m.prompts[0]
	if strings.Count(p, "标题: ") != 5 {
		t.Errorf("prompt has %d results, want 5", strings.Count(p, "标题: "))
	}
	if strings.Contains(p, strings.Repeat("龙", 20001)) {
		t.Error("content not truncated to 20000 runes")
	}
	if !strings.Contains(p, "来源: https://example.org/a") {
		t.Error("basic info prompt should carry source URLs")
	}
}

func TestExtractBasicInfoFatal(t *testing.T) {
	tests := []struct {
		name      string
		m         *mockCompleter
		wantShape bool
	}{
		{"transport error", &mockCompleter{err: errors.New("HTTP 500")}, false},
		{"not json", &mockCompleter{answer: "I cannot help with that."}, true},
		{"array instead of object", &mockCompleter{answer: `[{"name":"x"}]`}, true},
		{"wrong field type", &mockCompleter{answer: `{"name":"x","length_min_meters":"huge"}`}, true},
		{"string field is number", &mockCompleter{answer: `{"name":"x","period":65}`}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.m, nil)
			_, err := e.ExtractBasicInfo(context.Background(), "x", nil)

			var ee *Error
			if !errors.As(err, &ee) {
				t.Fatalf("error %v is not *extract.Error", err)
			}
			if !strings.Contains(err.Error(), "信息提取失败") {
				t.Errorf("error %q lacks step message", err)
			}
			var se *ShapeError
			if got := errors.As(err, &se); got != tt.wantShape {
				t.Errorf("ShapeError present = %v, want %v", got, tt.wantShape)
			}
		})
	}
}

// --- ExtractFossils / ExtractImageURLs ---

func TestExtractFossils(t *testing.T) {
	m := &mockCompleter{answer: `[
		{"discovery_location": "美国蒙大拿州地狱溪组", "discovery_date": "1887", "fossil_type": "头骨", "description": "首个头骨"},
		{"discovery_location": "", "fossil_type": "牙齿"},
		{"discovery_location": "加拿大艾伯塔省", "fossil_type": "部分骨架", "discovery_date": null}
	]`}
	e := New(m, nil)

	fossils, err := e.ExtractFossils(context.Background(), "Triceratops", results(5, strings.Repeat("x", 6000)))
	if err != nil {
		t.Fatal(err)
	}
	if len(fossils) != 2 {
		t.Fatalf("got %d fossils, want 2 (incomplete entry skipped)", len(fossils))
	}
	if fossils[0].DiscoveryDate != "1887" || fossils[1].FossilType != "部分骨架" {
		t.Errorf("fossils = %+v", fossils)
	}
	if n := strings.Count(m.prompts[0], "标题: "); n != 3 {
		t.Errorf("prompt has %d results, want 3", n)
	}
	if strings.Contains(m.prompts[0], "来源: ") {
		t.Error("fossil prompt should not carry source URLs")
	}
}

func TestExtractFossilsDegrades(t *testing.T) {
	for _, m := range []*mockCompleter{
		{err: errors.New("timeout")},
		{answer: `{"fossils": []}`},
		{answer: `[{"discovery_location": 12, "fossil_type": "头骨"}]`},
	} {
		e := New(m, nil)
		fossils, err := e.ExtractFossils(context.Background(), "x", nil)
		if err != nil {
			t.Errorf("degrade policy returned error: %v", err)
		}
		if fossils == nil || len(fossils) != 0 {
			t.Errorf("fossils = %v, want empty non-nil", fossils)
		}
	}
}

func TestExtractImageURLs(t *testing.T) {
	m := &mockCompleter{answer: `["https://a/1.jpg","https://a/2.jpg","https://a/3.jpg","https://a/4.jpg","https://a/5.jpg","https://a/6.jpg"]`}
	e := New(m, nil)

	urls, err := e.ExtractImageURLs(context.Background(), "x", results(1, "c"))
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != MaxImageURLs {
		t.Errorf("got %d urls, want %d", len(urls), MaxImageURLs)
	}
}

func TestExtractImageURLsRejectsNonStrings(t *testing.T) {
	m := &mockCompleter{answer: `["https://a/1.jpg", {"url": "https://a/2.jpg"}]`}
	e := New(m, nil)

	urls, err := e.ExtractImageURLs(context.Background(), "x", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 0 {
		t.Errorf("urls = %v, want empty", urls)
	}
}

// --- ValidateAndCleanInfo ---

func TestValidateAndCleanInfo(t *testing.T) {
	m := &mockCompleter{answer: `{
		"isValid": true,
		"errors": [],
		"cleanedInfo": {"name": "剑龙", "scientific_name": "Stegosaurus", "period": "侏罗纪晚期", "weight_max_tons": 5}
	}`}
	e := New(m, nil)

	res, err := e.ValidateAndCleanInfo(context.Background(), types.DinosaurInfo{Name: "剑龙"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsValid || len(res.Errors) != 0 {
		t.Errorf("res = %+v", res)
	}
	if res.CleanedInfo.Period != "侏罗纪晚期" || res.CleanedInfo.WeightMaxTons == nil {
		t.Errorf("cleaned info not decoded: %+v", res.CleanedInfo)
	}
	if !strings.Contains(m.prompts[0], `"name": "剑龙"`) {
		t.Error("prompt does not embed the info as JSON")
	}
}

func TestValidateAndCleanInfoConservative(t *testing.T) {
	original := types.DinosaurInfo{Name: "Rex", ScientificName: "Tyrannosaurus rex", LengthMaxMeters: ptr(12.3)}

	tests := []struct {
		name    string
		m       *mockCompleter
		wantMsg string
	}{
		{"not json", &mockCompleter{answer: "looks fine to me"}, msgValidationError},
		{"truncated json", &mockCompleter{answer: `{"isValid":true,"errors":[`}, msgValidationError},
		{"isValid is string", &mockCompleter{answer: `{"isValid":"yes","errors":[],"cleanedInfo":{}}`}, msgBadShape},
		{"errors missing", &mockCompleter{answer: `{"isValid":true,"cleanedInfo":{}}`}, msgBadShape},
		{"errors not strings", &mockCompleter{answer: `{"isValid":true,"errors":[1],"cleanedInfo":{}}`}, msgBadShape},
		{"cleanedInfo missing", &mockCompleter{answer: `{"isValid":true,"errors":[]}`}, msgBadShape},
		{"cleanedInfo bad field", &mockCompleter{answer: `{"isValid":true,"errors":[],"cleanedInfo":{"name":["a"]}}`}, msgBadShape},
		{"call fails", &mockCompleter{err: errors.New("rate limited")}, msgValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.m, nil)
			res, err := e.ValidateAndCleanInfo(context.Background(), original)
			if err != nil {
				t.Fatalf("conservative policy returned error: %v", err)
			}
			if res.IsValid {
				t.Error("IsValid = true, want false")
			}
			if len(res.Errors) != 1 || res.Errors[0] != tt.wantMsg {
				t.Errorf("Errors = %v, want [%s]", res.Errors, tt.wantMsg)
			}
			if res.CleanedInfo.Name != original.Name || res.CleanedInfo.LengthMaxMeters != original.LengthMaxMeters {
				t.Errorf("CleanedInfo = %+v, want original input", res.CleanedInfo)
			}
		})
	}
}

// --- helpers ---

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n[1,2]\n```", `[1,2]`},
		{"Here you go: {\"a\":1} hope it helps", `{"a":1}`},
		{"no json here", "no json here"},
	}
	for _, tt := range tests {
		if got := cleanJSON(tt.in); got != tt.want {
			t.Errorf("cleanJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	s := "霸王龙Tyrannosaurus"
	got := truncateRunes(s, 4)
	if got != "霸王龙T" {
		t.Errorf("truncateRunes = %q", got)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a rune")
	}
	if truncateRunes("abc", 10) != "abc" {
		t.Error("short string changed")
	}
}
