// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LiangCY/dinosaur-wiki/internal/pipeline"
	"github.com/LiangCY/dinosaur-wiki/internal/retry"
	"github.com/LiangCY/dinosaur-wiki/internal/search"
	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// clearEnv blanks every variable Resolve reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envNames {
		t.Setenv(env, "")
	}
}

func validOptions() Options {
	return Options{OpenAIAPIKey: "sk-test-0000-1234", TavilyAPIKey: "tvly-abcdefgh"}
}

// --- configuration ---

func TestResolve_Defaults(t *testing.T) {
	clearEnv(t)
	o, err := Resolve(validOptions())
	require.NoError(t, err)

	assert.Equal(t, types.ProviderOpenAI, o.LLMProvider)
	assert.Equal(t, "gpt-4o-mini", o.OpenAIModel)
	assert.Equal(t, DefaultBackendURL, o.BackendURL)
	assert.Equal(t, 3, o.MaxRetries)
	assert.Equal(t, 2*time.Second, o.RetryDelay)
	assert.Equal(t, 60*time.Second, o.Timeout)
	assert.Equal(t, "info", o.LogLevel)
	assert.Equal(t, search.DefaultMaxResults, o.SearchMaxResults)
	require.NotNil(t, o.IncludeFossils)
	assert.False(t, o.FossilsEnabled())
}

func TestResolve_EnvironmentOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("TAVILY_API_KEY", "tvly-from-env")
	t.Setenv("AI_AGENT_BACKEND_URL", "http://backend:8080")
	t.Setenv("AI_AGENT_MAX_RETRIES", "5")
	t.Setenv("AI_AGENT_RETRY_DELAY", "250")
	t.Setenv("AI_AGENT_TIMEOUT", "1500")
	t.Setenv("AI_AGENT_LOG_LEVEL", "debug")
	t.Setenv("AI_AGENT_INCLUDE_FOSSILS", "true")

	o, err := Resolve(Options{})
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", o.OpenAIAPIKey)
	assert.Equal(t, "tvly-from-env", o.TavilyAPIKey)
	assert.Equal(t, "http://backend:8080", o.BackendURL)
	assert.Equal(t, 5, o.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, o.RetryDelay)
	assert.Equal(t, 1500*time.Millisecond, o.Timeout)
	assert.Equal(t, "debug", o.LogLevel)
	assert.True(t, o.FossilsEnabled())
}

func TestResolve_ExplicitOverridesEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("AI_AGENT_MAX_RETRIES", "5")
	t.Setenv("AI_AGENT_BACKEND_URL", "http://backend:8080")

	opts := validOptions()
	opts.MaxRetries = 2
	opts.BackendURL = "http://explicit:3000"
	opts.RetryDelay = 10 * time.Millisecond

	o, err := Resolve(opts)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-0000-1234", o.OpenAIAPIKey)
	assert.Equal(t, 2, o.MaxRetries)
	assert.Equal(t, "http://explicit:3000", o.BackendURL)
	assert.Equal(t, 10*time.Millisecond, o.RetryDelay)
}

func TestResolve_ExplicitFalseOverridesEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("AI_AGENT_INCLUDE_FOSSILS", "true")

	off := false
	opts := validOptions()
	opts.IncludeFossils = &off
	o, err := Resolve(opts)
	require.NoError(t, err)
	assert.False(t, o.FossilsEnabled())

	o, err = Resolve(validOptions())
	require.NoError(t, err)
	assert.True(t, o.FossilsEnabled(), "nil leaves the environment in charge")
}

func TestResolve_Validation(t *testing.T) {
	tests := []struct {
		name  string
		opts  Options
		field string
		msg   string
	}{
		{"missing openai key", Options{TavilyAPIKey: "t"}, "openai_api_key", "OpenAI API Key 是必需的"},
		{"missing tavily key", Options{OpenAIAPIKey: "o"}, "tavily_api_key", "Tavily API Key 是必需的"},
		{"missing gemini key", Options{LLMProvider: types.ProviderGemini, TavilyAPIKey: "t"}, "gemini_api_key", "Gemini API Key 是必需的"},
		{"unknown provider", Options{LLMProvider: "llama", TavilyAPIKey: "t"}, "llm_provider", "不支持的模型提供方"},
		{"bad backend url", Options{OpenAIAPIKey: "o", TavilyAPIKey: "t", BackendURL: "not a url"}, "backend_url", "后端 URL 无效"},
		{"bad log level", Options{OpenAIAPIKey: "o", TavilyAPIKey: "t", LogLevel: "loud"}, "log_level", "unknown log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Resolve(tt.opts)
			var ce *ConfigError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Error(), tt.msg)
		})
	}
}

func TestNew_ConfigErrorIsImmediate(t *testing.T) {
	clearEnv(t)
	a, err := New(context.Background(), Options{}, Deps{})
	assert.Nil(t, a)
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestRedacted(t *testing.T) {
	o := Redacted(Options{OpenAIAPIKey: "sk-1234567890abcd", TavilyAPIKey: "short", BackendURL: "http://x"})
	assert.Equal(t, "****abcd", o.OpenAIAPIKey)
	assert.Equal(t, "****", o.TavilyAPIKey)
	assert.Equal(t, "", o.GeminiAPIKey)
	assert.Equal(t, "http://x", o.BackendURL)
}

// --- research ---

type stubSearch struct{ basic []types.SearchResult }

func (s stubSearch) SearchBasic(context.Context, string) ([]types.SearchResult, error) {
	if s.basic == nil {
		return nil, errors.New("search unavailable")
	}
	return s.basic, nil
}

func (stubSearch) SearchImages(context.Context, string) ([]types.Image, error) {
	return nil, nil
}

func (stubSearch) SearchAspect(context.Context, string, string, *search.AspectOptions) ([]types.SearchResult, error) {
	return nil, nil
}

type stubExtract struct{ panicOn string }

func (s stubExtract) ExtractBasicInfo(_ context.Context, name string, _ []types.SearchResult) (types.DinosaurInfo, error) {
	if name == s.panicOn {
		panic("extractor exploded")
	}
	return types.DinosaurInfo{Name: name}, nil
}

func (stubExtract) ExtractFossils(context.Context, string, []types.SearchResult) ([]types.Fossil, error) {
	return nil, nil
}

func (stubExtract) ValidateAndCleanInfo(_ context.Context, info types.DinosaurInfo) (types.ValidationResult, error) {
	return types.ValidationResult{IsValid: true, CleanedInfo: info}, nil
}

type stubRecords struct{ created []string }

func (r *stubRecords) FindExact(context.Context, string) (*types.Dinosaur, error) { return nil, nil }

func (r *stubRecords) Create(_ context.Context, info types.DinosaurInfo) (*types.Dinosaur, error) {
	r.created = append(r.created, info.Name)
	return &types.Dinosaur{ID: info.Name, DinosaurInfo: info}, nil
}

func (r *stubRecords) Update(context.Context, string, types.DinosaurPatch) (*types.Dinosaur, error) {
	return nil, errors.New("unexpected update")
}

func (r *stubRecords) AddImages(context.Context, string, []types.Image) error { return nil }

func (r *stubRecords) AddFossils(context.Context, string, []types.Fossil) error { return nil }

func newTestAgent(t *testing.T, s pipeline.Searcher, e pipeline.Extractor, r pipeline.Records) *Agent {
	t.Helper()
	clearEnv(t)
	a, err := New(context.Background(), validOptions(), Deps{})
	require.NoError(t, err)
	a.workflow = pipeline.New(s, e, r, pipeline.Options{Retry: retry.Policy{MaxAttempts: 2, Delay: time.Millisecond}})
	return a
}

func TestResearchOne_Success(t *testing.T) {
	r := &stubRecords{}
	a := newTestAgent(t, stubSearch{basic: []types.SearchResult{{Title: "t", URL: "u", Content: "c"}}}, stubExtract{}, r)

	res := a.ResearchOne(context.Background(), "霸王龙")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "霸王龙", res.Subject)
	require.NotNil(t, res.Dinosaur)
	assert.Equal(t, "霸王龙", res.Dinosaur.Data.SavedData.Name)
	assert.GreaterOrEqual(t, res.ProcessingTime, int64(0))
	assert.Equal(t, []string{"霸王龙"}, r.created)
}

func TestResearchOne_FailureCarriesErrors(t *testing.T) {
	a := newTestAgent(t, stubSearch{}, stubExtract{}, &stubRecords{})

	res := a.ResearchOne(context.Background(), "Triceratops")
	assert.False(t, res.Success)
	assert.Nil(t, res.Dinosaur)
	assert.Contains(t, res.Error, "搜索")
	assert.NotEmpty(t, res.Errors)
	assert.GreaterOrEqual(t, res.ProcessingTime, int64(0))
}

func TestResearchOne_RecoversPanic(t *testing.T) {
	a := newTestAgent(t, stubSearch{basic: []types.SearchResult{{Title: "t", URL: "u", Content: "c"}}}, stubExtract{panicOn: "boom"}, &stubRecords{})

	res := a.ResearchOne(context.Background(), "boom")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "extractor exploded")
	assert.Len(t, res.Errors, 1)
}

// panicSearch blows up inside the basic search branch, which runs on its
// own goroutine.
type panicSearch struct{ stubSearch }

func (panicSearch) SearchBasic(context.Context, string) ([]types.SearchResult, error) {
	panic("search exploded")
}

func TestResearchOne_RecoversSearchBranchPanic(t *testing.T) {
	r := &stubRecords{}
	a := newTestAgent(t, panicSearch{}, stubExtract{}, r)

	res := a.ResearchOne(context.Background(), "Rex")
	assert.False(t, res.Success)
	assert.Equal(t, "所有搜索都失败了，无法获取恐龙信息", res.Error)
	assert.Contains(t, res.Errors, "基本信息搜索失败: 搜索基本信息异常: search exploded")
	assert.Empty(t, r.created)

	// The agent stays usable after the panic.
	a.workflow = pipeline.New(stubSearch{basic: []types.SearchResult{{Title: "t", URL: "u", Content: "c"}}}, stubExtract{}, r,
		pipeline.Options{Retry: retry.Policy{MaxAttempts: 1, Delay: time.Millisecond}})
	assert.True(t, a.ResearchOne(context.Background(), "Rex").Success)
}

func TestResearchMany_SequentialAndNeverAborts(t *testing.T) {
	r := &stubRecords{}
	a := newTestAgent(t, stubSearch{basic: []types.SearchResult{{Title: "t", URL: "u", Content: "c"}}}, stubExtract{panicOn: "坏"}, r)

	results := a.ResearchMany(context.Background(), []string{"剑龙", "坏", "腕龙"})
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.True(t, results[2].Success)
	assert.Equal(t, []string{"剑龙", "腕龙"}, r.created)
}

func TestStats(t *testing.T) {
	a := newTestAgent(t, stubSearch{}, stubExtract{}, &stubRecords{})
	st := a.Stats(context.Background())
	assert.Equal(t, 0, st.TotalDinosaurs)
	assert.Equal(t, "running", st.SystemStatus)
	assert.NotNil(t, st.RecentActivity)
}

// --- UpdateConfig ---

func TestUpdateConfig_RebuildsOnlyChangedClients(t *testing.T) {
	clearEnv(t)
	a, err := New(context.Background(), validOptions(), Deps{})
	require.NoError(t, err)
	s0, e0, r0, w0 := a.search, a.extract, a.records, a.workflow

	require.NoError(t, a.UpdateConfig(context.Background(), Options{BackendURL: "http://other:4000"}))
	assert.Same(t, s0, a.search)
	assert.Same(t, e0, a.extract)
	assert.NotSame(t, r0, a.records)
	assert.Equal(t, "http://other:4000", a.records.BaseURL())
	assert.NotSame(t, w0, a.workflow)

	s1, e1, r1, w1 := a.search, a.extract, a.records, a.workflow
	require.NoError(t, a.UpdateConfig(context.Background(), Options{TavilyAPIKey: "tvly-new-key-9999"}))
	assert.NotSame(t, s1, a.search)
	assert.Same(t, e1, a.extract)
	assert.Same(t, r1, a.records)
	assert.NotSame(t, w1, a.workflow)

	s2, e2, r2, w2 := a.search, a.extract, a.records, a.workflow
	require.NoError(t, a.UpdateConfig(context.Background(), Options{MaxRetries: 7}))
	assert.Same(t, s2, a.search)
	assert.Same(t, e2, a.extract)
	assert.Same(t, r2, a.records)
	assert.NotSame(t, w2, a.workflow)
	assert.Equal(t, 7, a.Config().MaxRetries)

	w3 := a.workflow
	require.NoError(t, a.UpdateConfig(context.Background(), Options{}))
	assert.Same(t, w3, a.workflow, "empty update changes nothing")
}

func TestUpdateConfig_TogglesFossils(t *testing.T) {
	clearEnv(t)
	on, off := true, false
	a, err := New(context.Background(), validOptions(), Deps{})
	require.NoError(t, err)

	require.NoError(t, a.UpdateConfig(context.Background(), Options{IncludeFossils: &on}))
	assert.True(t, a.Config().FossilsEnabled())
	w1 := a.workflow

	require.NoError(t, a.UpdateConfig(context.Background(), Options{}))
	assert.True(t, a.Config().FossilsEnabled(), "nil keeps the current value")
	assert.Same(t, w1, a.workflow)

	require.NoError(t, a.UpdateConfig(context.Background(), Options{IncludeFossils: &off}))
	assert.False(t, a.Config().FossilsEnabled())
	assert.NotSame(t, w1, a.workflow)
}

func TestUpdateConfig_InvalidKeepsPrevious(t *testing.T) {
	clearEnv(t)
	a, err := New(context.Background(), validOptions(), Deps{})
	require.NoError(t, err)
	w0 := a.workflow

	err = a.UpdateConfig(context.Background(), Options{BackendURL: "::bad"})
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Same(t, w0, a.workflow)
	assert.Equal(t, DefaultBackendURL, a.Config().BackendURL)
}

func TestConfigIsRedacted(t *testing.T) {
	clearEnv(t)
	a, err := New(context.Background(), validOptions(), Deps{})
	require.NoError(t, err)
	assert.Equal(t, "****1234", a.Config().OpenAIAPIKey)
}

// --- recommendations ---

func TestRecommend(t *testing.T) {
	assert.Len(t, Recommend(0), DefaultRecommendations)
	assert.Len(t, Recommend(3), 3)
	all := Recommend(99)
	assert.Len(t, all, MaxRecommendations)
	assert.ElementsMatch(t, wellKnown, all)
}

func TestRecommend_DoesNotMutatePool(t *testing.T) {
	orig := shuffle
	shuffle = func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}
	defer func() { shuffle = orig }()

	got := Recommend(2)
	assert.Equal(t, []string{"暴龙", "恐爪龙"}, got)
	assert.Equal(t, "霸王龙", wellKnown[0])
}
