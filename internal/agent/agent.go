// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agent is the research agent facade. It resolves configuration,
// builds the search, extraction and record clients, and runs the research
// workflow for one or many dinosaurs. Its research methods never return an
// error or panic; every outcome is a ResearchResult.
package agent

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/internal/apiclient"
	"github.com/LiangCY/dinosaur-wiki/internal/extract"
	"github.com/LiangCY/dinosaur-wiki/internal/logging"
	"github.com/LiangCY/dinosaur-wiki/internal/metrics"
	"github.com/LiangCY/dinosaur-wiki/internal/pipeline"
	"github.com/LiangCY/dinosaur-wiki/internal/retry"
	"github.com/LiangCY/dinosaur-wiki/internal/search"
	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// Deps carries the collaborators the agent does not build from Options.
// Every field is optional.
type Deps struct {
	Log     *zap.Logger
	Metrics *metrics.Metrics

	// SearchCache, if set, caches search responses for SearchCacheTTL.
	SearchCache    search.Cache
	SearchCacheTTL time.Duration
}

// Agent runs research for dinosaurs. It is safe for concurrent use;
// UpdateConfig swaps clients under a lock while runs in flight keep the
// workflow they started with.
type Agent struct {
	deps Deps

	mu       sync.RWMutex
	opts     Options
	log      *zap.Logger
	search   *search.Client
	extract  *extract.Extractor
	records  *apiclient.Client
	workflow *pipeline.Workflow
}

// New resolves opts and builds the agent. A missing key or backend URL
// returns a *ConfigError.
func New(ctx context.Context, opts Options, deps Deps) (*Agent, error) {
	resolved, err := Resolve(opts)
	if err != nil {
		return nil, err
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	a := &Agent{deps: deps, opts: resolved}
	a.log = agentLogger(deps.Log, resolved.LogLevel)
	a.search = a.buildSearch(resolved, a.log)
	if a.extract, err = a.buildExtractor(ctx, resolved, a.log); err != nil {
		return nil, err
	}
	a.records = apiclient.New(resolved.BackendURL, resolved.Timeout, a.log)
	a.workflow = a.buildWorkflow(resolved, a.log, a.search, a.extract, a.records)

	a.log.Info("agent initialized",
		zap.String("llm_provider", string(resolved.LLMProvider)),
		zap.String("backend_url", resolved.BackendURL),
		zap.Int("max_retries", resolved.MaxRetries),
		zap.Bool("include_fossils", resolved.FossilsEnabled()))
	return a, nil
}

// agentLogger raises base to the agent's own level. The level was
// validated by Resolve. zap cannot lower a level, so a level below the
// base logger's leaves it unchanged.
func agentLogger(base *zap.Logger, level string) *zap.Logger {
	lvl, _ := logging.ParseLevel(level)
	log := base.Named("agent")
	if log.Core().Enabled(lvl) {
		log = log.WithOptions(zap.IncreaseLevel(lvl))
	}
	return log
}

func (a *Agent) buildSearch(o Options, log *zap.Logger) *search.Client {
	var provider search.Provider = &search.TavilyProvider{
		APIKey: o.TavilyAPIKey,
		Client: &http.Client{Timeout: o.Timeout},
		Log:    log,
	}
	if a.deps.SearchCache != nil {
		provider = &search.CachedProvider{
			Next:    provider,
			Cache:   a.deps.SearchCache,
			TTL:     a.deps.SearchCacheTTL,
			Log:     log,
			Metrics: a.deps.Metrics,
		}
	}
	return search.New(provider, o.SearchMaxResults, log)
}

func (a *Agent) buildExtractor(ctx context.Context, o Options, log *zap.Logger) (*extract.Extractor, error) {
	var llm extract.Completer
	switch o.LLMProvider {
	case types.ProviderGemini:
		g, err := extract.NewGeminiBackend(ctx, o.GeminiAPIKey, o.GeminiModel)
		if err != nil {
			return nil, &ConfigError{Field: "gemini_api_key", Message: err.Error()}
		}
		llm = g
	default:
		llm = &extract.OpenAIBackend{
			APIKey:  o.OpenAIAPIKey,
			Model:   o.OpenAIModel,
			BaseURL: o.OpenAIBaseURL,
			Client:  &http.Client{Timeout: o.Timeout},
			Log:     log,
		}
	}
	return extract.New(llm, log), nil
}

func (a *Agent) buildWorkflow(o Options, log *zap.Logger, s *search.Client, e *extract.Extractor, r *apiclient.Client) *pipeline.Workflow {
	return pipeline.New(s, e, r, pipeline.Options{
		Retry:          retry.Policy{MaxAttempts: o.MaxRetries, Delay: o.RetryDelay},
		IncludeFossils: o.FossilsEnabled(),
		Log:            log,
		Metrics:        a.deps.Metrics,
	})
}

// ResearchOne researches name. It always returns a result with a
// non-negative ProcessingTime.
func (a *Agent) ResearchOne(ctx context.Context, name string) (res types.ResearchResult) {
	start := time.Now()
	a.mu.RLock()
	w, log := a.workflow, a.log
	a.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("研究过程发生异常: %v", r)
			log.Error("research panicked", zap.String("subject", name), zap.Any("panic", r))
			res = types.ResearchResult{
				Subject:        name,
				Success:        false,
				Error:          msg,
				Errors:         []string{msg},
				ProcessingTime: time.Since(start).Milliseconds(),
			}
		}
	}()

	log.Info("researching dinosaur", zap.String("subject", name))
	out := w.Execute(ctx, name)
	elapsed := time.Since(start).Milliseconds()

	if out.Success {
		log.Info("research complete", zap.String("subject", name), zap.Int64("processing_ms", elapsed))
		return types.ResearchResult{Subject: name, Success: true, Dinosaur: &out, ProcessingTime: elapsed}
	}

	msg := out.Error
	if msg == "" {
		msg = "研究失败"
	}
	errs := out.Errors
	if errs == nil {
		errs = []string{}
	}
	log.Warn("research failed", zap.String("subject", name), zap.String("error", msg))
	return types.ResearchResult{Subject: name, Success: false, Error: msg, Errors: errs, ProcessingTime: elapsed}
}

// ResearchMany researches names one after another. A failed subject is
// recorded and the batch continues.
func (a *Agent) ResearchMany(ctx context.Context, names []string) []types.ResearchResult {
	a.mu.RLock()
	log := a.log
	a.mu.RUnlock()
	log.Info("batch research started", zap.Strings("subjects", names))

	results := make([]types.ResearchResult, 0, len(names))
	for _, name := range names {
		results = append(results, a.ResearchOne(ctx, name))
	}
	return results
}

// Stats reports the agent status summary.
func (a *Agent) Stats(context.Context) types.AgentStats {
	return types.AgentStats{TotalDinosaurs: 0, RecentActivity: []string{}, SystemStatus: "running"}
}

// Config returns the resolved options with API keys masked.
func (a *Agent) Config() Options {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Redacted(a.opts)
}

// UpdateConfig merges the non-zero fields of partial into the current
// options and rebuilds only the clients whose inputs changed. The workflow
// is rebuilt when any client or the retry settings changed. On error the
// agent keeps its previous configuration.
func (a *Agent) UpdateConfig(ctx context.Context, partial Options) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := merge(a.opts, partial)
	if err := validate(next); err != nil {
		return err
	}
	prev := a.opts

	log := a.log
	if next.LogLevel != prev.LogLevel {
		log = agentLogger(a.deps.Log, next.LogLevel)
	}

	searchChanged := next.TavilyAPIKey != prev.TavilyAPIKey ||
		next.SearchMaxResults != prev.SearchMaxResults ||
		next.Timeout != prev.Timeout
	extractChanged := next.LLMProvider != prev.LLMProvider ||
		next.OpenAIAPIKey != prev.OpenAIAPIKey ||
		next.OpenAIModel != prev.OpenAIModel ||
		next.OpenAIBaseURL != prev.OpenAIBaseURL ||
		next.GeminiAPIKey != prev.GeminiAPIKey ||
		next.GeminiModel != prev.GeminiModel ||
		next.Timeout != prev.Timeout
	recordsChanged := next.BackendURL != prev.BackendURL || next.Timeout != prev.Timeout
	workflowChanged := searchChanged || extractChanged || recordsChanged ||
		next.MaxRetries != prev.MaxRetries ||
		next.RetryDelay != prev.RetryDelay ||
		next.FossilsEnabled() != prev.FossilsEnabled() ||
		next.LogLevel != prev.LogLevel

	// A new level means a new logger, which every client carries.
	relog := next.LogLevel != prev.LogLevel
	s, e, r := a.search, a.extract, a.records
	if searchChanged || relog {
		s = a.buildSearch(next, log)
	}
	if extractChanged || relog {
		var err error
		if e, err = a.buildExtractor(ctx, next, log); err != nil {
			return err
		}
	}
	if recordsChanged || relog {
		r = apiclient.New(next.BackendURL, next.Timeout, log)
	}

	a.opts, a.log = next, log
	a.search, a.extract, a.records = s, e, r
	if workflowChanged {
		a.workflow = a.buildWorkflow(next, log, s, e, r)
	}
	a.log.Info("agent config updated",
		zap.Bool("search", searchChanged),
		zap.Bool("extract", extractChanged),
		zap.Bool("records", recordsChanged),
		zap.Bool("workflow", workflowChanged))
	return nil
}

func merge(cur, p Options) Options {
	if p.LLMProvider != "" {
		cur.LLMProvider = p.LLMProvider
	}
	if p.OpenAIAPIKey != "" {
		cur.OpenAIAPIKey = p.OpenAIAPIKey
	}
	if p.OpenAIModel != "" {
		cur.OpenAIModel = p.OpenAIModel
	}
	if p.OpenAIBaseURL != "" {
		cur.OpenAIBaseURL = p.OpenAIBaseURL
	}
	if p.GeminiAPIKey != "" {
		cur.GeminiAPIKey = p.GeminiAPIKey
	}
	if p.GeminiModel != "" {
		cur.GeminiModel = p.GeminiModel
	}
	if p.TavilyAPIKey != "" {
		cur.TavilyAPIKey = p.TavilyAPIKey
	}
	if p.BackendURL != "" {
		cur.BackendURL = p.BackendURL
	}
	if p.MaxRetries > 0 {
		cur.MaxRetries = p.MaxRetries
	}
	if p.RetryDelay > 0 {
		cur.RetryDelay = p.RetryDelay
	}
	if p.Timeout > 0 {
		cur.Timeout = p.Timeout
	}
	if p.LogLevel != "" {
		cur.LogLevel = p.LogLevel
	}
	if p.IncludeFossils != nil {
		cur.IncludeFossils = boolPtr(*p.IncludeFossils)
	}
	if p.SearchMaxResults > 0 {
		cur.SearchMaxResults = p.SearchMaxResults
	}
	return cur
}
