// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the research workflow for one dinosaur:
// search (basic and image searches in parallel), extract, validate, save.
// Every step runs under retry.Do. The two searches are joined with
// settle-all semantics: one failing branch is recorded and the run goes on;
// the run fails only when the searches produced nothing at all. Execute never
// returns an error; failures come back inside the PipelineResult.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/internal/metrics"
	"github.com/LiangCY/dinosaur-wiki/internal/retry"
	"github.com/LiangCY/dinosaur-wiki/internal/search"
	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// Step labels. They appear in log lines, metrics and user-visible errors.
const (
	StepSearchBasic   = "搜索基本信息"
	StepSearchImages  = "搜索图片信息"
	StepSearchFossils = "搜索化石信息"
	StepExtract       = "提取信息"
	StepValidate      = "验证信息"
	StepSave          = "保存到数据库"
	StepSaveFossils   = "保存化石信息"
)

// FossilAspect is the aspect query used by the fossil search branch.
const FossilAspect = "fossil discovery excavation paleontology"

// ErrNoSearchResults is the terminal error when every search branch came
// back empty or failed.
var ErrNoSearchResults = errors.New("所有搜索都失败了，无法获取恐龙信息")

// Searcher is the part of the search client the workflow uses.
type Searcher interface {
	SearchBasic(ctx context.Context, name string) ([]types.SearchResult, error)
	SearchImages(ctx context.Context, name string) ([]types.Image, error)
	SearchAspect(ctx context.Context, name, aspect string, opts *search.AspectOptions) ([]types.SearchResult, error)
}

// Extractor is the part of the extraction client the workflow uses.
type Extractor interface {
	ExtractBasicInfo(ctx context.Context, name string, results []types.SearchResult) (types.DinosaurInfo, error)
	ExtractFossils(ctx context.Context, name string, results []types.SearchResult) ([]types.Fossil, error)
	ValidateAndCleanInfo(ctx context.Context, info types.DinosaurInfo) (types.ValidationResult, error)
}

// Records is the part of the record store client the workflow uses.
type Records interface {
	FindExact(ctx context.Context, name string) (*types.Dinosaur, error)
	Create(ctx context.Context, info types.DinosaurInfo) (*types.Dinosaur, error)
	Update(ctx context.Context, id string, patch types.DinosaurPatch) (*types.Dinosaur, error)
	AddImages(ctx context.Context, id string, images []types.Image) error
	AddFossils(ctx context.Context, id string, fossils []types.Fossil) error
}

// Options tunes a Workflow. The zero value uses the retry defaults, skips
// fossils and discards logs and metrics.
type Options struct {
	Retry          retry.Policy
	IncludeFossils bool
	Log            *zap.Logger
	Metrics        *metrics.Metrics
}

// Workflow sequences the search, extraction and record clients.
type Workflow struct {
	search  Searcher
	extract Extractor
	records Records
	opts    Options
	log     *zap.Logger
}

// New returns a Workflow over the given clients.
func New(s Searcher, e Extractor, r Records, opts Options) *Workflow {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Workflow{search: s, extract: e, records: r, opts: opts, log: log}
}

// runStep runs op under the workflow's retry policy and records its
// duration and failed attempts.
func runStep[T any](ctx context.Context, w *Workflow, label, subject string, op func(context.Context) (T, error)) (T, error) {
	p := w.opts.Retry
	m := w.opts.Metrics
	p.OnFailure = func(label string, _ int, _ error) { m.IncStepFailure(label) }

	start := time.Now()
	v, err := retry.Do(ctx, p, w.log, label, subject, op)
	m.ObserveStep(label, time.Since(start))
	return v, err
}

// branch is the outcome of one search task.
type branch[T any] struct {
	items []T
	err   error
}

// Execute researches name and saves the result. It measures wall-clock time
// from entry to exit and reports it on every result.
func (w *Workflow) Execute(ctx context.Context, name string) types.PipelineResult {
	start := time.Now()
	var notes []string

	w.log.Info("research started", zap.String("subject", name))
	data, err := w.run(ctx, name, &notes)
	elapsed := time.Since(start).Milliseconds()
	w.opts.Metrics.ObserveRun(err == nil)

	if err != nil {
		w.log.Error("research failed",
			zap.String("subject", name),
			zap.Int64("processing_ms", elapsed),
			zap.Error(err))
		return types.PipelineResult{
			Success:        false,
			Error:          err.Error(),
			Errors:         append(notes, err.Error()),
			ProcessingTime: elapsed,
		}
	}

	w.log.Info("research finished",
		zap.String("subject", name),
		zap.String("id", data.SavedData.ID),
		zap.Int64("processing_ms", elapsed))
	res := types.PipelineResult{Success: true, Data: data, ProcessingTime: elapsed}
	if len(notes) > 0 {
		res.Errors = notes
	}
	return res
}

func (w *Workflow) run(ctx context.Context, name string, notes *[]string) (*types.PipelineData, error) {
	basic, images, fossilHits := w.searchAll(ctx, name)

	total := len(basic.items) + len(images.items) + len(fossilHits.items)
	if basic.err != nil {
		*notes = append(*notes, fmt.Sprintf("基本信息搜索失败: %v", basic.err))
	}
	if images.err != nil {
		*notes = append(*notes, fmt.Sprintf("图片信息搜索失败: %v", images.err))
	}
	if fossilHits.err != nil {
		*notes = append(*notes, fmt.Sprintf("化石信息搜索失败: %v", fossilHits.err))
	}
	if total == 0 {
		return nil, ErrNoSearchResults
	}

	extracted, err := runStep(ctx, w, StepExtract, name, func(ctx context.Context) (types.DinosaurInfo, error) {
		return w.extract.ExtractBasicInfo(ctx, name, basic.items)
	})
	if err != nil {
		return nil, err
	}

	validated, err := runStep(ctx, w, StepValidate, name, func(ctx context.Context) (types.DinosaurInfo, error) {
		v, err := w.extract.ValidateAndCleanInfo(ctx, extracted)
		if err != nil {
			return types.DinosaurInfo{}, fmt.Errorf("信息验证失败: %w", err)
		}
		if !v.IsValid {
			return types.DinosaurInfo{}, fmt.Errorf("信息验证失败: %s", strings.Join(v.Errors, ", "))
		}
		return v.CleanedInfo, nil
	})
	if err != nil {
		return nil, err
	}

	saved, err := runStep(ctx, w, StepSave, name, func(ctx context.Context) (*types.Dinosaur, error) {
		return w.save(ctx, name, validated, images.items)
	})
	if err != nil {
		return nil, err
	}

	data := &types.PipelineData{BasicInfo: validated, SavedData: saved, Images: images.items}
	if data.Images == nil {
		data.Images = []types.Image{}
	}
	if w.opts.IncludeFossils && len(fossilHits.items) > 0 {
		data.Fossils = w.saveFossils(ctx, name, saved.ID, fossilHits.items, notes)
	}
	return data, nil
}

// searchAll runs the search branches concurrently and waits for all of them.
// Each branch owns its result.
func (w *Workflow) searchAll(ctx context.Context, name string) (basic branch[types.SearchResult], images branch[types.Image], fossils branch[types.SearchResult]) {
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer w.settle(StepSearchBasic, name, &basic.err)
		basic.items, basic.err = runStep(ctx, w, StepSearchBasic, name, func(ctx context.Context) ([]types.SearchResult, error) {
			return w.search.SearchBasic(ctx, name)
		})
	}()
	go func() {
		defer wg.Done()
		defer w.settle(StepSearchImages, name, &images.err)
		images.items, images.err = runStep(ctx, w, StepSearchImages, name, func(ctx context.Context) ([]types.Image, error) {
			return w.search.SearchImages(ctx, name)
		})
	}()
	if w.opts.IncludeFossils {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer w.settle(StepSearchFossils, name, &fossils.err)
			fossils.items, fossils.err = runStep(ctx, w, StepSearchFossils, name, func(ctx context.Context) ([]types.SearchResult, error) {
				return w.search.SearchAspect(ctx, name, FossilAspect, nil)
			})
		}()
	}

	wg.Wait()
	w.log.Info("searches settled",
		zap.String("subject", name),
		zap.Int("basic", len(basic.items)),
		zap.Int("images", len(images.items)),
		zap.Int("fossil_hits", len(fossils.items)))
	return basic, images, fossils
}

// settle turns a panic in a search branch into that branch's error so the
// other branches and the caller keep running.
func (w *Workflow) settle(label, subject string, err *error) {
	if r := recover(); r != nil {
		w.log.Error("search branch panicked",
			zap.String("step", label),
			zap.String("subject", subject),
			zap.Any("panic", r))
		*err = fmt.Errorf("%s异常: %v", label, r)
	}
}

// save fills the required defaults, then updates the record whose name
// matches byte for byte or creates a new one, and attaches images.
func (w *Workflow) save(ctx context.Context, name string, info types.DinosaurInfo, images []types.Image) (*types.Dinosaur, error) {
	info = info.WithDefaults(name)

	existing, err := w.records.FindExact(ctx, info.Name)
	if err != nil {
		return nil, fmt.Errorf("保存失败: %w", err)
	}

	var saved *types.Dinosaur
	if existing != nil && existing.ID != "" {
		w.log.Info("updating existing record", zap.String("name", info.Name), zap.String("id", existing.ID))
		saved, err = w.records.Update(ctx, existing.ID, info.Patch())
	} else {
		w.log.Info("creating record", zap.String("name", info.Name))
		saved, err = w.records.Create(ctx, info)
	}
	if err != nil {
		return nil, fmt.Errorf("保存失败: %w", err)
	}

	if saved.ID != "" && len(images) > 0 {
		if err := w.records.AddImages(ctx, saved.ID, images); err != nil {
			return nil, fmt.Errorf("保存失败: %w", err)
		}
	}
	return saved, nil
}

// saveFossils extracts fossil finds and attaches them to the saved record.
// Failures are noted and never fail the run.
func (w *Workflow) saveFossils(ctx context.Context, name, id string, hits []types.SearchResult, notes *[]string) []types.Fossil {
	fossils, err := w.extract.ExtractFossils(ctx, name, hits)
	if err != nil {
		*notes = append(*notes, fmt.Sprintf("化石信息提取失败: %v", err))
		return nil
	}
	if len(fossils) == 0 {
		return nil
	}

	_, err = runStep(ctx, w, StepSaveFossils, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.records.AddFossils(ctx, id, fossils)
	})
	if err != nil {
		*notes = append(*notes, fmt.Sprintf("化石信息保存失败: %v", err))
		return nil
	}
	return fossils
}
