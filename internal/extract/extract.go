// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns search results into structured dinosaur data with a
// chat-completion model. Each operation renders a fixed prompt over a capped
// slice of results, sends it to a Completer, and decodes the answer through
// a schema check that covers every field it reads.
package extract

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// Completer abstracts the chat-completion API so tests can supply a mock.
// Implementations send one user prompt and return the raw text answer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Temperature is the sampling temperature sent by every backend.
const Temperature = 0.1

// Op names an extraction operation.
type Op string

const (
	OpBasicInfo Op = "basic_info"
	OpFossils   Op = "fossils"
	OpImageURLs Op = "image_urls"
	OpValidate  Op = "validate"
)

// Policy is what an operation does when the model call or decoding fails.
type Policy int

const (
	// Fatal returns an *extract.Error.
	Fatal Policy = iota
	// Degrade logs and returns an empty result.
	Degrade
	// Conservative manufactures a failed ValidationResult that echoes the input.
	Conservative
)

// operation is one row of the operation table.
type operation struct {
	maxResults int
	maxChars   int
	withSource bool
	policy     Policy
}

// operations fixes the input budget and failure policy of each operation.
var operations = map[Op]operation{
	OpBasicInfo: {maxResults: 5, maxChars: 20000, withSource: true, policy: Fatal},
	OpFossils:   {maxResults: 3, maxChars: 5000, withSource: false, policy: Degrade},
	OpImageURLs: {maxResults: 3, maxChars: 10000, withSource: true, policy: Degrade},
	OpValidate:  {policy: Conservative},
}

// PolicyFor reports the failure policy of op.
func PolicyFor(op Op) Policy {
	return operations[op].policy
}

// MaxImageURLs caps the URLs returned by ExtractImageURLs.
const MaxImageURLs = 5

// Validation error messages used when the model's verdict cannot be read.
const (
	msgBadShape        = "返回结果格式不正确"
	msgValidationError = "验证过程出错"
)

// Error is returned by Fatal operations.
type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("信息提取失败: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Extractor runs the extraction operations against one Completer.
type Extractor struct {
	llm Completer
	log *zap.Logger
}

// New returns an Extractor over llm. A nil logger discards log output.
func New(llm Completer, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{llm: llm, log: log}
}

// ExtractBasicInfo asks the model for the descriptive fields of name. An
// empty name in the answer is replaced by the subject.
func (e *Extractor) ExtractBasicInfo(ctx context.Context, name string, results []types.SearchResult) (types.DinosaurInfo, error) {
	op := operations[OpBasicInfo]
	prompt, err := render(basicInfoTmpl, promptData{
		Name:    name,
		Results: formatResults(results, op.maxResults, op.maxChars, op.withSource),
	})
	if err != nil {
		return types.DinosaurInfo{}, fmt.Errorf("rendering prompt: %w", err)
	}

	raw, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		return types.DinosaurInfo{}, e.fail(OpBasicInfo, name, err)
	}

	info, err := decodeBasicInfo(raw)
	if err != nil {
		return types.DinosaurInfo{}, e.fail(OpBasicInfo, name, err)
	}
	if info.Name == "" {
		info.Name = name
	}

	e.log.Info("extracted basic info", zap.String("subject", name), zap.String("scientific_name", info.ScientificName))
	return info, nil
}

// ExtractFossils asks the model for fossil discoveries of name.
func (e *Extractor) ExtractFossils(ctx context.Context, name string, results []types.SearchResult) ([]types.Fossil, error) {
	op := operations[OpFossils]
	prompt, err := render(fossilsTmpl, promptData{
		Name:    name,
		Results: formatResults(results, op.maxResults, op.maxChars, op.withSource),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	raw, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		return []types.Fossil{}, e.fail(OpFossils, name, err)
	}

	fossils, err := decodeFossils(raw)
	if err != nil {
		return []types.Fossil{}, e.fail(OpFossils, name, err)
	}

	e.log.Info("extracted fossils", zap.String("subject", name), zap.Int("count", len(fossils)))
	return fossils, nil
}

// ExtractImageURLs asks the model for image URLs of name found in results.
// At most MaxImageURLs are returned.
func (e *Extractor) ExtractImageURLs(ctx context.Context, name string, results []types.SearchResult) ([]string, error) {
	op := operations[OpImageURLs]
	prompt, err := render(imageURLsTmpl, promptData{
		Name:    name,
		Results: formatResults(results, op.maxResults, op.maxChars, op.withSource),
		Max:     MaxImageURLs,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	raw, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		return []string{}, e.fail(OpImageURLs, name, err)
	}

	urls, err := decodeURLs(raw)
	if err != nil {
		return []string{}, e.fail(OpImageURLs, name, err)
	}
	if len(urls) > MaxImageURLs {
		urls = urls[:MaxImageURLs]
	}
	return urls, nil
}

// ValidateAndCleanInfo asks the model to check and normalize info. When the
// model cannot be reached or its answer is not JSON, the reason is
// msgValidationError; JSON of the wrong shape gives msgBadShape. Either way
// the result is {IsValid: false, Errors: [reason], CleanedInfo: info} and the
// error is nil.
func (e *Extractor) ValidateAndCleanInfo(ctx context.Context, info types.DinosaurInfo) (types.ValidationResult, error) {
	encoded, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return rejected(info, msgValidationError), nil
	}
	prompt, err := render(validateTmpl, promptData{Info: string(encoded)})
	if err != nil {
		return rejected(info, msgValidationError), nil
	}

	raw, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		e.log.Warn("validation call failed", zap.String("subject", info.Name), zap.Error(err))
		return rejected(info, msgValidationError), nil
	}

	if !json.Valid([]byte(cleanJSON(raw))) {
		e.log.Warn("validation answer is not JSON", zap.String("subject", info.Name))
		return rejected(info, msgValidationError), nil
	}
	res, err := decodeValidation(raw)
	if err != nil {
		e.log.Warn("validation answer has unexpected shape", zap.String("subject", info.Name), zap.Error(err))
		return rejected(info, msgBadShape), nil
	}

	e.log.Info("validated info", zap.String("subject", info.Name), zap.Bool("valid", res.IsValid), zap.Strings("errors", res.Errors))
	return res, nil
}

func rejected(info types.DinosaurInfo, reason string) types.ValidationResult {
	return types.ValidationResult{IsValid: false, Errors: []string{reason}, CleanedInfo: info}
}

// fail applies the operation's policy to err. Degrade operations log and
// return nil so the caller keeps its empty result.
func (e *Extractor) fail(op Op, subject string, err error) error {
	if PolicyFor(op) == Degrade {
		e.log.Warn("extraction failed, continuing without result",
			zap.String("op", string(op)),
			zap.String("subject", subject),
			zap.Error(err))
		return nil
	}
	return &Error{Op: op, Err: err}
}
