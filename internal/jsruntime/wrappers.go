package jsruntime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/retrack-engine/retrack/internal/domain"
)

// ConfiguratorArgs is the JSON shape exposed as `context` to a
// configurator script: tracker tags, the previous revision value (nil if
// none), and the declared request list.
type ConfiguratorArgs struct {
	Tags             []string        `json:"tags"`
	PreviousRevision json.RawMessage `json:"previous_revision,omitempty"`
	Requests         []json.RawMessage `json:"requests"`
}

// ConfiguratorResult is a union of "rewrite requests" and "synthesize a
// response", distinguished by which key the script's returned object sets.
// Both set is an error (see Open Questions, spec §9): the caller must not
// guess.
type ConfiguratorResult struct {
	Requests []json.RawMessage `json:"requests,omitempty"`
	Response json.RawMessage   `json:"response,omitempty"`
}

// RunConfigurator executes a configurator script and decodes its result.
func RunConfigurator(ctx context.Context, rt *Runtime, source string, args ConfiguratorArgs, budget Budget) (ConfiguratorResult, error) {
	var result ConfiguratorResult
	raw, err := rt.Execute(ctx, source, args, budget)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, scriptError(fmt.Errorf("decode configurator result: %w", err))
	}
	if len(result.Requests) > 0 && len(result.Response) > 0 {
		return ConfiguratorResult{}, scriptError(domain.ErrAmbiguousConfiguratorResult)
	}
	return result, nil
}

// ExtractorArgs is the JSON shape exposed to an extractor script: the
// ordered list of raw response bodies collected during step 4.
type ExtractorArgs struct {
	Bodies []json.RawMessage `json:"bodies"`
}

// RunExtractor executes an extractor script and returns its raw JSON
// result, which becomes the pipeline's candidate raw revision.
func RunExtractor(ctx context.Context, rt *Runtime, source string, args ExtractorArgs, budget Budget) (json.RawMessage, error) {
	raw, err := rt.Execute(ctx, source, args, budget)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// RunFormatter executes a formatter script against an arbitrary input
// value and returns its JSON result.
func RunFormatter(ctx context.Context, rt *Runtime, source string, input any, budget Budget) (json.RawMessage, error) {
	raw, err := rt.Execute(ctx, source, input, budget)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
