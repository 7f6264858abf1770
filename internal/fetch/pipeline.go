// Package fetch drives one tracker through the nine-step fetch pipeline:
// configure requests, guard against non-public URLs, issue them, extract
// and parse the result, persist a revision on change, and fan out
// notification actions — or, on failure, account for a retry.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/retrack-engine/retrack/internal/domain"
	"github.com/retrack-engine/retrack/internal/jsruntime"
	"github.com/retrack-engine/retrack/internal/netguard"
	"github.com/retrack-engine/retrack/internal/parsers"
	"github.com/retrack-engine/retrack/internal/revisions"
	"github.com/retrack-engine/retrack/internal/tasks"
)

// HTTPDoer matches net/http.Client's Do method, letting the real client or
// a test double satisfy Pipeline's transport dependency with zero adapter
// code.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebScraperClient reaches the headless-browser component for PageTarget
// trackers. It is injected the same way HTTPDoer is: the real client is a
// thin net/http wrapper (internal/webscraper), tests supply a fake.
type WebScraperClient interface {
	Render(ctx context.Context, target domain.PageTarget) ([]byte, string, error)
}

// JobRepository is the subset of scheduler bookkeeping the pipeline needs
// to stop a display-only tracker's job and to persist retry accounting.
type JobRepository interface {
	RemovePerTrackerJob(ctx context.Context, trackerID string) error
	GetRetryMeta(ctx context.Context, trackerID string) (*domain.RetryMeta, error)
	SetRetryMeta(ctx context.Context, trackerID string, meta *domain.RetryMeta, stopped bool) error
}

// Pipeline wires the Script Runtime, Network Guard, Content Parsers,
// Revision Store, and Task Queue into the nine fetch steps.
type Pipeline struct {
	Runtime    *jsruntime.Runtime
	Guard      *netguard.Guard
	Revisions  *revisions.Store
	Tasks      *tasks.Queue
	Jobs       JobRepository
	HTTP       HTTPDoer
	WebScraper WebScraperClient
	Budget     jsruntime.Budget
}

// Run executes the full pipeline for one tracker. A panic anywhere in the
// run is recovered and reported as a pipeline error so one tracker's
// failure never aborts a trackers-run tick.
func (p *Pipeline) Run(ctx context.Context, tracker *domain.Tracker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewEngineError(domain.KindUnknown, fmt.Errorf("pipeline panic: %v", r))
		}
	}()

	// Step 1: display-only trackers carry no job and are never run.
	if tracker.Config.Revisions == 0 || tracker.Config.Job == nil {
		return p.Jobs.RemovePerTrackerJob(ctx, tracker.ID)
	}

	runErr := p.run(ctx, tracker)
	if runErr == nil {
		if tracker.Config.Job.RetryStrategy != nil {
			_ = p.Jobs.SetRetryMeta(ctx, tracker.ID, nil, false)
		}
		return nil
	}

	return p.accountForFailure(ctx, tracker, runErr)
}

func (p *Pipeline) run(ctx context.Context, tracker *domain.Tracker) error {
	ctx, cancel := context.WithTimeout(ctx, tracker.Config.Timeout)
	defer cancel()

	bodies, mediaType, err := p.issueRequests(ctx, tracker)
	if err != nil {
		return err
	}

	candidate, err := p.extract(ctx, tracker, bodies)
	if err != nil {
		return err
	}

	parsed, err := parsers.Parse(mediaType, candidate)
	if err != nil {
		return domain.NewEngineError(domain.KindUnknown, fmt.Errorf("parse: %w", err))
	}

	rev, err := p.Revisions.AppendIfChanged(ctx, tracker.ID, json.RawMessage(parsed), tracker.Config.Revisions)
	if err != nil {
		return err
	}
	if rev == nil {
		return nil // unchanged: nothing to notify
	}

	return p.notify(ctx, tracker, rev.Data.Value())
}

// issueRequests implements steps 2-4: configure, guard, issue.
func (p *Pipeline) issueRequests(ctx context.Context, tracker *domain.Tracker) ([]json.RawMessage, string, error) {
	switch tracker.Target.Kind {
	case domain.TargetKindPage:
		return p.issuePageRequest(ctx, tracker, tracker.Target.Page)
	case domain.TargetKindAPI:
		return p.issueAPIRequests(ctx, tracker, tracker.Target.Api)
	default:
		return nil, "", domain.NewEngineError(domain.KindClient, fmt.Errorf("unknown target kind %q", tracker.Target.Kind))
	}
}

func (p *Pipeline) issuePageRequest(ctx context.Context, tracker *domain.Tracker, page *domain.PageTarget) ([]json.RawMessage, string, error) {
	if tracker.Config.RestrictToPublicURLs && !p.Guard.IsPublicWebURL(ctx, page.URL) {
		return nil, "", domain.NewEngineError(domain.KindClient, fmt.Errorf("url %q is not a public web url", page.URL))
	}
	body, mediaType, err := p.WebScraper.Render(ctx, *page)
	if err != nil {
		return nil, "", domain.NewEngineError(domain.KindFetch, err)
	}
	return []json.RawMessage{body}, mediaType, nil
}

func (p *Pipeline) issueAPIRequests(ctx context.Context, tracker *domain.Tracker, api *domain.ApiTarget) ([]json.RawMessage, string, error) {
	requests := api.Requests

	if api.ConfiguratorScript != "" {
		latest, err := p.latestRevisionValue(ctx, tracker.ID)
		if err != nil {
			return nil, "", err
		}

		rawRequests := make([]json.RawMessage, len(requests))
		for i, r := range requests {
			encoded, err := json.Marshal(r)
			if err != nil {
				return nil, "", domain.NewEngineError(domain.KindUnknown, err)
			}
			rawRequests[i] = encoded
		}

		result, err := jsruntime.RunConfigurator(ctx, p.Runtime, api.ConfiguratorScript, jsruntime.ConfiguratorArgs{
			Tags:             tracker.Tags,
			PreviousRevision: latest,
			Requests:         rawRequests,
		}, p.Budget)
		if err != nil {
			return nil, "", domain.NewEngineError(domain.KindScript, err)
		}

		if len(result.Response) > 0 {
			return []json.RawMessage{result.Response}, "application/json", nil
		}
		if len(result.Requests) > 0 {
			requests = nil
			for _, raw := range result.Requests {
				var req domain.APIRequest
				if err := json.Unmarshal(raw, &req); err != nil {
					return nil, "", domain.NewEngineError(domain.KindScript, fmt.Errorf("decode configured request: %w", err))
				}
				requests = append(requests, req)
			}
		}
	}

	var bodies []json.RawMessage
	for _, req := range requests {
		if tracker.Config.RestrictToPublicURLs && !p.Guard.IsPublicWebURL(ctx, req.URL) {
			return nil, "", domain.NewEngineError(domain.KindClient, fmt.Errorf("url %q is not a public web url", req.URL))
		}

		httpReq, err := http.NewRequestWithContext(ctx, methodOrDefault(req.Method), req.URL, bytes.NewReader(req.Body))
		if err != nil {
			return nil, "", domain.NewEngineError(domain.KindClient, err)
		}
		for k, v := range req.Headers {
			httpReq.Header.Set(k, v)
		}

		resp, err := p.HTTP.Do(httpReq)
		if err != nil {
			return nil, "", domain.NewEngineError(domain.KindFetch, err)
		}
		body, err := readAndClose(resp)
		if err != nil {
			return nil, "", domain.NewEngineError(domain.KindFetch, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, "", domain.NewEngineError(domain.KindFetch, fmt.Errorf("request to %q returned status %d", req.URL, resp.StatusCode))
		}

		bodies = append(bodies, json.RawMessage(body))
	}

	return bodies, "application/json", nil
}

func (p *Pipeline) extract(ctx context.Context, tracker *domain.Tracker, bodies []json.RawMessage) (json.RawMessage, error) {
	script := extractorScript(tracker.Target)
	if script == "" {
		if len(bodies) == 0 {
			return nil, domain.NewEngineError(domain.KindFetch, fmt.Errorf("no response bodies to extract from"))
		}
		return bodies[0], nil
	}

	result, err := jsruntime.RunExtractor(ctx, p.Runtime, script, jsruntime.ExtractorArgs{Bodies: bodies}, p.Budget)
	if err != nil {
		return nil, domain.NewEngineError(domain.KindScript, err)
	}
	return result, nil
}

func extractorScript(target domain.TrackerTarget) string {
	switch target.Kind {
	case domain.TargetKindPage:
		return target.Page.ExtractorScript
	case domain.TargetKindAPI:
		return target.Api.ExtractorScript
	default:
		return ""
	}
}

// notify implements step 8: fan out one task per configured action,
// running its formatter (if any) against the revision value first.
func (p *Pipeline) notify(ctx context.Context, tracker *domain.Tracker, value json.RawMessage) error {
	for _, action := range tracker.Actions {
		payload := value
		if action.Formatter != "" {
			formatted, err := jsruntime.RunFormatter(ctx, p.Runtime, action.Formatter, value, p.Budget)
			if err != nil {
				return domain.NewEngineError(domain.KindScript, err)
			}
			payload = formatted
		}

		if err := p.scheduleAction(ctx, action, payload); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) scheduleAction(ctx context.Context, action domain.Action, payload json.RawMessage) error {
	now := time.Now().UTC()
	switch action.Kind {
	case domain.ActionKindServerLog:
		logRevisionValue(ctx, payload)
		return nil
	case domain.ActionKindEmail:
		_, err := p.Tasks.Schedule(ctx, domain.TaskType{
			Kind: domain.TaskKindEmail,
			Email: &domain.EmailTask{
				To: action.Email.To,
				Content: domain.EmailContent{
					Kind:    domain.EmailContentKindLiteral,
					Literal: &domain.LiteralEmail{Subject: "retrack update", Body: string(payload)},
				},
			},
		}, now, nil)
		return domain.NewEngineError(domain.KindPersistence, err)
	case domain.ActionKindWebhook:
		_, err := p.Tasks.Schedule(ctx, domain.TaskType{
			Kind: domain.TaskKindHTTP,
			HTTP: &domain.HTTPTask{
				URL:     action.Webhook.URL,
				Method:  action.Webhook.Method,
				Headers: action.Webhook.Headers,
				Body:    payload,
			},
		}, now, nil)
		return domain.NewEngineError(domain.KindPersistence, err)
	default:
		return domain.NewEngineError(domain.KindClient, fmt.Errorf("unknown action kind %q", action.Kind))
	}
}

// accountForFailure implements step 9: consult the tracker's retry
// strategy and either schedule a retry (persisting the attempt count and
// next_at and marking the job stopped) or fan out the failure to the same
// actions and clear the retry state.
func (p *Pipeline) accountForFailure(ctx context.Context, tracker *domain.Tracker, runErr error) error {
	strategy := tracker.Config.Job.RetryStrategy
	if strategy == nil || !domain.IsRetryable(runErr) {
		_ = p.notifyFailure(ctx, tracker, runErr)
		_ = p.Jobs.SetRetryMeta(ctx, tracker.ID, nil, false)
		return runErr
	}

	prior, err := p.Jobs.GetRetryMeta(ctx, tracker.ID)
	if err != nil {
		return domain.NewEngineError(domain.KindPersistence, err)
	}
	attempt := 1
	if prior != nil {
		attempt = prior.Attempts + 1
	}
	if attempt > strategy.MaxAttempts() {
		_ = p.notifyFailure(ctx, tracker, runErr)
		_ = p.Jobs.SetRetryMeta(ctx, tracker.ID, nil, false)
		return runErr
	}

	nextAt := time.Now().UTC().Add(strategy.NextDelay(attempt))
	if err := p.Jobs.SetRetryMeta(ctx, tracker.ID, &domain.RetryMeta{Attempts: attempt, NextAt: nextAt}, true); err != nil {
		return domain.NewEngineError(domain.KindPersistence, err)
	}
	return runErr
}

func (p *Pipeline) notifyFailure(ctx context.Context, tracker *domain.Tracker, runErr error) error {
	payload, _ := json.Marshal(map[string]string{"error": runErr.Error()})
	return p.notify(ctx, tracker, payload)
}

func (p *Pipeline) latestRevisionValue(ctx context.Context, trackerID string) (json.RawMessage, error) {
	revs, err := p.Revisions.List(ctx, trackerID, revisions.ListOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(revs) == 0 {
		return nil, nil
	}
	return revs[0].Data.Value(), nil
}

func methodOrDefault(method string) string {
	if method == "" {
		return http.MethodGet
	}
	return method
}

func readAndClose(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func logRevisionValue(ctx context.Context, value json.RawMessage) {
	slog.InfoContext(ctx, "tracker revision", "value", string(value))
}
