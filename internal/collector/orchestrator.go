package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dreyes86/poolwatch/internal/antpool"
	"github.com/dreyes86/poolwatch/internal/config"
	"github.com/dreyes86/poolwatch/internal/credentials"
	"github.com/dreyes86/poolwatch/internal/model"
	"github.com/dreyes86/poolwatch/internal/ratelimit"
)

// ErrNoUsableAccounts is returned when credential resolution fails for
// every selected account. A run with nothing to do is an operator
// problem, not a partial result.
var ErrNoUsableAccounts = errors.New("no account has usable credentials")

// workerPageSize rows per worker-list page.
const workerPageSize = 50

type apiCaller interface {
	Call(ctx context.Context, ep antpool.Endpoint, creds credentials.Triple, params url.Values) (*antpool.Response, error)
}

type budget interface {
	Reserve(n int) error
	Release(n int)
	Record()
}

type captureStore interface {
	Record(ctx context.Context, c *model.RawCapture) (int64, error)
}

type accountStore interface {
	Ensure(ctx context.Context, name, group string) (int, error)
}

type flagSource interface {
	AccountIDsWithOpen(ctx context.Context) ([]int, error)
}

// Summary is the machine-readable result of one tier run.
//
// An account is Attempted once it issues at least one call. Deferred
// counts accounts the budget skipped outright or cut short
// mid-collection; a cut-short account is both Attempted and Deferred,
// never Succeeded.
type Summary struct {
	Tier               string   `json:"tier"`
	Attempted          int      `json:"accounts_attempted"`
	Succeeded          int      `json:"accounts_succeeded"`
	Failed             int      `json:"accounts_failed"`
	Deferred           int      `json:"accounts_deferred"`
	MissingCredentials []string `json:"missing_credentials,omitempty"`
	CallsSpent         int      `json:"calls_spent"`
	AuthErrors         int      `json:"auth_errors"`
	RateLimited        int      `json:"rate_limited"`
	NetworkErrors      int      `json:"network_errors"`
	RemoteErrors       int      `json:"remote_errors"`
	DurationMS         int64    `json:"duration_ms"`
}

// Partial reports whether some selected accounts did not complete.
func (s *Summary) Partial() bool {
	return s.Failed > 0 || s.Deferred > 0 || len(s.MissingCredentials) > 0
}

// countError categorizes a final call error. Caller holds the summary
// lock.
func (s *Summary) countError(err error) {
	var authErr *antpool.AuthError
	var rlErr *antpool.RateLimitedError
	var netErr *antpool.NetworkError
	switch {
	case errors.As(err, &authErr):
		s.AuthErrors++
	case errors.As(err, &rlErr):
		s.RateLimited++
	case errors.As(err, &netErr):
		s.NetworkErrors++
	default:
		s.RemoteErrors++
	}
}

// Orchestrator drives one tier run: select accounts, reserve budget,
// issue signed calls through a bounded worker pool, and persist every
// outcome as a raw capture. Interpretation of payloads happens later,
// in the parser.
type Orchestrator struct {
	client   apiCaller
	resolver credentials.Resolver
	governor budget
	captures captureStore
	accounts accountStore
	flags    flagSource
	logger   *slog.Logger

	accountCfgs []config.AccountConfig
	coin        string
	poolSize    int
	maxRetries  int
	retryBase   time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func New(
	client apiCaller,
	resolver credentials.Resolver,
	governor budget,
	captures captureStore,
	accounts accountStore,
	flags flagSource,
	cfg *config.Config,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		client:      client,
		resolver:    resolver,
		governor:    governor,
		captures:    captures,
		accounts:    accounts,
		flags:       flags,
		logger:      logger,
		accountCfgs: cfg.Accounts,
		coin:        cfg.Coin,
		poolSize:    cfg.WorkerPoolSize,
		maxRetries:  cfg.MaxCallRetries,
		retryBase:   cfg.RetryBaseDelay,
		sleep:       sleepCtx,
	}
}

// target is one account ready to collect: registered, with resolved
// credentials.
type target struct {
	id    int
	name  string
	creds credentials.Triple
}

// Run executes one tier. Per-account failures are isolated and land in
// the summary; the returned error is reserved for run-fatal conditions
// (unreachable store, nothing collectable at all).
func (o *Orchestrator) Run(ctx context.Context, tier Tier) (*Summary, error) {
	start := time.Now()
	sum := &Summary{Tier: tier.Name}

	targets, err := o.selectAccounts(ctx, tier, sum)
	if err != nil {
		return sum, err
	}
	if len(targets) == 0 {
		if len(sum.MissingCredentials) > 0 {
			return sum, ErrNoUsableAccounts
		}
		o.logger.Info("no accounts selected for tier", "tier", tier.Name)
		sum.DurationMS = time.Since(start).Milliseconds()
		return sum, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.poolSize)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			return o.collectAccount(gctx, tier, t, sum, &mu)
		})
	}
	if err := g.Wait(); err != nil {
		sum.DurationMS = time.Since(start).Milliseconds()
		return sum, err
	}

	sum.DurationMS = time.Since(start).Milliseconds()
	o.logger.Info("tier run complete",
		"tier", tier.Name,
		"attempted", sum.Attempted,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"deferred", sum.Deferred,
		"calls_spent", sum.CallsSpent,
	)
	return sum, nil
}

// selectAccounts registers the configured accounts, applies the tier's
// selection policy and resolves credentials. Accounts with missing
// credentials are reported once in the summary and skipped.
func (o *Orchestrator) selectAccounts(ctx context.Context, tier Tier, sum *Summary) ([]target, error) {
	var flagged map[int]bool
	if tier.Selection == SelectFlagged {
		ids, err := o.flags.AccountIDsWithOpen(ctx)
		if err != nil {
			return nil, fmt.Errorf("list flagged accounts: %w", err)
		}
		flagged = make(map[int]bool, len(ids))
		for _, id := range ids {
			flagged[id] = true
		}
	}

	var targets []target
	for _, ac := range o.accountCfgs {
		id, err := o.accounts.Ensure(ctx, ac.Name, ac.Group)
		if err != nil {
			return nil, fmt.Errorf("ensure account %s: %w", ac.Name, err)
		}
		if flagged != nil && !flagged[id] {
			continue
		}
		creds, err := o.resolver.Lookup(ac.Name)
		if err != nil {
			o.logger.Warn("skipping account, credentials unresolved",
				"account", ac.Name, "error", err)
			sum.MissingCredentials = append(sum.MissingCredentials, ac.Name)
			continue
		}
		targets = append(targets, target{id: id, name: ac.Name, creds: creds})
	}
	return targets, nil
}

// collectAccount walks the tier's endpoints in fixed order for one
// account. Reservations for calls that end up not issued are released.
// A capture-store failure aborts the whole run.
func (o *Orchestrator) collectAccount(ctx context.Context, tier Tier, t target, sum *Summary, mu *sync.Mutex) error {
	needed := len(tier.Endpoints)
	if err := o.governor.Reserve(needed); err != nil {
		o.logger.Info("budget exhausted, deferring account",
			"tier", tier.Name, "account", t.name)
		mu.Lock()
		sum.Deferred++
		mu.Unlock()
		return nil
	}

	mu.Lock()
	sum.Attempted++
	mu.Unlock()

	remaining := needed
	var failed, cutShort bool

	for _, ep := range tier.Endpoints {
		if ctx.Err() != nil {
			o.governor.Release(remaining)
			remaining = 0
			cutShort = true
			break
		}

		callErr, fatal := o.callAndCapture(ctx, ep, t, o.endpointParams(ep, 1), tier.Paginated, sum, mu)
		remaining--
		if fatal != nil {
			o.governor.Release(remaining)
			return fatal
		}
		if callErr != nil {
			if errors.Is(callErr, ratelimit.ErrBudgetExceeded) ||
				errors.Is(callErr, context.Canceled) ||
				errors.Is(callErr, context.DeadlineExceeded) {
				o.governor.Release(remaining)
				remaining = 0
				cutShort = true
				break
			}
			failed = true
			o.logger.Warn("endpoint call failed",
				"tier", tier.Name, "account", t.name,
				"endpoint", ep.Name(), "error", callErr)
			var authErr *antpool.AuthError
			if errors.As(callErr, &authErr) {
				// Remaining endpoints would fail the same way.
				o.governor.Release(remaining)
				remaining = 0
				break
			}
			continue
		}
	}
	if remaining > 0 {
		o.governor.Release(remaining)
	}

	mu.Lock()
	defer mu.Unlock()
	switch {
	case failed:
		sum.Failed++
	case cutShort:
		sum.Deferred++
	default:
		sum.Succeeded++
	}
	return nil
}

// callAndCapture issues one endpoint call (with retries), stores the
// capture, and for paginated worker lists walks the remaining pages as
// further governed calls. Returns the final call error if the endpoint
// could not be fully collected, and separately a run-fatal error.
func (o *Orchestrator) callAndCapture(
	ctx context.Context,
	ep antpool.Endpoint,
	t target,
	params url.Values,
	paginate bool,
	sum *Summary,
	mu *sync.Mutex,
) (error, error) {
	resp, attempts, callErr := o.callWithRetry(ctx, ep, t.creds, params)

	capture := buildCapture(t, ep, resp, callErr)
	totalPages := 1
	if callErr == nil && ep == antpool.EndpointWorkers {
		rows, pages := peekWorkerPage(resp.Body)
		capture.ItemCount = rows
		totalPages = pages
	}

	if _, err := o.captures.Record(ctx, capture); err != nil {
		return callErr, fmt.Errorf("record capture: %w", err)
	}

	mu.Lock()
	sum.CallsSpent += attempts
	if callErr != nil {
		sum.countError(callErr)
	}
	mu.Unlock()

	if callErr != nil || !paginate || ep != antpool.EndpointWorkers {
		return callErr, nil
	}

	// Remaining pages, each its own reservation and capture.
	for page := 2; page <= totalPages; page++ {
		if ctx.Err() != nil {
			return ctx.Err(), nil
		}
		if err := o.governor.Reserve(1); err != nil {
			o.logger.Info("budget exhausted mid-pagination",
				"account", t.name, "page", page, "total_pages", totalPages)
			return err, nil
		}
		resp, attempts, callErr = o.callWithRetry(ctx, ep, t.creds, o.endpointParams(ep, page))
		capture = buildCapture(t, ep, resp, callErr)
		if callErr == nil {
			rows, _ := peekWorkerPage(resp.Body)
			capture.ItemCount = rows
		}
		if _, err := o.captures.Record(ctx, capture); err != nil {
			return callErr, fmt.Errorf("record capture: %w", err)
		}
		mu.Lock()
		sum.CallsSpent += attempts
		if callErr != nil {
			sum.countError(callErr)
		}
		mu.Unlock()
		if callErr != nil {
			return callErr, nil
		}
	}
	return nil, nil
}

// callWithRetry issues the call and retries transient failures
// (network, rate limit) with exponential backoff, as long as the budget
// admits another attempt. Every attempt, successful or not, is recorded
// against the rolling window: the remote counted it, so must we. Auth
// and remote errors are terminal.
func (o *Orchestrator) callWithRetry(ctx context.Context, ep antpool.Endpoint, creds credentials.Triple, params url.Values) (*antpool.Response, int, error) {
	delay := o.retryBase
	attempts := 0
	for {
		resp, err := o.client.Call(ctx, ep, creds, params)
		o.governor.Record()
		attempts++
		if err == nil {
			return resp, attempts, nil
		}
		if !isTransient(err) || attempts > o.maxRetries {
			return resp, attempts, err
		}

		wait := delay
		var rlErr *antpool.RateLimitedError
		if errors.As(err, &rlErr) && rlErr.RetryAfter > wait {
			wait = rlErr.RetryAfter
		}
		if serr := o.sleep(ctx, wait); serr != nil {
			return resp, attempts, err
		}
		delay *= 2

		if rerr := o.governor.Reserve(1); rerr != nil {
			o.logger.Info("budget exhausted, abandoning retry",
				"endpoint", ep.Name(), "attempts", attempts)
			return resp, attempts, err
		}
	}
}

func isTransient(err error) bool {
	var netErr *antpool.NetworkError
	var rlErr *antpool.RateLimitedError
	return errors.As(err, &netErr) || errors.As(err, &rlErr)
}

// endpointParams builds the non-auth form parameters for one call.
func (o *Orchestrator) endpointParams(ep antpool.Endpoint, page int) url.Values {
	v := url.Values{}
	v.Set("coin", o.coin)
	switch ep {
	case antpool.EndpointWorkers:
		v.Set("pageEnable", "1")
		v.Set("page", strconv.Itoa(page))
		v.Set("pageSize", strconv.Itoa(workerPageSize))
	case antpool.EndpointPayments:
		v.Set("type", "payout")
		v.Set("pageEnable", "1")
		v.Set("page", "1")
		v.Set("pageSize", strconv.Itoa(workerPageSize))
	}
	return v
}

// buildCapture assembles the stored record for one call outcome. The
// payload is the raw body verbatim, even for failed calls; a call that
// never produced a response stores an empty payload with the error.
func buildCapture(t target, ep antpool.Endpoint, resp *antpool.Response, callErr error) *model.RawCapture {
	c := &model.RawCapture{
		AccountID:   t.id,
		AccountName: t.name,
		Endpoint:    ep.Name(),
		Processed:   model.CapturePending,
	}
	if resp != nil {
		c.Payload = string(resp.Body)
		c.ByteSize = resp.ByteSize
		c.StatusCode = resp.StatusCode
		c.DurationMS = resp.Duration.Milliseconds()
	}
	if callErr != nil {
		c.CallError = callErr.Error()
		c.Processed = model.CaptureFailed
	}
	return c
}

// peekWorkerPage pulls the row count and page total out of a worker-list
// payload without fully interpreting it. On any shape mismatch it
// reports a single page so pagination degrades to page one.
func peekWorkerPage(body []byte) (rows, totalPages int) {
	var env struct {
		Data struct {
			Result struct {
				TotalPage int               `json:"totalPage"`
				Rows      []json.RawMessage `json:"rows"`
			} `json:"result"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return 0, 1
	}
	pages := env.Data.Result.TotalPage
	if pages < 1 {
		pages = 1
	}
	return len(env.Data.Result.Rows), pages
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
