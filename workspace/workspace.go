// Package workspace drives the docupilot stores against the remote
// collaborators.
//
// Every asynchronous operation follows the same lifecycle: the start
// transition is applied synchronously by the calling goroutine, the
// collaborator call runs on a per-key executor shard, and its success or
// failure is resolved into the stores by the same job. Operations sharing a
// key ("session", "documents", "document:<id>", "chat:<id>") run in FIFO
// order; different keys run in parallel.
//
// A 401 from any authenticated call signs the user out of every store and
// fires the OnAuthRequired hook.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/satishkumarchitti/AI-Chat-Bot/client"
	"github.com/satishkumarchitti/AI-Chat-Bot/internal/config"
	"github.com/satishkumarchitti/AI-Chat-Bot/internal/localstate"
	"github.com/satishkumarchitti/AI-Chat-Bot/internal/shardqueue"
	"github.com/satishkumarchitti/AI-Chat-Bot/persist"
	"github.com/satishkumarchitti/AI-Chat-Bot/store"
)

const (
	keySession   = "session"
	keyDocuments = "documents"
)

func documentKey(id store.DocumentID) string { return "document:" + string(id) }
func chatKey(id store.DocumentID) string     { return "chat:" + string(id) }

var (
	// ErrSuperseded is reported by Pending.Wait when the collaborator call
	// succeeded but a newer request or a context change discarded its result.
	ErrSuperseded = errors.New("workspace: result superseded")
	// ErrNoDocument is returned by operations that need an open document.
	ErrNoDocument = errors.New("workspace: no document is open")

	errEmptyToken = errors.New("workspace: backend returned no token")
)

// Options configure New. Backend is required.
type Options struct {
	Backend Backend
	// Gateway persists the session and theme stores. Nil keeps everything in
	// memory.
	Gateway *persist.Gateway
	// Executor runs collaborator calls. Nil starts one from Queue that the
	// workspace owns and stops on Close.
	Executor *shardqueue.ShardExecutor
	Queue    shardqueue.Config
	Logger   zerolog.Logger
	// Now stamps optimistic chat entries. Defaults to time.Now.
	Now func() time.Time
	// OnAuthRequired runs after a 401 forced a logout.
	OnAuthRequired func()
}

// Workspace owns the stores of one user session.
type Workspace struct {
	session       *store.SessionStore
	theme         *store.ThemeStore
	documents     *store.DocumentStore
	conversations *store.ConversationStore
	layout        *store.LayoutStore

	backend        Backend
	gateway        *persist.Gateway
	exec           *shardqueue.ShardExecutor
	ownsExec       bool
	log            zerolog.Logger
	onAuthRequired func()

	closers   []io.Closer
	closeOnce sync.Once
	closeErr  error
}

// New builds the stores, restores the persisted ones and starts writing them
// through the gateway. Nothing is exposed before rehydration finished.
func New(ctx context.Context, opts Options) (*Workspace, error) {
	if opts.Backend == nil {
		return nil, errors.New("workspace: backend is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger.With().Str("component", "workspace").Logger()

	w := &Workspace{
		session:        store.NewSessionStore(opts.Logger),
		theme:          store.NewThemeStore(opts.Logger),
		documents:      store.NewDocumentStore(opts.Logger),
		conversations:  store.NewConversationStore(opts.Logger, store.NewSequencer(now)),
		layout:         store.NewLayoutStore(opts.Logger),
		backend:        opts.Backend,
		gateway:        opts.Gateway,
		exec:           opts.Executor,
		log:            log,
		onAuthRequired: opts.OnAuthRequired,
	}

	if w.gateway != nil {
		for _, p := range []persist.Persistable{w.session, w.theme} {
			if err := w.gateway.Register(p); err != nil {
				return nil, err
			}
		}
		w.gateway.Rehydrate(ctx)
		w.gateway.Start()
	}

	if w.exec == nil {
		cfg := opts.Queue
		if cfg.ErrorHandler == nil {
			cfg.ErrorHandler = func(err error) {
				log.Debug().Err(err).Msg("operation finished with error")
			}
		}
		w.exec = shardqueue.NewShardExecutor(cfg, opts.Logger)
		w.ownsExec = true
	}
	return w, nil
}

// Open builds a workspace from configuration: the persistence backend chosen
// by PERSIST_DRIVER, an HTTP client for API_URL carrying the session token,
// and an executor sized by SHARDS and QUEUE_SIZE. Fields already set in opts
// are kept.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Workspace, error) {
	var closers []io.Closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}

	if opts.Gateway == nil {
		backend, err := openBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		policy := persist.DefaultPolicy()
		policy.Namespace = cfg.PersistNamespace
		opts.Gateway = persist.NewGateway(backend, policy, opts.Logger)
		closers = append(closers, opts.Gateway)
	}

	tok := &sessionToken{}
	if opts.Backend == nil {
		c, err := client.New(cfg.APIURL,
			client.WithHTTPTimeout(cfg.HTTPTimeout),
			client.WithRetry(cfg.RetryMaxElapsed),
			client.WithDebugLogging(cfg.Debug),
			client.WithTokenSource(tok.Token),
		)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("create client: %w", err)
		}
		opts.Backend = c
		closers = append(closers, c)
	}

	if opts.Executor == nil && opts.Queue.Shards == 0 {
		opts.Queue.Shards = cfg.Shards
		opts.Queue.QueueSize = cfg.QueueSize
	}

	w, err := New(ctx, opts)
	if err != nil {
		cleanup()
		return nil, err
	}
	tok.s.Store(w.session)
	w.closers = append(w.closers, closers...)
	return w, nil
}

func openBackend(ctx context.Context, cfg *config.Config) (persist.Backend, error) {
	switch cfg.PersistDriver {
	case config.DriverMemory:
		return persist.NewMemoryBackend(), nil
	case config.DriverRedis:
		return persist.DialRedis(ctx, cfg.RedisAddr)
	default:
		path, err := localstate.DBPath(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return persist.OpenSQLite(path)
	}
}

// sessionToken feeds the client the token of a session store that exists
// only once the workspace is built.
type sessionToken struct {
	s atomic.Pointer[store.SessionStore]
}

func (t *sessionToken) Token() string {
	if s := t.s.Load(); s != nil {
		return s.Token()
	}
	return ""
}

func (w *Workspace) Session() *store.SessionStore             { return w.session }
func (w *Workspace) Theme() *store.ThemeStore                 { return w.theme }
func (w *Workspace) Documents() *store.DocumentStore          { return w.documents }
func (w *Workspace) Conversations() *store.ConversationStore { return w.conversations }
func (w *Workspace) Layout() *store.LayoutStore               { return w.layout }

// Purge signs out locally, restores the default theme and deletes the
// persisted record.
func (w *Workspace) Purge(ctx context.Context) error {
	w.resetSession()
	_ = w.theme.Set(store.ThemeLight)
	if w.gateway == nil {
		return nil
	}
	return w.gateway.Purge(ctx)
}

// Close drains queued operations, then releases the persistence backend and
// the client when Open created them. It is idempotent.
func (w *Workspace) Close() error {
	w.closeOnce.Do(func() {
		if w.ownsExec {
			w.exec.Stop()
		}
		if w.gateway != nil {
			w.gateway.Stop()
		}
		var errs []error
		for i := len(w.closers) - 1; i >= 0; i-- {
			if err := w.closers[i].Close(); err != nil {
				errs = append(errs, err)
			}
		}
		w.closeErr = errors.Join(errs...)
	})
	return w.closeErr
}

// run queues job under key and returns its Pending. abort resolves the
// already started lifecycle when the job cannot be queued.
func (w *Workspace) run(ctx context.Context, key string, job func(context.Context) error, abort func(error)) *Pending {
	p := newPending(key)
	w.enqueue(ctx, p, func(jctx context.Context) error {
		err := job(jctx)
		p.finish(err)
		return err
	}, abort)
	return p
}

// enqueue is run for jobs that finish p themselves. The job runs detached
// from ctx's cancellation so a started lifecycle always resolves.
func (w *Workspace) enqueue(ctx context.Context, p *Pending, job func(context.Context) error, abort func(error)) {
	err := w.exec.Submit(context.WithoutCancel(ctx), p.key, shardqueue.JobFunc(func(jctx context.Context) error {
		defer func() {
			if r := recover(); r != nil {
				p.finish(fmt.Errorf("workspace: %s: panic: %v", p.key, r))
				panic(r)
			}
		}()
		return job(jctx)
	}))
	if err != nil {
		w.log.Warn().Err(err).Str("key", p.key).Msg("operation not queued")
		abort(err)
		p.finish(err)
	}
}

// fail resolves a failed collaborator call. A 401 signs the user out;
// anything else is recorded through resolve with the backend's detail or
// fallback.
func (w *Workspace) fail(op string, err error, fallback string, resolve func(msg string) bool) error {
	if client.IsUnauthorized(err) {
		w.forceLogout(op)
		return err
	}
	w.log.Debug().Err(err).Str("op", op).Msg("collaborator call failed")
	resolve(message(err, fallback))
	return err
}

func (w *Workspace) forceLogout(op string) {
	w.log.Warn().Str("op", op).Msg("token rejected; signing out")
	w.resetSession()
	if w.onAuthRequired != nil {
		w.onAuthRequired()
	}
}

// resetSession returns every user-scoped store to its defaults. Requests in
// flight are retired by the resets.
func (w *Workspace) resetSession() {
	w.session.Logout()
	w.documents.Reset()
	w.conversations.ClearAll()
	w.layout.Reset()
}

func message(err error, fallback string) string {
	if d := client.Detail(err); d != "" {
		return d
	}
	return fallback
}

func superseded(committed bool) error {
	if committed {
		return nil
	}
	return ErrSuperseded
}
