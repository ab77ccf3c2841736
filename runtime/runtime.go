package runtime

import (
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/agora-sim/agora/actor"
	"github.com/agora-sim/agora/config"
	"github.com/agora-sim/agora/core"
	"github.com/agora-sim/agora/eventlog"
	"github.com/agora-sim/agora/logging"
	"github.com/agora-sim/agora/memory"
	"github.com/agora-sim/agora/model"
	anthropicbackend "github.com/agora-sim/agora/model/anthropic"
	openaibackend "github.com/agora-sim/agora/model/openai"
	"github.com/agora-sim/agora/pipeline"
	"github.com/agora-sim/agora/policy"
	"github.com/agora-sim/agora/router"
	"github.com/agora-sim/agora/scheduler"
	"github.com/agora-sim/agora/world"
)

// Config is everything Bootstrap needs to assemble a Runtime.
type Config struct {
	// DataDir is the base directory for session storage.
	DataDir string
	// SessionID names the session. Empty allocates a fresh one.
	SessionID string
	// Resume reopens an existing session instead of creating one.
	Resume bool

	// PolicyPath locates the admission policy file.
	PolicyPath string
	// Roster is the validated actor configuration.
	Roster *config.Roster

	Settings config.Settings

	// Openings override the seed speakers' opening statements, keyed by
	// actor id.
	Openings map[string]string

	// Backend overrides the Settings-selected generative backend. Nil with
	// Settings.Backend empty runs the deterministic rule-based pipeline.
	Backend model.Backend
	// Strategy overrides the roster-derived scheduling strategy.
	Strategy scheduler.Strategy

	Logger logging.Logger
}

// Runtime is an assembled simulation: one store, one world, one maintenance
// subsystem, and the synchronous turn loop over them.
type Runtime struct {
	store     *eventlog.Store
	query     *eventlog.Query
	world     *world.World
	memory    *memory.SessionMemory
	router    *router.Router
	strategy  scheduler.Strategy
	proposers map[string]pipeline.Proposer
	resolver  pipeline.Resolver
	finalizer pipeline.Finalizer
	logger    logging.Logger

	actors     map[string]*actor.Actor
	identities map[string]pipeline.Identity
	order      []string

	mu      sync.Mutex
	trigger core.Event
	tick    int
}

// Bootstrap opens (or resumes) the session and wires every subsystem
// together. The returned Runtime owns the store and the maintenance pool;
// release both with Shutdown.
func Bootstrap(cfg Config) (*Runtime, error) {
	if cfg.Roster == nil || len(cfg.Roster.Actors) == 0 {
		return nil, fmt.Errorf("runtime: roster with at least one actor required")
	}

	logger := cfg.Logger
	if logger == nil {
		lc := logging.DefaultLoggerConfig()
		lc.Level = logging.ParseLevel(cfg.Settings.LogLevel)
		lc.Component = "runtime"
		logger = logging.NewLogger(lc)
	}

	pol, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("runtime: load policy: %w", err)
	}

	meta := eventlog.SessionMeta{PolicyPath: cfg.PolicyPath}
	for _, spec := range cfg.Roster.Actors {
		meta.Actors = append(meta.Actors, eventlog.ActorInfo{
			ID:        spec.ID,
			Name:      spec.Name,
			Role:      spec.Role,
			Expertise: spec.Expertise,
		})
	}
	store, err := eventlog.Open(cfg.DataDir, func(o *eventlog.Options) {
		o.SessionID = cfg.SessionID
		o.Resume = cfg.Resume
		o.Meta = meta
		o.Logger = logger
	})
	if err != nil {
		return nil, fmt.Errorf("runtime: open session: %w", err)
	}

	w := world.New(func(o *world.Options) { o.Logger = logger })

	r := &Runtime{
		store:      store,
		query:      eventlog.NewQuery(store),
		world:      w,
		logger:     logger,
		actors:     make(map[string]*actor.Actor),
		identities: make(map[string]pipeline.Identity),
		proposers:  make(map[string]pipeline.Proposer),
	}

	for _, spec := range cfg.Roster.Actors {
		a := actor.New(spec.ID, spec.Name, spec.Role, func(o *actor.Options) {
			o.Scope = spec.Scope
			o.Expertise = spec.Expertise
			o.Kinds = spec.Kinds
		})
		r.actors[spec.ID] = a
		r.order = append(r.order, spec.ID)
		r.identities[spec.ID] = pipeline.Identity{
			ID:        spec.ID,
			Name:      spec.Name,
			Role:      spec.Role,
			Expertise: strings.Join(spec.Expertise, ", "),
			Kinds:     spec.Kinds,
		}
		w.AddObserver(world.NewActorObserver(a))
	}

	budget := core.NewCallBudget(cfg.Settings.MaxBackendCalls)
	scorerBackend := r.wireProposers(cfg, budget, logger)

	var scorer memory.Scorer
	if scorerBackend != nil {
		scorer = memory.NewModelScorer(scorerBackend, func(o *memory.ModelScorerOptions) {
			o.Budget = budget
		})
	}
	mem, err := memory.New(store, func(o *memory.Options) {
		o.Workers = cfg.Settings.MaintenanceWorkers
		o.QueueSize = cfg.Settings.MaintenanceQueue
		o.ScorerConcurrency = cfg.Settings.ScorerConcurrency
		o.Scorer = scorer
		o.PrivilegedRoles = cfg.Roster.PrivilegedRoles
		o.SeedTags = cfg.Roster.SeedTags
		o.Logger = logger
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("runtime: session memory: %w", err)
	}
	r.memory = mem
	w.AddObserver(mem)

	interp := policy.NewInterpreter(pol, func(o *policy.InterpreterOptions) {
		o.Store = store
		o.Logger = logger
	})
	r.router = router.New(interp, store, w, func(o *router.Options) { o.Logger = logger })

	r.resolver = pipeline.NewLogResolver(store, func(o *pipeline.LogResolverOptions) {
		o.Tags = mem
	})
	r.finalizer = pipeline.NewStandardFinalizer()

	r.strategy = cfg.Strategy
	if r.strategy == nil {
		if len(cfg.Roster.TurnOrder) > 0 {
			r.strategy = scheduler.NewTemplateOrder(cfg.Roster.TurnOrder)
		} else {
			r.strategy = scheduler.NewRecency()
		}
	}

	if err := r.seed(cfg); err != nil {
		mem.Stop()
		store.Close()
		return nil, err
	}

	logger.Info("runtime ready",
		"session_id", store.SessionID(),
		"actors", len(r.actors),
		"resume", cfg.Resume,
		"events", store.Len())
	return r, nil
}

// seed injects the seed speakers' opening statements into a fresh session,
// or recovers the latest trigger from a resumed one.
func (r *Runtime) seed(cfg Config) error {
	if r.store.Len() > 0 {
		// The newest substantive event resumes as trigger; a trailing run
		// of passes carries nothing to react to.
		last := r.query.LastN(r.store.Len())
		for i := len(last) - 1; i >= 0; i-- {
			if last[i].Type != core.KindPass {
				r.trigger = last[i]
				break
			}
		}
		return nil
	}
	if len(cfg.Roster.SeedSpeakers) == 0 {
		return nil
	}
	for _, id := range cfg.Roster.SeedSpeakers {
		a, ok := r.actors[id]
		if !ok {
			return fmt.Errorf("runtime: seed speaker %q not in roster", id)
		}
		text := cfg.Openings[id]
		if text == "" {
			text = fmt.Sprintf("%s opens the session.", a.Name())
		}
		ev, err := r.store.Append(a.Speak(text))
		if err != nil {
			return fmt.Errorf("runtime: seed event: %w", err)
		}
		r.world.Emit(ev)
		r.trigger = ev
	}
	r.strategy.MarkSeedSpeakers(cfg.Roster.SeedSpeakers, 0)
	return nil
}

// wireProposers assigns every actor a proposer. With a generative backend
// configured, each role gets a backend tuned to its sampling temperature
// (moderators cool, creative roles warm) and an explicit cfg.Backend is
// shared as-is; otherwise everyone runs the deterministic rule proposer.
// The budget caps generative calls across all proposers and the scorer.
// The returned backend, if any, also serves the maintenance scorer.
func (r *Runtime) wireProposers(cfg Config, budget *core.CallBudget, logger logging.Logger) model.Backend {
	generative := func(b model.Backend) pipeline.Proposer {
		return pipeline.NewModelProposer(b, func(o *pipeline.ModelProposerOptions) {
			o.Budget = budget
			o.Logger = logger
		})
	}

	if cfg.Backend != nil {
		shared := generative(cfg.Backend)
		for _, spec := range cfg.Roster.Actors {
			r.proposers[spec.ID] = shared
		}
		return cfg.Backend
	}

	if cfg.Settings.Backend == config.BackendNone {
		rule := pipeline.NewRuleProposer()
		for _, spec := range cfg.Roster.Actors {
			r.proposers[spec.ID] = rule
		}
		return nil
	}

	var scorerBackend model.Backend
	byTemp := make(map[float64]model.Backend)
	for _, spec := range cfg.Roster.Actors {
		temp := config.RoleTemperature(spec.Role)
		b, ok := byTemp[temp]
		if !ok {
			b = newBackend(cfg.Settings, temp)
			byTemp[temp] = b
		}
		r.proposers[spec.ID] = generative(b)
		if scorerBackend == nil {
			scorerBackend = b
		}
	}
	return scorerBackend
}

// newBackend maps the environment settings to a generative backend at the
// given sampling temperature. An unknown selection degrades to the mock so
// a misconfigured process still runs.
func newBackend(s config.Settings, temperature float64) model.Backend {
	switch s.Backend {
	case config.BackendOpenAI:
		return openaibackend.New(func(o *openaibackend.Options) {
			if s.Model != "" {
				o.Model = s.Model
			}
			o.Temperature = temperature
			o.APIKey = s.APIKey
			o.BaseURL = s.BaseURL
			o.Timeouts = s.Timeouts
			o.Retry = s.Retry
		})
	case config.BackendAnthropic:
		return anthropicbackend.New(func(o *anthropicbackend.Options) {
			if s.Model != "" {
				o.Model = anthropic.Model(s.Model)
			}
			o.Temperature = temperature
			o.APIKey = s.APIKey
			o.BaseURL = s.BaseURL
			o.Timeouts = s.Timeouts
			o.Retry = s.Retry
		})
	default:
		return model.NewMockBackend()
	}
}

// Store exposes the session event log.
func (r *Runtime) Store() *eventlog.Store { return r.store }

// World exposes the observer registry and timeline.
func (r *Runtime) World() *world.World { return r.world }

// Memory exposes the maintenance subsystem.
func (r *Runtime) Memory() *memory.SessionMemory { return r.memory }

// SessionID returns the id of the open session.
func (r *Runtime) SessionID() string { return r.store.SessionID() }
