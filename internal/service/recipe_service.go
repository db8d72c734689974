package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloudlab-agent/internal/model"
	"cloudlab-agent/internal/pkg/agent"
	"cloudlab-agent/internal/pkg/logger"
	"cloudlab-agent/internal/pkg/recipes"
	"cloudlab-agent/internal/pkg/swarm"
	"cloudlab-agent/pkg/utils"
)

var ErrUnknownRecipe = errors.New("unknown recipe")

type RecipeService struct {
	installer *recipes.Installer
	swarm     *swarm.Manager
	logger    *logger.Logger
}

func NewRecipeService(installer *recipes.Installer, sw *swarm.Manager, logger *logger.Logger) *RecipeService {
	return &RecipeService{
		installer: installer,
		swarm:     sw,
		logger:    logger,
	}
}

type recipeHandler func(*RecipeService, context.Context, *model.RecipeRequest) (agent.Result, error)

var recipeHandlers = map[string]recipeHandler{
	"install-deps":   withTarget((*recipes.Installer).InstallDeps),
	"install-docker": withTarget((*recipes.Installer).InstallDocker),
	"reboot":         withTarget((*recipes.Installer).Reboot),
	"power-governor": (*RecipeService).governorStep,
	"cpu-frequency":  (*RecipeService).frequencyStep,
	"turbo":          (*RecipeService).turboStep,
	"hyperthreading": (*RecipeService).hyperthreadingStep,
	"benchmark":      (*RecipeService).benchmarkStep,
	"swarm-init":     (*RecipeService).swarmInitStep,
	"swarm-join":     (*RecipeService).swarmJoinStep,
	"swarm-leave":    (*RecipeService).swarmLeaveStep,
	"swarm-create":   (*RecipeService).swarmCreateStep,
	"swarm-destroy":  (*RecipeService).swarmDestroyStep,
}

// Recipes lists the recipe names in sorted order.
func Recipes() []string {
	names := make([]string, 0, len(recipeHandlers))
	for name := range recipeHandlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Known(name string) bool {
	_, ok := recipeHandlers[name]
	return ok
}

func (s *RecipeService) Execute(ctx context.Context, name string, req *model.RecipeRequest) (agent.Result, error) {
	handler, ok := recipeHandlers[name]
	if !ok {
		s.logger.Errorf("unknown recipe: %s", name)
		return nil, fmt.Errorf("%w: %s", ErrUnknownRecipe, name)
	}

	res, err := handler(s, ctx, req)
	if err != nil {
		if utils.FromError(err).Code == utils.CodeSystem {
			err = utils.NewRecipeError(name, err)
		}
		s.logger.DeploymentError(name, err)
		return res, err
	}
	s.logger.DeploymentSuccess(name)
	return res, nil
}

func withTarget(fn func(*recipes.Installer, context.Context, agent.Target) (agent.Result, error)) recipeHandler {
	return func(s *RecipeService, ctx context.Context, req *model.RecipeRequest) (agent.Result, error) {
		t, err := req.Target.Target()
		if err != nil {
			return nil, utils.NewValidationError("target", err)
		}
		return fn(s.installer, ctx, t)
	}
}

func (s *RecipeService) governorStep(ctx context.Context, req *model.RecipeRequest) (agent.Result, error) {
	t, err := req.Target.Target()
	if err != nil {
		return nil, utils.NewValidationError("target", err)
	}
	return s.installer.SetPowerGovernor(ctx, t, req.Governor)
}

func (s *RecipeService) frequencyStep(ctx context.Context, req *model.RecipeRequest) (agent.Result, error) {
	t, err := req.Target.Target()
	if err != nil {
		return nil, utils.NewValidationError("target", err)
	}
	cpus := req.CPUs
	if cpus == "" {
		cpus = "all"
	}
	return s.installer.SetFrequency(ctx, t, cpus, req.Frequency)
}

func (s *RecipeService) turboStep(ctx context.Context, req *model.RecipeRequest) (agent.Result, error) {
	t, err := req.Target.Target()
	if err != nil {
		return nil, utils.NewValidationError("target", err)
	}
	if req.Enabled == nil {
		return nil, utils.NewValidationError("enabled", "missing")
	}
	return s.installer.SetTurbo(ctx, t, *req.Enabled)
}

func (s *RecipeService) hyperthreadingStep(ctx context.Context, req *model.RecipeRequest) (agent.Result, error) {
	t, err := req.Target.Target()
	if err != nil {
		return nil, utils.NewValidationError("target", err)
	}
	if req.Enabled == nil {
		return nil, utils.NewValidationError("enabled", "missing")
	}
	return s.installer.SetHyperthreading(ctx, t, *req.Enabled)
}

func (s *RecipeService) benchmarkStep(ctx context.Context, req *model.RecipeRequest) (agent.Result, error) {
	t, err := req.Target.Target()
	if err != nil {
		return nil, utils.NewValidationError("target", err)
	}
	return s.installer.LaunchBenchmark(ctx, t, req.Command)
}

func (s *RecipeService) swarmInitStep(ctx context.Context, _ *model.RecipeRequest) (agent.Result, error) {
	res, err := s.swarm.Initialize(ctx)
	if res == nil {
		return nil, err
	}
	return res, err
}

// swarmJoinStep picks up a swarm initialized by another process before
// joining; Join reports ErrNotInitialized if there is none.
func (s *RecipeService) swarmJoinStep(ctx context.Context, req *model.RecipeRequest) (agent.Result, error) {
	if s.swarm.State() == swarm.NoCluster {
		if _, err := s.swarm.Reattach(ctx); err != nil {
			s.logger.With("error", err).Debug("no existing swarm to reattach to")
		}
	}
	agg, err := s.swarm.Join(ctx, targetNodes(req.Target)...)
	if agg == nil {
		return nil, err
	}
	return agg, err
}

func (s *RecipeService) swarmLeaveStep(ctx context.Context, req *model.RecipeRequest) (agent.Result, error) {
	return s.swarm.Leave(ctx, targetNodes(req.Target)...)
}

// targetNodes lists the nodes named by a swarm request; nil lets the
// manager pick its default set.
func targetNodes(t model.TargetRequest) []string {
	if t.Node != "" {
		return []string{t.Node}
	}
	return t.Nodes
}

// swarmCreateStep folds the init result into the join aggregate under the
// master's name.
func (s *RecipeService) swarmCreateStep(ctx context.Context, _ *model.RecipeRequest) (agent.Result, error) {
	created, err := s.swarm.Create(ctx)
	agg := agent.AggregatedResult{}
	for node, res := range created.Join {
		agg[node] = res
	}
	if created.Init != nil {
		agg[created.Init.Node] = created.Init
	}
	if len(agg) == 0 {
		return nil, err
	}
	return agg, err
}

func (s *RecipeService) swarmDestroyStep(ctx context.Context, _ *model.RecipeRequest) (agent.Result, error) {
	return s.swarm.Destroy(ctx)
}
