// Package executor implements the workflow scheduler: a topological walk
// that loads and validates a definition, seeds the ready frontier, invokes
// handlers in deterministic order, persists every node transition, and
// applies control-node branch/join/retry/loop semantics along the way.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/flowforge/workflow/internal/metrics"
	"github.com/flowforge/workflow/internal/node"
	"github.com/flowforge/workflow/internal/node/builtin"
	"github.com/flowforge/workflow/internal/resolver"
	"github.com/flowforge/workflow/internal/workflow"
)

// Executor drives WorkflowExecution runs to completion against the node
// registry and repository injected at construction.
type Executor struct {
	repo            *workflow.Repository
	registry        *node.Registry
	credentials     node.CredentialResolver
	logger          *slog.Logger
	circuitBreakers *CircuitBreakerRegistry
	metrics         *metrics.Collector
}

// New wires a repository, the process-wide node registry, and a credential
// resolver into an Executor. credentials may be nil for workflows that
// declare no credentialed nodes.
func New(repo *workflow.Repository, registry *node.Registry, credentials node.CredentialResolver, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		repo:            repo,
		registry:        registry,
		credentials:     credentials,
		logger:          logger,
		circuitBreakers: NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig(), logger),
	}
}

// WithMetrics attaches a Prometheus collector that Run and execNode report
// execution/node outcomes and durations to. Returns e for chaining at
// construction time.
func (e *Executor) WithMetrics(m *metrics.Collector) *Executor {
	e.metrics = m
	return e
}

// run holds the mutable state of one in-flight execution.
type run struct {
	e         *Executor
	def       *workflow.WorkflowDefinition
	execution *workflow.WorkflowExecution
	nodes     map[string]workflow.NodeDefinition
	// outgoing[nodeID][port] -> targets
	outgoing map[string]map[string][]workflow.ConnectionTarget
	// incoming[nodeID] -> source node ids with an edge into it
	incoming map[string][]string

	variables map[string]any // "input", "context", and one key per completed node id
	outputs   map[string]*node.Output
	status    map[string]workflow.NodeStatus
	nodeExecs map[string]*workflow.NodeExecution
}

// Run executes def from scratch, persisting every transition through the
// repository, and returns the union of terminal-node outputs as the
// execution's final output_data.
func (e *Executor) Run(ctx context.Context, def *workflow.WorkflowDefinition, execution *workflow.WorkflowExecution, input json.RawMessage, seedNodeID string) (json.RawMessage, error) {
	r := &run{
		e:         e,
		def:       def,
		execution: execution,
		nodes:     make(map[string]workflow.NodeDefinition, len(def.Nodes)),
		outgoing:  def.Connections,
		incoming:  make(map[string][]string),
		variables: make(map[string]any),
		outputs:   make(map[string]*node.Output),
		status:    make(map[string]workflow.NodeStatus),
		nodeExecs: make(map[string]*workflow.NodeExecution),
	}
	if r.outgoing == nil {
		r.outgoing = make(map[string]map[string][]workflow.ConnectionTarget)
	}

	for _, n := range def.Nodes {
		r.nodes[n.ID] = n
	}
	for source, ports := range r.outgoing {
		for _, targets := range ports {
			for _, t := range targets {
				r.incoming[t.NodeID] = append(r.incoming[t.NodeID], source)
			}
		}
	}

	var inputVal any
	if len(input) > 0 {
		if err := json.Unmarshal(input, &inputVal); err != nil {
			return nil, fmt.Errorf("decoding execution input: %w", err)
		}
	}
	r.variables["input"] = inputVal
	r.variables["context"] = map[string]any{
		"execution_id": execution.ID,
		"workflow_id":  execution.WorkflowID,
		"started_at":   execution.StartedAt,
	}

	frontier := r.seedFrontier(seedNodeID)
	started := time.Now()

	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool { return r.nodeOrderLess(frontier[i], frontier[j]) })
		id := frontier[0]
		frontier = frontier[1:]

		if r.status[id] != "" {
			continue // already resolved (e.g. queued twice via distinct edges)
		}

		newlyReady, terminate, err := r.execNode(ctx, id)
		if terminate {
			out, ferr := r.finalize(ctx, workflow.ExecutionFailed, err)
			e.metrics.ObserveExecution(string(workflow.ExecutionFailed), time.Since(started))
			return out, ferr
		}
		frontier = append(frontier, newlyReady...)
	}

	out, ferr := r.finalize(ctx, workflow.ExecutionSuccess, nil)
	e.metrics.ObserveExecution(string(workflow.ExecutionSuccess), time.Since(started))
	return out, ferr
}

// nodeOrderLess implements the deterministic tie-break: declaration order
// in def.Nodes, then node id lexicographically.
func (r *run) nodeOrderLess(a, b string) bool {
	ai, bi := r.declIndex(a), r.declIndex(b)
	if ai != bi {
		return ai < bi
	}
	return a < b
}

func (r *run) declIndex(id string) int {
	for i, n := range r.def.Nodes {
		if n.ID == id {
			return i
		}
	}
	return len(r.def.Nodes)
}

// seedFrontier returns the initial ready nodes: every node with zero
// incoming edges, or — for a webhook-seeded run — just that trigger node,
// with every other zero-indegree node marked skipped.
func (r *run) seedFrontier(seedNodeID string) []string {
	var roots []string
	for _, n := range r.def.Nodes {
		if len(r.incoming[n.ID]) == 0 {
			roots = append(roots, n.ID)
		}
	}

	if seedNodeID == "" {
		return roots
	}

	var frontier []string
	for _, id := range roots {
		if id == seedNodeID {
			frontier = append(frontier, id)
		} else {
			r.status[id] = workflow.NodeSkipped
		}
	}
	return frontier
}

// execNode resolves parameters, assembles inputs, invokes the handler (or
// applies control-node semantics), persists the NodeExecution, and returns
// newly-ready downstream node ids. terminate is true when the run must end
// in failure.
func (r *run) execNode(ctx context.Context, id string) (newlyReady []string, terminate bool, err error) {
	def := r.nodes[id]

	if def.Disabled {
		r.markSkipped(id)
		return r.downstreamReady(id), false, nil
	}

	handler, herr := r.e.registry.Get(def.NodeType)
	if herr != nil {
		return nil, true, fmt.Errorf("node %q: %w", id, herr)
	}

	inputs := r.collectInputs(id)

	var decoded any
	if err := json.Unmarshal(nonEmpty(def.Parameters), &decoded); err != nil {
		return nil, true, fmt.Errorf("node %q: decoding parameters: %w", id, err)
	}
	resolvedParams := resolver.Resolve(decoded, r.variables)
	paramBytes, merr := json.Marshal(resolvedParams)
	if merr != nil {
		return nil, true, fmt.Errorf("node %q: marshalling resolved parameters: %w", id, merr)
	}

	nctx := &node.Context{
		ExecutionID: r.execution.ID,
		NodeID:      id,
		Inputs:      inputs,
		Variables:   r.variables,
		Credentials: r.e.credentials,
	}
	if def.Credentials != "" && r.e.credentials != nil {
		cred, cerr := r.e.credentials.Resolve(ctx, def.Credentials)
		if cerr != nil {
			return nil, true, fmt.Errorf("node %q: resolving credential %q: %w", id, def.Credentials, cerr)
		}
		nctx.Credential = cred
	}

	retryParams, retryWrapped := r.retryWrapper(id)
	maxAttempts := 1
	if retryWrapped {
		maxAttempts = retryParams.MaxAttempts
	}
	loopItems, iterVar, loopWrapped := r.loopWrapper(id)

	nodeStarted := time.Now()
	var out *node.Output
	var execErr error

	if loopWrapped {
		out, execErr = r.execLoopIterations(ctx, id, handler, nctx, paramBytes, def, loopItems, iterVar)
		if ctx.Err() != nil {
			r.e.metrics.ObserveNode(def.NodeType, string(workflow.NodeFailed), time.Since(nodeStarted))
			r.persistNodeResult(ctx, id, workflow.NodeFailed, nil, ctx.Err())
			return nil, true, ctx.Err()
		}
	} else {
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			nodeExec, cerr := r.e.repo.CreateNodeExecution(ctx, r.execution.ID, id, paramBytes, attempt)
			if cerr != nil {
				return nil, true, fmt.Errorf("node %q: persisting node execution: %w", id, cerr)
			}
			r.nodeExecs[id] = nodeExec
			r.status[id] = workflow.NodeRunning

			out, execErr = r.invoke(ctx, handler, nctx, paramBytes, def)

			if ctx.Err() != nil {
				r.e.metrics.ObserveNode(def.NodeType, string(workflow.NodeFailed), time.Since(nodeStarted))
				r.persistNodeResult(ctx, id, workflow.NodeFailed, nil, ctx.Err())
				return nil, true, ctx.Err()
			}

			if execErr == nil && out != nil && out.Success {
				break // short-circuit on first success
			}

			moreAttempts := attempt < maxAttempts && (execErr == nil || node.IsRetryableError(execErr))
			if !moreAttempts {
				break
			}

			r.persistNodeResult(ctx, id, workflow.NodeFailed, nil, failureMessage(out, execErr))
			delay := retryDelay(retryParams, attempt-1)
			r.e.logger.Info("retrying node after failure", "node_id", id, "attempt", attempt, "next_delay", delay)
			select {
			case <-ctx.Done():
				r.e.metrics.ObserveNode(def.NodeType, string(workflow.NodeFailed), time.Since(nodeStarted))
				r.persistNodeResult(ctx, id, workflow.NodeFailed, nil, ctx.Err())
				return nil, true, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	if execErr != nil || out == nil || !out.Success {
		r.e.metrics.ObserveNode(def.NodeType, string(workflow.NodeFailed), time.Since(nodeStarted))
		r.persistNodeResult(ctx, id, workflow.NodeFailed, nil, failureMessage(out, execErr))
		r.skipDownstream(id)
		return nil, true, fmt.Errorf("node %q failed: %s", id, failureMessage(out, execErr))
	}

	r.e.metrics.ObserveNode(def.NodeType, string(workflow.NodeSuccess), time.Since(nodeStarted))
	r.outputs[id] = out
	r.variables[id] = out.Data
	r.persistNodeResult(ctx, id, workflow.NodeSuccess, out.Data, nil)

	return r.resolveBranch(id, def, out), false, nil
}

// retryWrapper reports whether id's sole incoming edge comes from a `retry`
// control node, returning that node's decoded backoff budget. A node with
// more than one incoming edge, or whose single source isn't a retry node,
// is not wrapped.
func (r *run) retryWrapper(id string) (builtin.RetryParams, bool) {
	sources := r.incoming[id]
	if len(sources) != 1 {
		return builtin.RetryParams{}, false
	}
	src, ok := r.nodes[sources[0]]
	if !ok || src.NodeType != "retry" {
		return builtin.RetryParams{}, false
	}
	params, err := builtin.DecodeRetryParams(nonEmpty(src.Parameters))
	if err != nil {
		return builtin.RetryParams{}, false
	}
	return params, true
}

// retryDelay computes initial_delay * multiplier^attempt, capped at
// max_delay_seconds when set — the backoff formula declared by a retry
// control node's parameters. attempt is 0-indexed: the delay before the
// second try uses attempt 0.
func retryDelay(p builtin.RetryParams, attempt int) time.Duration {
	d := p.InitialDelay * math.Pow(p.Multiplier, float64(attempt))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return time.Duration(d * float64(time.Second))
}

// loopWrapper reports whether id's sole incoming edge comes from a `loop`
// control node that has already resolved, returning the items to iterate
// and the variable name each item is bound to in the per-iteration
// environment. A node with more than one incoming edge, or whose single
// source isn't a resolved loop node, is not wrapped.
func (r *run) loopWrapper(id string) (items []any, iterVar string, wrapped bool) {
	sources := r.incoming[id]
	if len(sources) != 1 {
		return nil, "", false
	}
	src, ok := r.nodes[sources[0]]
	if !ok || src.NodeType != "loop" {
		return nil, "", false
	}
	srcOut, ok := r.outputs[sources[0]]
	if !ok {
		return nil, "", false
	}
	data, _ := srcOut.Data.(map[string]any)
	loopItems, _ := data["items"].([]any)
	return loopItems, builtin.IterationVariable(nonEmpty(src.Parameters)), true
}

// execLoopIterations runs handler once per item in items, each against a
// fresh NodeContext whose Variables snapshot binds iterVar (and
// iterVar+"_index") to that iteration, re-entering the loop's downstream
// action sequentially rather than invoking it once. Every iteration
// produces its own persisted NodeExecution row; the returned Output's Data
// is the union of iteration results, indexed by position, for downstream
// nodes to consume as one value. The first iteration that fails stops the
// loop and its error is reported as the node's failure.
func (r *run) execLoopIterations(ctx context.Context, id string, handler node.Handler, nctx *node.Context, paramBytes json.RawMessage, def workflow.NodeDefinition, items []any, iterVar string) (*node.Output, error) {
	results := make([]any, 0, len(items))
	for i, item := range items {
		iterVars := make(map[string]any, len(r.variables)+2)
		for k, v := range r.variables {
			iterVars[k] = v
		}
		iterVars[iterVar] = item
		iterVars[iterVar+"_index"] = i

		iterNctx := &node.Context{
			ExecutionID: nctx.ExecutionID,
			NodeID:      nctx.NodeID,
			Inputs:      nctx.Inputs,
			Variables:   iterVars,
			Credential:  nctx.Credential,
			Credentials: nctx.Credentials,
		}

		nodeExec, cerr := r.e.repo.CreateNodeExecution(ctx, r.execution.ID, id, paramBytes, i+1)
		if cerr != nil {
			return nil, fmt.Errorf("node %q: persisting node execution: %w", id, cerr)
		}
		r.nodeExecs[id] = nodeExec
		r.status[id] = workflow.NodeRunning

		iterOut, iterErr := r.invoke(ctx, handler, iterNctx, paramBytes, def)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if iterErr != nil || iterOut == nil || !iterOut.Success {
			return nil, failureMessage(iterOut, iterErr)
		}

		r.persistNodeResult(ctx, id, workflow.NodeSuccess, iterOut.Data, nil)
		results = append(results, map[string]any{"index": i, iterVar: item, "output": iterOut.Data})
	}
	return &node.Output{Success: true, Data: results}, nil
}

// failureMessage extracts the error to persist/report for a failed
// invocation, preferring the handler's own error over out.Error.
func failureMessage(out *node.Output, execErr error) error {
	if execErr != nil {
		return execErr
	}
	if out != nil && out.Error != "" {
		return fmt.Errorf("%s", out.Error)
	}
	return fmt.Errorf("node execution failed")
}

// invoke dispatches to the handler, applying the outbound circuit breaker
// for http_request and slack_message node types.
func (r *run) invoke(ctx context.Context, handler node.Handler, nctx *node.Context, parameters json.RawMessage, def workflow.NodeDefinition) (*node.Output, error) {
	if def.NodeType == "http_request" || def.NodeType == "slack_message" {
		key := def.NodeType + ":" + targetHost(parameters)
		cb := r.e.circuitBreakers.GetOrCreate(key)
		result, err := cb.ExecuteWithResult(ctx, func(ctx context.Context) (any, error) {
			return handler.Execute(ctx, nctx, parameters)
		})
		if err != nil {
			return nil, err
		}
		out, _ := result.(*node.Output)
		return out, nil
	}
	return handler.Execute(ctx, nctx, parameters)
}

func targetHost(parameters json.RawMessage) string {
	var p struct {
		URL     string `json:"url"`
		Channel string `json:"channel"`
	}
	_ = json.Unmarshal(parameters, &p)
	if p.URL != "" {
		return p.URL
	}
	return p.Channel
}

// collectInputs binds each satisfied incoming edge's producer output to the
// port it targets.
func (r *run) collectInputs(id string) map[string]any {
	inputs := make(map[string]any)
	for _, sourceID := range r.incoming[id] {
		out, ok := r.outputs[sourceID]
		if !ok {
			continue
		}
		port := r.portFor(sourceID, id)
		for _, t := range r.outgoing[sourceID][port] {
			if t.NodeID == id && t.Port != "" {
				port = t.Port
			}
		}
		inputs[port] = out.Data
	}
	return inputs
}

// portFor finds the output port name sourceID uses to reach targetID.
func (r *run) portFor(sourceID, targetID string) string {
	for port, targets := range r.outgoing[sourceID] {
		for _, t := range targets {
			if t.NodeID == targetID {
				return port
			}
		}
	}
	return "default"
}

// resolveBranch computes which downstream nodes become ready after id
// succeeds, applying condition/switch branch selection and merge
// join-readiness; ordinary action/trigger nodes activate every outgoing
// edge.
func (r *run) resolveBranch(id string, def workflow.NodeDefinition, out *node.Output) []string {
	switch def.NodeType {
	case "condition":
		branch, _ := dataField(out.Data, "branch")
		return r.activateOnly(id, branch)
	case "switch":
		path, _ := dataField(out.Data, "selected_path")
		return r.activateOnly(id, path)
	default:
		return r.downstreamReady(id)
	}
}

// activateOnly marks every outgoing edge of id EXCEPT the named port as
// leading to a skipped subtree, then returns the downstream nodes made
// ready by the chosen port.
func (r *run) activateOnly(id, chosenPort string) []string {
	var ready []string
	for port, targets := range r.outgoing[id] {
		for _, t := range targets {
			if port == chosenPort {
				if r.allInputsResolved(t.NodeID) {
					ready = append(ready, t.NodeID)
				}
			} else {
				r.markSkipped(t.NodeID)
			}
		}
	}
	return ready
}

// downstreamReady returns every downstream node of id whose full set of
// incoming edges is now resolved (success or skip), applying merge
// join-readiness for merge nodes.
func (r *run) downstreamReady(id string) []string {
	var ready []string
	for _, targets := range r.outgoing[id] {
		for _, t := range targets {
			if r.status[t.NodeID] != "" {
				continue
			}
			if r.allInputsResolved(t.NodeID) {
				ready = append(ready, t.NodeID)
			}
		}
	}
	return ready
}

// allInputsResolved reports whether id's incoming edges are all satisfied
// (success or skipped), honouring a merge node's declared join strategy.
func (r *run) allInputsResolved(id string) bool {
	sources := r.incoming[id]
	if len(sources) == 0 {
		return true
	}

	def := r.nodes[id]
	if def.NodeType == "merge" {
		strategy := builtin.MergeStrategy(nonEmpty(def.Parameters))
		succeeded, resolved := 0, 0
		for _, s := range sources {
			switch r.status[s] {
			case workflow.NodeSuccess:
				succeeded++
				resolved++
			case workflow.NodeSkipped, workflow.NodeFailed:
				resolved++
			}
		}
		switch strategy {
		case "any":
			return succeeded > 0 || resolved == len(sources)
		case "majority":
			return succeeded*2 > len(sources) || resolved == len(sources)
		default: // all
			return resolved == len(sources)
		}
	}

	for _, s := range sources {
		if r.status[s] == "" || r.status[s] == workflow.NodeRunning {
			return false
		}
	}
	return true
}

// markSkipped marks id and every node transitively reachable only through
// it as skipped, recursing through the definition graph rather than the
// execution-time maps so skip propagation works even for nodes never
// reached by the scheduler.
func (r *run) markSkipped(id string) {
	if r.status[id] != "" {
		return
	}
	r.status[id] = workflow.NodeSkipped
	if _, err := r.e.repo.CreateSkippedNodeExecution(context.Background(), r.execution.ID, id); err != nil {
		r.e.logger.Error("failed to persist skipped node", "node_id", id, "error", err)
	}
	for _, targets := range r.outgoing[id] {
		for _, t := range targets {
			live := false
			for _, s := range r.incoming[t.NodeID] {
				if st := r.status[s]; st != workflow.NodeSkipped && st != workflow.NodeFailed {
					live = true
				}
			}
			if !live {
				r.markSkipped(t.NodeID)
			}
		}
	}
}

func (r *run) skipDownstream(id string) {
	for _, targets := range r.outgoing[id] {
		for _, t := range targets {
			r.markSkipped(t.NodeID)
		}
	}
}

func (r *run) persistNodeResult(ctx context.Context, id string, status workflow.NodeStatus, data any, execErr error) {
	r.status[id] = status
	nodeExec, ok := r.nodeExecs[id]
	if !ok {
		return
	}

	var outputBytes json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err == nil {
			outputBytes = b
		}
	}
	var errMsg *string
	if execErr != nil {
		msg := execErr.Error()
		errMsg = &msg
	}
	if err := r.e.repo.UpdateNodeExecution(ctx, nodeExec.ID, status, outputBytes, errMsg); err != nil {
		r.e.logger.Error("failed to persist node execution result", "node_id", id, "error", err)
	}
}

// finalize computes the union of terminal-node outputs (nodes with no
// outgoing edges) and persists the execution's terminal status.
func (r *run) finalize(ctx context.Context, status workflow.ExecutionStatus, runErr error) (json.RawMessage, error) {
	final := make(map[string]any)
	for _, n := range r.def.Nodes {
		if len(r.outgoing[n.ID]) > 0 {
			continue
		}
		if out, ok := r.outputs[n.ID]; ok {
			final[n.ID] = out.Data
		}
	}

	outputBytes, err := json.Marshal(final)
	if err != nil {
		outputBytes = json.RawMessage("{}")
	}

	var errMsg *string
	if runErr != nil {
		msg := runErr.Error()
		errMsg = &msg
	}
	if err := r.e.repo.UpdateExecutionStatus(ctx, r.execution.ID, status, outputBytes, errMsg); err != nil {
		r.e.logger.Error("failed to persist execution outcome", "execution_id", r.execution.ID, "error", err)
	}

	return outputBytes, runErr
}

func dataField(data any, field string) (string, bool) {
	m, ok := data.(map[string]any)
	if !ok {
		return "", false
	}
	v, ok := m[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func nonEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}
