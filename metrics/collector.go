// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during a single workflow run. It is a
// leaf package with no internal dependencies. Retry counts are absorbed from
// the final retry state at run completion rather than recorded live, so a
// crashed attempt cannot leave the counters out of step with the manifest.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all collected metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Run lifecycle
	RunsStarted   int64
	RunsCompleted int64
	RunsPassed    int64
	RunsFailed    int64

	// Workflow
	StagesRun      int64
	StagesByName   map[string]int64
	RetriesUsed    int64
	RoutesDecided  int64
	RepairsApplied int64

	// Compute
	CalculatorCalls   int64
	CalculatorErrors  int64
	OptimizerSteps    int64
	WorkerFrameErrors int64

	// Dimensions (informational, set at construction)
	Backend   string
	Optimizer string
	RunID     string
	Material  string
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	runsStarted   int64
	runsCompleted int64
	runsPassed    int64
	runsFailed    int64

	stagesRun      int64
	stagesByName   map[string]int64
	retriesUsed    int64
	routesDecided  int64
	repairsApplied int64

	calculatorCalls   int64
	calculatorErrors  int64
	optimizerSteps    int64
	workerFrameErrors int64

	backend   string
	optimizer string
	runID     string
	material  string
}

// NewCollector creates a Collector with dimension labels. backend and
// optimizer identify the compute configuration; runID and material are
// optional dimensions.
func NewCollector(backend, optimizer, runID, material string) *Collector {
	return &Collector{
		stagesByName: make(map[string]int64),
		backend:      backend,
		optimizer:    optimizer,
		runID:        runID,
		material:     material,
	}
}

// --- Run lifecycle ---

// IncRunStarted records a run start.
func (c *Collector) IncRunStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsStarted++
	c.mu.Unlock()
}

// IncRunCompleted records a run that reached the end of the workflow.
func (c *Collector) IncRunCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsCompleted++
	c.mu.Unlock()
}

// IncRunPassed records a run whose validation verdict was a pass.
func (c *Collector) IncRunPassed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsPassed++
	c.mu.Unlock()
}

// IncRunFailed records a run whose validation verdict was a fail.
func (c *Collector) IncRunFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsFailed++
	c.mu.Unlock()
}

// --- Workflow ---

// IncStageRun records one execution of the named stage.
func (c *Collector) IncStageRun(stage string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stagesRun++
	c.stagesByName[stage]++
	c.mu.Unlock()
}

// IncRouteDecided records one routing decision after a stage.
func (c *Collector) IncRouteDecided() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.routesDecided++
	c.mu.Unlock()
}

// IncRepairApplied records one repair of the calculation plan.
func (c *Collector) IncRepairApplied() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.repairsApplied++
	c.mu.Unlock()
}

// AbsorbRetriesUsed sets the retries-used counter from the final retry
// state. Called once at run completion.
func (c *Collector) AbsorbRetriesUsed(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.retriesUsed = int64(n)
	c.mu.Unlock()
}

// --- Compute ---

// IncCalculatorCall records one single-point or relaxation invocation.
func (c *Collector) IncCalculatorCall() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.calculatorCalls++
	c.mu.Unlock()
}

// IncCalculatorError records a calculator invocation that returned an error.
func (c *Collector) IncCalculatorError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.calculatorErrors++
	c.mu.Unlock()
}

// AddOptimizerSteps records n optimizer iterations.
func (c *Collector) AddOptimizerSteps(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.optimizerSteps += int64(n)
	c.mu.Unlock()
}

// IncWorkerFrameError records a worker protocol decode or framing error.
func (c *Collector) IncWorkerFrameError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.workerFrameErrors++
	c.mu.Unlock()
}

// Snapshot returns an immutable copy of all counters and dimensions.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{StagesByName: map[string]int64{}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byName := make(map[string]int64, len(c.stagesByName))
	for k, v := range c.stagesByName {
		byName[k] = v
	}

	return Snapshot{
		RunsStarted:   c.runsStarted,
		RunsCompleted: c.runsCompleted,
		RunsPassed:    c.runsPassed,
		RunsFailed:    c.runsFailed,

		StagesRun:      c.stagesRun,
		StagesByName:   byName,
		RetriesUsed:    c.retriesUsed,
		RoutesDecided:  c.routesDecided,
		RepairsApplied: c.repairsApplied,

		CalculatorCalls:   c.calculatorCalls,
		CalculatorErrors:  c.calculatorErrors,
		OptimizerSteps:    c.optimizerSteps,
		WorkerFrameErrors: c.workerFrameErrors,

		Backend:   c.backend,
		Optimizer: c.optimizer,
		RunID:     c.runID,
		Material:  c.material,
	}
}
