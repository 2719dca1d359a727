package router

import "sort"

// taskUtility is one (model, task_type) pair's EMA utility.
type taskUtility struct {
	ema  float64
	seen bool
}

// NashRouter assigns each model a probability distribution over task types
// via iterated best-response on an EMA utility signal (spec §4.6). It makes
// no fixed-point convergence guarantee; BestResponse simply runs a bounded
// number of improvement steps.
type NashRouter struct {
	utilityRate float64
	shiftRate   float64

	utility map[string]map[string]*taskUtility // model -> taskType -> utility
	probs   map[string]map[string]float64      // model -> taskType -> probability mass
	models  []string
	tasks   []string
}

// NewNashRouter constructs a NashRouter. utilityRate is the EMA rate for
// utility observations; shiftRate is the fraction of probability mass moved
// toward a model's best task type per BestResponse iteration.
func NewNashRouter(utilityRate, shiftRate float64) *NashRouter {
	return &NashRouter{
		utilityRate: utilityRate,
		shiftRate:   shiftRate,
		utility:     make(map[string]map[string]*taskUtility),
		probs:       make(map[string]map[string]float64),
	}
}

func (n *NashRouter) ensureModel(model string) {
	if _, ok := n.utility[model]; ok {
		return
	}
	n.utility[model] = make(map[string]*taskUtility)
	n.probs[model] = make(map[string]float64)
	n.models = append(n.models, model)
}

func (n *NashRouter) ensureTask(model, taskType string) *taskUtility {
	n.ensureModel(model)
	if _, ok := n.utility[model][taskType]; !ok {
		n.utility[model][taskType] = &taskUtility{}
		if !containsString(n.tasks, taskType) {
			n.tasks = append(n.tasks, taskType)
		}
		n.rebalanceNewTask(model, taskType)
	}
	return n.utility[model][taskType]
}

// rebalanceNewTask gives a newly observed task type an even initial share
// of the model's probability mass.
func (n *NashRouter) rebalanceNewTask(model, taskType string) {
	probs := n.probs[model]
	count := len(n.utility[model])
	if count == 0 {
		return
	}
	even := 1.0 / float64(count)
	for t := range n.utility[model] {
		probs[t] = even
	}
	_ = taskType
}

// Observe records one (model, taskType) trial's speed and cost, updating
// the EMA utility q·speed − cost (spec §4.6).
func (n *NashRouter) Observe(model, taskType string, q, speed, cost float64) {
	ut := n.ensureTask(model, taskType)
	raw := q*speed - cost
	if !ut.seen {
		ut.ema = raw
		ut.seen = true
		return
	}
	ut.ema += n.utilityRate * (raw - ut.ema)
}

// BestResponse runs steps rounds of iterated improvement: each model shifts
// shiftRate of its probability mass toward the task type with the highest
// current EMA utility (spec §4.6).
func (n *NashRouter) BestResponse(steps int) {
	for s := 0; s < steps; s++ {
		for _, model := range n.models {
			n.stepModel(model)
		}
	}
}

func (n *NashRouter) stepModel(model string) {
	tasks := n.utility[model]
	if len(tasks) == 0 {
		return
	}
	best := bestTask(tasks)
	probs := n.probs[model]
	var reclaimed float64
	for t := range tasks {
		if t == best {
			continue
		}
		delta := probs[t] * n.shiftRate
		probs[t] -= delta
		reclaimed += delta
	}
	probs[best] += reclaimed
}

func bestTask(tasks map[string]*taskUtility) string {
	keys := make([]string, 0, len(tasks))
	for t := range tasks {
		keys = append(keys, t)
	}
	sort.Strings(keys) // deterministic tie-break
	best := keys[0]
	for _, t := range keys[1:] {
		if tasks[t].ema > tasks[best].ema {
			best = t
		}
	}
	return best
}

// Distribution returns model's current probability distribution over task
// types.
func (n *NashRouter) Distribution(model string) map[string]float64 {
	out := make(map[string]float64, len(n.probs[model]))
	for t, p := range n.probs[model] {
		out[t] = p
	}
	return out
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
