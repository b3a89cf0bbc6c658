package runtime

import (
	werrors "github.com/sambeau/wml/pkg/wml/errors"
)

// Controller decides which arms of an if chain run.
type Controller interface {
	// Decide reports whether an arm with the given test outcome runs.
	// fired tells whether an earlier arm ran. The returned invalid flag
	// switches the rest of the chain into invalid context.
	Decide(test any, err error, fired, invalid bool) (run, nowInvalid bool, _ error)
}

// StandardController runs the first arm whose test is truthy.
type StandardController struct{}

func (StandardController) Decide(test any, err error, fired, invalid bool) (bool, bool, error) {
	if err != nil {
		return false, false, err
	}
	return !fired && Truthy(test), false, nil
}

// InternalController is used by dirty checks. A test that cannot be
// decided makes every remaining arm run, so an unknown condition never
// hides an expression from the check.
type InternalController struct{}

func (InternalController) Decide(test any, err error, fired, invalid bool) (bool, bool, error) {
	if invalid {
		return true, true, nil
	}
	if err != nil || test == Unreachable {
		return true, true, nil
	}
	return !fired && Truthy(test), false, nil
}

type chainStage int

const (
	stageNew chainStage = iota
	stageOpen
	stageElse
	stageDone
)

// Chain runs an if/elif/else chain. Calls must come in the order If,
// Elif..., optional Else, Fi.
type Chain struct {
	ctrl    Controller
	stage   chainStage
	fired   bool
	invalid bool
	out     []*VNode
}

// NewChain creates a chain driven by ctrl.
func NewChain(ctrl Controller) *Chain {
	return &Chain{ctrl: ctrl}
}

// TestFunc evaluates an arm's test.
type TestFunc func() (any, error)

// BodyFunc runs an arm's body.
type BodyFunc func() ([]*VNode, error)

func orderError(msg string) error {
	return werrors.New("RUNTIME-0004", map[string]any{"Message": msg})
}

// If opens the chain.
func (c *Chain) If(test TestFunc, body BodyFunc) error {
	if c.stage != stageNew {
		return orderError("if must open the chain")
	}
	c.stage = stageOpen
	return c.arm(test, body)
}

// Elif adds a conditional arm.
func (c *Chain) Elif(test TestFunc, body BodyFunc) error {
	switch c.stage {
	case stageNew:
		return orderError("elif before if")
	case stageElse:
		return orderError("elif after else")
	case stageDone:
		return orderError("elif after fi")
	}
	return c.arm(test, body)
}

// Else adds the final unconditional arm.
func (c *Chain) Else(body BodyFunc) error {
	switch c.stage {
	case stageNew:
		return orderError("else before if")
	case stageElse:
		return orderError("second else")
	case stageDone:
		return orderError("else after fi")
	}
	c.stage = stageElse
	return c.arm(nil, body)
}

// Fi closes the chain and returns the output of the arms that ran, or def
// when none did.
func (c *Chain) Fi(def []*VNode) ([]*VNode, error) {
	if c.stage == stageNew {
		return nil, orderError("fi before if")
	}
	if c.stage == stageDone {
		return nil, orderError("fi called twice")
	}
	c.stage = stageDone
	if !c.fired {
		return def, nil
	}
	return c.out, nil
}

func (c *Chain) arm(test TestFunc, body BodyFunc) error {
	var (
		value any = true
		err   error
	)
	if test != nil {
		// a settled chain never evaluates later tests
		if c.fired && !c.invalid {
			return nil
		}
		value, err = test()
	}
	run, invalid, err := c.ctrl.Decide(value, err, c.fired, c.invalid)
	if err != nil {
		return err
	}
	c.invalid = invalid
	if !run {
		return nil
	}
	c.fired = true
	nodes, err := body()
	if err != nil {
		return err
	}
	c.out = append(c.out, nodes...)
	return nil
}
