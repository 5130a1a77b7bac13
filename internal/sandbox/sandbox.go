// Package sandbox executes tenant-authored scripts against a single inbound
// interaction. Each run gets a fresh goja interpreter seeded with a closed
// capability set: the interaction handle, a prefixed logging sink, time
// helpers, and timer scheduling. No filesystem, network, process control, or
// manager state is reachable from inside a script.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/user/botmux/internal/audit"
	"github.com/user/botmux/internal/platform"
	"github.com/user/botmux/internal/types"
)

// DefaultTimeout bounds a single script run when no override is configured.
const DefaultTimeout = 30 * time.Second

// Runner executes scripts.
type Runner struct {
	audit   *audit.Emitter
	timeout time.Duration
}

// New creates a Runner. A non-positive timeout falls back to DefaultTimeout.
func New(emitter *audit.Emitter, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{audit: emitter, timeout: timeout}
}

type pendingTimer struct {
	id   int64
	fn   goja.Callable
	args []goja.Value
	at   time.Time
}

// Run executes script bound to the interaction. The script may reply and
// schedule timers; Run returns once the script and all pending timers have
// completed, the wall-clock budget is exhausted, or ctx is cancelled. Any
// failure raised by the script comes back wrapped in types.ErrSandbox and
// never panics through to the caller.
func (r *Runner) Run(ctx context.Context, tenant types.TenantID, inter platform.Interaction, script string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", types.ErrSandbox, rec)
		}
	}()

	vm := goja.New()
	deadline := time.Now().Add(r.timeout)

	interruptTimer := time.AfterFunc(r.timeout, func() {
		vm.Interrupt("script timeout")
	})
	defer interruptTimer.Stop()

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt("cancelled")
		case <-watchDone:
		}
	}()

	timers := map[int64]*pendingTimer{}
	var nextTimerID int64

	if err := r.bind(vm, ctx, tenant, inter, timers, &nextTimerID); err != nil {
		return fmt.Errorf("%w: %v", types.ErrSandbox, err)
	}

	if _, err := vm.RunString(script); err != nil {
		return wrapScriptError(err)
	}

	// Drain scheduled timers on the same goroutine; the interpreter is not
	// safe for concurrent use.
	for len(timers) > 0 {
		next := earliest(timers)
		wait := time.Until(next.at)
		if wait > 0 {
			if time.Now().Add(wait).After(deadline) {
				return fmt.Errorf("%w: timer past script timeout", types.ErrSandbox)
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", types.ErrSandbox, ctx.Err())
			}
		}
		delete(timers, next.id)
		if _, err := next.fn(goja.Undefined(), next.args...); err != nil {
			return wrapScriptError(err)
		}
	}
	return nil
}

func earliest(timers map[int64]*pendingTimer) *pendingTimer {
	var min *pendingTimer
	for _, t := range timers {
		if min == nil || t.at.Before(min.at) {
			min = t
		}
	}
	return min
}

func wrapScriptError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("%w: interrupted: %v", types.ErrSandbox, interrupted.Value())
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return fmt.Errorf("%w: %s", types.ErrSandbox, exception.Value().String())
	}
	return fmt.Errorf("%w: %v", types.ErrSandbox, err)
}

// bind installs the capability set. Anything not set here does not exist for
// the script.
func (r *Runner) bind(vm *goja.Runtime, ctx context.Context, tenant types.TenantID, inter platform.Interaction, timers map[int64]*pendingTimer, nextTimerID *int64) error {
	interaction := vm.NewObject()
	if err := interaction.Set("command", inter.Command()); err != nil {
		return err
	}
	if err := interaction.Set("user", inter.UserID()); err != nil {
		return err
	}
	if err := interaction.Set("channel", inter.ChannelID()); err != nil {
		return err
	}
	if err := interaction.Set("reply", func(call goja.FunctionCall) goja.Value {
		text := call.Argument(0).String()
		private := call.Argument(1).ToBoolean()
		if err := inter.Reply(text, private); err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	}); err != nil {
		return err
	}
	if err := interaction.Set("followUp", func(call goja.FunctionCall) goja.Value {
		if err := inter.FollowUp(call.Argument(0).String()); err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	}); err != nil {
		return err
	}
	if err := vm.Set("interaction", interaction); err != nil {
		return err
	}

	console := vm.NewObject()
	sink := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		r.audit.Command(ctx, tenant, "script: "+strings.Join(parts, " "), nil)
		return goja.Undefined()
	}
	for _, name := range []string{"log", "info", "warn", "error"} {
		if err := console.Set(name, sink); err != nil {
			return err
		}
	}
	if err := vm.Set("console", console); err != nil {
		return err
	}

	if err := vm.Set("now", func() int64 {
		return time.Now().UnixMilli()
	}); err != nil {
		return err
	}

	if err := vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(vm.NewTypeError("setTimeout requires a function"))
		}
		delay := call.Argument(1).ToInteger()
		if delay < 0 {
			delay = 0
		}
		var extra []goja.Value
		if len(call.Arguments) > 2 {
			extra = call.Arguments[2:]
		}
		*nextTimerID++
		id := *nextTimerID
		timers[id] = &pendingTimer{
			id:   id,
			fn:   fn,
			args: extra,
			at:   time.Now().Add(time.Duration(delay) * time.Millisecond),
		}
		return vm.ToValue(id)
	}); err != nil {
		return err
	}

	return vm.Set("clearTimeout", func(call goja.FunctionCall) goja.Value {
		delete(timers, call.Argument(0).ToInteger())
		return goja.Undefined()
	})
}
