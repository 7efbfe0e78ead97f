package live

import (
	"sync"
	"time"

	"github.com/MostafaRabia/mixer-fixer/pkg/core"
)

// Action is the enumerated tag of a repair instruction.
type Action string

const (
	ActionShowMixer    Action = "show_mixer"
	ActionFixBuzz      Action = "fix_buzz"
	ActionFixHum       Action = "fix_hum"
	ActionCheckCables  Action = "check_cables"
	ActionCheckGain    Action = "check_gain"
	ActionCheckPhantom Action = "check_phantom"
	ActionCheckEQ      Action = "check_eq"
	ActionAdjustFader  Action = "adjust_fader"
	ActionSuccess      Action = "success"
	ActionFailure      Action = "failure"
)

// Instruction is a structured repair step the agent asks the UI to display.
type Instruction struct {
	Action  Action `json:"action"`
	Message string `json:"message"`
}

// InstructionBoard holds the single current instruction. A new instruction
// replaces the prior one and resets its expiry timer; an instruction
// expires automatically after the TTL unless replaced earlier.
type InstructionBoard struct {
	ttl      time.Duration
	onChange func(current *Instruction)

	mu      sync.Mutex
	current *Instruction
	timer   *time.Timer
	gen     uint64
	closed  bool
}

// NewInstructionBoard creates a board whose instructions expire after ttl.
// onChange fires with the new instruction on set and with nil on expiry.
func NewInstructionBoard(ttl time.Duration, onChange func(current *Instruction)) *InstructionBoard {
	if ttl <= 0 {
		ttl = 8 * time.Second
	}
	return &InstructionBoard{
		ttl:      ttl,
		onChange: onChange,
	}
}

// Set makes inst the current instruction and (re)arms its expiry timer,
// cancelling the pending expiry of whatever it replaced.
func (b *InstructionBoard) Set(inst Instruction) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.current = &inst
	b.gen++
	gen := b.gen
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.ttl, func() { b.expire(gen) })
	b.mu.Unlock()

	if b.onChange != nil {
		b.onChange(&inst)
	}
}

// expire clears the instruction if it has not been superseded since the
// timer was armed.
func (b *InstructionBoard) expire(gen uint64) {
	b.mu.Lock()
	if b.closed || b.gen != gen || b.current == nil {
		b.mu.Unlock()
		return
	}
	b.current = nil
	b.mu.Unlock()

	if b.onChange != nil {
		b.onChange(nil)
	}
}

// Current returns the current instruction, or nil if none is displayed.
func (b *InstructionBoard) Current() *Instruction {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return nil
	}
	inst := *b.current
	return &inst
}

// Close clears the expiry timer and the current instruction. Idempotent;
// no change notification fires.
func (b *InstructionBoard) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.current = nil
}

// HandleToolCall processes tool-call notifications from one remote
// message. The UI shows one instruction at a time, so only the first call
// is honored; every call is still acknowledged via respond, correlated by
// its identifier, so the remote session can continue its turn.
//
// A call missing a required argument returns a non-fatal
// *core.Error of type ErrMalformedToolCall; the caller logs and drops it.
func (b *InstructionBoard) HandleToolCall(calls []FunctionCall, respond func(id string, response map[string]any) error) error {
	var firstErr error
	honored := false

	for _, call := range calls {
		if call.Name != InstructionToolName {
			continue
		}

		if !honored {
			inst, err := instructionFromArgs(call.Args)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
			} else {
				b.Set(inst)
			}
			honored = true
		}

		if respond != nil {
			if err := respond(call.ID, map[string]any{"ok": true}); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func instructionFromArgs(args map[string]any) (Instruction, error) {
	action, ok := args["action"].(string)
	if !ok || action == "" {
		return Instruction{}, core.NewMalformedToolCallError("tool call missing action")
	}
	message, ok := args["message"].(string)
	if !ok || message == "" {
		return Instruction{}, core.NewMalformedToolCallError("tool call missing message")
	}
	return Instruction{Action: Action(action), Message: message}, nil
}
