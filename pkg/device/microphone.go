package device

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/MostafaRabia/mixer-fixer/pkg/core/live"
)

// microphone captures S16 PCM from the default input device and converts
// it into fixed-size float32 blocks.
type microphone struct {
	ctx       *malgo.AllocatedContext
	device    *malgo.Device
	assembler *blockAssembler
	blocks    chan []float32

	mu      sync.Mutex
	stopped bool
}

func openMicrophone(format live.AudioConfig, blockSize int) (*microphone, error) {
	if blockSize <= 0 {
		blockSize = 4096
	}

	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime
	malgoCtx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	m := &microphone{
		ctx:    malgoCtx,
		blocks: make(chan []float32, 8),
	}
	m.assembler = newBlockAssembler(blockSize, m.emit)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			m.assembler.feed(pInputSamples)
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
		return nil, fmt.Errorf("init microphone: %w", err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
		return nil, fmt.Errorf("start microphone: %w", err)
	}
	return m, nil
}

// emit hands one completed block downstream. The capture callback must
// never block: when the consumer lags the block is dropped.
func (m *microphone) emit(block []float32) {
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return
	}
	select {
	case m.blocks <- block:
	default:
	}
}

func (m *microphone) stop() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	m.mu.Unlock()

	if m.device != nil {
		_ = m.device.Stop()
		m.device.Uninit()
	}
	if m.ctx != nil {
		_ = m.ctx.Uninit()
		m.ctx.Free()
	}
	close(m.blocks)
	return nil
}

// blockAssembler converts little-endian S16 capture bytes into float32
// samples in [-1, 1] and emits them in fixed-size blocks.
type blockAssembler struct {
	blockSize int
	emit      func(block []float32)

	mu      sync.Mutex
	pending []float32
	carry   byte
	odd     bool
}

func newBlockAssembler(blockSize int, emit func(block []float32)) *blockAssembler {
	return &blockAssembler{
		blockSize: blockSize,
		emit:      emit,
		pending:   make([]float32, 0, blockSize),
	}
}

// feed consumes one capture callback's worth of S16LE bytes. Byte counts
// are not assumed to be even; a trailing byte carries into the next call.
func (a *blockAssembler) feed(data []byte) {
	a.mu.Lock()

	i := 0
	if a.odd && len(data) > 0 {
		s := int16(a.carry) | int16(data[0])<<8
		a.pending = append(a.pending, float32(s)/32768.0)
		a.odd = false
		i = 1
	}
	for ; i+1 < len(data); i += 2 {
		s := int16(data[i]) | int16(data[i+1])<<8
		a.pending = append(a.pending, float32(s)/32768.0)
	}
	if i < len(data) {
		a.carry = data[i]
		a.odd = true
	}

	var complete [][]float32
	for len(a.pending) >= a.blockSize {
		block := make([]float32, a.blockSize)
		copy(block, a.pending[:a.blockSize])
		a.pending = a.pending[a.blockSize:]
		complete = append(complete, block)
	}
	a.mu.Unlock()

	for _, block := range complete {
		a.emit(block)
	}
}
