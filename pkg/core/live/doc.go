// Package live implements the real-time media pipeline for a mixer-fixer
// session: camera and microphone in, agent speech and repair instructions out.
//
// # Architecture
//
// The package provides these core components:
//
//   - Session: the state machine that owns the pipeline and every resource
//   - AudioEncoder: converts captured float blocks to 16-bit PCM chunks
//   - FrameSampler: rasterizes the current video frame to JPEG at a bounded rate
//   - Transmitter: the asynchronous outbound media queue
//   - PlaybackScheduler: sequences decoded agent audio gaplessly on an output line
//   - InstructionBoard: holds the single current instruction with auto-expiry
//
// # Data Flow
//
//	Capture ──► AudioEncoder ──► Transmitter ──► AgentChannel
//	        └─► FrameSampler ──►
//
//	AgentChannel ──► PlaybackScheduler ──► OutputLine
//	             └─► InstructionBoard ──► tool-response ack
//
// # State Machine
//
// A session progresses through these states:
//
//	CONNECTING → CONNECTED → {DISCONNECTED, ERROR}
//
// DISCONNECTED and ERROR are terminal; construct a fresh Session to retry.
//
// # Usage
//
//	session := live.NewSession(live.DefaultSessionConfig(), device, dialer, line)
//	if err := session.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Stop()
//
//	for event := range session.Events() {
//	    switch e := event.(type) {
//	    case *live.InstructionEvent:
//	        render(e.Instruction)
//	    case *live.AgentSpeakingEvent:
//	        setTalkingIndicator(e.Speaking)
//	    }
//	}
package live
