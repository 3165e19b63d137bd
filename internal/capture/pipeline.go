// Package capture owns the camera frame loop: it detects faces in each
// frame, matches them against the enrolled roster, drives the
// attendance ledger, and publishes the latest annotated frame for
// streaming.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/smart-attendance/internal/annotate"
	"github.com/kozaktomas/smart-attendance/internal/detect"
	"github.com/kozaktomas/smart-attendance/internal/frame"
	"github.com/kozaktomas/smart-attendance/internal/ledger"
	"github.com/kozaktomas/smart-attendance/internal/recognize"
	"github.com/kozaktomas/smart-attendance/internal/roster"
)

var (
	// ErrSourceUnavailable means the frame source could not be acquired
	// at start (camera missing or busy).
	ErrSourceUnavailable = errors.New("frame source unavailable")
	// ErrSourceLost means repeated frame reads failed during a running
	// session and the pipeline gave up.
	ErrSourceLost = errors.New("frame source lost")
)

// Source is a camera or video device abstraction supplying frames.
type Source interface {
	NextFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// State of the capture pipeline.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Frame is an immutable snapshot of the latest annotated frame.
// Readers get whole frames or nothing, never partial writes.
type Frame struct {
	JPEG       []byte
	CapturedAt time.Time
	Faces      int
}

// Options tunes the pipeline loop.
type Options struct {
	Threshold              float64       // match distance threshold
	FrameInterval          time.Duration // delay between frames
	ReadTimeout            time.Duration // bound on a single source read
	MaxConsecutiveFailures int           // source read failures before giving up
	Cooldown               time.Duration // per-identity re-recognition cooldown
	DedupThreshold         int           // frame dHash hamming threshold, 0 disables
	ShortlistCutoff        int           // roster size above which the shortlist is used
	ShortlistK             int           // shortlist neighbor count

	// OnMark is called for every newly recorded attendance, from the
	// loop goroutine. Must not block.
	OnMark func(ledger.Record)
}

// Pipeline is the recognition-and-attendance state machine. One
// dedicated goroutine drives the frame loop; any number of concurrent
// readers may poll State, LatestFrame and the ledger without ever
// blocking the loop.
type Pipeline struct {
	open     func(ctx context.Context) (Source, error)
	detector detect.Detector
	roster   *roster.Store
	ledger   *ledger.Ledger
	matcher  *recognize.Matcher
	opts     Options
	now      func() time.Time

	mu            sync.Mutex
	state         State
	lastErr       error
	stopRequested bool
	stopCh        chan struct{}
	done          chan struct{}

	latest atomic.Pointer[Frame]
}

// New creates a stopped pipeline. The source is opened on Start so a
// dead camera is reported per session, not at construction.
func New(
	open func(ctx context.Context) (Source, error),
	detector detect.Detector,
	rosterStore *roster.Store,
	attendance *ledger.Ledger,
	opts Options,
) *Pipeline {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 100 * time.Millisecond
	}
	if opts.MaxConsecutiveFailures <= 0 {
		opts.MaxConsecutiveFailures = 10
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 2 * time.Second
	}
	if opts.ShortlistK <= 0 {
		opts.ShortlistK = 10
	}

	return &Pipeline{
		open:     open,
		detector: detector,
		roster:   rosterStore,
		ledger:   attendance,
		matcher:  recognize.NewMatcher(nil),
		opts:     opts,
		now:      time.Now,
		state:    StateStopped,
	}
}

// Start acquires the frame source, warms the ledger for today, and
// launches the frame loop. Calling Start while already starting or
// running is a no-op returning the current state. On acquisition
// failure the pipeline transitions back to Stopped and the error wraps
// ErrSourceUnavailable; no partial running state is left behind.
func (p *Pipeline) Start(ctx context.Context) (State, error) {
	p.mu.Lock()
	switch p.state {
	case StateStarting, StateRunning:
		state := p.state
		p.mu.Unlock()
		return state, nil
	case StateStopping:
		state := p.state
		p.mu.Unlock()
		return state, errors.New("pipeline is stopping, try again")
	}
	p.state = StateStarting
	p.lastErr = nil
	p.stopRequested = false
	p.mu.Unlock()

	fail := func(err error) (State, error) {
		p.mu.Lock()
		p.state = StateStopped
		p.lastErr = err
		p.mu.Unlock()
		return StateStopped, err
	}

	if err := p.roster.Load(ctx); err != nil {
		return fail(fmt.Errorf("loading roster: %w", err))
	}

	if err := p.ledger.Warm(ctx, p.now().Format(ledger.DateFormat)); err != nil {
		return fail(fmt.Errorf("warming ledger: %w", err))
	}

	src, err := p.open(ctx)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrSourceUnavailable, err))
	}

	p.mu.Lock()
	if p.stopRequested {
		// Stop arrived while the source was being acquired; the
		// session ends before the loop ever spawns.
		p.state = StateStopped
		p.stopRequested = false
		p.mu.Unlock()
		if cerr := src.Close(); cerr != nil {
			log.Printf("closing frame source: %v", cerr)
		}
		log.Printf("capture start aborted by stop request")
		return StateStopped, nil
	}
	p.state = StateRunning
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	stopCh, done := p.stopCh, p.done
	p.mu.Unlock()

	go p.run(src, stopCh, done)

	log.Printf("capture pipeline started (%d identities enrolled)", p.roster.Count())
	return StateRunning, nil
}

// Stop requests a cooperative shutdown and waits for the loop to
// finish its in-flight frame, including any pending ledger mark, before
// the source is released. Stop while already stopped is a no-op; stop
// while starting latches and the session aborts before running.
func (p *Pipeline) Stop() State {
	p.mu.Lock()
	switch p.state {
	case StateStopped:
		p.mu.Unlock()
		return StateStopped
	case StateStarting:
		// No loop to stop yet. Latch the request so Start aborts the
		// session before spawning the loop instead of losing the stop.
		p.stopRequested = true
		state := p.state
		p.mu.Unlock()
		return state
	}
	if !p.stopRequested {
		p.stopRequested = true
		p.state = StateStopping
		close(p.stopCh)
	}
	done := p.done
	p.mu.Unlock()

	<-done
	return StateStopped
}

// State returns the current pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastErr returns the error that ended the previous session, if any.
func (p *Pipeline) LastErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// LatestFrame returns the newest annotated frame. Last-writer-wins:
// only the most recent frame is retained, there is no backlog.
func (p *Pipeline) LatestFrame() (Frame, bool) {
	f := p.latest.Load()
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}

// run is the frame loop. It owns the source and releases it on exit.
func (p *Pipeline) run(src Source, stopCh <-chan struct{}, done chan<- struct{}) {
	var loopErr error

	defer func() {
		if err := src.Close(); err != nil {
			log.Printf("closing frame source: %v", err)
		}
		p.mu.Lock()
		p.state = StateStopped
		if loopErr != nil {
			p.lastErr = loopErr
		}
		p.mu.Unlock()
		close(done)
		log.Printf("capture pipeline stopped")
	}()

	deduper := frame.NewDeduper(p.opts.DedupThreshold)
	lastSeen := make(map[string]time.Time) // identity -> last recognition, bounded by roster size
	consecutiveFailures := 0

	ticker := time.NewTicker(p.opts.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		img, err := p.readFrame(src)
		if err != nil {
			consecutiveFailures++
			log.Printf("frame read failed (%d/%d): %v", consecutiveFailures, p.opts.MaxConsecutiveFailures, err)
			if consecutiveFailures >= p.opts.MaxConsecutiveFailures {
				loopErr = fmt.Errorf("%w: %d consecutive read failures", ErrSourceLost, consecutiveFailures)
				return
			}
			continue
		}
		consecutiveFailures = 0

		if deduper.ShouldSkip(img) {
			continue
		}

		p.processFrame(img, lastSeen)
	}
}

// readFrame reads one frame with a bounded timeout so the loop can
// never hang on a stalled camera.
func (p *Pipeline) readFrame(src Source) (image.Image, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.ReadTimeout)
	defer cancel()
	return src.NextFrame(ctx)
}

// processFrame runs detection, matching and ledger marking for one
// frame, then publishes the annotated result.
func (p *Pipeline) processFrame(img image.Image, lastSeen map[string]time.Time) {
	capturedAt := p.now()

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.ReadTimeout)
	detections, err := p.detector.Detect(ctx, img)
	cancel()
	if err != nil {
		// A flaky detector sidecar must not kill the camera loop.
		log.Printf("detection failed, skipping frame: %v", err)
		return
	}

	labels := make([]annotate.Label, 0, len(detections))
	for _, d := range detections {
		candidates := p.roster.Candidates(d.Encoding, p.opts.ShortlistK, p.opts.ShortlistCutoff)
		result := p.matcher.Match(d.Encoding, candidates, p.opts.Threshold)

		label := annotate.Label{Box: d.Box, Name: "Unknown"}
		if result.Matched() {
			label.Name = result.DisplayName
			label.Matched = true
			p.markAttendance(result, capturedAt, lastSeen)
		}
		labels = append(labels, label)
	}

	p.publish(img, labels, capturedAt)
}

// markAttendance records a matched identity, honoring the cooldown.
// A persist failure leaves no cooldown behind, so the next sighting
// retries instead of silently dropping the event.
func (p *Pipeline) markAttendance(result recognize.MatchResult, at time.Time, lastSeen map[string]time.Time) {
	if p.opts.Cooldown > 0 {
		if last, ok := lastSeen[result.IdentityID]; ok && at.Sub(last) < p.opts.Cooldown {
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.ReadTimeout)
	recorded, err := p.ledger.Mark(ctx, result.IdentityID, result.DisplayName, at)
	cancel()
	if err != nil {
		log.Printf("marking attendance for %s failed: %v", result.DisplayName, err)
		return
	}

	lastSeen[result.IdentityID] = at

	if recorded {
		log.Printf("attendance marked for %s (distance %.3f)", result.DisplayName, result.Distance)
		if p.opts.OnMark != nil {
			p.opts.OnMark(ledger.Record{
				StudentID:   result.IdentityID,
				DisplayName: result.DisplayName,
				Timestamp:   at,
				Date:        at.Format(ledger.DateFormat),
			})
		}
	}
}

// publish swaps in the latest annotated frame atomically.
func (p *Pipeline) publish(img image.Image, labels []annotate.Label, capturedAt time.Time) {
	annotated := annotate.Draw(img, labels)
	data, err := annotate.EncodeJPEG(annotated)
	if err != nil {
		log.Printf("encoding annotated frame: %v", err)
		return
	}

	p.latest.Store(&Frame{
		JPEG:       data,
		CapturedAt: capturedAt,
		Faces:      len(labels),
	})
}
