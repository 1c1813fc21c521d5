package mock

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/livevisitors/backend/internal/stream"
)

// Transport labels simulated sessions in metrics and /api/status.
const Transport = "mock"

// Pattern shapes how many simulated visitors are connected over time.
type Pattern string

const (
	Steady Pattern = "steady"
	Burst  Pattern = "burst"
	Wave   Pattern = "wave"
)

func ParsePattern(s string) (Pattern, error) {
	switch p := Pattern(s); p {
	case Steady, Burst, Wave:
		return p, nil
	}
	return "", fmt.Errorf("unknown mock pattern %q (want steady, burst or wave)", s)
}

type Options struct {
	Pattern  Pattern
	Visitors int           // baseline concurrent visitors
	Interval time.Duration // how often the crowd is adjusted
}

// Generator keeps a crowd of fake stream sessions open on the hub so the
// counter moves without real browsers. Each fake visitor is a normal session
// with a discarding emitter.
type Generator struct {
	Log *log.Logger

	hub  *stream.Hub
	opts Options
	rng  *rand.Rand

	mu       sync.Mutex
	visitors []*stream.Session
	tick     int
}

func NewGenerator(hub *stream.Hub, opts Options) *Generator {
	if opts.Pattern == "" {
		opts.Pattern = Wave
	}
	if opts.Visitors <= 0 {
		opts.Visitors = 5
	}
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	return &Generator{
		Log:  log.Default(),
		hub:  hub,
		opts: opts,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start runs the generator until ctx is cancelled, then closes every fake
// visitor it opened.
func (g *Generator) Start(ctx context.Context) {
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(g.opts.Interval)
	defer ticker.Stop()
	defer g.closeAll()

	g.step(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.step(ctx)
		}
	}
}

// Connected returns how many fake visitors are currently open.
func (g *Generator) Connected() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.visitors)
}

func (g *Generator) step(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.tick++
	want := g.target(g.tick)

	live := g.visitors[:0]
	for _, s := range g.visitors {
		if s.State() != stream.StateClosed {
			live = append(live, s)
		}
	}
	g.visitors = live

	for len(g.visitors) < want {
		sess, err := g.hub.Subscribe(stream.EmitterFunc(discard), Transport)
		if err != nil {
			g.Log.Printf("mock visitor rejected: %v", err)
			break
		}
		go sess.Run(ctx)
		g.visitors = append(g.visitors, sess)
	}

	// Oldest visitors leave first.
	for len(g.visitors) > want {
		g.visitors[0].Close()
		g.visitors = g.visitors[1:]
	}
}

// target is the crowd size for the given tick.
func (g *Generator) target(tick int) int {
	base := g.opts.Visitors
	switch g.opts.Pattern {
	case Burst:
		if tick%8 < 3 {
			return int(float64(base) * 2.5)
		}
		return base
	case Wave:
		pace := 0.7 + 0.3*math.Sin(float64(tick)/10.0)
		return int(math.Round(float64(base) * pace))
	default:
		n := base + g.rng.Intn(3) - 1
		if n < 0 {
			n = 0
		}
		return n
	}
}

func (g *Generator) closeAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.visitors {
		s.Close()
	}
	g.visitors = nil
}

func discard(int64) error { return nil }
