// Package robot implements the simulated robot: a point that drives with a constant
// velocity and publishes its odometry every time it is updated.
package robot

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ghost-robot/message"
)

// OdometryWriter publishes odometry snapshots. *connection.Writer[message.Odometry]
// implements it.
type OdometryWriter interface {
	Write(msg message.Odometry) error
}

// Vector is a 2D quantity in meters or meters per second.
type Vector struct {
	X, Y float64
}

// Robot holds the kinematic state. Velocity is written by the console goroutine
// and read by the control loop, so all fields are guarded by mu.
type Robot struct {
	writer OdometryWriter
	now    func() time.Time
	log    *zap.Logger

	mu         sync.Mutex
	position   Vector
	velocity   Vector
	lastUpdate time.Time
}

// Option configures a Robot.
type Option func(*Robot)

// WithClock replaces time.Now, e.g. with a simulated clock.
func WithClock(now func() time.Time) Option {
	return func(r *Robot) { r.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Robot) { r.log = logger }
}

// New creates a robot at the origin, at rest. A nil writer makes Update a no-op,
// which is the case when the publisher could not be started.
func New(writer OdometryWriter, opts ...Option) *Robot {
	r := &Robot{
		writer: writer,
		now:    time.Now,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.lastUpdate = r.now()
	return r
}

func (r *Robot) SetVelocity(x, y float64) {
	r.mu.Lock()
	r.velocity = Vector{X: x, Y: y}
	r.mu.Unlock()
	r.log.Info(fmt.Sprintf("Updated velocity to %g; %g", x, y))
}

func (r *Robot) Velocity() Vector {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.velocity
}

func (r *Robot) Position() Vector {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position
}

// Update integrates position over the time measured since the previous update and
// publishes the new odometry. A failed write is logged; the next Update tries again
// with fresh state.
func (r *Robot) Update() {
	if r.writer == nil {
		return
	}

	r.mu.Lock()
	now := r.now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.position.X += r.velocity.X * elapsed
	r.position.Y += r.velocity.Y * elapsed
	r.lastUpdate = now
	odom := message.Odometry{X: r.position.X, Y: r.position.Y}
	r.mu.Unlock()

	if err := r.writer.Write(odom); err != nil {
		r.log.Warn("failed to publish odometry", zap.Error(err))
	}
}
