// Package app wires the robot example together: a connection manager, an optional
// robot publishing its odometry, and a subscriber printing the odometry it receives.
package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"ghost-robot/codec"
	"ghost-robot/command"
	"ghost-robot/connection"
	"ghost-robot/message"
	"ghost-robot/module"
	"ghost-robot/robot"
)

// ModuleName is the name the example module runs under.
const ModuleName = "ghostRobotExample"

// NotFoundMessage is logged when no robot publishes on the configured channel.
const NotFoundMessage = `Couldn't find the robot! Start this program with the "robot" option.`

type Config struct {
	Channel  connection.Configuration
	Robot    bool          // Also run the robot and publish its odometry
	Interval time.Duration // Control loop period, module.DefaultInterval if zero

	Output         io.Writer // Receives "Received odometry" lines, io.Discard if nil
	OnOdometry     func(message.Odometry)
	ManagerOptions []connection.Option
	Interpreter    *command.Interpreter
	Clock          func() time.Time
	Logger         *zap.Logger
}

// RobotModule is the example program. Its zero value is not usable; use New.
type RobotModule struct {
	cfg    Config
	log    *zap.Logger
	module *module.Module

	outMu sync.Mutex

	// Set by initialize, read by run and shutdown on the loop goroutine
	manager    *connection.Manager
	publisher  *connection.Publisher
	subscriber *connection.Subscriber

	robotMu sync.RWMutex
	robot   *robot.Robot // Guarded by robotMu, also read by other goroutines
}

func New(cfg Config) *RobotModule {
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}
	if cfg.Interval <= 0 {
		cfg.Interval = module.DefaultInterval
	}
	if cfg.Interpreter == nil {
		cfg.Interpreter = command.NewInterpreter()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	a := &RobotModule{cfg: cfg, log: cfg.Logger}
	a.module = module.New(ModuleName,
		module.WithLogger(cfg.Logger),
		module.WithInterval(cfg.Interval),
		module.WithInterpreter(cfg.Interpreter),
		module.WithInitializeBehavior(a.initialize),
		module.WithRunningBehavior(a.run),
		module.WithShutdownBehavior(a.shutdown),
	)
	return a
}

// Module returns the control loop, e.g. for Stop from the console.
func (a *RobotModule) Module() *module.Module {
	return a.module
}

// Start blocks until the module stops. See module.Module.Start.
func (a *RobotModule) Start(ctx context.Context) error {
	return a.module.Start(ctx)
}

// Stop asks the control loop to exit.
func (a *RobotModule) Stop() {
	a.module.Stop()
}

// Robot returns the robot. It is nil until initialization created one, and stays
// nil without Config.Robot.
func (a *RobotModule) Robot() *robot.Robot {
	a.robotMu.RLock()
	defer a.robotMu.RUnlock()
	return a.robot
}

func (a *RobotModule) initialize(ctx context.Context, m *module.Module) error {
	a.manager = connection.NewManager(append(
		[]connection.Option{connection.WithLogger(a.log)}, a.cfg.ManagerOptions...)...)
	odometry := codec.OdometryCodec(codec.GetCodec(a.cfg.Channel.Codec))

	if a.cfg.Robot {
		if err := a.startRobot(ctx, m, odometry); err != nil {
			return err
		}
	}

	a.subscriber = a.manager.CreateSubscriber(a.cfg.Channel)
	connection.AddHandler(a.subscriber.AddMessageHandler(), odometry, a.onOdometry)
	if err := a.subscriber.Start(ctx); err != nil {
		a.log.Error(NotFoundMessage, zap.Stringer("channel", a.cfg.Channel))
		return err
	}
	return nil
}

// startRobot creates the robot and its updateVel command. A publisher that fails to
// start leaves the robot without a writer; the subscriber start decides whether that
// is fatal.
func (a *RobotModule) startRobot(ctx context.Context, m *module.Module, odometry codec.MessageCodec[message.Odometry]) error {
	var writer robot.OdometryWriter

	a.publisher = a.manager.CreatePublisher(a.cfg.Channel)
	if err := a.publisher.Start(ctx); err != nil {
		a.log.Warn("robot publisher unavailable", zap.Error(err))
	} else {
		w, err := connection.GetWriter(a.publisher, odometry)
		if err != nil {
			return err
		}
		writer = w
	}

	r := robot.New(writer, robot.WithClock(a.cfg.Clock), robot.WithLogger(a.log))
	a.robotMu.Lock()
	a.robot = r
	a.robotMu.Unlock()
	return m.Interpreter().Register(robot.NewUpdateVelocityCommand(r))
}

func (a *RobotModule) onOdometry(o message.Odometry) {
	a.outMu.Lock()
	fmt.Fprintf(a.cfg.Output, "Received odometry: %g; %g [m; m]\n", o.X, o.Y)
	a.outMu.Unlock()
	if a.cfg.OnOdometry != nil {
		a.cfg.OnOdometry(o)
	}
}

func (a *RobotModule) run(context.Context, *module.Module) bool {
	if r := a.Robot(); r != nil {
		r.Update()
	}
	return true
}

func (a *RobotModule) shutdown(*module.Module) {
	if a.manager != nil {
		a.manager.Shutdown()
	}
}
