// Package connection implements publishers and subscribers bound to a channel
// configuration, and the Manager that owns them.
//
// Lifecycle of every connection:
//
//	Created ──Start ok──→ Started ──Stop / Manager.Shutdown──→ Stopped
//	   │                     │
//	   └──Start fails──→ Failed ←──peer lost (subscriber)
//
// Stopped and Failed are terminal; a connection is never restarted. Callers hold
// plain pointers but never stop or free connections themselves: Manager.Shutdown
// stops every Started connection in reverse creation order.
//
// Typical producer:
//
//	mgr := connection.NewManager(connection.WithLogger(logger))
//	defer mgr.Shutdown()
//	pub := mgr.CreatePublisher(cfg)
//	if err := pub.Start(ctx); err != nil { ... }
//	w, _ := connection.GetWriter(pub, codec.OdometryCodec(codec.GetCodec(cfg.Codec)))
//	err := w.Write(message.Odometry{X: 1, Y: 2})
//
// Typical consumer:
//
//	sub := mgr.CreateSubscriber(cfg)
//	connection.AddHandler(sub.AddMessageHandler(), odomCodec, func(m message.Odometry) { ... })
//	if err := sub.Start(ctx); err != nil { ... }
package connection
