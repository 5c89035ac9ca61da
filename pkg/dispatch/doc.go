// Package dispatch delivers emergency notifications with retries.
//
// A Dispatcher turns an emergency notice into jobs: one push job per active
// device token of every matched donor and, for critical emergencies, one
// SMS job per donor delayed a few seconds so the push arrives first. Jobs
// are stored in a Storage (Redis in production, memory in tests).
//
// A Worker claims due jobs with bounded concurrency under a global rate
// ceiling, runs each attempt with a timeout and retries failures with
// exponential backoff (2s, 4s, ...) up to MaxAttempts. Terminal states are
// recorded and reported to observers; nothing upstream waits for them.
//
// Push goes through FCM HTTP v1. SMS goes through Twilio or MSG91, chosen
// per country from a YAML routing table:
//
//	routes, _ := dispatch.LoadRoutes("sms_routes.yaml")
//	router, _ := dispatch.NewSMSRouter(routes, map[string]dispatch.SMSSender{
//		dispatch.ProviderTwilio: dispatch.NewTwilioSender(twilioCfg),
//		dispatch.ProviderMSG91:  dispatch.NewMSG91Sender(msg91Cfg),
//	})
//	w, _ := dispatch.NewWorker(store, cfg,
//		dispatch.WithPushSender(fcm),
//		dispatch.WithSMSRouter(router),
//		dispatch.WithTokenRegistry(tokens),
//	)
//	g.Go(w.Run(ctx))
//
// A push token the gateway reports as unregistered is deactivated through
// the TokenRegistry and its job fails without further attempts.
package dispatch
