/*
Package resilience provides circuit breakers for calls to other devices.

A Breaker is closed while calls succeed. Once ReadyToTrip approves after a
failure it opens and rejects calls with ErrCircuitOpen until Timeout passes,
then lets MaxRequests trial calls through half-open. Enough consecutive
successes close it again; any trial failure reopens it.

	Closed --[trip]--> Open --[timeout]--> Half-Open --[successes]--> Closed
	                    ^                      |
	                    +-------[failure]------+

A Group hands out one breaker per key, e.g. per remote device:

	breakers := resilience.NewGroup(resilience.Settings{Timeout: 30 * time.Second})
	err := breakers.Get(deviceID).Do(func() error {
		return send(ctx, deviceID)
	})
*/
package resilience
