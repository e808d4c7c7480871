// Package twon is a client for the HTTP API of 2N IP intercoms and access
// units.
//
// A Client executes single requests: it normalizes the endpoint path,
// authenticates with basic or digest auth, checks that the device answered
// with JSON, unwraps the {success, result, error} envelope and classifies
// vendor error codes into DeviceError values.
//
// A Device is a session built on a Client. Initialize proves the device is
// reachable and builds a DeviceData snapshot by merging the capability and
// status endpoints of switches and IO ports. Commands validate against that
// snapshot before anything is sent:
//
//	opts, err := twon.NewConnectionOptions("192.168.1.50",
//		twon.WithCredentials("api", "secret"),
//		twon.WithAuthMethod(twon.AuthDigest),
//	)
//	if err != nil {
//		return err
//	}
//	dev, err := twon.CreateDevice(ctx, opts)
//	if err != nil {
//		return err
//	}
//	if err := dev.SetSwitch(ctx, 1, true); errors.Is(err, twon.ErrSwitchDisabled) {
//		...
//	}
//
// Nothing is retried. Callers use IsRetryable and IsConnectionError to
// decide.
package twon
