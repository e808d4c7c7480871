// Package discovery finds 2N intercoms on the local network over mDNS.
//
// The devices announce their web server as an "_http._tcp" service under
// their factory hostname, which carries the model and serial number
// ("2N-IP-Verso-54-1234-5678.local"). Entries whose hostname does not
// follow that pattern are ignored.
//
//	devices, err := discovery.ScanForDevices(ctx, 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	for _, d := range devices {
//	    fmt.Println(d.Serial, d.Host())
//	}
//
// Discovery needs multicast on the interface and UDP port 5353 open.
// Renamed devices are not found; connect to them by address instead.
package discovery
