package twon

import "context"

// mergeKeyed walks caps in order and pairs each entry with the status that
// shares its key. build receives found=false when no status matched and
// decides whether to emit a record. A key repeated in caps is merged once,
// from its first entry.
func mergeKeyed[C, S any, K comparable, R any](
	caps []C,
	statuses []S,
	capKey func(C) K,
	statusKey func(S) K,
	build func(c C, s S, found bool) (R, bool),
) []R {
	byKey := make(map[K]S, len(statuses))
	for _, s := range statuses {
		byKey[statusKey(s)] = s
	}

	out := make([]R, 0, len(caps))
	seen := make(map[K]struct{}, len(caps))
	for _, c := range caps {
		key := capKey(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		s, found := byKey[key]
		if r, ok := build(c, s, found); ok {
			out = append(out, r)
		}
	}
	return out
}

// mergeSwitches keeps every capability entry; a switch with no status reads
// as inactive and unlocked.
func mergeSwitches(caps []SwitchCapability, statuses []SwitchStatus) []Switch {
	return mergeKeyed(caps, statuses,
		func(c SwitchCapability) int { return c.Switch },
		func(s SwitchStatus) int { return s.Switch },
		func(c SwitchCapability, s SwitchStatus, found bool) (Switch, bool) {
			sw := Switch{ID: c.Switch, Enabled: c.Enabled}
			if found {
				sw.Active = s.Active
				sw.Locked = s.Locked
			}
			if c.Enabled && c.Mode != nil {
				mode := *c.Mode
				sw.Mode = &mode
			}
			return sw, true
		},
	)
}

// mergePorts drops capability entries without a status.
//
// This differs from mergeSwitches, which defaults the missing status. Both
// behaviours match what deployed firmware has been observed to need, but
// the difference is probably accidental.
func mergePorts(caps []PortCapability, statuses []PortStatus) []Port {
	return mergeKeyed(caps, statuses,
		func(c PortCapability) string { return c.Port },
		func(s PortStatus) string { return s.Port },
		func(c PortCapability, s PortStatus, found bool) (Port, bool) {
			if !found {
				return Port{}, false
			}
			return Port{ID: c.Port, Type: c.Type, State: s.State}, true
		},
	)
}

// notSupported reports whether err is the device saying it lacks the
// feature. Such a family is reported empty instead of failing the refresh.
func notSupported(err error) bool {
	return IsAPIError(err, APIErrNotSupported)
}

func fetchSwitches(ctx context.Context, c *Client) ([]Switch, error) {
	caps, err := c.SwitchCaps(ctx)
	if err != nil {
		if notSupported(err) {
			return []Switch{}, nil
		}
		return nil, err
	}
	statuses, err := c.SwitchStatus(ctx)
	if err != nil {
		if notSupported(err) {
			return []Switch{}, nil
		}
		return nil, err
	}
	return mergeSwitches(caps, statuses), nil
}

func fetchPorts(ctx context.Context, c *Client) ([]Port, error) {
	caps, err := c.IOCaps(ctx)
	if err != nil {
		if notSupported(err) {
			return []Port{}, nil
		}
		return nil, err
	}
	statuses, err := c.IOStatus(ctx)
	if err != nil {
		if notSupported(err) {
			return []Port{}, nil
		}
		return nil, err
	}
	return mergePorts(caps, statuses), nil
}

func fetchLogCapabilities(ctx context.Context, c *Client) ([]string, error) {
	events, err := c.LogCaps(ctx)
	if err != nil {
		if notSupported(err) {
			return []string{}, nil
		}
		return nil, err
	}
	return events, nil
}
