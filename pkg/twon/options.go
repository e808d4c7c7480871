package twon

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// ContentTypeJSON is the only media type a compatible device answers with
	ContentTypeJSON = "application/json"
)

// AuthMethod selects how credentials are presented to the device
type AuthMethod string

const (
	AuthBasic  AuthMethod = "basic"
	AuthDigest AuthMethod = "digest"
)

// Protocol is the URL scheme used to reach the device
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
)

// ParseAuthMethod parses a user-supplied auth method name
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch AuthMethod(strings.ToLower(strings.TrimSpace(s))) {
	case "", AuthBasic:
		return AuthBasic, nil
	case AuthDigest:
		return AuthDigest, nil
	}
	return "", NewValidationError(fmt.Sprintf("unknown auth method %q (use basic or digest)", s))
}

// ParseProtocol parses a user-supplied protocol name
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.ToLower(strings.TrimSpace(s))) {
	case "", ProtocolHTTP:
		return ProtocolHTTP, nil
	case ProtocolHTTPS:
		return ProtocolHTTPS, nil
	}
	return "", NewValidationError(fmt.Sprintf("unknown protocol %q (use http or https)", s))
}

// ConnectionOptions describes how to reach one device. Values are immutable
// once built by NewConnectionOptions.
type ConnectionOptions struct {
	host         string
	username     string
	password     string
	authMethod   AuthMethod
	protocol     Protocol
	tlsVerify    bool
	unprivileged bool
	timeout      time.Duration

	// basicAuth is the precomputed Authorization header value
	basicAuth string
}

// Option configures ConnectionOptions
type Option func(*ConnectionOptions)

// WithCredentials sets the API account used for authenticated endpoints
func WithCredentials(username, password string) Option {
	return func(o *ConnectionOptions) {
		o.username = username
		o.password = password
	}
}

// WithAuthMethod selects basic or digest authentication
func WithAuthMethod(method AuthMethod) Option {
	return func(o *ConnectionOptions) { o.authMethod = method }
}

// WithProtocol selects http or https
func WithProtocol(protocol Protocol) Option {
	return func(o *ConnectionOptions) { o.protocol = protocol }
}

// WithTLSVerify enables certificate verification for https
func WithTLSVerify(verify bool) Option {
	return func(o *ConnectionOptions) { o.tlsVerify = verify }
}

// WithUnprivileged marks the session as unable to call privileged endpoints
func WithUnprivileged(unprivileged bool) Option {
	return func(o *ConnectionOptions) { o.unprivileged = unprivileged }
}

// WithTimeout overrides DefaultTimeout for every request
func WithTimeout(timeout time.Duration) Option {
	return func(o *ConnectionOptions) { o.timeout = timeout }
}

// NewConnectionOptions validates and builds the connection description.
// Username and password must be supplied together.
func NewConnectionOptions(host string, opts ...Option) (ConnectionOptions, error) {
	o := ConnectionOptions{
		host:       strings.TrimSpace(host),
		authMethod: AuthBasic,
		protocol:   ProtocolHTTP,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.host == "" {
		return ConnectionOptions{}, NewValidationError("host is required")
	}
	if strings.Contains(o.host, "://") || strings.Contains(o.host, "/") {
		return ConnectionOptions{}, NewValidationError(fmt.Sprintf("host %q must not contain a scheme or path", o.host))
	}
	if (o.username == "") != (o.password == "") {
		return ConnectionOptions{}, NewValidationError("supply both username and password")
	}
	if _, err := ParseAuthMethod(string(o.authMethod)); err != nil {
		return ConnectionOptions{}, err
	}
	if _, err := ParseProtocol(string(o.protocol)); err != nil {
		return ConnectionOptions{}, err
	}
	if o.timeout <= 0 {
		return ConnectionOptions{}, NewValidationError("timeout must be positive")
	}

	if o.username != "" && o.authMethod == AuthBasic {
		o.basicAuth = "Basic " + base64.StdEncoding.EncodeToString([]byte(o.username+":"+o.password))
	}

	return o, nil
}

// Host returns the device host (name or address, optionally with port)
func (o ConnectionOptions) Host() string { return o.host }

// Username returns the configured API account name
func (o ConnectionOptions) Username() string { return o.username }

// AuthMethod returns the configured authentication method
func (o ConnectionOptions) AuthMethod() AuthMethod { return o.authMethod }

// Protocol returns the configured URL scheme
func (o ConnectionOptions) Protocol() Protocol { return o.protocol }

// TLSVerify reports whether https certificates are verified
func (o ConnectionOptions) TLSVerify() bool { return o.tlsVerify }

// Unprivileged reports whether privileged endpoints are skipped
func (o ConnectionOptions) Unprivileged() bool { return o.unprivileged }

// Timeout returns the default per-request timeout
func (o ConnectionOptions) Timeout() time.Duration { return o.timeout }

// HasCredentials reports whether requests carry credentials
func (o ConnectionOptions) HasCredentials() bool { return o.username != "" }

// BaseURL returns the scheme and host every endpoint is resolved against
func (o ConnectionOptions) BaseURL() string {
	return fmt.Sprintf("%s://%s", o.protocol, o.host)
}

// String omits the password
func (o ConnectionOptions) String() string {
	user := "-"
	if o.username != "" {
		user = o.username
	}
	return fmt.Sprintf("%s (user %s, auth %s, unprivileged %v)", o.BaseURL(), user, o.authMethod, o.unprivileged)
}
