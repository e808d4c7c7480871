// Package config manages saved intercom connection profiles for the go2n CLI.
//
// Profiles live in a YAML file in the platform configuration directory:
//   - Linux: $XDG_CONFIG_HOME/go2n/config.yaml or $HOME/.config/go2n/config.yaml
//   - macOS: $HOME/.config/go2n/config.yaml
//   - Windows: %LOCALAPPDATA%\go2n\config.yaml
//
// # Security
//
// Passwords are NEVER written to the file. A profile stores the account
// name only; the CLI prompts for the password or reads GO2N_PASSWORD.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    return err
//	}
//	err = registry.SetDevice("front-door", &config.Device{
//	    Host:       "192.168.1.50",
//	    Username:   "api",
//	    AuthMethod: "digest",
//	})
//	if err != nil {
//	    return err
//	}
//	return registry.Save()
//
// Writes go to a temporary file that is renamed over the old one.
package config
