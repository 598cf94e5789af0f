// Package config loads and watches the bridge configuration file.
//
// Load(path) reads the YAML file, applies defaults (gateway
// http://localhost:9091, mode replace, 30s push interval), then validates
// required fields and enums. Secrets never live in the file itself: the
// basic-auth password is resolved from the environment variable named by
// auth.password_env.
//
// GatewayURL() embeds the resolved credentials into the gateway URL and
// ClientTLS() builds a *tls.Config from the tls section, so the main binary
// can hand both straight to the push client.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It handles the rename→create pattern
// used by atomic-save editors by re-adding the watch after each reload.
package config
