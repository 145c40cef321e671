package config

import "time"

// Accessors for parsed forms of string-typed settings. All of these assume
// Validate has accepted the Config; unparseable values resolve to zero.

// MaxMessageBytes returns the email size ceiling in bytes; 0 applies the
// mailer's built-in default.
func (s *SMTPConfig) MaxMessageBytes() int64 {
	n, _ := parseSize(s.MaxMessageSize) //nolint:errcheck // validated at load
	return n
}

// MaxImageBytes returns the image recompression threshold in bytes;
// 0 disables recompression.
func (u *UploadsConfig) MaxImageBytes() int64 {
	n, _ := parseSize(u.MaxImageSize) //nolint:errcheck // validated at load
	return n
}

// CacheTTL returns the folder cache lifetime; 0 disables the cache.
func (u *UploadsConfig) CacheTTL() time.Duration {
	d, _ := parseDuration(u.FolderCacheTTL) //nolint:errcheck // validated at load
	return d
}

// TimeoutDuration returns the HTTP client timeout; 0 means no timeout.
func (n *NetworkConfig) TimeoutDuration() time.Duration {
	d, _ := parseDuration(n.Timeout) //nolint:errcheck // validated at load
	return d
}
