package config

const redacted = "***"

// Redacted returns a copy of the config with credential fields masked, safe
// to log at startup.
func (c *Config) Redacted() Config {
	out := *c

	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Copy the one mutable slice so the caller cannot reach the original.
	if c.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	}
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
