package dynamo

// Config holds configuration for the DynamoDB driver.
type Config struct {
	// TablePrefix is prepended to collection names to form table names.
	// Default: "" (collection name is the table name).
	TablePrefix string

	// KeyField is the attribute acting as the identity field in every
	// table. Each table's partition key must be this attribute.
	// Default: "id"
	KeyField string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{KeyField: "id"}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.KeyField == "" {
		c.KeyField = "id"
	}
}
