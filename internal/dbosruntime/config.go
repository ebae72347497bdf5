package dbosruntime

// Config holds DBOS runtime configuration
type Config struct {
	// DatabaseURL is the PostgreSQL connection string for DBOS state storage.
	// Empty disables durable execution.
	DatabaseURL string `env:"DBOS_SYSTEM_DATABASE_URL"`

	// AppName identifies this application in DBOS
	AppName string `env:"DBOS_APP_NAME" envDefault:"simple-generation-pipeline"`

	// QueueName is the name of the job queue
	QueueName string `env:"DBOS_QUEUE_NAME" envDefault:"generation"`

	// Concurrency is the number of jobs a worker runs at once. Generation
	// engines are GPU bound, so the default is one.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"1"`

	// ApplicationVersion overrides the default binary hash for version matching.
	// Allows the Go worker and model runtimes to share workflows.
	ApplicationVersion string `env:"DBOS_APPLICATION_VERSION"`
}

// Enabled reports whether a system database is configured
func (c Config) Enabled() bool {
	return c.DatabaseURL != ""
}

// WithDefaults fills in default values for optional fields
func (c *Config) WithDefaults() {
	if c.AppName == "" {
		c.AppName = "simple-generation-pipeline"
	}
	if c.QueueName == "" {
		c.QueueName = "generation"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
}
