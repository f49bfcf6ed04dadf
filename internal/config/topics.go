package config

// DefaultQueueName is the Redis list (and NSQ topic) the producer pushes indexing jobs to.
const DefaultQueueName = "vexi_jobs"
