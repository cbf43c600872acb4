package metrics

// Config selects which sinks the service wires in. Both sinks are optional;
// with everything disabled the engines run against a NopSink.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusAddr    string `json:"prometheus_addr"`

	InfluxEnabled bool   `json:"influx_enabled"`
	InfluxURL     string `json:"influx_url"`
	InfluxToken   string `json:"influx_token"`
	InfluxOrg     string `json:"influx_org"`
	InfluxBucket  string `json:"influx_bucket"`
}

// SetDefaults fills zero values with sane defaults.
func (c *Config) SetDefaults() {
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":9090"
	}
	if c.InfluxOrg == "" {
		c.InfluxOrg = "deliverytrack"
	}
	if c.InfluxBucket == "" {
		c.InfluxBucket = "deliveries"
	}
}
