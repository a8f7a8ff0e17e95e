package domain

// Config is the domain-facing subset of the node configuration.
type Config struct {
	FQDN             string `yaml:"fqdn"`
	IdentityResolver string `yaml:"identityResolver"`
}
